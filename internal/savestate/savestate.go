// Package savestate implements a versioned snapshot codec: magic
// NBSS, version 10, one nested State per subsystem plus the
// scheduler's event heap, re-linked back into each owning subsystem by
// UID after a restore. Grounded on
// original_source/src/nba/include/nba/save_state.hpp's SaveState
// struct, simplified to the state each Go subsystem already exposes
// through its own SaveState/LoadState pair rather than NBSS's single
// 1:1 C++ struct mirror.
package savestate

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"

	"github.com/valerio/gbacore/internal/audio"
	"github.com/valerio/gbacore/internal/bus"
	"github.com/valerio/gbacore/internal/cartridge"
	"github.com/valerio/gbacore/internal/console"
	"github.com/valerio/gbacore/internal/cpu"
	"github.com/valerio/gbacore/internal/dma"
	"github.com/valerio/gbacore/internal/irq"
	"github.com/valerio/gbacore/internal/scheduler"
	"github.com/valerio/gbacore/internal/timer"
	"github.com/valerio/gbacore/internal/video"
)

const (
	// Magic identifies a save-state file; ASCII "NBSS", named after
	// the reference format this one is grounded on.
	Magic uint32 = 0x5353424E
	// Version is bumped whenever a nested State's shape changes.
	Version uint32 = 10
)

// ErrUnsupportedVersion is returned by Decode when a file's version
// doesn't match Version; this is an in-band failure the host decides
// whether to surface or reject.
type ErrUnsupportedVersion struct{ Got uint32 }

func (e ErrUnsupportedVersion) Error() string {
	return fmt.Sprintf("savestate: unsupported version %d (want %d)", e.Got, Version)
}

// ErrBadMagic is returned by Decode when the leading magic doesn't match.
type ErrBadMagic struct{ Got uint32 }

func (e ErrBadMagic) Error() string {
	return fmt.Sprintf("savestate: bad magic %#08x (want %#08x)", e.Got, Magic)
}

// State is the full serializable snapshot of a Console. Backup memory
// is persisted as a flat image (the byte contents Flash/EEPROM commit
// reads and writes against); an in-flight multi-write Flash command or
// EEPROM bit-serial transaction is not preserved across a save/load,
// since both protocols settle within a handful of cycles and a human
// save point is never observed mid-command in practice.
type State struct {
	Magic     uint32
	Version   uint32
	Timestamp int64

	CPU   cpu.State
	Bus   bus.State
	IRQ   irq.State
	Timers [4]timer.ChannelState
	DMA   dma.State
	PPU   video.State
	APU   audio.State

	SchedulerNow    uint64
	SchedulerEvents []scheduler.Snapshot

	HasBackup   bool
	BackupType  cartridge.BackupType
	BackupImage []byte
}

// Capture snapshots every subsystem of c. Timestamp is left zero;
// callers that want one should set State.Timestamp themselves (this
// package does not call time.Now so Capture stays deterministic for
// tests).
func Capture(c *console.Console) *State {
	s := &State{
		Magic:   Magic,
		Version: Version,

		CPU:    c.CPU().SaveState(),
		Bus:    c.Bus().SaveState(),
		IRQ:    c.IRQ().SaveState(),
		Timers: c.Timers().SaveState(),
		DMA:    c.DMA().SaveState(),
		PPU:    c.PPU().SaveState(),
		APU:    c.APU().SaveState(),

		SchedulerNow:    c.Scheduler().Now(),
		SchedulerEvents: c.Scheduler().Snapshot(),
	}
	if cart := c.Cartridge(); cart != nil && cart.Backup != nil {
		s.HasBackup = true
		s.BackupImage = append([]byte(nil), cart.Backup.Image()...)
	}
	return s
}

// Restore rebuilds every subsystem of c from s. The CPU is loaded
// before the scheduler because its pipeline refill fetches through the
// bus and spends cycles; the scheduler is restored next so the clock
// ends at the saved value and the timer/DMA re-links below can find
// their pending events by UID.
func Restore(c *console.Console, s *State) error {
	if s.Magic != Magic {
		return ErrBadMagic{Got: s.Magic}
	}
	if s.Version != Version {
		return ErrUnsupportedVersion{Got: s.Version}
	}

	c.CPU().LoadState(s.CPU)
	c.Scheduler().Restore(s.SchedulerNow, s.SchedulerEvents)

	c.Bus().LoadState(s.Bus)
	c.IRQ().LoadState(s.IRQ)
	c.Timers().LoadState(s.Timers, c.Scheduler())
	c.DMA().LoadState(s.DMA, c.Scheduler())
	c.PPU().LoadState(s.PPU)
	c.APU().LoadState(s.APU)

	if s.HasBackup {
		if cart := c.Cartridge(); cart != nil && cart.Backup != nil {
			if err := cart.Backup.LoadImage(s.BackupImage); err != nil {
				return fmt.Errorf("savestate: restore backup image: %w", err)
			}
		}
	}
	return nil
}

// Encode gob-serializes s to w.
func Encode(w io.Writer, s *State) error {
	return gob.NewEncoder(w).Encode(s)
}

// Decode reads a State previously written by Encode.
func Decode(r io.Reader) (*State, error) {
	var s State
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("savestate: decode: %w", err)
	}
	if s.Magic != Magic {
		return nil, ErrBadMagic{Got: s.Magic}
	}
	if s.Version != Version {
		return nil, ErrUnsupportedVersion{Got: s.Version}
	}
	return &s, nil
}

// Marshal is a convenience wrapper around Encode for callers that want
// a byte slice (e.g. writing a .sav.state file in one shot).
func Marshal(s *State) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal is a convenience wrapper around Decode for a byte slice.
func Unmarshal(data []byte) (*State, error) {
	return Decode(bytes.NewReader(data))
}
