// Package device defines the host-facing interfaces a frontend
// implements to drive a console.Console: video presentation, audio
// output and input capture, kept as three narrow interfaces rather
// than one do-everything interface, since a GBA frontend's
// video/audio/input concerns vary independently (e.g. a headless
// runner wants Video+nothing, a terminal frontend wants Video+Input
// but never Audio).
package device

import (
	"github.com/valerio/gbacore/internal/audio"
	"github.com/valerio/gbacore/internal/bus"
	"github.com/valerio/gbacore/internal/console"
	"github.com/valerio/gbacore/internal/video"
)

// InputEvent is a press/hold/release transition: a frontend reports
// which key changed and how.
type InputEvent struct {
	Key   Key
	State KeyState
}

// Key names one of the ten GBA buttons bus.Keys tracks.
type Key int

const (
	KeyA Key = iota
	KeyB
	KeySelect
	KeyStart
	KeyRight
	KeyLeft
	KeyUp
	KeyDown
	KeyR
	KeyL
)

// KeyState is the transition a frontend observed this poll.
type KeyState int

const (
	KeyPress KeyState = iota
	KeyHold
	KeyRelease
)

// Apply folds an InputEvent into a Keys snapshot, setting the named
// key's field to true for Press and Hold and to false for Release,
// since a frontend only ever reports the boolean level.
func (e InputEvent) Apply(k *bus.Keys) {
	pressed := e.State != KeyRelease
	switch e.Key {
	case KeyA:
		k.A = pressed
	case KeyB:
		k.B = pressed
	case KeySelect:
		k.Select = pressed
	case KeyStart:
		k.Start = pressed
	case KeyRight:
		k.Right = pressed
	case KeyLeft:
		k.Left = pressed
	case KeyUp:
		k.Up = pressed
	case KeyDown:
		k.Down = pressed
	case KeyR:
		k.R = pressed
	case KeyL:
		k.L = pressed
	}
}

// VideoDevice presents a completed frame to the host display.
type VideoDevice interface {
	Present(frame *video.FrameBuffer) error
}

// AudioDevice accepts stereo samples produced since the last drain
// and queues them for host playback.
type AudioDevice interface {
	QueueSamples(samples []audio.Sample) error
}

// InputDevice polls the host for key transitions since the last call.
type InputDevice interface {
	Poll() ([]InputEvent, error)
}

// Frontend bundles the three device roles plus lifecycle hooks, the
// same three-phase Init/per-frame/Cleanup shape as backend.Backend,
// split so a caller can mix concrete devices (e.g. SDL video+audio
// with a headless no-op input) instead of being forced into one
// backend implementing all three.
type Frontend interface {
	VideoDevice
	AudioDevice
	InputDevice

	Init(cfg Config) error
	Cleanup() error
}

// Config configures a Frontend, generalized from backend.BackendConfig
// to the GBA's 240x160 native resolution and removing the Game-Boy-era
// debug-window/test-pattern knobs that don't apply to this core.
type Config struct {
	Title      string
	Scale      int
	VSync      bool
	Fullscreen bool
}

// Inspector is a read-only terminal state viewer: it attaches to a
// running Console and periodically renders CPU/PPU register state and
// a VRAM preview. It never writes to the console and never implements
// a debugger wire protocol, matching the "read-only state inspection
// hooks" carve-out alongside the debugger-protocol non-goal.
type Inspector interface {
	Attach(c *console.Console) error
	Render() error
	// Poll reports whether the inspector's host window asked to quit
	// (e.g. the user pressed q or Ctrl-C).
	Poll() (quit bool, err error)
	Cleanup() error
}
