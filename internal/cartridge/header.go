// Package cartridge models the GBA game pak: the ROM image, its
// 192-byte header, the auto-detected backup memory device, and an
// optional GPIO peripheral (RTC).
package cartridge

import (
	"bytes"
	"fmt"
)

// HeaderSize is the fixed size of the GBA ROM header.
const HeaderSize = 192

// Header is the parsed 192-byte cartridge header used for game
// identification and backup auto-detection.
type Header struct {
	EntryPoint [4]byte
	Title      [12]byte
	GameCode   [4]byte
	MakerCode  [2]byte
	Checksum   byte
}

// ParseHeader extracts the documented fields from the first 192 bytes
// of a ROM image. It never fails: a header this short is a load-time
// error handled by the caller (ErrGameWrongSize), not a parse error.
func ParseHeader(rom []byte) Header {
	var h Header
	if len(rom) < HeaderSize {
		return h
	}
	copy(h.EntryPoint[:], rom[0:4])
	copy(h.Title[:], rom[0xA0:0xAC])
	copy(h.GameCode[:], rom[0xAC:0xB0])
	copy(h.MakerCode[:], rom[0xB0:0xB2])
	h.Checksum = rom[0xBD]
	return h
}

// TitleString returns the 12-byte title with trailing NUL padding trimmed.
func (h Header) TitleString() string {
	return string(bytes.TrimRight(h.Title[:], "\x00"))
}

// GameCodeString returns the 4-character game code, used to look up
// database overrides for backup-type detection.
func (h Header) GameCodeString() string {
	return string(bytes.TrimRight(h.GameCode[:], "\x00"))
}

func (h Header) String() string {
	return fmt.Sprintf("%s (%s)", h.TitleString(), h.GameCodeString())
}
