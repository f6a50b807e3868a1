//go:build !sdl2

package main

import (
	"errors"

	"github.com/valerio/gbacore/internal/device"
)

// newSDLFrontend stubs out the sdl2-tagged frontend for default builds,
// keeping the SDL2 cgo dependency opt-in behind a build tag.
func newSDLFrontend() (device.Frontend, error) {
	return nil, errors.New("gbacore: built without the sdl2 build tag; rebuild with -tags sdl2")
}
