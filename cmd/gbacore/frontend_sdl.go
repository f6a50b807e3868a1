//go:build sdl2

package main

import (
	"github.com/valerio/gbacore/internal/device"
	"github.com/valerio/gbacore/internal/device/sdl"
)

func newSDLFrontend() (device.Frontend, error) {
	return sdl.New(), nil
}
