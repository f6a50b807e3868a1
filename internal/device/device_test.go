package device_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/gbacore/internal/bus"
	"github.com/valerio/gbacore/internal/device"
)

func TestApplyPressSetsKeyTrue(t *testing.T) {
	var k bus.Keys
	device.InputEvent{Key: device.KeyA, State: device.KeyPress}.Apply(&k)
	assert.True(t, k.A)
}

func TestApplyReleaseClearsKey(t *testing.T) {
	k := bus.Keys{Start: true}
	device.InputEvent{Key: device.KeyStart, State: device.KeyRelease}.Apply(&k)
	assert.False(t, k.Start)
}

func TestApplyHoldKeepsKeySet(t *testing.T) {
	var k bus.Keys
	device.InputEvent{Key: device.KeyUp, State: device.KeyHold}.Apply(&k)
	assert.True(t, k.Up)
}

func TestApplyOnlyTouchesNamedKey(t *testing.T) {
	k := bus.Keys{B: true}
	device.InputEvent{Key: device.KeyA, State: device.KeyPress}.Apply(&k)
	assert.True(t, k.A)
	assert.True(t, k.B)
}
