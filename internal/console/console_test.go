package console_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/gbacore/internal/console"
)

// A zero-filled BIOS decodes as an endless run of ARM AND r0,r0,r0
// instructions (opcode 0x00000000), which never branches and never
// touches memory beyond the PC increment, making it a safe stand-in
// for exercising the run loop without a real boot ROM.
func zeroBIOS() []byte { return make([]byte, 16*1024) }

func TestNewWiresEverySubsystemWithoutPanic(t *testing.T) {
	c := console.New()
	require.NotNil(t, c)
	require.NotNil(t, c.CPU())
	require.NotNil(t, c.FrameBuffer())
}

func TestRunFrameAdvancesOneFullFrame(t *testing.T) {
	c := console.New()
	require.NoError(t, c.LoadBIOS(zeroBIOS()))
	c.CPU().RaiseReset()

	before := c.PPU().Frame()
	c.RunFrame()
	assert.Equal(t, before+1, c.PPU().Frame())

	fb := c.FrameBuffer()
	assert.NotNil(t, fb)
}

func TestAudioSamplesDrainWithoutPanic(t *testing.T) {
	c := console.New()
	require.NoError(t, c.LoadBIOS(zeroBIOS()))
	c.CPU().RaiseReset()

	c.RunFrame()

	samples := c.AudioSamples()
	assert.NotNil(t, samples)
}
