package savestate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valerio/gbacore/internal/console"
	"github.com/valerio/gbacore/internal/savestate"
)

func bootedConsole(t *testing.T) *console.Console {
	t.Helper()
	c := console.New()
	require.NoError(t, c.LoadBIOS(make([]byte, 16*1024)))
	c.CPU().RaiseReset()
	return c
}

func TestCaptureRestoreRoundTripsCPURegisters(t *testing.T) {
	c := bootedConsole(t)
	c.CPU().SetRegister(3, 0xDEADBEEF)
	c.RunFrame()

	snap := savestate.Capture(c)

	c.CPU().SetRegister(3, 0)
	require.NoError(t, savestate.Restore(c, snap))

	assert.Equal(t, uint32(0xDEADBEEF), c.CPU().Register(3))
}

func TestEncodeDecodeRoundTripsThroughBytes(t *testing.T) {
	c := bootedConsole(t)
	c.CPU().SetRegister(5, 0x1234)

	snap := savestate.Capture(c)
	data, err := savestate.Marshal(snap)
	require.NoError(t, err)

	decoded, err := savestate.Unmarshal(data)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x1234), decoded.CPU.R[5])
}

func TestDecodeRejectsWrongVersion(t *testing.T) {
	c := bootedConsole(t)
	snap := savestate.Capture(c)
	snap.Version = savestate.Version + 1

	data, err := savestate.Marshal(snap)
	require.NoError(t, err)

	_, err = savestate.Unmarshal(data)
	assert.ErrorAs(t, err, &savestate.ErrUnsupportedVersion{})
}

func TestSchedulerEventsSurviveRoundTrip(t *testing.T) {
	c := bootedConsole(t)
	before := c.Scheduler().Now()

	snap := savestate.Capture(c)
	require.NoError(t, savestate.Restore(c, snap))

	assert.Equal(t, before, c.Scheduler().Now())
}
