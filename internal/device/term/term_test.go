package term

import (
	"testing"

	"github.com/gdamore/tcell/v2"
	"github.com/stretchr/testify/require"
	"github.com/valerio/gbacore/internal/console"
)

func bootedConsole(t *testing.T) *console.Console {
	t.Helper()
	c := console.New()
	require.NoError(t, c.LoadBIOS(make([]byte, 16*1024)))
	c.CPU().RaiseReset()
	return c
}

func newSimInspector(t *testing.T) *Inspector {
	t.Helper()
	sim := tcell.NewSimulationScreen("")
	require.NoError(t, sim.Init())
	return &Inspector{screen: sim, cons: bootedConsole(t)}
}

func TestRenderDoesNotPanicOnSimulationScreen(t *testing.T) {
	insp := newSimInspector(t)
	require.NoError(t, insp.Render())
}

func TestBitExtractsSingleFlag(t *testing.T) {
	if got := bit(1<<31, 31); got != 1 {
		t.Fatalf("bit(N)=%d, want 1", got)
	}
	if got := bit(0, 31); got != 0 {
		t.Fatalf("bit(N)=%d, want 0", got)
	}
}

func TestPollWithNoEventsDoesNotQuit(t *testing.T) {
	insp := newSimInspector(t)
	quit, err := insp.Poll()
	require.NoError(t, err)
	require.False(t, quit)
}
