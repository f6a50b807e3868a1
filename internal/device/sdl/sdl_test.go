//go:build sdl2

package sdl

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFloatToS16ClampsToRange(t *testing.T) {
	assert.Equal(t, int16(32767), floatToS16(2.0))
	assert.Equal(t, int16(-32767), floatToS16(-2.0))
}

func TestFloatToS16ZeroIsSilence(t *testing.T) {
	assert.Equal(t, int16(0), floatToS16(0))
}
