package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/valerio/gbacore/internal/config"
)

func valid() config.Config {
	return config.Config{BIOSPath: "bios.bin", ROMPath: "game.gba"}
}

func TestValidateAcceptsMinimalConfig(t *testing.T) {
	assert.NoError(t, valid().Validate())
}

func TestValidateRejectsMissingBIOS(t *testing.T) {
	c := valid()
	c.BIOSPath = ""
	assert.Error(t, c.Validate())
}

func TestValidateRejectsMissingROM(t *testing.T) {
	c := valid()
	c.ROMPath = ""
	assert.Error(t, c.Validate())
}

func TestValidateRejectsHeadlessWithoutFrames(t *testing.T) {
	c := valid()
	c.Headless = true
	assert.Error(t, c.Validate())
}

func TestValidateAcceptsHeadlessWithFrames(t *testing.T) {
	c := valid()
	c.Headless = true
	c.Frames = 60
	assert.NoError(t, c.Validate())
}
