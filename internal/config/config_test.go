package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ModulePath: "fixture.mod",
		Procedure:  "loop_fixture",
		LoopHeader: "header",
		MaxCores:   4,
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	require.NoError(t, Validate(validConfig()))
}

func TestValidateRejectsNilConfig(t *testing.T) {
	err := Validate(nil)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "config", verr.Field)
}

func TestValidateRejectsZeroMaxCores(t *testing.T) {
	cfg := validConfig()
	cfg.MaxCores = 0

	err := Validate(cfg)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "maxcores", verr.Field)
}

func TestValidateRejectsMissingModulePath(t *testing.T) {
	cfg := validConfig()
	cfg.ModulePath = ""

	err := Validate(cfg)
	require.Error(t, err)
}

func TestValidateRejectsLoopHeaderEqualToProcedure(t *testing.T) {
	cfg := validConfig()
	cfg.LoopHeader = cfg.Procedure

	err := Validate(cfg)
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "loop_header", verr.Field)
}
