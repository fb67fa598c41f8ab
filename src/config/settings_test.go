package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func defaultSettings() Settings {
	s, err := Load("WINDOWCARD_TEST_UNUSED_PREFIX")
	if err != nil {
		panic(err)
	}
	return s
}

func TestDefaultsAreValid(t *testing.T) {
	s := defaultSettings()
	require.NoError(t, s.Validate())
}

func TestValidateRejectsZeroWindow(t *testing.T) {
	s := defaultSettings()
	s.WindowSize = 0
	assert.Error(t, s.Validate())
}

func TestValidateRejectsEmissionGapExceedingWindow(t *testing.T) {
	s := defaultSettings()
	s.WindowSize = 100
	s.EmissionGap = 200
	assert.Error(t, s.Validate())
}

func TestValidateRejectsOutOfRangeRegisterWidth(t *testing.T) {
	s := defaultSettings()
	s.QSRegisterBits = 17
	assert.Error(t, s.Validate())

	s.QSRegisterBits = 0
	assert.Error(t, s.Validate())
}

func TestValidateRequiresDecayFactorOnlyWhenIntervalSet(t *testing.T) {
	s := defaultSettings()
	s.DecayInterval = 0
	s.DecayFactor = 5 // out of range, but decay is disabled so it shouldn't matter
	assert.NoError(t, s.Validate())

	s.DecayInterval = 10
	assert.Error(t, s.Validate())
}
