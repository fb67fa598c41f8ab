// Package config binds the sketches' construction parameters from the
// environment, the way the teacher's settings package binds the
// ratelimit service's configuration (test/integration's
// defaultSettings() populates a Settings struct via
// envconfig.Process). Validate() turns out-of-range values into a
// single aggregated InvalidParameters error rather than letting a
// downstream constructor reject them one field at a time.
package config

import (
	"fmt"
	"strings"

	"github.com/kelseyhightower/envconfig"

	"github.com/cardsketch/windowcard/src/sketcherrors"
)

// Settings holds every configuration parameter spec.md §6 enumerates.
type Settings struct {
	// QS parameters.
	QSRegisters    int `envconfig:"QS_M" default:"512"`
	QSRegisterBits int `envconfig:"QS_R" default:"8"`

	// Shared window parameters.
	WindowSize  int64 `envconfig:"WINDOW_SIZE" default:"4096"`
	EmissionGap int64 `envconfig:"EMISSION_GAP" default:"256"`

	// LC+BP / frequency sketch parameters.
	LCBits        int `envconfig:"LC_M" default:"4096"`
	FrequencyRows int `envconfig:"FREQUENCY_D" default:"4"`
	FrequencyCols int `envconfig:"FREQUENCY_W" default:"2048"`

	// Seeds: the single knobs that make every run reproducible
	// (spec.md §9 "Randomness").
	HashSeed int64 `envconfig:"HASH_SEED" default:"2024"`
	RNGSeed  int64 `envconfig:"RNG_SEED" default:"2025224"`

	// DecayInterval (in elements observed, 0 meaning none) and
	// DecayFactor describe optional frequency-sketch decay passes
	// (SPEC_FULL §4.4). Validate checks them, but no package in this
	// module reads them: neither lcbp.Engine nor the stream driver
	// decays its sketch.
	DecayInterval int64   `envconfig:"DECAY_INTERVAL" default:"0"`
	DecayFactor   float64 `envconfig:"DECAY_FACTOR" default:"0.5"`
}

// Load reads Settings from the environment, applying the defaults
// above for anything unset. prefix is prepended to every environment
// variable name (envconfig's convention), e.g. "WINDOWCARD" binds
// WINDOWCARD_QS_M.
func Load(prefix string) (Settings, error) {
	var s Settings
	if err := envconfig.Process(prefix, &s); err != nil {
		return Settings{}, sketcherrors.Wrap(sketcherrors.InvalidParameters, "failed to load settings from environment", err)
	}
	return s, nil
}

// Validate checks every field against the domain spec.md §7's
// InvalidParameters kind names, returning a single aggregated error
// describing every violation found.
func (s Settings) Validate() error {
	var problems []string

	if s.QSRegisters < 1 {
		problems = append(problems, "QS_M must be >= 1")
	}
	if s.QSRegisterBits < 1 || s.QSRegisterBits > 16 {
		problems = append(problems, "QS_R must be in [1,16]")
	}
	if s.WindowSize < 1 {
		problems = append(problems, "WINDOW_SIZE must be >= 1")
	}
	if s.EmissionGap < 1 || s.EmissionGap > s.WindowSize {
		problems = append(problems, "EMISSION_GAP must satisfy 1 <= S <= W")
	}
	if s.LCBits < 1 {
		problems = append(problems, "LC_M must be >= 1")
	}
	if s.FrequencyRows < 1 {
		problems = append(problems, "FREQUENCY_D must be >= 1")
	}
	if s.FrequencyCols < 1 {
		problems = append(problems, "FREQUENCY_W must be >= 1")
	}
	if s.DecayInterval < 0 {
		problems = append(problems, "DECAY_INTERVAL must be >= 0")
	}
	if s.DecayInterval > 0 && (s.DecayFactor <= 0 || s.DecayFactor >= 1) {
		problems = append(problems, "DECAY_FACTOR must be in (0,1) when DECAY_INTERVAL > 0")
	}

	if len(problems) == 0 {
		return nil
	}
	return sketcherrors.New(sketcherrors.InvalidParameters, fmt.Sprintf("invalid settings: %s", strings.Join(problems, "; ")))
}
