package pipeline

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/sleepmetrics/eegprune"
)

// Config is the on-disk TOML configuration for a pruning run. Every field has
// a default, so an absent file or an empty table is a valid configuration.
type Config struct {
	Format         string  `toml:"format"`
	BufferSeconds  float64 `toml:"buffer_seconds"`
	UnwantedStages []int   `toml:"unwanted_stages"`
	StimMinSeconds float64 `toml:"stim_min_seconds"`
	StimMaxSeconds float64 `toml:"stim_max_seconds"`
	Overwrite      bool    `toml:"overwrite"`
}

// DefaultConfig returns the configuration used when no file overrides it:
// CSV reports, a 200 ms relocation buffer, wake (0) excised, and the nominal
// stimulation duration window.
func DefaultConfig() Config {
	return Config{
		Format:         "csv",
		BufferSeconds:  0.2,
		UnwantedStages: []int{0},
		StimMinSeconds: eegprune.DefaultStimWindow.MinSeconds,
		StimMaxSeconds: eegprune.DefaultStimWindow.MaxSeconds,
	}
}

// LoadConfig reads a TOML config file over the defaults. A missing path is
// not an error; it yields the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.StimMinSeconds > cfg.StimMaxSeconds {
		return cfg, fmt.Errorf("config %s: stim_min_seconds %g exceeds stim_max_seconds %g", path, cfg.StimMinSeconds, cfg.StimMaxSeconds)
	}
	return cfg, nil
}

// Options binds a configuration to one recording's paths.
func (c Config) Options(input, events, outDir string) Options {
	return Options{
		InputPath:      input,
		EventsPath:     events,
		OutDir:         outDir,
		Format:         c.Format,
		BufferSeconds:  c.BufferSeconds,
		UnwantedStages: append([]int(nil), c.UnwantedStages...),
		StimWindow:     eegprune.StimWindow{MinSeconds: c.StimMinSeconds, MaxSeconds: c.StimMaxSeconds},
		Overwrite:      c.Overwrite,
	}
}
