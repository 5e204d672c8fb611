package pipeline

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.toml"))
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	def := DefaultConfig()
	if cfg.Format != def.Format || cfg.BufferSeconds != def.BufferSeconds {
		t.Fatalf("missing file did not yield defaults: %+v", cfg)
	}
}

func TestLoadConfigOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
format = "parquet"
buffer_seconds = 0.5
unwanted_stages = [0, 4]
stim_min_seconds = 160
stim_max_seconds = 230
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Format != "parquet" || cfg.BufferSeconds != 0.5 {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if len(cfg.UnwantedStages) != 2 || cfg.UnwantedStages[1] != 4 {
		t.Fatalf("unwanted stages = %v", cfg.UnwantedStages)
	}

	opts := cfg.Options("a.edf", "", "out")
	if opts.StimWindow.MinSeconds != 160 || opts.StimWindow.MaxSeconds != 230 {
		t.Fatalf("stim window = %+v", opts.StimWindow)
	}
}

func TestLoadConfigRejectsInvertedStimWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("stim_min_seconds = 300\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("expected inverted window to be rejected")
	}
}
