package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, _, exists, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if exists {
		t.Fatal("expected exists=false for missing config")
	}
	if cfg.Preproc.BetFraction != defaultBetFraction {
		t.Fatalf("unexpected bet fraction %v", cfg.Preproc.BetFraction)
	}
	if cfg.Tract.Samples != defaultTractSamples {
		t.Fatalf("unexpected samples %d", cfg.Tract.Samples)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("unexpected log format %q", cfg.Logging.Format)
	}
}

func TestLoadOverridesAndExpansion(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
[paths]
output_dir = "` + dir + `/out"
log_dir = "` + dir + `/logs"
fsl_dir = "` + dir + `/fsl"

[preproc]
bet_fraction = 0.35
fnirt = false

[connectome]
normalize = "NONE"
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("unexpected resolution %q exists=%v", resolved, exists)
	}
	if cfg.Preproc.BetFraction != 0.35 {
		t.Fatalf("override not applied: %v", cfg.Preproc.BetFraction)
	}
	if cfg.Preproc.Fnirt {
		t.Fatal("fnirt toggle override not applied")
	}
	if cfg.Connectome.Normalize != "none" {
		t.Fatalf("normalize not lowercased: %q", cfg.Connectome.Normalize)
	}
	if got := cfg.FlirtBinary(); got != filepath.Join(dir, "fsl", "bin", "flirt") {
		t.Fatalf("flirt binary not resolved against fsl_dir: %q", got)
	}
	if got := cfg.ProbtrackxBinary(); !strings.HasSuffix(got, filepath.Join("bin", "probtrackx2")) {
		t.Fatalf("probtrackx binary not resolved: %q", got)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bet fraction", func(c *Config) { c.Preproc.BetFraction = 1.5 }},
		{"fast classes", func(c *Config) { c.Preproc.FastClasses = 7 }},
		{"flirt dof", func(c *Config) { c.Preproc.FlirtDOF = 8 }},
		{"flirt cost", func(c *Config) { c.Preproc.FlirtCost = "fancy" }},
		{"normalize", func(c *Config) { c.Connectome.Normalize = "zscore" }},
		{"threshold", func(c *Config) { c.Connectome.ThresholdProportion = 1.0 }},
		{"log format", func(c *Config) { c.Logging.Format = "yaml" }},
	}
	for _, tc := range cases {
		cfg := Default()
		tc.mutate(&cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestToolBinaryFallsBackToPath(t *testing.T) {
	cfg := Default()
	if got := cfg.BetBinary(); got != "bet2" {
		t.Fatalf("expected bare bet2, got %q", got)
	}
	cfg.Tools.Bet = "/opt/fsl/bin/bet2"
	if got := cfg.BetBinary(); got != "/opt/fsl/bin/bet2" {
		t.Fatalf("override ignored: %q", got)
	}
}

func TestCreateSampleRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := CreateSample(path); err != nil {
		t.Fatalf("CreateSample: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[preproc]") {
		t.Fatal("sample config missing preproc section")
	}
	if err := CreateSample(path); err == nil {
		t.Fatal("expected error overwriting existing config")
	}
}
