package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	OutputDir      string `toml:"output_dir"`
	LogDir         string `toml:"log_dir"`
	FSLDir         string `toml:"fsl_dir"`
	FreeSurferHome string `toml:"freesurfer_home"`
}

// Tools contains per-binary overrides and subprocess timeouts.
type Tools struct {
	Bet        string `toml:"bet"`
	Fast       string `toml:"fast"`
	Flirt      string `toml:"flirt"`
	Fnirt      string `toml:"fnirt"`
	Fslroi     string `toml:"fslroi"`
	Fslstats   string `toml:"fslstats"`
	ApplyWarp  string `toml:"applywarp"`
	Probtrackx string `toml:"probtrackx"`
	MriVol2Vol string `toml:"mri_vol2vol"`
	BBRegister string `toml:"bbregister"`

	RegistrationTimeout int `toml:"registration_timeout"`
	TractTimeout        int `toml:"tract_timeout"`
}

// Preproc contains default step toggles and tool parameters for the
// anatomical preprocessing pipeline.
type Preproc struct {
	Crop  bool `toml:"crop"`
	Bet   bool `toml:"bet"`
	Fast  bool `toml:"fast"`
	Flirt bool `toml:"flirt"`
	Fnirt bool `toml:"fnirt"`
	BBox  bool `toml:"bbox"`
	Snap  bool `toml:"snap"`

	BetFraction float64 `toml:"bet_fraction"`
	FastClasses int     `toml:"fast_classes"`
	FlirtDOF    int     `toml:"flirt_dof"`
	FlirtCost   string  `toml:"flirt_cost"`
	FnirtConfig string  `toml:"fnirt_config"`
}

// Tract contains probtrackx2 parameters.
type Tract struct {
	Samples    int     `toml:"samples"`
	Steps      int     `toml:"steps"`
	StepLength float64 `toml:"step_length"`
	Curvature  float64 `toml:"curvature"`
	Loopcheck  bool    `toml:"loopcheck"`
	Network    bool    `toml:"network"`
}

// Connectome contains matrix assembly and export settings.
type Connectome struct {
	Normalize           string  `toml:"normalize"`
	ThresholdProportion float64 `toml:"threshold_proportion"`
	ExportCSV           bool    `toml:"export_csv"`
	ExportNpy           bool    `toml:"export_npy"`
}

// Logging contains log output configuration.
type Logging struct {
	Level         string `toml:"level"`
	Format        string `toml:"format"`
	RetentionDays int    `toml:"retention_days"`
}

// Workflow contains batch runner timing and resource limits.
type Workflow struct {
	QueuePollInterval int `toml:"queue_poll_interval"`
	HeartbeatInterval int `toml:"heartbeat_interval"`
	HeartbeatTimeout  int `toml:"heartbeat_timeout"`
	MinFreeGiB        int `toml:"min_free_gib"`
}

// Config is the root configuration document.
type Config struct {
	Paths      Paths      `toml:"paths"`
	Tools      Tools      `toml:"tools"`
	Preproc    Preproc    `toml:"preproc"`
	Tract      Tract      `toml:"tract"`
	Connectome Connectome `toml:"connectome"`
	Logging    Logging    `toml:"logging"`
	Workflow   Workflow   `toml:"workflow"`
}

// DefaultConfigPath returns the expanded default config location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/tractus/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("tractus.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the output and log directories.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.OutputDir, c.Paths.LogDir}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// FSLBinary resolves an FSL tool name against the configured override and
// fsl_dir. An override containing a path separator is used verbatim;
// otherwise the binary is expected under <fsl_dir>/bin when fsl_dir is set.
func (c *Config) FSLBinary(override, name string) string {
	if cmd := strings.TrimSpace(override); cmd != "" {
		return cmd
	}
	if dir := strings.TrimSpace(c.Paths.FSLDir); dir != "" {
		return filepath.Join(dir, "bin", name)
	}
	return name
}

// FreeSurferBinary resolves a FreeSurfer tool name.
func (c *Config) FreeSurferBinary(override, name string) string {
	if cmd := strings.TrimSpace(override); cmd != "" {
		return cmd
	}
	if dir := strings.TrimSpace(c.Paths.FreeSurferHome); dir != "" {
		return filepath.Join(dir, "bin", name)
	}
	return name
}

func (c *Config) BetBinary() string        { return c.FSLBinary(c.Tools.Bet, "bet2") }
func (c *Config) FastBinary() string       { return c.FSLBinary(c.Tools.Fast, "fast") }
func (c *Config) FlirtBinary() string      { return c.FSLBinary(c.Tools.Flirt, "flirt") }
func (c *Config) FnirtBinary() string      { return c.FSLBinary(c.Tools.Fnirt, "fnirt") }
func (c *Config) FslroiBinary() string     { return c.FSLBinary(c.Tools.Fslroi, "fslroi") }
func (c *Config) FslstatsBinary() string   { return c.FSLBinary(c.Tools.Fslstats, "fslstats") }
func (c *Config) ApplyWarpBinary() string  { return c.FSLBinary(c.Tools.ApplyWarp, "applywarp") }
func (c *Config) ProbtrackxBinary() string { return c.FSLBinary(c.Tools.Probtrackx, "probtrackx2") }

func (c *Config) MriVol2VolBinary() string {
	return c.FreeSurferBinary(c.Tools.MriVol2Vol, "mri_vol2vol")
}

func (c *Config) BBRegisterBinary() string {
	return c.FreeSurferBinary(c.Tools.BBRegister, "bbregister")
}

func expandPath(pathValue string) (string, error) {
	trimmed := strings.TrimSpace(pathValue)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return home, nil
	}
	if strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, trimmed[2:]), nil
	}
	abs, err := filepath.Abs(os.ExpandEnv(trimmed))
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", pathValue, err)
	}
	return abs, nil
}

// ExpandPath exposes tilde/env expansion for CLI path arguments.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the embedded sample configuration to path, refusing to
// overwrite an existing file.
func CreateSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := os.WriteFile(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
