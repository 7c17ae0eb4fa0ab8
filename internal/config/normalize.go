package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeTools()
	c.normalizeTract()
	c.normalizeConnectome()
	c.normalizeLogging()
	c.normalizeWorkflow()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if c.Paths.FSLDir, err = expandPath(c.Paths.FSLDir); err != nil {
		return fmt.Errorf("paths.fsl_dir: %w", err)
	}
	if c.Paths.FreeSurferHome, err = expandPath(c.Paths.FreeSurferHome); err != nil {
		return fmt.Errorf("paths.freesurfer_home: %w", err)
	}
	return nil
}

func (c *Config) normalizeTools() {
	if c.Tools.RegistrationTimeout <= 0 {
		c.Tools.RegistrationTimeout = defaultRegTimeoutSeconds
	}
	if c.Tools.TractTimeout <= 0 {
		c.Tools.TractTimeout = defaultTractTimeout
	}
}

func (c *Config) normalizeTract() {
	if c.Tract.Samples <= 0 {
		c.Tract.Samples = defaultTractSamples
	}
	if c.Tract.Steps <= 0 {
		c.Tract.Steps = defaultTractSteps
	}
	if c.Tract.StepLength <= 0 {
		c.Tract.StepLength = defaultTractStepLength
	}
	if c.Tract.Curvature <= 0 {
		c.Tract.Curvature = defaultTractCurvature
	}
}

func (c *Config) normalizeConnectome() {
	c.Connectome.Normalize = strings.ToLower(strings.TrimSpace(c.Connectome.Normalize))
	if c.Connectome.Normalize == "" {
		c.Connectome.Normalize = defaultNormalizeMode
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = defaultLogRetentionDays
	}
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.QueuePollInterval <= 0 {
		c.Workflow.QueuePollInterval = defaultQueuePollSeconds
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeatSeconds
	}
	if c.Workflow.HeartbeatTimeout <= c.Workflow.HeartbeatInterval {
		c.Workflow.HeartbeatTimeout = defaultHeartbeatTimeout
	}
	if c.Workflow.MinFreeGiB < 0 {
		c.Workflow.MinFreeGiB = defaultMinFreeGiB
	}
}
