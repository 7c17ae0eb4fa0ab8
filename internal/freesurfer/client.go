package freesurfer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"tractus/internal/config"
	"tractus/internal/logging"
	"tractus/internal/tools"
)

// Client wraps the FreeSurfer tools the pipeline uses for surface-based
// registration. FreeSurfer resolves its own assets through FREESURFER_HOME
// and SUBJECTS_DIR, so both are injected into every invocation.
type Client struct {
	cfg         *config.Config
	exec        tools.Executor
	logger      *slog.Logger
	subjectsDir string
}

// Option configures the client.
type Option func(*Client)

// WithExecutor injects a custom executor (primarily for tests).
func WithExecutor(exec tools.Executor) Option {
	return func(c *Client) {
		if exec != nil {
			c.exec = exec
		}
	}
}

// WithLogger attaches a logger for invocation records.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithSubjectsDir overrides the FreeSurfer subjects directory.
func WithSubjectsDir(dir string) Option {
	return func(c *Client) {
		c.subjectsDir = dir
	}
}

// New constructs a FreeSurfer client.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("freesurfer client requires config")
	}
	client := &Client{
		cfg:    cfg,
		exec:   tools.NewExecutor(),
		logger: logging.NewNop(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

func (c *Client) env() []string {
	var env []string
	if home := strings.TrimSpace(c.cfg.Paths.FreeSurferHome); home != "" {
		env = append(env, "FREESURFER_HOME="+home)
	}
	if dir := strings.TrimSpace(c.subjectsDir); dir != "" {
		env = append(env, "SUBJECTS_DIR="+dir)
	}
	return env
}

func (c *Client) run(ctx context.Context, tool string, inv tools.Invocation) error {
	inv.Env = append(inv.Env, c.env()...)
	c.logger.Info("invoking external tool",
		logging.String(logging.FieldEventType, "tool_invocation"),
		logging.String(logging.FieldTool, tool),
		logging.String("binary", inv.Binary),
		logging.String("args", strings.Join(inv.Args, " ")),
	)
	if err := c.exec.Run(ctx, inv, nil); err != nil {
		return fmt.Errorf("%s: %w", tool, err)
	}
	return nil
}

func (c *Client) timeout() time.Duration {
	return time.Duration(c.cfg.Tools.RegistrationTimeout) * time.Second
}

func requireFiles(paths ...string) error {
	for _, path := range paths {
		if strings.TrimSpace(path) == "" {
			return errors.New("input path required")
		}
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("input %s: %w", path, err)
		}
	}
	return nil
}

// Vol2Vol resamples mov into targ space through the given registration file.
func (c *Client) Vol2Vol(ctx context.Context, mov, targ, reg, out string) error {
	if err := requireFiles(mov, targ, reg); err != nil {
		return err
	}
	args := []string{
		"--mov", mov,
		"--targ", targ,
		"--reg", reg,
		"--o", out,
		"--no-save-reg",
	}
	return c.run(ctx, "mri_vol2vol", tools.Invocation{
		Binary:  c.cfg.MriVol2VolBinary(),
		Args:    args,
		Timeout: c.timeout(),
	})
}

// BBRegister computes a boundary-based registration from mov to the given
// FreeSurfer subject's anatomy, writing a .dat register file and an
// FSL-format .mat alongside it.
func (c *Client) BBRegister(ctx context.Context, subject, mov, regOut, fslMatOut string) error {
	if err := requireFiles(mov); err != nil {
		return err
	}
	if strings.TrimSpace(subject) == "" {
		return errors.New("bbregister: freesurfer subject required")
	}
	args := []string{
		"--s", subject,
		"--mov", mov,
		"--reg", regOut,
		"--dti",
		"--init-fsl",
	}
	if strings.TrimSpace(fslMatOut) != "" {
		args = append(args, "--fslmat", fslMatOut)
	}
	return c.run(ctx, "bbregister", tools.Invocation{
		Binary:  c.cfg.BBRegisterBinary(),
		Args:    args,
		Timeout: c.timeout(),
	})
}
