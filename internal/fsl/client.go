package fsl

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

// Client wraps FSL command-line interactions.
type Client struct {
	cfg    *config.Config
	exec   tools.Executor
	logger *slog.Logger
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

// New constructs an FSL client.
func New(cfg *config.Config, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("fsl client requires config")
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

// Executor exposes the client's executor so callers can run auxiliary
// probes, such as version banners for run log reports, through the same
// seam tests inject fakes into.
func (c *Client) Executor() tools.Executor {
	return c.exec
}

func (c *Client) regTimeout() time.Duration {
	return time.Duration(c.cfg.Tools.RegistrationTimeout) * time.Second
}

func (c *Client) tractTimeout() time.Duration {
	return time.Duration(c.cfg.Tools.TractTimeout) * time.Second
}

func (c *Client) run(ctx context.Context, tool string, inv tools.Invocation) error {
	c.logger.Info("invoking external tool",
		logging.String(logging.FieldEventType, "tool_invocation"),
		logging.String(logging.FieldTool, tool),
		logging.String("binary", inv.Binary),
		logging.String("args", strings.Join(inv.Args, " ")),
	)
	start := time.Now()
	err := c.exec.Run(ctx, inv, nil)
	if err != nil {
		c.logger.Error("external tool failed",
			logging.String(logging.FieldTool, tool),
			logging.Duration("elapsed", time.Since(start)),
			logging.Error(err),
		)
		return fmt.Errorf("%s: %w", tool, err)
	}
	c.logger.Info("external tool finished",
		logging.String(logging.FieldTool, tool),
		logging.Duration("elapsed", time.Since(start)),
	)
	return nil
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

// stripNiftiExt removes .nii / .nii.gz so tools that append their own
// extension get a clean output base.
func stripNiftiExt(path string) string {
	path = strings.TrimSuffix(path, ".gz")
	return strings.TrimSuffix(path, ".nii")
}
