// Package runlog writes the per-step JSON reports that make pipeline runs
// auditable: which tool ran, with which inputs, what it produced, and how
// long it took.
package runlog

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"tractus/internal/services"
)

// Runtime captures execution metadata for a pipeline step.
type Runtime struct {
	RunID           string  `json:"run_id"`
	Host            string  `json:"host"`
	Started         string  `json:"started"`
	Finished        string  `json:"finished,omitempty"`
	DurationSeconds float64 `json:"duration_seconds"`
	ToolVersion     string  `json:"tool_version,omitempty"`
	Status          string  `json:"status"`
	Error           string  `json:"error,omitempty"`
}

// Report is the serialized record of one pipeline step.
type Report struct {
	Tool    string            `json:"tool"`
	Inputs  map[string]string `json:"inputs"`
	Outputs map[string]string `json:"outputs"`
	Runtime Runtime           `json:"runtime"`

	started time.Time
}

// New starts a report for the named tool, stamping the host and a fresh run
// identifier.
func New(tool string) *Report {
	host, _ := os.Hostname()
	now := time.Now().UTC()
	return &Report{
		Tool:    tool,
		Inputs:  make(map[string]string),
		Outputs: make(map[string]string),
		Runtime: Runtime{
			RunID:   uuid.NewString(),
			Host:    host,
			Started: now.Format(time.RFC3339),
			Status:  "running",
		},
		started: now,
	}
}

// AddInput records a named input path or parameter.
func (r *Report) AddInput(name, value string) {
	r.Inputs[name] = value
}

// AddOutput records a named output path.
func (r *Report) AddOutput(name, value string) {
	r.Outputs[name] = value
}

// AdoptRunID replaces the generated run identifier with the one carried by
// ctx, so the report and the stage's log records share it. Contexts without a
// run identifier leave the generated one in place.
func (r *Report) AdoptRunID(ctx context.Context) {
	if id, ok := services.RunIDFromContext(ctx); ok {
		r.Runtime.RunID = id
	}
}

// SetToolVersion records the probed version banner of the wrapped binary.
func (r *Report) SetToolVersion(version string) {
	r.Runtime.ToolVersion = version
}

// Finish closes the report, recording duration and outcome.
func (r *Report) Finish(err error) {
	now := time.Now().UTC()
	r.Runtime.Finished = now.Format(time.RFC3339)
	r.Runtime.DurationSeconds = now.Sub(r.started).Seconds()
	if err != nil {
		r.Runtime.Status = "failed"
		r.Runtime.Error = err.Error()
		return
	}
	r.Runtime.Status = "completed"
}

// Write serializes the report to path atomically.
func (r *Report) Write(path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run report: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure report dir: %w", err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write run report: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("finalize run report: %w", err)
	}
	return nil
}

// Path returns the conventional report location for a step under a subject's
// logs directory.
func Path(logsDir, step string) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s.json", step))
}
