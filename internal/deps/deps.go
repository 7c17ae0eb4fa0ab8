package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"tractus/internal/config"
	"tractus/internal/tools"
)

// Requirement defines an external binary the pipeline relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	// VersionArgs, when set, is passed to the binary to capture a version
	// banner. FSL tools disagree on the flag, so each requirement carries
	// its own.
	VersionArgs []string
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Version     string
	Detail      string
}

// Requirements builds the probe list for the configured tool set.
func Requirements(cfg *config.Config) []Requirement {
	return []Requirement{
		{Name: "bet2", Command: cfg.BetBinary(), Description: "FSL brain extraction"},
		{Name: "fast", Command: cfg.FastBinary(), Description: "FSL tissue segmentation"},
		{Name: "flirt", Command: cfg.FlirtBinary(), Description: "FSL affine registration", VersionArgs: []string{"-version"}},
		{Name: "fnirt", Command: cfg.FnirtBinary(), Description: "FSL non-linear registration"},
		{Name: "fslroi", Command: cfg.FslroiBinary(), Description: "FSL region-of-interest crop"},
		{Name: "fslstats", Command: cfg.FslstatsBinary(), Description: "FSL volume statistics"},
		{Name: "applywarp", Command: cfg.ApplyWarpBinary(), Description: "FSL warp application"},
		{Name: "probtrackx2", Command: cfg.ProbtrackxBinary(), Description: "FSL probabilistic tractography", VersionArgs: []string{"--help"}},
		{Name: "mri_vol2vol", Command: cfg.MriVol2VolBinary(), Description: "FreeSurfer volume resampling", Optional: true, VersionArgs: []string{"--version"}},
		{Name: "bbregister", Command: cfg.BBRegisterBinary(), Description: "FreeSurfer boundary registration", Optional: true, VersionArgs: []string{"--version"}},
	}
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		status := Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		if cmd == "" {
			status.Detail = "command not configured"
			results = append(results, status)
			continue
		}
		if _, err := exec.LookPath(cmd); err != nil {
			status.Detail = fmt.Sprintf("binary %q not found", cmd)
			results = append(results, status)
			continue
		}
		status.Available = true
		results = append(results, status)
	}
	return results
}

// versionProbeTimeout bounds how long a banner capture may take; fnirt and
// probtrackx2 print usage and exit, but a misconfigured wrapper script could
// hang forever.
const versionProbeTimeout = 10 * time.Second

// ProbeVersions fills the Version field for every available status whose
// requirement declares version args. Probe failures leave Version empty; a
// tool that prints usage to stderr and exits non-zero still yields a banner.
func ProbeVersions(ctx context.Context, exec tools.Executor, requirements []Requirement, statuses []Status) []Status {
	byName := make(map[string]Requirement, len(requirements))
	for _, req := range requirements {
		byName[req.Name] = req
	}
	for i := range statuses {
		if !statuses[i].Available {
			continue
		}
		req, ok := byName[statuses[i].Name]
		if !ok || len(req.VersionArgs) == 0 {
			continue
		}
		out, err := tools.Capture(ctx, exec, tools.Invocation{
			Binary:  statuses[i].Command,
			Args:    req.VersionArgs,
			Timeout: versionProbeTimeout,
		})
		banner := firstBannerLine(out)
		if banner == "" && err != nil {
			continue
		}
		statuses[i].Version = banner
	}
	return statuses
}

// ToolVersion captures the version banner of one named requirement for run
// log reports. Missing binaries, requirements without version args, and
// probe failures all yield the empty string rather than an error; version
// capture never blocks a pipeline run.
func ToolVersion(ctx context.Context, executor tools.Executor, cfg *config.Config, name string) string {
	for _, req := range Requirements(cfg) {
		if req.Name != name {
			continue
		}
		cmd := strings.TrimSpace(req.Command)
		if cmd == "" || len(req.VersionArgs) == 0 {
			return ""
		}
		out, err := tools.Capture(ctx, executor, tools.Invocation{
			Binary:  cmd,
			Args:    req.VersionArgs,
			Timeout: versionProbeTimeout,
		})
		banner := firstBannerLine(out)
		if banner == "" && err != nil {
			return ""
		}
		return banner
	}
	return ""
}

func firstBannerLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}
