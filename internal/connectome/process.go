package connectome

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/gonum/matrix/mat64"

	"tractus/internal/config"
	"tractus/internal/layout"
	"tractus/internal/logging"
	"tractus/internal/runlog"
	"tractus/internal/services"
	"tractus/internal/tract"
)

// Result reports what the connectome step produced.
type Result struct {
	Matrix  *mat64.Dense
	Metrics Metrics
	// Outputs maps export names to written paths.
	Outputs map[string]string
}

// Process assembles the connectome for one subject from the tracking stage's
// outputs and writes the configured exports. Network-mode runs supply
// fdt_network_matrix directly; per-seed runs are assembled from their
// path-count volumes.
func Process(ctx context.Context, dirs layout.SubjectDirs, cfg config.Connectome, logger *slog.Logger) (Result, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	report := runlog.New("connectome")
	report.AdoptRunID(ctx)
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		report.SetToolVersion(info.Main.Version)
	}
	result, err := process(dirs, cfg, logger, report)
	report.Finish(err)
	if werr := report.Write(runlog.Path(dirs.Logs, "connectome")); werr != nil {
		logger.Warn("run log write failed", logging.Error(werr))
	}
	return result, err
}

func process(dirs layout.SubjectDirs, cfg config.Connectome, logger *slog.Logger, report *runlog.Report) (Result, error) {
	matrixPath := dirs.NetworkMatrix()
	var raw *mat64.Dense
	if _, statErr := os.Stat(matrixPath); statErr == nil {
		m, err := ReadNetworkMatrix(matrixPath)
		if err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "connectome", "network matrix", "tracking outputs malformed", err)
		}
		raw = m
		report.AddInput("network_matrix", matrixPath)
	} else {
		m, err := AssembleFromSeedRuns(dirs)
		if err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "connectome", "seed runs", "per-seed tracking outputs missing or malformed", err)
		}
		raw = m
		report.AddInput("seed_runs", dirs.Tract)
	}

	opts := Options{
		Normalize:           cfg.Normalize,
		ThresholdProportion: cfg.ThresholdProportion,
	}
	if cfg.Normalize == NormalizeWaytotal {
		waytotals, err := tract.ReadWaytotal(dirs.Waytotal())
		if err != nil {
			return Result{}, services.Wrap(services.ErrValidation, "connectome", "waytotal", "waytotal normalization requested but counts unavailable", err)
		}
		opts.Waytotals = waytotals
		report.AddInput("waytotal", dirs.Waytotal())
	}

	m, err := Build(raw, opts)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "connectome", "assemble", "connectivity matrix assembly failed", err)
	}
	metrics := ComputeMetrics(m)
	logger.Info("connectome assembled",
		logging.String(logging.FieldStage, "connectome"),
		logging.Int("nodes", metrics.Nodes),
		logging.Int("edges", metrics.Edges))

	result := Result{Matrix: m, Metrics: metrics, Outputs: map[string]string{}}
	if cfg.ExportCSV {
		if err := WriteMatrixCSV(dirs.ConnectomeCSV(), m); err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "connectome", "export", "matrix csv write failed", err)
		}
		result.Outputs["matrix_csv"] = dirs.ConnectomeCSV()
		report.AddOutput("matrix_csv", dirs.ConnectomeCSV())
	}
	if cfg.ExportNpy {
		if err := WriteMatrixNpy(dirs.ConnectomeNpy(), m); err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "connectome", "export", "matrix npy write failed", err)
		}
		result.Outputs["matrix_npy"] = dirs.ConnectomeNpy()
		report.AddOutput("matrix_npy", dirs.ConnectomeNpy())
	}
	if err := WriteMetricsCSV(dirs.MetricsCSV(), metrics); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "connectome", "export", "metrics csv write failed", err)
	}
	result.Outputs["metrics_csv"] = dirs.MetricsCSV()
	report.AddOutput("metrics_csv", dirs.MetricsCSV())
	return result, nil
}
