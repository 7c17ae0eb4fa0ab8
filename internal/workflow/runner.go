package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"tractus/internal/config"
	"tractus/internal/logging"
	"tractus/internal/queue"
	"tractus/internal/stage"
	"tractus/internal/stageexec"
)

const (
	defaultPollInterval      = 5 * time.Second
	defaultHeartbeatInterval = 30 * time.Second
	defaultHeartbeatTimeout  = 10 * time.Minute
)

// StageBinding connects one pipeline stage to the queue statuses it consumes
// and produces.
type StageBinding struct {
	Name       string
	Source     queue.Status
	Processing queue.Status
	Done       queue.Status
	Handler    stage.Handler
}

// Bindings returns the pipeline stage order for the batch runner. Handlers are
// supplied by the caller keyed by stage name; a missing handler leaves the
// binding unset and the runner skips its queue scan.
func Bindings(handlers map[string]stage.Handler) []StageBinding {
	return []StageBinding{
		{
			Name:       "preproc",
			Source:     queue.StatusPending,
			Processing: queue.StatusPreprocessing,
			Done:       queue.StatusPreprocessed,
			Handler:    handlers["preproc"],
		},
		{
			Name:       "seeds",
			Source:     queue.StatusPreprocessed,
			Processing: queue.StatusSeeding,
			Done:       queue.StatusSeeded,
			Handler:    handlers["seeds"],
		},
		{
			Name:       "track",
			Source:     queue.StatusSeeded,
			Processing: queue.StatusTracking,
			Done:       queue.StatusTracked,
			Handler:    handlers["track"],
		},
		{
			Name:       "connectome",
			Source:     queue.StatusTracked,
			Processing: queue.StatusConnecting,
			Done:       queue.StatusCompleted,
			Handler:    handlers["connectome"],
		},
	}
}

// Runner drives queued subjects through the pipeline stages sequentially.
type Runner struct {
	cfg       *config.Config
	store     *queue.Store
	logger    *slog.Logger
	bindings  []StageBinding
	heartbeat *HeartbeatMonitor

	pollInterval time.Duration

	lock   *flock.Flock
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewRunner builds a batch runner over the given queue store and stage
// bindings.
func NewRunner(cfg *config.Config, store *queue.Store, logger *slog.Logger, bindings []StageBinding) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	poll := defaultPollInterval
	if cfg.Workflow.QueuePollInterval > 0 {
		poll = time.Duration(cfg.Workflow.QueuePollInterval) * time.Second
	}
	interval := defaultHeartbeatInterval
	if cfg.Workflow.HeartbeatInterval > 0 {
		interval = time.Duration(cfg.Workflow.HeartbeatInterval) * time.Second
	}
	timeout := defaultHeartbeatTimeout
	if cfg.Workflow.HeartbeatTimeout > 0 {
		timeout = time.Duration(cfg.Workflow.HeartbeatTimeout) * time.Second
	}
	return &Runner{
		cfg:          cfg,
		store:        store,
		logger:       logging.NewComponentLogger(logger, "runner"),
		bindings:     bindings,
		heartbeat:    NewHeartbeatMonitor(store, logger, interval, timeout),
		pollInterval: poll,
	}
}

// Start acquires the single-instance lock and processes the queue until the
// context is cancelled or Stop is called.
func (r *Runner) Start(ctx context.Context) error {
	if err := r.acquireLock(); err != nil {
		return err
	}
	defer r.releaseLock()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer cancel()

	r.logger.Info("batch runner started", logging.String("queue", r.store.Path()))

	// A crashed run leaves items parked in a processing status; with the
	// lock held nothing else can own them, so roll them back immediately
	// rather than waiting out the heartbeat timeout.
	if reset, err := r.store.ResetStuckProcessing(ctx); err != nil {
		r.logger.Warn("resetting stuck items failed", logging.Error(err))
	} else if reset > 0 {
		r.logger.Info("reset stuck items", logging.Int64("count", reset))
	}

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		processed, err := r.RunOnce(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			// Stage failures are recorded on the item; keep draining
			// the queue.
			r.logger.Error("stage execution failed", logging.Error(err))
		}
		if processed {
			continue
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(r.pollInterval):
		}
	}
}

// RunOnce reclaims stale items and executes at most one stage step for the
// first eligible item. It reports whether any work was performed.
func (r *Runner) RunOnce(ctx context.Context) (bool, error) {
	if err := r.heartbeat.ReclaimStaleItems(ctx); err != nil {
		r.logger.Warn("stale item reclaim failed", logging.Error(err))
	}

	for _, binding := range r.bindings {
		if binding.Handler == nil {
			continue
		}
		item, err := r.store.NextForStatuses(ctx, binding.Source)
		if err != nil {
			return false, fmt.Errorf("scanning queue for %s: %w", binding.Name, err)
		}
		if item == nil {
			continue
		}
		return true, r.executeStage(ctx, binding, item)
	}
	return false, nil
}

// Stop cancels the processing loop and waits for in-flight work to settle.
func (r *Runner) Stop() {
	if r.cancel != nil {
		r.cancel()
	}
	r.wg.Wait()
}

func (r *Runner) executeStage(ctx context.Context, binding StageBinding, item *queue.Item) error {
	hbCtx, hbCancel := context.WithCancel(ctx)
	r.wg.Add(1)
	go r.heartbeat.StartLoop(hbCtx, &r.wg, item.ID)
	defer hbCancel()

	return stageexec.Run(ctx, stageexec.Options{
		Logger:     r.logger,
		Store:      r.store,
		Handler:    binding.Handler,
		StageName:  binding.Name,
		Processing: binding.Processing,
		Done:       binding.Done,
		Item:       item,
	})
}

// HealthChecks runs every bound stage's health check and collects the results
// in pipeline order.
func (r *Runner) HealthChecks(ctx context.Context) []stage.Health {
	results := make([]stage.Health, 0, len(r.bindings))
	for _, binding := range r.bindings {
		if binding.Handler == nil {
			results = append(results, stage.Unhealthy(binding.Name, "no handler registered"))
			continue
		}
		results = append(results, binding.Handler.HealthCheck(ctx))
	}
	return results
}

func (r *Runner) acquireLock() error {
	lockPath := filepath.Join(r.cfg.Paths.LogDir, "tractus.lock")
	lock := flock.New(lockPath)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquiring runner lock %s: %w", lockPath, err)
	}
	if !locked {
		return fmt.Errorf("another tractus runner is already running (lock: %s)", lockPath)
	}
	r.lock = lock
	return nil
}

func (r *Runner) releaseLock() {
	if r.lock == nil {
		return
	}
	if err := r.lock.Unlock(); err != nil {
		r.logger.Warn("releasing runner lock failed", logging.Error(err))
	}
	r.lock = nil
}
