package workflow

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"tractus/internal/config"
	"tractus/internal/queue"
	"tractus/internal/services"
	"tractus/internal/stage"
)

type fakeStage struct {
	name     string
	prepared []int64
	executed []int64
	err      error
}

func (f *fakeStage) Prepare(_ context.Context, item *queue.Item) error {
	f.prepared = append(f.prepared, item.ID)
	return nil
}

func (f *fakeStage) Execute(_ context.Context, item *queue.Item) error {
	f.executed = append(f.executed, item.ID)
	return f.err
}

func (f *fakeStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy(f.name)
}

func newTestRunner(t *testing.T, handlers map[string]stage.Handler) (*Runner, *queue.Store) {
	t.Helper()
	dir := t.TempDir()
	store, err := queue.OpenPath(filepath.Join(dir, "queue.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	cfg := &config.Config{}
	cfg.Paths.OutputDir = dir
	cfg.Paths.LogDir = dir
	cfg.Workflow.QueuePollInterval = 1
	cfg.Workflow.HeartbeatInterval = 1
	cfg.Workflow.HeartbeatTimeout = 60

	return NewRunner(cfg, store, nil, Bindings(handlers)), store
}

func addSubject(t *testing.T, store *queue.Store, subject string, status queue.Status) *queue.Item {
	t.Helper()
	item, err := store.NewSubject(context.Background(), subject, "/data/t1.nii.gz", "/data/bedpostx", "/data/parc.nii.gz")
	if err != nil {
		t.Fatalf("NewSubject: %v", err)
	}
	if status != queue.StatusPending {
		item.Status = status
		if err := store.Update(context.Background(), item); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	return item
}

func TestRunOnceAdvancesThroughStages(t *testing.T) {
	preproc := &fakeStage{name: "preproc"}
	seeds := &fakeStage{name: "seeds"}
	runner, store := newTestRunner(t, map[string]stage.Handler{
		"preproc": preproc,
		"seeds":   seeds,
	})
	item := addSubject(t, store, "sub-01", queue.StatusPending)

	ctx := context.Background()
	processed, err := runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !processed {
		t.Fatal("expected work to be performed")
	}
	got, err := store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusPreprocessed {
		t.Fatalf("status = %s, want %s", got.Status, queue.StatusPreprocessed)
	}
	if len(preproc.executed) != 1 || len(seeds.executed) != 0 {
		t.Fatalf("unexpected execution counts: preproc=%d seeds=%d", len(preproc.executed), len(seeds.executed))
	}

	processed, err = runner.RunOnce(ctx)
	if err != nil {
		t.Fatalf("RunOnce second pass: %v", err)
	}
	if !processed {
		t.Fatal("expected the seeds stage to pick up the item")
	}
	got, err = store.GetByID(ctx, item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusSeeded {
		t.Fatalf("status = %s, want %s", got.Status, queue.StatusSeeded)
	}
	if len(seeds.executed) != 1 {
		t.Fatalf("seeds executed %d times, want 1", len(seeds.executed))
	}
}

func TestRunOnceReportsIdleQueue(t *testing.T) {
	runner, _ := newTestRunner(t, map[string]stage.Handler{
		"preproc": &fakeStage{name: "preproc"},
	})
	processed, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed {
		t.Fatal("expected no work on an empty queue")
	}
}

func TestRunOnceSkipsUnboundStages(t *testing.T) {
	runner, store := newTestRunner(t, map[string]stage.Handler{
		"seeds": &fakeStage{name: "seeds"},
	})
	addSubject(t, store, "sub-01", queue.StatusPending)
	addSubject(t, store, "sub-02", queue.StatusPreprocessed)

	processed, err := runner.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !processed {
		t.Fatal("expected the bound seeds stage to run")
	}
	got, err := store.FindBySubject(context.Background(), "sub-02")
	if err != nil {
		t.Fatalf("FindBySubject: %v", err)
	}
	if got.Status != queue.StatusSeeded {
		t.Fatalf("status = %s, want %s", got.Status, queue.StatusSeeded)
	}
}

func TestRunOnceClassifiesValidationFailure(t *testing.T) {
	failing := &fakeStage{
		name: "preproc",
		err:  services.Wrap(services.ErrValidation, "preproc", "check_inputs", "anatomical volume missing", errors.New("no such file")),
	}
	runner, store := newTestRunner(t, map[string]stage.Handler{"preproc": failing})
	item := addSubject(t, store, "sub-01", queue.StatusPending)

	processed, err := runner.RunOnce(context.Background())
	if !processed {
		t.Fatal("expected the failing stage to count as work")
	}
	if err == nil {
		t.Fatal("expected the stage error to propagate")
	}
	got, lookupErr := store.GetByID(context.Background(), item.ID)
	if lookupErr != nil {
		t.Fatalf("GetByID: %v", lookupErr)
	}
	if got.Status != queue.StatusReview {
		t.Fatalf("status = %s, want %s", got.Status, queue.StatusReview)
	}
}

func TestStartHoldsInstanceLock(t *testing.T) {
	runner, _ := newTestRunner(t, map[string]stage.Handler{})
	if err := runner.acquireLock(); err != nil {
		t.Fatalf("acquireLock: %v", err)
	}
	defer runner.releaseLock()

	second := NewRunner(runner.cfg, runner.store, nil, nil)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := second.Start(ctx); err == nil {
		t.Fatal("expected the second runner to refuse to start")
	}
}

func TestHealthChecksReportUnbound(t *testing.T) {
	runner, _ := newTestRunner(t, map[string]stage.Handler{
		"preproc": &fakeStage{name: "preproc"},
	})
	results := runner.HealthChecks(context.Background())
	if len(results) != 4 {
		t.Fatalf("got %d health results, want 4", len(results))
	}
	if !results[0].Ready {
		t.Fatalf("preproc should be healthy: %+v", results[0])
	}
	if results[1].Ready {
		t.Fatalf("unbound seeds stage should be unhealthy: %+v", results[1])
	}
}
