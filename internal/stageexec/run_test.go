package stageexec

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tractus/internal/queue"
	"tractus/internal/services"
)

type scriptedHandler struct {
	prepareErr error
	executeErr error
	prepared   bool
	executed   bool
}

func (h *scriptedHandler) Prepare(context.Context, *queue.Item) error {
	h.prepared = true
	return h.prepareErr
}

func (h *scriptedHandler) Execute(context.Context, *queue.Item) error {
	h.executed = true
	return h.executeErr
}

type capturingHandler struct {
	onPrepare func(context.Context)
	onExecute func(context.Context)
}

func (h *capturingHandler) Prepare(ctx context.Context, _ *queue.Item) error {
	if h.onPrepare != nil {
		h.onPrepare(ctx)
	}
	return nil
}

func (h *capturingHandler) Execute(ctx context.Context, _ *queue.Item) error {
	if h.onExecute != nil {
		h.onExecute(ctx)
	}
	return nil
}

func newStoreAndItem(t *testing.T) (*queue.Store, *queue.Item) {
	t.Helper()
	store, err := queue.OpenPath(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatalf("OpenPath: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	item, err := store.NewSubject(context.Background(), "sub-001", "", "", "")
	if err != nil {
		t.Fatalf("NewSubject: %v", err)
	}
	return store, item
}

func TestRunAppliesTransitions(t *testing.T) {
	store, item := newStoreAndItem(t)
	handler := &scriptedHandler{}

	err := Run(context.Background(), Options{
		Store:      store,
		Handler:    handler,
		StageName:  "seeds",
		Processing: queue.StatusSeeding,
		Done:       queue.StatusSeeded,
		Item:       item,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !handler.prepared || !handler.executed {
		t.Fatal("handler phases not invoked")
	}

	got, err := store.GetByID(context.Background(), item.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Status != queue.StatusSeeded {
		t.Fatalf("status = %s, want %s", got.Status, queue.StatusSeeded)
	}
	if got.LastHeartbeat != nil {
		t.Fatal("heartbeat not cleared after completion")
	}
}

func TestRunStampsRunIdentifier(t *testing.T) {
	store, item := newStoreAndItem(t)
	var prepareID, executeID string
	handler := &capturingHandler{
		onPrepare: func(ctx context.Context) { prepareID, _ = services.RunIDFromContext(ctx) },
		onExecute: func(ctx context.Context) { executeID, _ = services.RunIDFromContext(ctx) },
	}

	err := Run(context.Background(), Options{
		Store:      store,
		Handler:    handler,
		StageName:  "track",
		Processing: queue.StatusTracking,
		Done:       queue.StatusTracked,
		Item:       item,
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if prepareID == "" {
		t.Fatal("prepare saw no run identifier")
	}
	if prepareID != executeID {
		t.Fatalf("run identifier changed between phases: %q vs %q", prepareID, executeID)
	}
}

func TestRunClassifiesValidationFailureAsReview(t *testing.T) {
	store, item := newStoreAndItem(t)
	stageErr := services.Wrap(services.ErrValidation, "seeds", "inputs", "parcellation missing", nil)
	handler := &scriptedHandler{executeErr: stageErr}

	err := Run(context.Background(), Options{
		Store:      store,
		Handler:    handler,
		StageName:  "seeds",
		Processing: queue.StatusSeeding,
		Done:       queue.StatusSeeded,
		Item:       item,
	})
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected stage error returned, got %v", err)
	}

	got, lookupErr := store.GetByID(context.Background(), item.ID)
	if lookupErr != nil {
		t.Fatalf("GetByID: %v", lookupErr)
	}
	if got.Status != queue.StatusReview || !got.NeedsReview {
		t.Fatalf("expected review status, got %+v", got)
	}
}

func TestRunMarksTransientFailureFailed(t *testing.T) {
	store, item := newStoreAndItem(t)
	handler := &scriptedHandler{executeErr: errors.New("probtrackx2 exited 1")}

	err := Run(context.Background(), Options{
		Store:      store,
		Handler:    handler,
		StageName:  "track",
		Processing: queue.StatusTracking,
		Done:       queue.StatusTracked,
		Item:       item,
	})
	if err == nil {
		t.Fatal("expected stage error")
	}

	got, lookupErr := store.GetByID(context.Background(), item.ID)
	if lookupErr != nil {
		t.Fatalf("GetByID: %v", lookupErr)
	}
	if got.Status != queue.StatusFailed || got.ErrorMessage == "" {
		t.Fatalf("expected failed status with message, got %+v", got)
	}
}

func TestRunPrepareFailureSkipsExecute(t *testing.T) {
	store, item := newStoreAndItem(t)
	handler := &scriptedHandler{prepareErr: errors.New("boom")}

	if err := Run(context.Background(), Options{
		Store:      store,
		Handler:    handler,
		StageName:  "preproc",
		Processing: queue.StatusPreprocessing,
		Done:       queue.StatusPreprocessed,
		Item:       item,
	}); err == nil {
		t.Fatal("expected prepare error")
	}
	if handler.executed {
		t.Fatal("execute ran after prepare failure")
	}
}

func TestRunValidatesOptions(t *testing.T) {
	store, item := newStoreAndItem(t)
	if err := Run(context.Background(), Options{Store: store, Item: item}); err == nil {
		t.Fatal("expected handler requirement error")
	}
	if err := Run(context.Background(), Options{Handler: &scriptedHandler{}, Item: item}); err == nil {
		t.Fatal("expected store requirement error")
	}
	if err := Run(context.Background(), Options{Handler: &scriptedHandler{}, Store: store}); err == nil {
		t.Fatal("expected item requirement error")
	}
}
