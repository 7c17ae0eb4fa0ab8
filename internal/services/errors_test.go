package services

import (
	"errors"
	"strings"
	"testing"

	"tractus/internal/queue"
)

func TestWrapTagsMarker(t *testing.T) {
	base := errors.New("flirt exited with status 1")
	err := Wrap(ErrExternalTool, "preproc", "flirt", "affine registration failed", base)
	if !errors.Is(err, ErrExternalTool) {
		t.Fatalf("expected wrapped error to match ErrExternalTool: %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to retain cause: %v", err)
	}
	if !strings.Contains(err.Error(), "preproc: flirt: affine registration failed") {
		t.Fatalf("unexpected detail: %v", err)
	}
}

func TestWrapDefaultsToTransient(t *testing.T) {
	err := Wrap(nil, "", "", "", nil)
	if !errors.Is(err, ErrTransient) {
		t.Fatalf("expected transient marker, got %v", err)
	}
	if !strings.Contains(err.Error(), "service failure") {
		t.Fatalf("expected generic detail, got %v", err)
	}
}

func TestFailureStatus(t *testing.T) {
	cases := []struct {
		err  error
		want queue.Status
	}{
		{Wrap(ErrValidation, "seeds", "", "parcellation missing", nil), queue.StatusReview},
		{Wrap(ErrConfiguration, "track", "", "bad samples count", nil), queue.StatusReview},
		{Wrap(ErrNotFound, "preproc", "", "t1 not found", nil), queue.StatusReview},
		{Wrap(ErrExternalTool, "track", "probtrackx2", "", errors.New("boom")), queue.StatusFailed},
		{errors.New("unclassified"), queue.StatusFailed},
	}
	for _, tc := range cases {
		if got := FailureStatus(tc.err); got != tc.want {
			t.Fatalf("FailureStatus(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
