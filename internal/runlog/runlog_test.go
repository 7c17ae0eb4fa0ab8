package runlog

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tractus/internal/services"
)

func TestReportLifecycle(t *testing.T) {
	report := New("flirt")
	if report.Runtime.RunID == "" {
		t.Fatal("expected run id")
	}
	if report.Runtime.Status != "running" {
		t.Fatalf("unexpected initial status %q", report.Runtime.Status)
	}
	report.AddInput("in", "t1_brain.nii.gz")
	report.AddOutput("omat", "anat2diff.mat")
	report.SetToolVersion("FLIRT version 6.0")
	report.Finish(nil)

	if report.Runtime.Status != "completed" {
		t.Fatalf("unexpected status %q", report.Runtime.Status)
	}
	if report.Runtime.Finished == "" || report.Runtime.DurationSeconds < 0 {
		t.Fatalf("runtime not closed: %+v", report.Runtime)
	}
}

func TestAdoptRunID(t *testing.T) {
	report := New("probtrackx2")
	generated := report.Runtime.RunID

	report.AdoptRunID(context.Background())
	if report.Runtime.RunID != generated {
		t.Fatal("bare context should keep the generated run id")
	}

	ctx := services.WithRunID(context.Background(), "stage-run-id")
	report.AdoptRunID(ctx)
	if report.Runtime.RunID != "stage-run-id" {
		t.Fatalf("run id %q not adopted", report.Runtime.RunID)
	}
}

func TestFinishRecordsFailure(t *testing.T) {
	report := New("probtrackx2")
	report.Finish(errors.New("tracking exploded"))
	if report.Runtime.Status != "failed" {
		t.Fatalf("unexpected status %q", report.Runtime.Status)
	}
	if report.Runtime.Error != "tracking exploded" {
		t.Fatalf("unexpected error %q", report.Runtime.Error)
	}
}

func TestWriteRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := Path(filepath.Join(dir, "logs"), "preproc")

	report := New("bet2")
	report.AddInput("t1", "t1.nii.gz")
	report.Finish(nil)
	if err := report.Write(path); err != nil {
		t.Fatalf("Write: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded Report
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if decoded.Tool != "bet2" || decoded.Inputs["t1"] != "t1.nii.gz" {
		t.Fatalf("unexpected decoded report %+v", decoded)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temporary file left behind")
	}
}
