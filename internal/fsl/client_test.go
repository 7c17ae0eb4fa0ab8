package fsl

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tractus/internal/testsupport"
	"tractus/internal/tools"
)

type fakeExecutor struct {
	calls []tools.Invocation
	lines []string
	err   error
}

func (f *fakeExecutor) Run(_ context.Context, inv tools.Invocation, onLine func(string)) error {
	f.calls = append(f.calls, inv)
	for _, line := range f.lines {
		if onLine != nil {
			onLine(line)
		}
	}
	return f.err
}

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("touch %s: %v", path, err)
	}
	return path
}

func newTestClient(t *testing.T, exec tools.Executor) *Client {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	client, err := New(cfg, WithExecutor(exec))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func argString(inv tools.Invocation) string {
	return strings.Join(inv.Args, " ")
}

func TestBrainExtractArgs(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, dir, "t1.nii.gz")
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	out := filepath.Join(dir, "t1_brain.nii.gz")
	if err := client.BrainExtract(context.Background(), in, out, 0.4, true); err != nil {
		t.Fatalf("BrainExtract: %v", err)
	}
	if len(exec.calls) != 1 {
		t.Fatalf("expected one invocation, got %d", len(exec.calls))
	}
	got := argString(exec.calls[0])
	want := in + " " + filepath.Join(dir, "t1_brain") + " -f 0.4 -m"
	if got != want {
		t.Fatalf("args = %q, want %q", got, want)
	}
}

func TestBrainExtractMissingInput(t *testing.T) {
	client := newTestClient(t, &fakeExecutor{})
	err := client.BrainExtract(context.Background(), filepath.Join(t.TempDir(), "no.nii"), "out", 0.5, false)
	if err == nil {
		t.Fatal("expected error for missing input")
	}
}

func TestAffineRegisterArgs(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, dir, "t1_brain.nii.gz")
	ref := touch(t, dir, "nodif_brain.nii.gz")
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	err := client.AffineRegister(context.Background(), in, ref, filepath.Join(dir, "anat2diff.mat"), filepath.Join(dir, "t1_in_diff.nii.gz"), 12, "corratio")
	if err != nil {
		t.Fatalf("AffineRegister: %v", err)
	}
	got := argString(exec.calls[0])
	for _, fragment := range []string{"-in " + in, "-ref " + ref, "-dof 12", "-cost corratio", "-omat"} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("args %q missing %q", got, fragment)
		}
	}
}

func TestNonlinearRegisterArgs(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, dir, "t1.nii.gz")
	ref := touch(t, dir, "ref.nii.gz")
	aff := touch(t, dir, "anat2diff.mat")
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	err := client.NonlinearRegister(context.Background(), in, ref, aff, "cout.nii.gz", "iout.nii.gz", "T1_2_MNI152_2mm")
	if err != nil {
		t.Fatalf("NonlinearRegister: %v", err)
	}
	got := argString(exec.calls[0])
	for _, fragment := range []string{"--in=" + in, "--aff=" + aff, "--config=T1_2_MNI152_2mm"} {
		if !strings.Contains(got, fragment) {
			t.Fatalf("args %q missing %q", got, fragment)
		}
	}
}

func TestCropRejectsEmptyBox(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, dir, "t1.nii.gz")
	client := newTestClient(t, &fakeExecutor{})
	err := client.Crop(context.Background(), in, filepath.Join(dir, "out.nii.gz"), BBox{})
	if err == nil || !strings.Contains(err.Error(), "empty extent") {
		t.Fatalf("expected empty extent error, got %v", err)
	}
}

func TestRobustBBoxParses(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, dir, "t1.nii.gz")
	exec := &fakeExecutor{lines: []string{"12 160 8 200 0 180 0 1"}}
	client := newTestClient(t, exec)

	box, err := client.RobustBBox(context.Background(), in)
	if err != nil {
		t.Fatalf("RobustBBox: %v", err)
	}
	want := BBox{XMin: 12, XSize: 160, YMin: 8, YSize: 200, ZMin: 0, ZSize: 180}
	if box != want {
		t.Fatalf("box = %+v, want %+v", box, want)
	}
}

func TestParseBBoxRejectsGarbage(t *testing.T) {
	if _, err := parseBBox("only three fields"); err == nil {
		t.Fatal("expected error for short output")
	}
	if _, err := parseBBox("a b c d e f"); err == nil {
		t.Fatal("expected error for non-numeric output")
	}
}

func TestApplyXFMArgs(t *testing.T) {
	dir := t.TempDir()
	in := touch(t, dir, "extra.nii.gz")
	ref := touch(t, dir, "ref.nii.gz")
	mat := touch(t, dir, "anat2diff.mat")
	exec := &fakeExecutor{}
	client := newTestClient(t, exec)

	if err := client.ApplyXFM(context.Background(), in, ref, mat, filepath.Join(dir, "out.nii.gz")); err != nil {
		t.Fatalf("ApplyXFM: %v", err)
	}
	got := argString(exec.calls[0])
	if !strings.Contains(got, "-applyxfm") || !strings.Contains(got, "-init "+mat) {
		t.Fatalf("args %q missing applyxfm fragments", got)
	}
}
