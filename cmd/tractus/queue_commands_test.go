package main

import (
	"strings"
	"testing"
)

func TestQueueAddAndList(t *testing.T) {
	configPath := writeTestConfig(t)

	out, err := runCLI(t, "--config", configPath, "queue", "add",
		"--subject", "sub-01",
		"--anat", "/data/sub-01/t1.nii.gz",
		"--bedpostx", "/data/sub-01/bedpostx",
		"--parc", "/data/sub-01/parc.nii.gz",
	)
	if err != nil {
		t.Fatalf("queue add: %v", err)
	}
	if !strings.Contains(out, "Enqueued sub-01") {
		t.Fatalf("unexpected add output: %q", out)
	}

	out, err = runCLI(t, "--config", configPath, "queue", "list")
	if err != nil {
		t.Fatalf("queue list: %v", err)
	}
	if !strings.Contains(out, "sub-01") || !strings.Contains(out, "pending") {
		t.Fatalf("list should show the pending subject: %q", out)
	}
}

func TestQueueAddRejectsDuplicateSubject(t *testing.T) {
	configPath := writeTestConfig(t)
	args := []string{"--config", configPath, "queue", "add",
		"--subject", "sub-01",
		"--anat", "/data/t1.nii.gz",
		"--bedpostx", "/data/bedpostx",
		"--parc", "/data/parc.nii.gz",
	}
	if _, err := runCLI(t, args...); err != nil {
		t.Fatalf("first add: %v", err)
	}
	if _, err := runCLI(t, args...); err == nil {
		t.Fatal("expected duplicate subject rejection")
	}
}

func TestQueueStatusSummarizes(t *testing.T) {
	configPath := writeTestConfig(t)
	if _, err := runCLI(t, "--config", configPath, "queue", "add",
		"--subject", "sub-01",
		"--anat", "/data/t1.nii.gz",
		"--bedpostx", "/data/bedpostx",
		"--parc", "/data/parc.nii.gz",
	); err != nil {
		t.Fatalf("queue add: %v", err)
	}
	out, err := runCLI(t, "--config", configPath, "queue", "status")
	if err != nil {
		t.Fatalf("queue status: %v", err)
	}
	if !strings.Contains(out, "pending") || !strings.Contains(out, "1") {
		t.Fatalf("status should count the pending item: %q", out)
	}
}

func TestQueueListRejectsUnknownStatus(t *testing.T) {
	configPath := writeTestConfig(t)
	_, err := runCLI(t, "--config", configPath, "queue", "list", "--status", "bogus")
	if err == nil || !strings.Contains(err.Error(), "unknown status") {
		t.Fatalf("expected unknown status error, got %v", err)
	}
}

func TestQueueClearRequiresScope(t *testing.T) {
	configPath := writeTestConfig(t)
	_, err := runCLI(t, "--config", configPath, "queue", "clear")
	if err == nil || !strings.Contains(err.Error(), "--all") {
		t.Fatalf("expected scope error, got %v", err)
	}
}

func TestQueueHealthOnFreshDatabase(t *testing.T) {
	configPath := writeTestConfig(t)
	out, err := runCLI(t, "--config", configPath, "queue", "health")
	if err != nil {
		t.Fatalf("queue health: %v", err)
	}
	if !strings.Contains(out, "integrity") {
		t.Fatalf("health output missing integrity row: %q", out)
	}
}
