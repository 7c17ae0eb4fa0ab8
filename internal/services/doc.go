// Package services provides shared helpers for pipeline stages: error
// classification markers used to decide whether a failed subject should be
// retried or reviewed, and context annotations that flow into structured logs.
package services
