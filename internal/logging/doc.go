// Package logging configures the slog handlers shared by the CLI and the
// batch runner: a human-oriented console handler, a JSON handler for log
// files, context-derived subject/stage fields, and retention pruning for the
// log directory.
package logging
