// Package tools is the thin subprocess layer every wrapped binary goes
// through: context-aware execution with per-call timeouts, line-streamed
// output, and a bounded stderr tail folded into returned errors.
package tools
