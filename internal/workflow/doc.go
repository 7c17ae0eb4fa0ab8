// Package workflow drives queued subjects through the pipeline stages
// sequentially: one runner instance polls the queue, executes the next
// eligible stage, and maintains heartbeats so crashed runs can be reclaimed.
package workflow
