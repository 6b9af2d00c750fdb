// Package reporter tracks incremental progress for the stages of a long-running
// computation. A Reporter owns the registered stages, feeds a pluggable Display,
// dispatches per-stage callbacks on every accepted update, and guarantees that
// every display handle is finalized exactly once through ForceFinish or a
// scoped Guard, including on error and panic paths.
//
// A Reporter is meant for single-goroutine use. Callers that share one across
// goroutines must serialize access themselves.
package reporter
