// Package sinks implements concrete stage event consumers: Prometheus
// collectors, repository-backed persistence and structured logging. Each sink
// satisfies the progress.Sink interface and is safe for repeated
// Consume/Close cycles.
package sinks
