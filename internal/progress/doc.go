// Package progress batches stage lifecycle events emitted by a reporter on a
// background goroutine and fans them out to pluggable sinks such as Prometheus
// metrics, structured logs, or a persistent stage journal.
package progress
