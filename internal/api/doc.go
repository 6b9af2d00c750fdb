// Package api hosts the read-only HTTP status server. Notable routes:
//   - GET /healthz for liveness probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /api/runs, /api/runs/{run_id} and /api/runs/{run_id}/stages for
//     stage progress recorded through the StageRepository interface.
package api
