// Package api hosts the HTTP server, middleware, and REST handlers for
// jobsweep. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/search runs a quota-aware search.
//   - GET /v1/plan previews the strategy without spending quota.
//   - GET /v1/quota, /v1/sources and /v1/jobs for operator reporting.
package api
