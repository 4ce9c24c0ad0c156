// Package api hosts the operational HTTP surface of the armada. Routes:
//   - GET /healthz for liveness.
//   - GET /readyz runs the registered readiness checks (metadata store ping, bucket checks).
//   - GET /metrics for Prometheus scraping.
package api
