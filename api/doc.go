// Package api provides the HTTP surface of the engine: generation and
// chain endpoints, operational projections (providers, health,
// quarantine, budget) and the approval actions.
//
// # Base URL
//
// The default base URL for the API is:
//
//	http://localhost:8080
//
// # Endpoints
//
//   - POST /api/generate             run one generation with fallback
//   - POST /api/chain                build a continuous video from scenes
//   - GET  /api/tasks/{provider}/{ref}   check task status
//   - GET  /api/providers            registered providers
//   - GET  /api/providers/health     per-provider call statistics
//   - GET  /api/quarantine           active quarantines
//   - DELETE /api/quarantine/{id}    release a quarantine early
//   - GET  /api/budget               today's spend per provider
//   - POST /api/content/{id}/approve approve content for paid calls
//   - POST /api/content/{id}/reject  reject content
//   - GET  /api/records              recent call records
//   - GET  /healthz                  liveness probe
//   - GET  /metrics                  Prometheus metrics
package api
