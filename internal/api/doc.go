// Package api exposes the engine over HTTP: one endpoint to submit a
// generation request plus read endpoints for projects, scenes, and the
// idempotency ledger. Error responses follow the service error
// taxonomy's status mapping.
package api
