// Package services defines shared utilities consumed across the generation
// engine.
//
// Key responsibilities:
//   - Context helpers that stamp project IDs, stage names, and correlation
//     identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper that translate failures
//     into consistent classifications (retryable vs caller bug) and HTTP
//     status codes.
//
// Use these helpers when wiring new orchestration logic so operational
// behaviour (error handling, observability, retries) stays uniform.
package services
