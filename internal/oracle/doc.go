// Package oracle asks an LLM which scene operation a generation request
// calls for. The orchestrator consumes it through the narrow Decider
// interface so the deterministic core can be tested against a stub; the
// real client talks to an OpenRouter-compatible chat completion API
// with bounded retries and a hard timeout.
package oracle
