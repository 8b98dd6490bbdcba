// Package main hosts the sceneforge CLI entrypoint and command graph.
//
// The Cobra-based command tree surfaces the engine's internal packages as
// terminal workflows: serving the HTTP API, submitting generation requests,
// inspecting projects, scenes, and the idempotency ledger, running batch
// evaluations, and configuration scaffolding. It centralizes configuration
// resolution and store wiring so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main
