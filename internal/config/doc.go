// Package config loads, normalizes, and validates sceneforge configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// SCENEFORGE_ORACLE_API_KEY. The Config type centralizes every knob the CLI
// and API server need: data and log directories, oracle connection settings,
// orchestrator retry tuning, and evaluation driver sizing.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
