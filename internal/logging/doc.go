// Package logging builds the slog loggers used across sceneforge.
//
// It provides a console handler for interactive use (level coloring when the
// output is a terminal, component prefixes, flattened key=value attributes)
// and a JSON handler for machine consumption, plus attribute helpers and
// context-derived field stamping shared by the orchestrator, store, and CLI.
package logging
