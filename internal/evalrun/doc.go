// Package evalrun is the batch evaluation driver. It replays prompts
// against the resolver and the decision oracle without mutating any
// project, and reports tool-choice and media-resolution match rates
// against expected values. Runs are serialized by a file lock and keep
// all caching run-scoped so concurrent processes stay isolated.
package evalrun
