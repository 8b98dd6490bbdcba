// Package generation sequences one generation request end to end:
// normalize, resolve media, consult the idempotency ledger, ask the
// decision oracle, and apply the chosen scene operation atomically.
// Replays of an already-finalized submission return the stored result
// without touching the scene store.
package generation
