// Package store persists projects, scenes, and the idempotency ledger in
// SQLite.
//
// The store owns three invariants the rest of the engine relies on:
//
//   - A project's revision increases by exactly one per successfully applied
//     operation, guarded by an optimistic check (BumpRevision).
//   - A (project, idempotency key) pair is applied at most once. BeginOrReplay
//     relies on the table's UNIQUE constraint for atomic insert-or-skip, so
//     the same code path serves first execution and replay.
//   - Scene deletion is a tombstone, never a row removal, so audit listings
//     and replayed results stay consistent.
//
// Every mutation of scene state flows through ApplyTx, a transaction that
// couples the scene write, the revision bump, and the ledger finalize.
package store
