package store_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"sceneforge/internal/store"
	"sceneforge/internal/testsupport"
)

const lease = 5 * time.Minute

func TestBeginOrReplayFreshThenReplay(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "prj-ledger", "user-1")

	outcome, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"sunset"}`, lease)
	if err != nil {
		t.Fatalf("BeginOrReplay failed: %v", err)
	}
	if outcome.Replayed || outcome.Reservation == nil {
		t.Fatalf("expected fresh reservation, got %#v", outcome)
	}

	tx, err := st.BeginApply(ctx)
	if err != nil {
		t.Fatalf("BeginApply failed: %v", err)
	}
	defer tx.Rollback()
	if err := tx.FinalizeLedger(ctx, outcome.Reservation, store.OperationCreate, `{"sceneId":"s-1"}`); err != nil {
		t.Fatalf("FinalizeLedger failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	// Same key, structurally equal payload: replay with the stored result.
	replay, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{ "prompt" : "sunset" }`, lease)
	if err != nil {
		t.Fatalf("replay BeginOrReplay failed: %v", err)
	}
	if !replay.Replayed || replay.Record == nil {
		t.Fatalf("expected replay outcome, got %#v", replay)
	}
	if replay.Record.ResultJSON != `{"sceneId":"s-1"}` {
		t.Fatalf("unexpected stored result: %q", replay.Record.ResultJSON)
	}
	if replay.Record.OperationType != store.OperationCreate {
		t.Fatalf("unexpected stored operation: %q", replay.Record.OperationType)
	}
}

func TestBeginOrReplayConflictOnDifferentPayload(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "prj-conflict", "user-1")

	if _, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"sunset"}`, lease); err != nil {
		t.Fatalf("BeginOrReplay failed: %v", err)
	}

	_, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"sunrise"}`, lease)
	var conflict *store.IdempotencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected IdempotencyConflictError, got %v", err)
	}
	if conflict.IdempotencyKey != "key-1" {
		t.Fatalf("unexpected key in conflict: %q", conflict.IdempotencyKey)
	}
}

func TestBeginOrReplayHeldWhileLeaseLive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "prj-held", "user-1")

	if _, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"x"}`, lease); err != nil {
		t.Fatalf("BeginOrReplay failed: %v", err)
	}

	_, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"x"}`, lease)
	var held *store.ReservationHeldError
	if !errors.As(err, &held) {
		t.Fatalf("expected ReservationHeldError, got %v", err)
	}
}

func TestBeginOrReplayAdoptsExpiredReservation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "prj-adopt", "user-1")

	if _, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"x"}`, lease); err != nil {
		t.Fatalf("BeginOrReplay failed: %v", err)
	}

	// Zero lease: the pending marker counts as expired immediately, modeling
	// a crash between reserve and finalize.
	outcome, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"x"}`, 0)
	if err != nil {
		t.Fatalf("adopting BeginOrReplay failed: %v", err)
	}
	if outcome.Reservation == nil || !outcome.Reservation.Adopted {
		t.Fatalf("expected adopted reservation, got %#v", outcome)
	}
}

func TestAbandonReservationStoresFailure(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "prj-abandon", "user-1")

	outcome, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"x"}`, lease)
	if err != nil {
		t.Fatalf("BeginOrReplay failed: %v", err)
	}
	if err := st.AbandonReservation(ctx, outcome.Reservation, `{"error":"permanent"}`); err != nil {
		t.Fatalf("AbandonReservation failed: %v", err)
	}

	record, err := st.GetLedgerRecord(ctx, project.ID, "key-1")
	if err != nil {
		t.Fatalf("GetLedgerRecord failed: %v", err)
	}
	if record.Status != store.LedgerFailed {
		t.Fatalf("expected failed status, got %q", record.Status)
	}
	if record.FinalizedAt == nil {
		t.Fatal("expected finalized timestamp")
	}

	// Replaying the identical submission returns the stored failure.
	replay, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"x"}`, lease)
	if err != nil {
		t.Fatalf("replay BeginOrReplay failed: %v", err)
	}
	if !replay.Replayed || replay.Record.ResultJSON != `{"error":"permanent"}` {
		t.Fatalf("expected stored failure replay, got %#v", replay)
	}
}

func TestPendingReservationsListsExpired(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "prj-pending", "user-1")
	if _, err := st.BeginOrReplay(ctx, project.ID, "key-1", `{"prompt":"x"}`, lease); err != nil {
		t.Fatalf("BeginOrReplay failed: %v", err)
	}

	pending, err := st.PendingReservations(ctx, time.Now().Add(time.Minute))
	if err != nil {
		t.Fatalf("PendingReservations failed: %v", err)
	}
	if len(pending) != 1 || pending[0].IdempotencyKey != "key-1" {
		t.Fatalf("unexpected pending rows: %#v", pending)
	}

	none, err := st.PendingReservations(ctx, time.Now().Add(-time.Minute))
	if err != nil {
		t.Fatalf("PendingReservations (past cutoff) failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no pending rows before cutoff, got %#v", none)
	}
}

func TestCanonicalJSONSortsKeys(t *testing.T) {
	a, err := store.CanonicalJSON(`{"b":1,"a":{"d":2,"c":3}}`)
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}
	b, err := store.CanonicalJSON(`{"a":{"c":3,"d":2},"b":1}`)
	if err != nil {
		t.Fatalf("CanonicalJSON failed: %v", err)
	}
	if a != b {
		t.Fatalf("expected canonical equality: %q vs %q", a, b)
	}
}
