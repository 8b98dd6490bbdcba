package testsupport

import (
	"context"
	"testing"

	"sceneforge/internal/config"
	"sceneforge/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// NewProject creates a project for tests using the provided store.
func NewProject(t testing.TB, st *store.Store, id, ownerID string) *store.Project {
	t.Helper()

	project, err := st.CreateProject(context.Background(), id, ownerID)
	if err != nil {
		t.Fatalf("store.CreateProject: %v", err)
	}
	return project
}

// SeedScene inserts a scene through a full apply cycle: reservation, create,
// revision bump, finalize. It returns the created scene.
func SeedScene(t testing.TB, st *store.Store, projectID, name string) *store.Scene {
	t.Helper()
	ctx := context.Background()

	project, err := st.GetProject(ctx, projectID)
	if err != nil {
		t.Fatalf("store.GetProject: %v", err)
	}

	key := "seed-" + name
	outcome, err := st.BeginOrReplay(ctx, projectID, key, `{"seed":"`+name+`"}`, 0)
	if err != nil {
		t.Fatalf("store.BeginOrReplay: %v", err)
	}
	if outcome.Reservation == nil {
		t.Fatalf("expected fresh reservation for seed scene %q", name)
	}

	tx, err := st.BeginApply(ctx)
	if err != nil {
		t.Fatalf("store.BeginApply: %v", err)
	}
	defer tx.Rollback()

	scene, err := tx.CreateScene(ctx, &store.Scene{ProjectID: projectID, Name: name})
	if err != nil {
		t.Fatalf("tx.CreateScene: %v", err)
	}
	if _, err := tx.BumpRevision(ctx, projectID, project.Revision); err != nil {
		t.Fatalf("tx.BumpRevision: %v", err)
	}
	if err := tx.FinalizeLedger(ctx, outcome.Reservation, store.OperationCreate, `{"sceneId":"`+scene.ID+`"}`); err != nil {
		t.Fatalf("tx.FinalizeLedger: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("tx.Commit: %v", err)
	}
	return scene
}
