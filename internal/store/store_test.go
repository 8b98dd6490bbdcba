package store_test

import (
	"context"
	"errors"
	"testing"

	"sceneforge/internal/store"
	"sceneforge/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	project, err := st.CreateProject(ctx, "", "user-1")
	if err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	if project.ID == "" {
		t.Fatal("expected project ID to be assigned")
	}
	if project.Revision != 0 {
		t.Fatalf("expected revision 0, got %d", project.Revision)
	}

	fetched, err := st.GetProject(ctx, project.ID)
	if err != nil {
		t.Fatalf("GetProject failed: %v", err)
	}
	if fetched == nil || fetched.OwnerID != "user-1" {
		t.Fatalf("unexpected fetched project: %#v", fetched)
	}
}

func TestGetProjectMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	_, err := st.GetProject(context.Background(), "nope")
	var notFound *store.ProjectNotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ProjectNotFoundError, got %v", err)
	}
	if notFound.ProjectID != "nope" {
		t.Fatalf("unexpected project id in error: %q", notFound.ProjectID)
	}
}

func TestCreateProjectRequiresOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	if _, err := st.CreateProject(context.Background(), "", ""); err == nil {
		t.Fatal("expected error when owner missing")
	}
}

func TestListScenesExcludesTombstonesByDefault(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "prj-list", "user-1")
	first := testsupport.SeedScene(t, st, project.ID, "intro")
	second := testsupport.SeedScene(t, st, project.ID, "outro")

	// Tombstone the first scene through a full apply cycle.
	outcome, err := st.BeginOrReplay(ctx, project.ID, "delete-intro", `{"op":"delete"}`, 0)
	if err != nil {
		t.Fatalf("BeginOrReplay failed: %v", err)
	}
	tx, err := st.BeginApply(ctx)
	if err != nil {
		t.Fatalf("BeginApply failed: %v", err)
	}
	defer tx.Rollback()
	if err := tx.DeleteScene(ctx, project.ID, first.ID); err != nil {
		t.Fatalf("DeleteScene failed: %v", err)
	}
	if _, err := tx.BumpRevision(ctx, project.ID, 2); err != nil {
		t.Fatalf("BumpRevision failed: %v", err)
	}
	if err := tx.FinalizeLedger(ctx, outcome.Reservation, store.OperationDelete, `{}`); err != nil {
		t.Fatalf("FinalizeLedger failed: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}

	live, err := st.ListScenes(ctx, project.ID, false)
	if err != nil {
		t.Fatalf("ListScenes failed: %v", err)
	}
	if len(live) != 1 || live[0].ID != second.ID {
		t.Fatalf("expected only %s live, got %#v", second.ID, live)
	}

	all, err := st.ListScenes(ctx, project.ID, true)
	if err != nil {
		t.Fatalf("ListScenes (audit) failed: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 scenes in audit listing, got %d", len(all))
	}
	var tombstoned *store.Scene
	for _, scene := range all {
		if scene.ID == first.ID {
			tombstoned = scene
		}
	}
	if tombstoned == nil || !tombstoned.Deleted() {
		t.Fatalf("expected %s tombstoned in audit listing, got %#v", first.ID, tombstoned)
	}
}

func TestLiveSceneIDs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	project := testsupport.NewProject(t, st, "prj-ids", "user-1")
	scene := testsupport.SeedScene(t, st, project.ID, "only")

	ids, err := st.LiveSceneIDs(ctx, project.ID)
	if err != nil {
		t.Fatalf("LiveSceneIDs failed: %v", err)
	}
	if _, ok := ids[scene.ID]; !ok || len(ids) != 1 {
		t.Fatalf("unexpected live scene ids: %#v", ids)
	}
}

func TestCheckHealthReportsTables(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	health, err := st.CheckHealth(context.Background())
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable {
		t.Fatalf("expected healthy database, got %#v", health)
	}
	if len(health.MissingTables) != 0 {
		t.Fatalf("expected no missing tables, got %v", health.MissingTables)
	}
	if !health.IntegrityCheck {
		t.Fatal("expected integrity check to pass")
	}
}
