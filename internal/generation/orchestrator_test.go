package generation_test

import (
	"context"
	"errors"
	"testing"

	"sceneforge/internal/config"
	"sceneforge/internal/generation"
	"sceneforge/internal/media"
	"sceneforge/internal/oracle"
	"sceneforge/internal/services"
	"sceneforge/internal/store"
	"sceneforge/internal/testsupport"
)

func strptr(s string) *string { return &s }

func createDecision(name, content string) oracle.Decision {
	return oracle.Decision{
		Operation:  store.OperationCreate,
		Parameters: oracle.Parameters{Name: strptr(name), Content: strptr(content)},
		Reasoning:  "test decision",
	}
}

func newOrchestrator(t *testing.T, cfg *config.Config, st *store.Store, decider oracle.Decider) *generation.Orchestrator {
	t.Helper()
	return generation.New(st, decider, cfg, nil)
}

func TestHandleCreateAppliesAtomically(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	project := testsupport.NewProject(t, st, "proj-1", "user-1")

	decider := &oracle.StaticDecider{Queue: []oracle.Decision{createDecision("Opening", "City at night")}}
	orch := newOrchestrator(t, cfg, st, decider)

	result, err := orch.Handle(context.Background(), generation.Request{
		ProjectID:      "proj-1",
		UserID:         "user-1",
		PromptText:     "Add an opening shot",
		IdempotencyKey: "key-1",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if result.Operation != "create" || result.SceneID == "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	if result.RevisionBefore != project.Revision || result.RevisionAfter != project.Revision+1 {
		t.Fatalf("revision %d -> %d, want %d -> %d", result.RevisionBefore, result.RevisionAfter, project.Revision, project.Revision+1)
	}

	stored, err := st.GetProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if stored.Revision != result.RevisionAfter {
		t.Fatalf("stored revision %d, want %d", stored.Revision, result.RevisionAfter)
	}
	record, err := st.GetLedgerRecord(context.Background(), "proj-1", "key-1")
	if err != nil {
		t.Fatalf("GetLedgerRecord: %v", err)
	}
	if record.Status != store.LedgerApplied || record.OperationType != store.OperationCreate {
		t.Fatalf("ledger not finalized: %+v", record)
	}
}

func TestHandleReplayReturnsStoredResultWithoutMutation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, st, "proj-1", "user-1")

	decider := &oracle.StaticDecider{Queue: []oracle.Decision{createDecision("Opening", "City at night")}}
	orch := newOrchestrator(t, cfg, st, decider)

	req := generation.Request{
		ProjectID:      "proj-1",
		PromptText:     "Add an opening shot",
		IdempotencyKey: "key-1",
	}
	first, err := orch.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	second, err := orch.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("second Handle: %v", err)
	}
	if !second.Replayed {
		t.Fatal("second call must be a replay")
	}
	if second.SceneID != first.SceneID || second.RevisionAfter != first.RevisionAfter {
		t.Fatalf("replay diverged: first %+v second %+v", first, second)
	}
	if decider.Calls() != 1 {
		t.Fatalf("oracle consulted %d times, want 1", decider.Calls())
	}
	project, err := st.GetProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if project.Revision != first.RevisionAfter {
		t.Fatalf("replay changed revision to %d", project.Revision)
	}
}

func TestHandleDifferentPayloadSameKeyConflicts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, st, "proj-1", "user-1")

	decider := &oracle.StaticDecider{Queue: []oracle.Decision{createDecision("a", "b")}}
	orch := newOrchestrator(t, cfg, st, decider)

	if _, err := orch.Handle(context.Background(), generation.Request{
		ProjectID: "proj-1", PromptText: "first prompt", IdempotencyKey: "key-1",
	}); err != nil {
		t.Fatalf("first Handle: %v", err)
	}
	_, err := orch.Handle(context.Background(), generation.Request{
		ProjectID: "proj-1", PromptText: "a different prompt", IdempotencyKey: "key-1",
	})
	if err == nil {
		t.Fatal("expected idempotency conflict")
	}
	var conflict *store.IdempotencyConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected IdempotencyConflictError, got %v", err)
	}
}

func TestHandleSequentialOperationsAdvanceRevisionByOne(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	project := testsupport.NewProject(t, st, "proj-1", "user-1")

	const n = 4
	queue := make([]oracle.Decision, 0, n)
	for i := 0; i < n; i++ {
		queue = append(queue, createDecision("scene", "content"))
	}
	orch := newOrchestrator(t, cfg, st, &oracle.StaticDecider{Queue: queue})

	for i := 0; i < n; i++ {
		if _, err := orch.Handle(context.Background(), generation.Request{
			ProjectID:  "proj-1",
			PromptText: "Add another scene",
		}); err != nil {
			t.Fatalf("Handle %d: %v", i, err)
		}
	}
	stored, err := st.GetProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if stored.Revision != project.Revision+n {
		t.Fatalf("revision = %d, want %d", stored.Revision, project.Revision+n)
	}
}

func TestHandleMissingSceneReferenceLeavesEverythingUntouched(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	project := testsupport.NewProject(t, st, "proj-1", "user-1")

	decider := &oracle.StaticDecider{}
	orch := newOrchestrator(t, cfg, st, decider)

	_, err := orch.Handle(context.Background(), generation.Request{
		ProjectID:      "proj-1",
		PromptText:     "Extend scene-404",
		SceneIDs:       []string{"scene-404"},
		IdempotencyKey: "key-1",
	})
	if err == nil {
		t.Fatal("expected MissingSceneReference failure")
	}
	var missing *media.MissingSceneReferenceError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingSceneReferenceError, got %v", err)
	}
	if decider.Calls() != 0 {
		t.Fatal("oracle must not be consulted after a resolution failure")
	}
	stored, err := st.GetProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if stored.Revision != project.Revision {
		t.Fatal("failed resolution must not change the revision")
	}
	record, err := st.GetLedgerRecord(context.Background(), "proj-1", "key-1")
	if err != nil {
		t.Fatalf("GetLedgerRecord: %v", err)
	}
	if record != nil {
		t.Fatalf("resolution failures precede the ledger, got %+v", record)
	}
}

func TestHandleCrossProjectFailAbortsBeforeLedger(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCrossProjectPolicy("fail"))
	st := testsupport.MustOpenStore(t, cfg)
	project := testsupport.NewProject(t, st, "proj-y", "user-1")

	orch := newOrchestrator(t, cfg, st, &oracle.StaticDecider{})
	_, err := orch.Handle(context.Background(), generation.Request{
		ProjectID:      "proj-y",
		PromptText:     "Use this image",
		ImageURLs:      []string{"https://cdn.example.com/projects/proj-x/theirs.png"},
		IdempotencyKey: "key-1",
	})
	if err == nil {
		t.Fatal("expected cross-project failure")
	}
	var skip *media.CrossProjectSkipError
	if !errors.As(err, &skip) {
		t.Fatalf("expected CrossProjectSkipError, got %v", err)
	}
	if origins := skip.OriginProjects(); len(origins) != 1 || origins[0] != "proj-x" {
		t.Fatalf("expected origin proj-x, got %v", origins)
	}
	stored, err := st.GetProject(context.Background(), "proj-y")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if stored.Revision != project.Revision {
		t.Fatal("aborted request must not change the revision")
	}
	record, err := st.GetLedgerRecord(context.Background(), "proj-y", "key-1")
	if err != nil {
		t.Fatalf("GetLedgerRecord: %v", err)
	}
	if record != nil {
		t.Fatalf("no ledger record may exist, got %+v", record)
	}
}

func TestHandleWarnPolicyKeepsAssetAndRecordsWarning(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithCrossProjectPolicy("warn"))
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, st, "proj-y", "user-1")

	orch := newOrchestrator(t, cfg, st, &oracle.StaticDecider{Queue: []oracle.Decision{createDecision("n", "c")}})
	result, err := orch.Handle(context.Background(), generation.Request{
		ProjectID:  "proj-y",
		PromptText: "Use this image",
		ImageURLs:  []string{"https://cdn.example.com/projects/proj-x/theirs.png"},
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("warn policy must surface a warning")
	}
	if len(result.Media) != 1 || !result.Media[0].CrossProject {
		t.Fatalf("asset must be kept and flagged: %+v", result.Media)
	}
}

func TestHandleOracleTimeoutLeavesReservationPending(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, st, "proj-1", "user-1")

	timeoutErr := services.Wrap(services.ErrTimeout, "oracle", "decide", "model call timed out", nil)
	orch := newOrchestrator(t, cfg, st, &oracle.StaticDecider{Err: timeoutErr})

	_, err := orch.Handle(context.Background(), generation.Request{
		ProjectID:      "proj-1",
		PromptText:     "Add a scene",
		IdempotencyKey: "key-1",
	})
	if !errors.Is(err, services.ErrTimeout) {
		t.Fatalf("expected timeout, got %v", err)
	}
	record, err := st.GetLedgerRecord(context.Background(), "proj-1", "key-1")
	if err != nil {
		t.Fatalf("GetLedgerRecord: %v", err)
	}
	if record.Status != store.LedgerPending {
		t.Fatalf("reservation status = %s, want pending", record.Status)
	}
}

func TestHandleOracleHardFailureFinalizesAsFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, st, "proj-1", "user-1")

	hardErr := services.Wrap(services.ErrOracle, "oracle", "decide", "model proposed unknown operation", nil)
	orch := newOrchestrator(t, cfg, st, &oracle.StaticDecider{Err: hardErr})

	req := generation.Request{
		ProjectID:      "proj-1",
		PromptText:     "Add a scene",
		IdempotencyKey: "key-1",
	}
	if _, err := orch.Handle(context.Background(), req); !errors.Is(err, services.ErrOracle) {
		t.Fatalf("expected oracle error, got %v", err)
	}
	record, err := st.GetLedgerRecord(context.Background(), "proj-1", "key-1")
	if err != nil {
		t.Fatalf("GetLedgerRecord: %v", err)
	}
	if record.Status != store.LedgerFailed {
		t.Fatalf("reservation status = %s, want failed", record.Status)
	}

	// The stored failure replays; the oracle is not consulted again.
	replay, err := orch.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("replay Handle: %v", err)
	}
	if !replay.Replayed || replay.Status != "failed" || replay.Error == "" {
		t.Fatalf("unexpected replay of failure: %+v", replay)
	}
}

func TestHandleEditAndDelete(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.NewProject(t, st, "proj-1", "user-1")
	scene := testsupport.SeedScene(t, st, "proj-1", "Opening")

	newName := "Opening v2"
	duration := int64(4500)
	orch := newOrchestrator(t, cfg, st, &oracle.StaticDecider{Queue: []oracle.Decision{
		{
			Operation:  store.OperationEdit,
			Parameters: oracle.Parameters{SceneID: scene.ID, Name: &newName, DurationMs: &duration},
			Reasoning:  "rename",
		},
		{
			Operation:  store.OperationDelete,
			Parameters: oracle.Parameters{SceneID: scene.ID},
			Reasoning:  "remove",
		},
	}})

	edit, err := orch.Handle(context.Background(), generation.Request{
		ProjectID: "proj-1", PromptText: "Rename the opening scene",
	})
	if err != nil {
		t.Fatalf("edit Handle: %v", err)
	}
	if edit.Operation != "edit" || edit.SceneID != scene.ID {
		t.Fatalf("unexpected edit result: %+v", edit)
	}
	updated, err := st.GetScene(context.Background(), scene.ID)
	if err != nil {
		t.Fatalf("GetScene: %v", err)
	}
	if updated.Name != newName || updated.DurationMs != duration {
		t.Fatalf("edit not applied: %+v", updated)
	}

	del, err := orch.Handle(context.Background(), generation.Request{
		ProjectID: "proj-1", PromptText: "Delete the opening scene",
	})
	if err != nil {
		t.Fatalf("delete Handle: %v", err)
	}
	if del.Operation != "delete" {
		t.Fatalf("unexpected delete result: %+v", del)
	}
	deleted, err := st.GetScene(context.Background(), scene.ID)
	if err != nil {
		t.Fatalf("GetScene after delete: %v", err)
	}
	if !deleted.Deleted() {
		t.Fatal("scene must be tombstoned, not removed")
	}
	live, err := st.ListScenes(context.Background(), "proj-1", false)
	if err != nil {
		t.Fatalf("ListScenes: %v", err)
	}
	for _, s := range live {
		if s.ID == scene.ID {
			t.Fatal("tombstoned scene listed as live")
		}
	}
}

func TestHandleDeleteUnknownSceneFinalizesAsFailed(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	project := testsupport.NewProject(t, st, "proj-1", "user-1")

	orch := newOrchestrator(t, cfg, st, &oracle.StaticDecider{Queue: []oracle.Decision{
		{Operation: store.OperationDelete, Parameters: oracle.Parameters{SceneID: "scene-404"}},
	}})
	_, err := orch.Handle(context.Background(), generation.Request{
		ProjectID: "proj-1", PromptText: "Delete it", IdempotencyKey: "key-1",
	})
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not-found, got %v", err)
	}
	record, err := st.GetLedgerRecord(context.Background(), "proj-1", "key-1")
	if err != nil {
		t.Fatalf("GetLedgerRecord: %v", err)
	}
	if record.Status != store.LedgerFailed {
		t.Fatalf("status = %s, want failed", record.Status)
	}
	stored, err := st.GetProject(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if stored.Revision != project.Revision {
		t.Fatal("failed operation must roll the revision bump back")
	}
}

// interferingDecider bumps the project revision out of band before
// answering, forcing the orchestrator's optimistic check to lose once.
type interferingDecider struct {
	t     *testing.T
	st    *store.Store
	inner *oracle.StaticDecider
}

func (d *interferingDecider) Decide(ctx context.Context, req oracle.NormalizedRequest, resolved *media.ResolvedSet, scenes []oracle.SceneSummary) (oracle.Decision, error) {
	project, err := d.st.GetProject(ctx, req.ProjectID)
	if err != nil {
		d.t.Fatalf("interfering GetProject: %v", err)
	}
	tx, err := d.st.BeginApply(ctx)
	if err != nil {
		d.t.Fatalf("interfering BeginApply: %v", err)
	}
	if _, err := tx.BumpRevision(ctx, req.ProjectID, project.Revision); err != nil {
		d.t.Fatalf("interfering BumpRevision: %v", err)
	}
	if err := tx.Commit(); err != nil {
		d.t.Fatalf("interfering Commit: %v", err)
	}
	return d.inner.Decide(ctx, req, resolved, scenes)
}

func TestHandleRetriesRevisionConflict(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	project := testsupport.NewProject(t, st, "proj-1", "user-1")

	decider := &interferingDecider{
		t:     t,
		st:    st,
		inner: &oracle.StaticDecider{Queue: []oracle.Decision{createDecision("n", "c")}},
	}
	orch := newOrchestrator(t, cfg, st, decider)

	result, err := orch.Handle(context.Background(), generation.Request{
		ProjectID: "proj-1", PromptText: "Add a scene",
	})
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	// One out-of-band bump plus the applied operation.
	if result.RevisionAfter != project.Revision+2 {
		t.Fatalf("revision after = %d, want %d", result.RevisionAfter, project.Revision+2)
	}
}

func TestHandleValidationRejectsBeforeAnyWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	orch := newOrchestrator(t, cfg, st, &oracle.StaticDecider{})

	cases := []generation.Request{
		{PromptText: "no project"},
		{ProjectID: "proj-1"},
		{ProjectID: "proj-1", PromptText: "p", CrossProjectPolicy: "explode"},
		{ProjectID: "proj-1", PromptText: "p", SceneIDs: []string{" "}},
	}
	for i, req := range cases {
		if _, err := orch.Handle(context.Background(), req); !errors.Is(err, services.ErrValidation) {
			t.Fatalf("case %d: expected validation error, got %v", i, err)
		}
	}
}
