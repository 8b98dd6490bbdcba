package generation

import (
	"context"
	"strings"
	"time"

	"sceneforge/internal/media"
	"sceneforge/internal/oracle"
	"sceneforge/internal/store"
)

// apply performs one attempt at the decided operation. The scene
// mutation, the revision bump, and the ledger finalization share a
// single transaction; any error rolls all three back.
func (o *Orchestrator) apply(
	ctx context.Context,
	norm normalized,
	expectedRevision int64,
	decision oracle.Decision,
	resolved *media.ResolvedSet,
	warnings []string,
	reservation *store.Reservation,
) (*Result, error) {
	tx, err := o.store.BeginApply(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	newRevision, err := tx.BumpRevision(ctx, norm.ProjectID, expectedRevision)
	if err != nil {
		return nil, err
	}

	var sceneID string
	switch decision.Operation {
	case store.OperationCreate:
		created, err := tx.CreateScene(ctx, &store.Scene{
			ProjectID:  norm.ProjectID,
			Name:       sceneName(decision, norm),
			Content:    stringValue(decision.Parameters.Content),
			DurationMs: int64Value(decision.Parameters.DurationMs),
		})
		if err != nil {
			return nil, err
		}
		sceneID = created.ID
	case store.OperationEdit:
		sceneID = decision.Parameters.SceneID
		err = tx.EditScene(ctx, norm.ProjectID, sceneID, store.SceneEdit{
			Name:       decision.Parameters.Name,
			Content:    decision.Parameters.Content,
			DurationMs: decision.Parameters.DurationMs,
		})
		if err != nil {
			return nil, err
		}
	case store.OperationDelete:
		sceneID = decision.Parameters.SceneID
		if err := tx.DeleteScene(ctx, norm.ProjectID, sceneID); err != nil {
			return nil, err
		}
	}

	result := &Result{
		ProjectID:      norm.ProjectID,
		IdempotencyKey: norm.IdempotencyKey,
		Status:         statusApplied,
		Operation:      string(decision.Operation),
		SceneID:        sceneID,
		RevisionBefore: expectedRevision,
		RevisionAfter:  newRevision,
		ImageAction:    string(resolved.ImageAction),
		Media:          summarizeMedia(resolved),
		Reasoning:      decision.Reasoning,
		Warnings:       warnings,
		CompletedAt:    time.Now().UTC(),
	}
	encoded, err := result.encode()
	if err != nil {
		return nil, err
	}
	if err := tx.FinalizeLedger(ctx, reservation, decision.Operation, encoded); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return result, nil
}

// sceneName falls back to a prompt-derived name when the oracle gave
// none, so created scenes are always identifiable in listings.
func sceneName(decision oracle.Decision, norm normalized) string {
	if decision.Parameters.Name != nil && strings.TrimSpace(*decision.Parameters.Name) != "" {
		return strings.TrimSpace(*decision.Parameters.Name)
	}
	name := strings.TrimSpace(norm.PromptText)
	if runes := []rune(name); len(runes) > 60 {
		name = string(runes[:60])
	}
	return name
}

func stringValue(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

func int64Value(value *int64) int64 {
	if value == nil {
		return 0
	}
	return *value
}
