package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"sceneforge/internal/services"
)

// ApplyTx is one atomic application unit: scene mutation, revision bump, and
// ledger finalize all commit together or not at all. Partial application is
// never observable.
type ApplyTx struct {
	tx   *sql.Tx
	done bool
}

// BeginApply opens the transaction for one operation application.
func (s *Store) BeginApply(ctx context.Context) (*ApplyTx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin apply tx: %w", err)
	}
	return &ApplyTx{tx: tx}, nil
}

// Commit makes the whole unit visible.
func (t *ApplyTx) Commit() error {
	if t.done {
		return errors.New("apply tx already closed")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return fmt.Errorf("commit apply tx: %w", err)
	}
	return nil
}

// Rollback discards the unit. Safe to call after Commit.
func (t *ApplyTx) Rollback() {
	if t.done {
		return
	}
	t.done = true
	_ = t.tx.Rollback()
}

// BumpRevision increments the project revision by exactly one, guarded by the
// caller's expected revision. Returns RevisionConflictError when another
// writer won the race.
func (t *ApplyTx) BumpRevision(ctx context.Context, projectID string, expected int64) (int64, error) {
	res, err := t.tx.ExecContext(
		ctx,
		`UPDATE projects SET revision = revision + 1, updated_at = ? WHERE id = ? AND revision = ?`,
		formatTime(time.Now()),
		projectID,
		expected,
	)
	if err != nil {
		return 0, fmt.Errorf("bump revision: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		var actual int64
		row := t.tx.QueryRowContext(ctx, `SELECT revision FROM projects WHERE id = ?`, projectID)
		if err := row.Scan(&actual); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return 0, &ProjectNotFoundError{ProjectID: projectID}
			}
			return 0, fmt.Errorf("read current revision: %w", err)
		}
		return 0, &RevisionConflictError{ProjectID: projectID, Expected: expected, Actual: actual}
	}
	return expected + 1, nil
}

// CreateScene inserts a new scene at the end of the project's order. A blank
// scene id is replaced with a generated UUID.
func (t *ApplyTx) CreateScene(ctx context.Context, scene *Scene) (*Scene, error) {
	if scene == nil {
		return nil, errors.New("scene is nil")
	}
	id := strings.TrimSpace(scene.ID)
	if id == "" {
		id = uuid.NewString()
	}

	var exists int
	row := t.tx.QueryRowContext(ctx, `SELECT COUNT(1) FROM scenes WHERE id = ?`, id)
	if err := row.Scan(&exists); err != nil {
		return nil, fmt.Errorf("check scene identity: %w", err)
	}
	if exists > 0 {
		return nil, services.Wrap(services.ErrValidation, "store", "create scene", fmt.Sprintf("scene %s already exists", id), nil)
	}

	var nextOrd int
	row = t.tx.QueryRowContext(
		ctx,
		`SELECT COALESCE(MAX(ord), -1) + 1 FROM scenes WHERE project_id = ? AND deleted_at IS NULL`,
		scene.ProjectID,
	)
	if err := row.Scan(&nextOrd); err != nil {
		return nil, fmt.Errorf("next scene order: %w", err)
	}

	now := time.Now()
	timestamp := formatTime(now)
	_, err := t.tx.ExecContext(
		ctx,
		`INSERT INTO scenes (id, project_id, ord, name, content, duration_ms, deleted_at, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?)`,
		id,
		scene.ProjectID,
		nextOrd,
		scene.Name,
		scene.Content,
		scene.DurationMs,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert scene: %w", err)
	}

	created := *scene
	created.ID = id
	created.Order = nextOrd
	created.CreatedAt = now
	created.UpdatedAt = now
	return &created, nil
}

// SceneEdit carries the mutable fields of an edit operation. Nil fields are
// left untouched.
type SceneEdit struct {
	Name       *string
	Content    *string
	DurationMs *int64
}

// EditScene updates a live scene in place. Tombstoned or absent scenes fail
// with SceneNotFoundError.
func (t *ApplyTx) EditScene(ctx context.Context, projectID, sceneID string, edit SceneEdit) error {
	sets := make([]string, 0, 4)
	args := make([]any, 0, 6)
	if edit.Name != nil {
		sets = append(sets, "name = ?")
		args = append(args, *edit.Name)
	}
	if edit.Content != nil {
		sets = append(sets, "content = ?")
		args = append(args, *edit.Content)
	}
	if edit.DurationMs != nil {
		sets = append(sets, "duration_ms = ?")
		args = append(args, *edit.DurationMs)
	}
	if len(sets) == 0 {
		return services.Wrap(services.ErrValidation, "store", "edit scene", "no fields to edit", nil)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, formatTime(time.Now()), projectID, sceneID)

	res, err := t.tx.ExecContext(
		ctx,
		`UPDATE scenes SET `+strings.Join(sets, ", ")+` WHERE project_id = ? AND id = ? AND deleted_at IS NULL`,
		args...,
	)
	if err != nil {
		return fmt.Errorf("edit scene: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return &SceneNotFoundError{ProjectID: projectID, SceneIDs: []string{sceneID}}
	}
	return nil
}

// DeleteScene tombstones a live scene. The row stays queryable for audit.
func (t *ApplyTx) DeleteScene(ctx context.Context, projectID, sceneID string) error {
	timestamp := formatTime(time.Now())
	res, err := t.tx.ExecContext(
		ctx,
		`UPDATE scenes SET deleted_at = ?, updated_at = ? WHERE project_id = ? AND id = ? AND deleted_at IS NULL`,
		timestamp,
		timestamp,
		projectID,
		sceneID,
	)
	if err != nil {
		return fmt.Errorf("delete scene: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return &SceneNotFoundError{ProjectID: projectID, SceneIDs: []string{sceneID}}
	}
	return nil
}

// FinalizeLedger closes the reservation as applied inside this transaction.
func (t *ApplyTx) FinalizeLedger(ctx context.Context, reservation *Reservation, operationType OperationType, resultJSON string) error {
	if reservation == nil {
		return errors.New("reservation is nil")
	}
	res, err := t.tx.ExecContext(
		ctx,
		`UPDATE ledger SET status = ?, operation_type = ?, result_json = ?, finalized_at = ?
         WHERE project_id = ? AND idempotency_key = ? AND status = ?`,
		LedgerApplied,
		string(operationType),
		resultJSON,
		formatTime(time.Now()),
		reservation.ProjectID,
		reservation.IdempotencyKey,
		LedgerPending,
	)
	if err != nil {
		return fmt.Errorf("finalize ledger: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("reservation for project %s key %q is not pending", reservation.ProjectID, reservation.IdempotencyKey)
	}
	return nil
}
