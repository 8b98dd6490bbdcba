package store

import (
	"fmt"
	"strings"

	"sceneforge/internal/services"
)

// RevisionConflictError reports an optimistic concurrency loss: the caller's
// expected revision no longer matches the stored one.
type RevisionConflictError struct {
	ProjectID string
	Expected  int64
	Actual    int64
}

func (e *RevisionConflictError) Error() string {
	return fmt.Sprintf("revision conflict on project %s: expected %d, current %d", e.ProjectID, e.Expected, e.Actual)
}

func (e *RevisionConflictError) Unwrap() error { return services.ErrConflict }

// IdempotencyConflictError reports a second submission reusing a key with a
// different payload. This signals a caller bug and is never silently resolved.
type IdempotencyConflictError struct {
	ProjectID      string
	IdempotencyKey string
}

func (e *IdempotencyConflictError) Error() string {
	return fmt.Sprintf("idempotency conflict on project %s: key %q was used with a different payload", e.ProjectID, e.IdempotencyKey)
}

func (e *IdempotencyConflictError) Unwrap() error { return services.ErrConflict }

// ReservationHeldError reports a live pending reservation for the same key
// and payload. The submission is safe to retry after a short wait.
type ReservationHeldError struct {
	ProjectID      string
	IdempotencyKey string
}

func (e *ReservationHeldError) Error() string {
	return fmt.Sprintf("reservation for project %s key %q is still pending", e.ProjectID, e.IdempotencyKey)
}

func (e *ReservationHeldError) Unwrap() error { return services.ErrTransient }

// ProjectNotFoundError reports a request against an unknown project.
type ProjectNotFoundError struct {
	ProjectID string
}

func (e *ProjectNotFoundError) Error() string {
	return fmt.Sprintf("project %s not found", e.ProjectID)
}

func (e *ProjectNotFoundError) Unwrap() error { return services.ErrNotFound }

// SceneNotFoundError reports a mutation against a scene that is absent or
// tombstoned.
type SceneNotFoundError struct {
	ProjectID string
	SceneIDs  []string
}

func (e *SceneNotFoundError) Error() string {
	return fmt.Sprintf("scene %s not found in project %s", strings.Join(e.SceneIDs, ", "), e.ProjectID)
}

func (e *SceneNotFoundError) Unwrap() error { return services.ErrNotFound }
