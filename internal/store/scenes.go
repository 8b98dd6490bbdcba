package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const sceneColumns = "id, project_id, ord, name, content, duration_ms, deleted_at, created_at, updated_at"

// GetScene fetches a scene by identifier, tombstoned or not.
func (s *Store) GetScene(ctx context.Context, id string) (*Scene, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sceneColumns+` FROM scenes WHERE id = ?`, id)
	scene, err := scanScene(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get scene: %w", err)
	}
	return scene, nil
}

// ListScenes returns a project's scenes in order. Tombstoned scenes are
// excluded unless includeDeleted is set (audit listings).
func (s *Store) ListScenes(ctx context.Context, projectID string, includeDeleted bool) ([]*Scene, error) {
	query := `SELECT ` + sceneColumns + ` FROM scenes WHERE project_id = ?`
	if !includeDeleted {
		query += ` AND deleted_at IS NULL`
	}
	query += ` ORDER BY ord`

	rows, err := s.db.QueryContext(ctx, query, projectID)
	if err != nil {
		return nil, fmt.Errorf("list scenes: %w", err)
	}
	defer rows.Close()

	var scenes []*Scene
	for rows.Next() {
		scene, err := scanScene(rows)
		if err != nil {
			return nil, err
		}
		scenes = append(scenes, scene)
	}
	return scenes, rows.Err()
}

// LiveSceneIDs returns the identifiers of a project's non-tombstoned scenes.
func (s *Store) LiveSceneIDs(ctx context.Context, projectID string) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id FROM scenes WHERE project_id = ? AND deleted_at IS NULL`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("list scene ids: %w", err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

func scanScene(scanner interface{ Scan(dest ...any) error }) (*Scene, error) {
	var (
		id         string
		projectID  string
		ord        int
		name       string
		content    string
		durationMs int64
		deletedRaw sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &projectID, &ord, &name, &content, &durationMs, &deletedRaw, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	scene := &Scene{
		ID:         id,
		ProjectID:  projectID,
		Order:      ord,
		Name:       name,
		Content:    content,
		DurationMs: durationMs,
	}
	if deletedRaw.Valid {
		if deleted, err := parseTimeString(deletedRaw.String); err == nil {
			scene.DeletedAt = &deleted
		}
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		scene.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		scene.UpdatedAt = updated
	}
	return scene, nil
}
