package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// CreateProject inserts a new project at revision zero. A blank id is
// replaced with a generated UUID.
func (s *Store) CreateProject(ctx context.Context, id, ownerID string) (*Project, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		id = uuid.NewString()
	}
	ownerID = strings.TrimSpace(ownerID)
	if ownerID == "" {
		return nil, errors.New("owner id is required")
	}

	timestamp := formatTime(time.Now())
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (id, owner_id, revision, created_at, updated_at) VALUES (?, ?, 0, ?, ?)`,
		id,
		ownerID,
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	return s.GetProject(ctx, id)
}

// GetProject fetches a project by identifier. Returns ProjectNotFoundError
// when absent.
func (s *Store) GetProject(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, owner_id, revision, created_at, updated_at FROM projects WHERE id = ?`,
		id,
	)
	project, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ProjectNotFoundError{ProjectID: id}
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return project, nil
}

// ListProjects returns all projects ordered by creation time.
func (s *Store) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, owner_id, revision, created_at, updated_at FROM projects ORDER BY created_at`,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, rows.Err()
}

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id         string
		ownerID    string
		revision   int64
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(&id, &ownerID, &revision, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}

	project := &Project{ID: id, OwnerID: ownerID, Revision: revision}
	if created, err := parseTimeString(createdRaw); err == nil {
		project.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		project.UpdatedAt = updated
	}
	return project, nil
}
