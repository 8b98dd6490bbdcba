package api

import (
	"time"

	"sceneforge/internal/store"
)

type projectJSON struct {
	ID        string    `json:"id"`
	OwnerID   string    `json:"ownerId"`
	Revision  int64     `json:"revision"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func projectView(project *store.Project) projectJSON {
	return projectJSON{
		ID:        project.ID,
		OwnerID:   project.OwnerID,
		Revision:  project.Revision,
		CreatedAt: project.CreatedAt,
		UpdatedAt: project.UpdatedAt,
	}
}

type sceneJSON struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"projectId"`
	Order      int        `json:"order"`
	Name       string     `json:"name"`
	Content    string     `json:"content"`
	DurationMs int64      `json:"durationMs,omitempty"`
	DeletedAt  *time.Time `json:"deletedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

func sceneView(scene *store.Scene) sceneJSON {
	return sceneJSON{
		ID:         scene.ID,
		ProjectID:  scene.ProjectID,
		Order:      scene.Order,
		Name:       scene.Name,
		Content:    scene.Content,
		DurationMs: scene.DurationMs,
		DeletedAt:  scene.DeletedAt,
		CreatedAt:  scene.CreatedAt,
		UpdatedAt:  scene.UpdatedAt,
	}
}

type ledgerJSON struct {
	ProjectID      string     `json:"projectId"`
	IdempotencyKey string     `json:"idempotencyKey"`
	Status         string     `json:"status"`
	OperationType  string     `json:"operationType,omitempty"`
	PayloadJSON    string     `json:"payload"`
	ResultJSON     string     `json:"result,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
	FinalizedAt    *time.Time `json:"finalizedAt,omitempty"`
}

func ledgerView(record *store.LedgerRecord) ledgerJSON {
	return ledgerJSON{
		ProjectID:      record.ProjectID,
		IdempotencyKey: record.IdempotencyKey,
		Status:         string(record.Status),
		OperationType:  string(record.OperationType),
		PayloadJSON:    record.PayloadJSON,
		ResultJSON:     record.ResultJSON,
		CreatedAt:      record.CreatedAt,
		FinalizedAt:    record.FinalizedAt,
	}
}
