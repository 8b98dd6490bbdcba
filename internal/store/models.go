package store

import "time"

// OperationType identifies the scene mutation a request ultimately performed.
type OperationType string

const (
	OperationCreate OperationType = "create"
	OperationEdit   OperationType = "edit"
	OperationDelete OperationType = "delete"
)

// ValidOperation reports whether the operation type is one the executor applies.
func ValidOperation(op OperationType) bool {
	switch op {
	case OperationCreate, OperationEdit, OperationDelete:
		return true
	default:
		return false
	}
}

// LedgerStatus represents the lifecycle of an idempotency record.
type LedgerStatus string

const (
	// LedgerPending marks a reservation written before the mutation attempt.
	LedgerPending LedgerStatus = "pending"
	// LedgerApplied marks a finalized record whose mutation succeeded.
	LedgerApplied LedgerStatus = "applied"
	// LedgerFailed marks a finalized record whose mutation failed permanently.
	LedgerFailed LedgerStatus = "failed"
)

// Project is a versioned scene collection owned by one user.
type Project struct {
	ID        string
	OwnerID   string
	Revision  int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Scene is one entry in a project's ordered scene collection. Content is
// opaque to this engine; the rendering collaborator owns its meaning. A
// non-nil DeletedAt tombstones the row: it stays queryable for audit and
// replay consistency but is excluded from default listings.
type Scene struct {
	ID         string
	ProjectID  string
	Order      int
	Name       string
	Content    string
	DurationMs int64
	DeletedAt  *time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Deleted reports whether the scene is tombstoned.
func (s *Scene) Deleted() bool {
	return s != nil && s.DeletedAt != nil
}

// LedgerRecord is one row of the idempotency ledger. Once finalized the row
// is immutable; results are appended exactly once.
type LedgerRecord struct {
	ProjectID      string
	IdempotencyKey string
	Status         LedgerStatus
	OperationType  OperationType
	PayloadJSON    string
	ResultJSON     string
	CreatedAt      time.Time
	FinalizedAt    *time.Time
}
