package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const ledgerColumns = "project_id, idempotency_key, status, operation_type, payload_json, result_json, created_at, finalized_at"

// LedgerOutcome is the result of BeginOrReplay. Exactly one of Record
// (replay) or Reservation (fresh) is set.
type LedgerOutcome struct {
	// Replayed is true when a finalized record with an equal payload already
	// existed; Record carries its stored result and no side effect occurred.
	Replayed bool
	Record   *LedgerRecord
	// Reservation is the continuation token for a fresh submission. The
	// executor must finalize or abandon it.
	Reservation *Reservation
}

// Reservation is the continuation token returned for a fresh submission. It
// must be passed to the executor so the finalize happens inside the same
// transaction as the scene mutation.
type Reservation struct {
	ProjectID      string
	IdempotencyKey string
	// Adopted is true when this submission took over a pending reservation
	// whose lease had expired (crash between reserve and finalize).
	Adopted bool
}

// BeginOrReplay implements replay-safe deduplication for one submission.
//
// Outcomes, in order of evaluation:
//   - no record: a pending reservation is written and returned.
//   - finalized record, equal payload: replay; the stored record is returned
//     untouched and the scene store is never consulted.
//   - any record, different payload: IdempotencyConflictError.
//   - pending record, equal payload, lease expired: the reservation is
//     adopted by this submission (recovery after a crash).
//   - pending record, equal payload, lease live: ReservationHeldError.
func (s *Store) BeginOrReplay(ctx context.Context, projectID, key, payloadJSON string, pendingLease time.Duration) (*LedgerOutcome, error) {
	canonical, err := CanonicalJSON(payloadJSON)
	if err != nil {
		return nil, fmt.Errorf("canonicalize payload: %w", err)
	}

	now := time.Now()
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO ledger (project_id, idempotency_key, status, operation_type, payload_json, created_at)
         VALUES (?, ?, ?, '', ?, ?)
         ON CONFLICT (project_id, idempotency_key) DO NOTHING`,
		projectID,
		key,
		LedgerPending,
		canonical,
		formatTime(now),
	)
	if err != nil {
		return nil, fmt.Errorf("reserve ledger key: %w", err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if inserted > 0 {
		return &LedgerOutcome{Reservation: &Reservation{ProjectID: projectID, IdempotencyKey: key}}, nil
	}

	record, err := s.GetLedgerRecord(ctx, projectID, key)
	if err != nil {
		return nil, err
	}
	if record == nil {
		// Row vanished between the insert race and the read. Treat as transient.
		return nil, &ReservationHeldError{ProjectID: projectID, IdempotencyKey: key}
	}

	storedCanonical, err := CanonicalJSON(record.PayloadJSON)
	if err != nil {
		storedCanonical = record.PayloadJSON
	}
	if storedCanonical != canonical {
		return nil, &IdempotencyConflictError{ProjectID: projectID, IdempotencyKey: key}
	}

	if record.Status != LedgerPending {
		return &LedgerOutcome{Replayed: true, Record: record}, nil
	}

	if time.Since(record.CreatedAt) < pendingLease {
		return nil, &ReservationHeldError{ProjectID: projectID, IdempotencyKey: key}
	}

	// Lease expired: adopt the orphaned reservation so the operation can be
	// re-attempted and finalized exactly once.
	adopt, err := s.db.ExecContext(
		ctx,
		`UPDATE ledger SET created_at = ? WHERE project_id = ? AND idempotency_key = ? AND status = ? AND created_at = ?`,
		formatTime(now),
		projectID,
		key,
		LedgerPending,
		formatTime(record.CreatedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("adopt reservation: %w", err)
	}
	adopted, err := adopt.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if adopted == 0 {
		// Another submission adopted it first.
		return nil, &ReservationHeldError{ProjectID: projectID, IdempotencyKey: key}
	}
	return &LedgerOutcome{Reservation: &Reservation{ProjectID: projectID, IdempotencyKey: key, Adopted: true}}, nil
}

// AbandonReservation finalizes a reservation as permanently failed, storing
// the failure detail as its immutable result.
func (s *Store) AbandonReservation(ctx context.Context, reservation *Reservation, resultJSON string) error {
	if reservation == nil {
		return errors.New("reservation is nil")
	}
	res, err := s.db.ExecContext(
		ctx,
		`UPDATE ledger SET status = ?, result_json = ?, finalized_at = ? WHERE project_id = ? AND idempotency_key = ? AND status = ?`,
		LedgerFailed,
		resultJSON,
		formatTime(time.Now()),
		reservation.ProjectID,
		reservation.IdempotencyKey,
		LedgerPending,
	)
	if err != nil {
		return fmt.Errorf("abandon reservation: %w", err)
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

// GetLedgerRecord fetches one ledger row, or nil when absent.
func (s *Store) GetLedgerRecord(ctx context.Context, projectID, key string) (*LedgerRecord, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT `+ledgerColumns+` FROM ledger WHERE project_id = ? AND idempotency_key = ?`,
		projectID,
		key,
	)
	record, err := scanLedgerRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ledger record: %w", err)
	}
	return record, nil
}

// ListLedgerRecords returns a project's ledger rows newest first, capped at
// limit when positive.
func (s *Store) ListLedgerRecords(ctx context.Context, projectID string, limit int) ([]*LedgerRecord, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger WHERE project_id = ? ORDER BY created_at DESC`
	args := []any{projectID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ledger records: %w", err)
	}
	defer rows.Close()

	var records []*LedgerRecord
	for rows.Next() {
		record, err := scanLedgerRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// PendingReservations returns pending ledger rows older than the cutoff,
// oldest first. Used by the recovery sweep and diagnostics.
func (s *Store) PendingReservations(ctx context.Context, cutoff time.Time) ([]*LedgerRecord, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT `+ledgerColumns+` FROM ledger WHERE status = ? AND created_at < ? ORDER BY created_at`,
		LedgerPending,
		formatTime(cutoff),
	)
	if err != nil {
		return nil, fmt.Errorf("list pending reservations: %w", err)
	}
	defer rows.Close()

	var records []*LedgerRecord
	for rows.Next() {
		record, err := scanLedgerRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// CanonicalJSON re-encodes a JSON document with sorted object keys so payload
// equality is structural, not textual.
func CanonicalJSON(payload string) (string, error) {
	var value any
	if err := json.Unmarshal([]byte(payload), &value); err != nil {
		return "", err
	}
	encoded, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(encoded), nil
}

func scanLedgerRecord(scanner interface{ Scan(dest ...any) error }) (*LedgerRecord, error) {
	var (
		projectID    string
		key          string
		statusStr    string
		opType       string
		payload      string
		result       sql.NullString
		createdRaw   string
		finalizedRaw sql.NullString
	)
	if err := scanner.Scan(&projectID, &key, &statusStr, &opType, &payload, &result, &createdRaw, &finalizedRaw); err != nil {
		return nil, err
	}

	record := &LedgerRecord{
		ProjectID:      projectID,
		IdempotencyKey: key,
		Status:         LedgerStatus(statusStr),
		OperationType:  OperationType(opType),
		PayloadJSON:    payload,
		ResultJSON:     result.String,
	}
	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if finalizedRaw.Valid {
		if finalized, err := parseTimeString(finalizedRaw.String); err == nil {
			record.FinalizedAt = &finalized
		}
	}
	return record, nil
}
