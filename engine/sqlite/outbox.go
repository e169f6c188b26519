package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"calsync/engine"

	"github.com/google/uuid"
)

// DefaultMaxAttempts is the retry budget before an operation is moved to the
// dead-letter view.
const DefaultMaxAttempts = 5

// Enqueue appends an operation to the durable outbox, assigning its id and
// sequence number. The write commits before Enqueue returns, so a queued
// mutation survives process restart.
//
// Pending operations for the same (provider, record) are coalesced with
// net-effect equivalence:
//
//	create + update -> create carrying the final payload
//	update + update -> single update with the final payload
//	create + delete -> both removed (net no-op)
//	update + delete -> delete only
//
// Coalescing always replaces the superseded row with a fresh one rather than
// mutating it in place: a concurrent drain may have already peeked the old
// row, and its eventual ack must not discard the folded payload.
//
// Dead-lettered operations are never coalesced.
func (s *Store) Enqueue(op *engine.Operation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now()
	}

	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	// Look up pending operations for the same record, oldest first.
	rows, err := tx.Query(`
		SELECT seq, id, op FROM outbox
		WHERE provider = ? AND record_id = ? AND dead_letter = 0
		ORDER BY seq
	`, op.Provider, op.RecordID)
	if err != nil {
		return fmt.Errorf("failed to query pending operations: %w", err)
	}

	type pendingOp struct {
		seq int64
		id  string
		op  engine.OpType
	}
	var pending []pendingOp
	for rows.Next() {
		var p pendingOp
		var opType string
		if err := rows.Scan(&p.seq, &p.id, &opType); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan pending operation: %w", err)
		}
		p.op = engine.OpType(opType)
		pending = append(pending, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	payload, err := marshalPayload(op.Payload)
	if err != nil {
		return err
	}

	if len(pending) > 0 {
		head := pending[0]

		switch {
		case op.Type == engine.OpUpdate && (head.op == engine.OpCreate || head.op == engine.OpUpdate):
			// Fold the new payload into the earlier operation. The old row is
			// removed and re-appended under a new id, so an ack of the old id
			// (a push that was in flight when this edit arrived) deletes
			// nothing instead of deleting the folded payload.
			_, err = tx.Exec("DELETE FROM outbox WHERE seq = ?", head.seq)
			if err != nil {
				return fmt.Errorf("failed to coalesce update: %w", err)
			}
			op.Type = head.op

		case op.Type == engine.OpDelete && head.op == engine.OpCreate:
			// The record never reached the remote; drop everything.
			_, err = tx.Exec("DELETE FROM outbox WHERE provider = ? AND record_id = ? AND dead_letter = 0",
				op.Provider, op.RecordID)
			if err != nil {
				return fmt.Errorf("failed to coalesce delete: %w", err)
			}
			return tx.Commit()

		case op.Type == engine.OpDelete:
			// Pending updates are superseded by the delete.
			_, err = tx.Exec("DELETE FROM outbox WHERE provider = ? AND record_id = ? AND dead_letter = 0",
				op.Provider, op.RecordID)
			if err != nil {
				return fmt.Errorf("failed to drop superseded operations: %w", err)
			}
		}
	}

	res, err := tx.Exec(`
		INSERT INTO outbox (id, provider, record_id, op, payload, created_at, attempts, last_error, dead_letter)
		VALUES (?, ?, ?, ?, ?, ?, 0, NULL, 0)
	`, op.ID, op.Provider, op.RecordID, string(op.Type), payload, op.CreatedAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}

	seq, err := res.LastInsertId()
	if err != nil {
		return err
	}
	op.Seq = seq

	return tx.Commit()
}

// PeekBatch returns up to maxN pending operations for a provider in sequence
// order. Dead-lettered operations are excluded, and so are operations queued
// behind a dead letter for the same record: applying them would reorder that
// record's mutations. They become visible again once the dead letter is
// requeued or removed. The operations stay queued until acked.
func (s *Store) PeekBatch(providerName string, maxN int) ([]engine.Operation, error) {
	rows, err := s.Query(`
		SELECT seq, id, provider, record_id, op, payload, created_at, attempts, last_error
		FROM outbox
		WHERE provider = ? AND dead_letter = 0
		  AND NOT EXISTS (
			SELECT 1 FROM outbox d
			WHERE d.provider = outbox.provider AND d.record_id = outbox.record_id
			  AND d.dead_letter = 1 AND d.seq < outbox.seq
		  )
		ORDER BY seq
		LIMIT ?
	`, providerName, maxN)
	if err != nil {
		return nil, fmt.Errorf("failed to peek batch: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// Ack removes a confirmed operation. Acking an id that is already gone is a
// no-op, so duplicate acks from retried network calls are harmless.
func (s *Store) Ack(opID string) error {
	_, err := s.Exec("DELETE FROM outbox WHERE id = ?", opID)
	if err != nil {
		return fmt.Errorf("failed to ack operation %s: %w", opID, err)
	}
	return nil
}

// Fail records a failed attempt. Once attempts exceed maxAttempts the
// operation moves to the dead-letter view instead of retrying forever.
// Returns true if the operation was dead-lettered by this call.
func (s *Store) Fail(opID string, failErr error, maxAttempts int) (bool, error) {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}

	msg := ""
	if failErr != nil {
		msg = failErr.Error()
	}

	tx, err := s.Begin()
	if err != nil {
		return false, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.Exec(`
		UPDATE outbox SET attempts = attempts + 1, last_error = ? WHERE id = ?
	`, msg, opID)
	if err != nil {
		return false, fmt.Errorf("failed to record failure for %s: %w", opID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		// Already acked or dead-lettered elsewhere.
		return false, tx.Commit()
	}

	var attempts int
	if err := tx.QueryRow("SELECT attempts FROM outbox WHERE id = ?", opID).Scan(&attempts); err != nil {
		return false, err
	}

	deadLettered := false
	if attempts > maxAttempts {
		if _, err := tx.Exec("UPDATE outbox SET dead_letter = 1 WHERE id = ?", opID); err != nil {
			return false, fmt.Errorf("failed to dead-letter %s: %w", opID, err)
		}
		deadLettered = true
	}

	return deadLettered, tx.Commit()
}

// DeadLetter moves an operation straight to the dead-letter view without
// consuming retries. Used for payloads the remote rejected outright, where
// retrying the same bytes cannot succeed.
func (s *Store) DeadLetter(opID string, failErr error) error {
	msg := ""
	if failErr != nil {
		msg = failErr.Error()
	}
	_, err := s.Exec(`
		UPDATE outbox SET dead_letter = 1, attempts = attempts + 1, last_error = ? WHERE id = ?
	`, msg, opID)
	if err != nil {
		return fmt.Errorf("failed to dead-letter operation %s: %w", opID, err)
	}
	return nil
}

// PendingCount returns the number of queued, non-dead-lettered operations.
// Empty provider counts across all providers.
func (s *Store) PendingCount(providerName string) (int, error) {
	query := "SELECT COUNT(*) FROM outbox WHERE dead_letter = 0"
	var args []any
	if providerName != "" {
		query += " AND provider = ?"
		args = append(args, providerName)
	}

	var count int
	if err := s.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count pending operations: %w", err)
	}
	return count, nil
}

// ListDeadLetters returns operations held after exhausting their retry
// budget. Empty provider lists across all providers.
func (s *Store) ListDeadLetters(providerName string) ([]engine.Operation, error) {
	query := `
		SELECT seq, id, provider, record_id, op, payload, created_at, attempts, last_error
		FROM outbox WHERE dead_letter = 1`
	var args []any
	if providerName != "" {
		query += " AND provider = ?"
		args = append(args, providerName)
	}
	query += " ORDER BY seq"

	rows, err := s.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}
	defer rows.Close()

	return scanOperations(rows)
}

// Requeue returns a dead-lettered operation to the pending queue with a
// fresh retry budget.
func (s *Store) Requeue(opID string) error {
	res, err := s.Exec(`
		UPDATE outbox SET dead_letter = 0, attempts = 0, last_error = NULL WHERE id = ? AND dead_letter = 1
	`, opID)
	if err != nil {
		return fmt.Errorf("failed to requeue operation %s: %w", opID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("operation %s is not dead-lettered", opID)
	}
	return nil
}

// RequeueAll returns every dead-lettered operation for a provider (all
// providers when empty) to the pending queue. Returns how many moved.
func (s *Store) RequeueAll(providerName string) (int, error) {
	query := "UPDATE outbox SET dead_letter = 0, attempts = 0, last_error = NULL WHERE dead_letter = 1"
	var args []any
	if providerName != "" {
		query += " AND provider = ?"
		args = append(args, providerName)
	}

	res, err := s.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to requeue dead letters: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// RemoveDeadLetter discards a dead-lettered operation after inspection.
func (s *Store) RemoveDeadLetter(opID string) error {
	res, err := s.Exec("DELETE FROM outbox WHERE id = ? AND dead_letter = 1", opID)
	if err != nil {
		return fmt.Errorf("failed to remove dead letter %s: %w", opID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("operation %s is not dead-lettered", opID)
	}
	return nil
}

func scanOperations(rows *sql.Rows) ([]engine.Operation, error) {
	var ops []engine.Operation
	for rows.Next() {
		var op engine.Operation
		var opType string
		var payload, lastError sql.NullString
		var createdAt int64

		err := rows.Scan(&op.Seq, &op.ID, &op.Provider, &op.RecordID, &opType,
			&payload, &createdAt, &op.Attempts, &lastError)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}

		op.Type = engine.OpType(opType)
		op.CreatedAt = time.Unix(createdAt, 0)
		op.LastError = lastError.String
		if payload.Valid && payload.String != "" {
			var ev engine.CalendarEvent
			if err := json.Unmarshal([]byte(payload.String), &ev); err != nil {
				return nil, fmt.Errorf("failed to unmarshal operation payload: %w", err)
			}
			op.Payload = &ev
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

func marshalPayload(ev *engine.CalendarEvent) (sql.NullString, error) {
	if ev == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal operation payload: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
