package database

import (
	"context"
	"fmt"
	"time"

	"kassa/internal/models"
)

// EnqueueOperation durably persists a pending operation. The write must
// reach disk before this returns; on error the caller has to treat the
// operation as not queued.
func (db *DB) EnqueueOperation(ctx context.Context, op *models.QueuedOperation) error {
	if op.EnqueuedAt.IsZero() {
		op.EnqueuedAt = time.Now()
	}

	query := `INSERT INTO sync_queue (id, kind, resource, payload, enqueued_at, retry_count, last_error)
              VALUES (?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query,
		op.ID,
		op.Kind,
		op.Resource,
		op.Payload,
		op.EnqueuedAt,
		op.RetryCount,
		op.LastError,
	)
	if err != nil {
		return fmt.Errorf("failed to enqueue operation: %w", err)
	}
	return nil
}

// RemoveOperation deletes a queue item. Removing an id that is already gone
// is a no-op, not an error.
func (db *DB) RemoveOperation(ctx context.Context, id string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sync_queue WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to remove operation: %w", err)
	}
	return nil
}

// ListPendingOperations returns every queued operation ordered ascending by
// enqueue time. Stock decrements and ledger entries are only correct when
// replayed in original chronological order, so ordering is part of the
// contract. The id is a secondary key for a stable order within one tick.
func (db *DB) ListPendingOperations(ctx context.Context) ([]models.QueuedOperation, error) {
	query := `SELECT id, kind, resource, payload, enqueued_at, retry_count, last_error
              FROM sync_queue ORDER BY enqueued_at ASC, id ASC`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending operations: %w", err)
	}
	defer rows.Close()

	var ops []models.QueuedOperation
	for rows.Next() {
		var op models.QueuedOperation
		err := rows.Scan(&op.ID, &op.Kind, &op.Resource, &op.Payload, &op.EnqueuedAt, &op.RetryCount, &op.LastError)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate operations: %w", err)
	}
	return ops, nil
}

// RecordFailure bumps the retry counter and stores the last error while the
// operation stays queued for the next drain trigger.
func (db *DB) RecordFailure(ctx context.Context, id string, errMsg string) error {
	query := `UPDATE sync_queue SET retry_count = retry_count + 1, last_error = ? WHERE id = ?`
	_, err := db.ExecContext(ctx, query, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to record failure: %w", err)
	}
	return nil
}

// QueueLength returns the number of pending operations.
func (db *DB) QueueLength(ctx context.Context) (int, error) {
	var count int
	err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_queue`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count queue: %w", err)
	}
	return count, nil
}
