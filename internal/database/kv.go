package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// KVEntry is one row of the generic key-value surface.
type KVEntry struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}

// Get returns the value for a key, or ("", false, nil) when absent.
func (db *DB) Get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, true, nil
}

// Set upserts a key.
func (db *DB) Set(ctx context.Context, key, value string) error {
	query := `INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
              ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`
	_, err := db.ExecContext(ctx, query, key, value, time.Now())
	if err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// DeleteKey removes a key; deleting an absent key is a no-op.
func (db *DB) DeleteKey(ctx context.Context, key string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// ListEntries returns all entries whose key starts with prefix, ordered by key.
func (db *DB) ListEntries(ctx context.Context, prefix string) ([]KVEntry, error) {
	query := `SELECT key, value, updated_at FROM kv_store WHERE key LIKE ? || '%' ORDER BY key ASC`
	rows, err := db.QueryContext(ctx, query, prefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []KVEntry
	for rows.Next() {
		var e KVEntry
		if err := rows.Scan(&e.Key, &e.Value, &e.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate entries: %w", err)
	}
	return entries, nil
}
