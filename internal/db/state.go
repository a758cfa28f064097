package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timerStateKey = "timer"

// GetState returns the value stored under key. ok is false if the key is unset.
func (db *DB) GetState(ctx context.Context, key string) (value string, ok bool, err error) {
	err = db.QueryRowContext(ctx, `SELECT value FROM client_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("reading state %q: %w", key, err)
	}
	return value, true, nil
}

// PutState upserts value under key
func (db *DB) PutState(ctx context.Context, key, value string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO client_state (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("writing state %q: %w", key, err)
	}
	return nil
}

// LoadTimerState returns the persisted timer snapshot, or nil if none was saved
func (db *DB) LoadTimerState(ctx context.Context) ([]byte, error) {
	value, ok, err := db.GetState(ctx, timerStateKey)
	if err != nil || !ok {
		return nil, err
	}
	return []byte(value), nil
}

// SaveTimerState persists the serialized timer snapshot
func (db *DB) SaveTimerState(ctx context.Context, data []byte) error {
	return db.PutState(ctx, timerStateKey, string(data))
}
