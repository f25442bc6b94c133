package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// SyncState returns the transport bookkeeping value stored under (owner,
// key), or "" when nothing has been saved yet. The Matrix adapter keeps its
// next_batch token and filter ID here, owned by the bot's user ID.
func (s *Store) SyncState(ctx context.Context, owner, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		"SELECT value FROM matrix_sync_state WHERE user_id = ? AND key = ?", owner, key,
	).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return "", nil
	case err != nil:
		return "", fmt.Errorf("load sync state %s: %w", key, err)
	}
	return value, nil
}

// SetSyncState stores value under (owner, key), replacing any earlier value.
func (s *Store) SetSyncState(ctx context.Context, owner, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO matrix_sync_state (user_id, key, value) VALUES (?, ?, ?)
		ON CONFLICT(user_id, key) DO UPDATE SET value = excluded.value
	`, owner, key, value)
	if err != nil {
		return fmt.Errorf("save sync state %s: %w", key, err)
	}
	return nil
}
