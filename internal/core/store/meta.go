package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SyncStampKey is the store_meta key recording the last completed sync of a
// project.
func SyncStampKey(scope Scope) string {
	return "last_sync:" + strings.ToLower(strings.TrimSpace(scope.Space)) + "/" + strings.ToUpper(strings.TrimSpace(scope.ProjectKey))
}

// SetMeta stores a key/value pair.
func (s *Store) SetMeta(ctx context.Context, key, value string) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(key) == "" {
		return errors.New("meta key is required")
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO store_meta (key, value)
		VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("store meta: %w", err)
	}
	return nil
}

// GetMeta returns the value for key, or "" when unset.
func (s *Store) GetMeta(ctx context.Context, key string) (string, error) {
	if s == nil || s.DB == nil {
		return "", errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if strings.TrimSpace(key) == "" {
		return "", errors.New("meta key is required")
	}

	var value string
	if err := s.DB.QueryRowContext(ctx, `SELECT value FROM store_meta WHERE key = ?`, key).Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", nil
		}
		return "", fmt.Errorf("fetch meta: %w", err)
	}
	return value, nil
}

// RecordSync stamps the last successful sync time of scope.
func (s *Store) RecordSync(ctx context.Context, scope Scope, at time.Time) error {
	return s.SetMeta(ctx, SyncStampKey(scope), at.UTC().Format(time.RFC3339))
}

// LastSync returns when scope was last synced, or the zero time.
func (s *Store) LastSync(ctx context.Context, scope Scope) (time.Time, error) {
	value, err := s.GetMeta(ctx, SyncStampKey(scope))
	if err != nil || value == "" {
		return time.Time{}, err
	}
	at, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse sync stamp: %w", err)
	}
	return at, nil
}
