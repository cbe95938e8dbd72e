package store

import (
	"context"
	"fmt"
	"time"
)

func (s *SQLiteStore) AcquireCycleLock(ctx context.Context, ttl time.Duration) (string, error) {
	token := s.newID()
	now := time.Now()
	// The upsert only takes over an expired lease, so the row count tells
	// whether this call won.
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO cycle_lock (id, token, expires_at) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET token = excluded.token, expires_at = excluded.expires_at
		 WHERE cycle_lock.expires_at <= ?`,
		token, now.Add(ttl).UnixMilli(), now.UnixMilli())
	if err != nil {
		return "", fmt.Errorf("acquire cycle lock: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("acquire cycle lock: %w", err)
	}
	if n == 0 {
		return "", ErrLocked
	}
	return token, nil
}

func (s *SQLiteStore) ReleaseCycleLock(ctx context.Context, token string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM cycle_lock WHERE id = 1 AND token = ?`, token); err != nil {
		return fmt.Errorf("release cycle lock: %w", err)
	}
	return nil
}
