package store

import (
	"context"
	"fmt"
	"os"
)

// Stats holds database statistics.
type Stats struct {
	DBPath       string       `json:"db_path"`
	DBSizeBytes  int64        `json:"db_size_bytes"`
	Stores       []StoreStats `json:"stores"`
	HistoryCount int          `json:"history_count"`
}

// StoreStats holds per-store sizes.
type StoreStats struct {
	Key       string `json:"key"`
	Bytes     int    `json:"bytes"`
	UpdatedAt string `json:"updated_at"`
}

// Stats returns database statistics.
func (s *SQLiteStore) Stats(ctx context.Context, dbPath string) (*Stats, error) {
	st := &Stats{DBPath: dbPath}

	// DB file size
	if info, err := os.Stat(dbPath); err == nil {
		st.DBSizeBytes = info.Size()
	}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sync_history`).Scan(&st.HistoryCount); err != nil {
		return st, fmt.Errorf("count history: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT key, LENGTH(CAST(data AS BLOB)), updated_at
		FROM stores ORDER BY key`)
	if err != nil {
		return st, err
	}
	defer rows.Close()

	for rows.Next() {
		var ss StoreStats
		if err := rows.Scan(&ss.Key, &ss.Bytes, &ss.UpdatedAt); err != nil {
			return st, fmt.Errorf("scan store stats: %w", err)
		}
		st.Stores = append(st.Stores, ss)
	}

	return st, rows.Err()
}
