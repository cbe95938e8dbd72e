package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/state-sync/internal/model"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB

	entropyMu sync.Mutex
	entropy   *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	s.entropyMu.Lock()
	defer s.entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS stores (
		key         TEXT PRIMARY KEY,
		data        TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS sync_state (
		id              INTEGER PRIMARY KEY CHECK (id = 1),
		last_sync_time  TEXT,
		last_provider   TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS sync_history (
		id           TEXT PRIMARY KEY,
		kind         TEXT NOT NULL,
		provider     TEXT NOT NULL DEFAULT '',
		started_at   TEXT NOT NULL,
		finished_at  TEXT NOT NULL,
		outcome      TEXT NOT NULL,
		error        TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_sync_history_started ON sync_history(started_at DESC);

	CREATE TABLE IF NOT EXISTS cycle_lock (
		id          INTEGER PRIMARY KEY CHECK (id = 1),
		token       TEXT NOT NULL,
		expires_at  INTEGER NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) GetRecord(ctx context.Context, key model.StoreKey) ([]byte, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM stores WHERE key = ?`, string(key)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("store %s: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return []byte(data), nil
}

func (s *SQLiteStore) PutRecord(ctx context.Context, key model.StoreKey, data []byte) error {
	if !model.ValidStoreKeys[key] {
		return fmt.Errorf("unknown store %q", key)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stores (key, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(key), string(data), now)
	if err != nil {
		return fmt.Errorf("put store %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) GetSyncState(ctx context.Context) (*model.SyncState, error) {
	var lastSync sql.NullString
	var provider string
	err := s.db.QueryRowContext(ctx,
		`SELECT last_sync_time, last_provider FROM sync_state WHERE id = 1`).Scan(&lastSync, &provider)
	if errors.Is(err, sql.ErrNoRows) {
		return &model.SyncState{}, nil
	}
	if err != nil {
		return nil, err
	}

	st := &model.SyncState{LastProvider: provider}
	if lastSync.Valid {
		t, err := time.Parse(time.RFC3339Nano, lastSync.String)
		if err != nil {
			return nil, fmt.Errorf("parse last_sync_time: %w", err)
		}
		st.LastSyncTime = &t
	}
	return st, nil
}

func (s *SQLiteStore) MarkSynced(ctx context.Context, provider string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_state (id, last_sync_time, last_provider) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET last_sync_time = excluded.last_sync_time, last_provider = excluded.last_provider`,
		at.UTC().Format(time.RFC3339Nano), provider)
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}

func (s *SQLiteStore) AddHistory(ctx context.Context, e model.HistoryEntry) (*model.HistoryEntry, error) {
	e.ID = s.newID()

	var errText *string
	if e.Error != "" {
		errText = &e.Error
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_history (id, kind, provider, started_at, finished_at, outcome, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Kind, e.Provider,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.FinishedAt.UTC().Format(time.RFC3339Nano),
		e.Outcome, errText)
	if err != nil {
		return nil, fmt.Errorf("insert history: %w", err)
	}
	return &e, nil
}

func (s *SQLiteStore) ListHistory(ctx context.Context, p HistoryParams) ([]model.HistoryEntry, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `SELECT id, kind, provider, started_at, finished_at, outcome, error FROM sync_history`
	args := []interface{}{}
	if p.Kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, p.Kind)
	}
	// ULIDs sort by creation time, which breaks ties between equal timestamps.
	query += ` ORDER BY started_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []model.HistoryEntry
	for rows.Next() {
		var e model.HistoryEntry
		var started, finished string
		var errText sql.NullString
		if err := rows.Scan(&e.ID, &e.Kind, &e.Provider, &started, &finished, &e.Outcome, &errText); err != nil {
			return nil, err
		}
		e.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
		e.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
		if errText.Valid {
			e.Error = errText.String
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
