package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcliao/state-sync/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSQLiteStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("create store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPutAndGetRecord(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.PutRecord(ctx, model.StorePrompt, []byte(`{"prompts":{}}`)); err != nil {
		t.Fatalf("put: %v", err)
	}
	got, err := s.GetRecord(ctx, model.StorePrompt)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got) != `{"prompts":{}}` {
		t.Errorf("expected stored record, got %s", got)
	}

	// Second put replaces.
	if err := s.PutRecord(ctx, model.StorePrompt, []byte(`{"prompts":{"a":{}}}`)); err != nil {
		t.Fatalf("put again: %v", err)
	}
	got, _ = s.GetRecord(ctx, model.StorePrompt)
	if string(got) != `{"prompts":{"a":{}}}` {
		t.Errorf("expected replaced record, got %s", got)
	}
}

func TestGetRecordNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRecord(context.Background(), model.StoreChat)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPutRecordUnknownKey(t *testing.T) {
	s := newTestStore(t)
	if err := s.PutRecord(context.Background(), model.StoreKey("bogus"), []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown store key")
	}
}

func TestSyncState(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	st, err := s.GetSyncState(ctx)
	if err != nil {
		t.Fatalf("get sync state: %v", err)
	}
	if st.LastSyncTime != nil || st.LastProvider != "" {
		t.Errorf("expected zero sync state, got %+v", st)
	}

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := s.MarkSynced(ctx, "upstash", at); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	later := at.Add(time.Hour)
	if err := s.MarkSynced(ctx, "webdav", later); err != nil {
		t.Fatalf("mark synced again: %v", err)
	}

	st, err = s.GetSyncState(ctx)
	if err != nil {
		t.Fatalf("get sync state: %v", err)
	}
	if st.LastProvider != "webdav" {
		t.Errorf("expected provider webdav, got %q", st.LastProvider)
	}
	if st.LastSyncTime == nil || !st.LastSyncTime.Equal(later) {
		t.Errorf("expected last sync %v, got %v", later, st.LastSyncTime)
	}
}

func TestHistory(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	for i, kind := range []string{model.KindSync, model.KindImport, model.KindSync} {
		e, err := s.AddHistory(ctx, model.HistoryEntry{
			Kind:       kind,
			Provider:   "upstash",
			StartedAt:  base.Add(time.Duration(i) * time.Minute),
			FinishedAt: base.Add(time.Duration(i)*time.Minute + time.Second),
			Outcome:    model.OutcomeOK,
		})
		if err != nil {
			t.Fatalf("add history: %v", err)
		}
		if e.ID == "" {
			t.Error("expected ID to be assigned")
		}
	}
	s.AddHistory(ctx, model.HistoryEntry{
		Kind:       model.KindSync,
		StartedAt:  base.Add(10 * time.Minute),
		FinishedAt: base.Add(10 * time.Minute),
		Outcome:    model.OutcomeFailed,
		Error:      "boom",
	})

	all, err := s.ListHistory(ctx, HistoryParams{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(all))
	}
	if all[0].Outcome != model.OutcomeFailed || all[0].Error != "boom" {
		t.Errorf("expected newest failed entry first, got %+v", all[0])
	}

	syncs, _ := s.ListHistory(ctx, HistoryParams{Kind: model.KindSync, Limit: 2})
	if len(syncs) != 2 {
		t.Fatalf("expected 2 limited sync entries, got %d", len(syncs))
	}
	for _, e := range syncs {
		if e.Kind != model.KindSync {
			t.Errorf("unexpected kind %q", e.Kind)
		}
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	s.PutRecord(ctx, model.StoreConfig, []byte(`{"lastUpdateTime":1}`))
	s.PutRecord(ctx, model.StoreAccess, []byte(`{}`))

	st, err := s.Stats(ctx, "test.db")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if len(st.Stores) != 2 {
		t.Fatalf("expected 2 stores, got %d", len(st.Stores))
	}
	if st.Stores[0].Key != string(model.StoreAccess) || st.Stores[0].Bytes != 2 {
		t.Errorf("unexpected first store stats: %+v", st.Stores[0])
	}
}

func TestStatsReportsCountFailure(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	if _, err := s.db.ExecContext(ctx, `DROP TABLE sync_history`); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if _, err := s.Stats(ctx, "test.db"); err == nil {
		t.Fatal("expected error when history cannot be counted")
	}
}

func TestCycleLockAcrossConnections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shared.db")
	a, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open a: %v", err)
	}
	t.Cleanup(func() { a.Close() })
	b, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("open b: %v", err)
	}
	t.Cleanup(func() { b.Close() })

	token, err := a.AcquireCycleLock(ctx, time.Minute)
	if err != nil {
		t.Fatalf("acquire a: %v", err)
	}
	if _, err := b.AcquireCycleLock(ctx, time.Minute); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}

	if err := a.ReleaseCycleLock(ctx, token); err != nil {
		t.Fatalf("release: %v", err)
	}
	if _, err := b.AcquireCycleLock(ctx, time.Minute); err != nil {
		t.Fatalf("acquire b after release: %v", err)
	}
}

func TestCycleLockExpiredLeaseIsTakenOver(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	stale, err := s.AcquireCycleLock(ctx, -time.Second)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	fresh, err := s.AcquireCycleLock(ctx, time.Minute)
	if err != nil {
		t.Fatalf("expected expired lease to be taken over, got %v", err)
	}

	// The stale holder releasing late must not free the new lease.
	if err := s.ReleaseCycleLock(ctx, stale); err != nil {
		t.Fatalf("release stale: %v", err)
	}
	if _, err := s.AcquireCycleLock(ctx, time.Minute); !errors.Is(err, ErrLocked) {
		t.Fatalf("expected ErrLocked, got %v", err)
	}
	if err := s.ReleaseCycleLock(ctx, fresh); err != nil {
		t.Fatalf("release fresh: %v", err)
	}
}
