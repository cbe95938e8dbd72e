// Package store provides local persistence for the logical stores, sync
// bookkeeping and sync history, with a SQLite implementation.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/rcliao/state-sync/internal/model"
)

var (
	// ErrNotFound is returned when a logical store has never been written.
	ErrNotFound = errors.New("not found")
	// ErrLocked is returned when another cycle holds the cycle lock.
	ErrLocked = errors.New("cycle lock held")
)

// HistoryParams holds parameters for listing sync history.
type HistoryParams struct {
	Kind  string // empty means all kinds
	Limit int
}

// Store defines the local persistence interface.
type Store interface {
	// GetRecord returns the encoded record of a logical store.
	// Returns ErrNotFound if the store was never written.
	GetRecord(ctx context.Context, key model.StoreKey) ([]byte, error)

	// PutRecord replaces the encoded record of a logical store.
	PutRecord(ctx context.Context, key model.StoreKey, data []byte) error

	// GetSyncState returns the sync bookkeeping. Never-synced stores return
	// a zero SyncState.
	GetSyncState(ctx context.Context) (*model.SyncState, error)

	// MarkSynced records a successful push.
	MarkSynced(ctx context.Context, provider string, at time.Time) error

	// AddHistory appends a cycle outcome, assigning its ID.
	AddHistory(ctx context.Context, e model.HistoryEntry) (*model.HistoryEntry, error)

	// ListHistory returns the most recent history entries, newest first.
	ListHistory(ctx context.Context, p HistoryParams) ([]model.HistoryEntry, error)

	// AcquireCycleLock takes the lock that serializes sync and import
	// cycles across every process using this database. The lease expires
	// after ttl so a crashed holder cannot block forever. It returns the
	// token to release with, or ErrLocked while another lease is live.
	AcquireCycleLock(ctx context.Context, ttl time.Duration) (string, error)

	// ReleaseCycleLock drops the lease taken with token. Releasing a lease
	// that expired and was taken over is a no-op.
	ReleaseCycleLock(ctx context.Context, token string) error

	// Close closes the store.
	Close() error
}
