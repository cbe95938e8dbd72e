// Package syncer runs reconciliation cycles between the local stores and a
// remote backend, plus the file import and export paths.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/rcliao/state-sync/internal/config"
	"github.com/rcliao/state-sync/internal/merge"
	"github.com/rcliao/state-sync/internal/model"
	"github.com/rcliao/state-sync/internal/remote"
	"github.com/rcliao/state-sync/internal/snapshot"
	"github.com/rcliao/state-sync/internal/store"
)

var (
	ErrMalformedRemote = errors.New("malformed remote state")
	ErrImportParse     = errors.New("import document is not a valid backup")
	ErrBusy            = errors.New("another sync or import is in progress")
)

// cycleLease bounds how long a crashed process keeps other cycles out.
const cycleLease = 10 * time.Minute

// Phase is the step a cycle is currently in.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseFetchingRemote
	PhaseMerging
	PhasePersistingLocal
	PhasePushingRemote
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseFetchingRemote:
		return "fetching_remote"
	case PhaseMerging:
		return "merging"
	case PhasePersistingLocal:
		return "persisting_local"
	case PhasePushingRemote:
		return "pushing_remote"
	}
	return fmt.Sprintf("phase(%d)", int32(p))
}

// Options wires an Engine to its collaborators.
type Options struct {
	Handles  snapshot.Handles
	Store    store.Store
	Client   remote.Client
	Provider config.Provider

	// Force skips the merge; ForceDirection picks the side that wins.
	Force          bool
	ForceDirection config.ForceDirection

	Logger *zap.Logger
	// OnReload is called after an import changed the local stores.
	OnReload func()
	Now      func() time.Time
}

// Result describes a completed sync cycle.
type Result struct {
	Outcome     string                `json:"outcome"`
	Provider    config.Provider       `json:"provider"`
	Forced      bool                  `json:"forced,omitempty"`
	Direction   config.ForceDirection `json:"direction,omitempty"`
	PushedBytes int                   `json:"pushed_bytes"`
	SyncedAt    time.Time             `json:"synced_at"`
}

// Engine runs at most one sync or import cycle at a time, both within the
// process and across processes sharing the local database.
type Engine struct {
	opts  Options
	log   *zap.Logger
	mu    sync.Mutex
	phase atomic.Int32
}

// New creates an engine. Store and Client are required.
func New(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("syncer: store is required")
	}
	if opts.Client == nil {
		return nil, errors.New("syncer: remote client is required")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ForceDirection == "" {
		opts.ForceDirection = config.ForceRemote
	}
	return &Engine{opts: opts, log: opts.Logger.Named("sync")}, nil
}

// Phase reports the step of the cycle in flight, or PhaseIdle.
func (e *Engine) Phase() Phase { return Phase(e.phase.Load()) }

func (e *Engine) setPhase(p Phase) {
	e.phase.Store(int32(p))
	if p != PhaseIdle {
		e.log.Debug("phase", zap.Stringer("phase", p))
	}
}

// Check probes the remote backend.
func (e *Engine) Check(ctx context.Context) bool {
	return e.opts.Client.Check(ctx)
}

// Sync runs one reconciliation cycle: fetch the remote blob, merge it into
// the local stores, persist locally, then push the merged state back.
//
// A failed push leaves the local stores merged and the bookkeeping
// untouched. An empty remote is seeded with the local snapshot as is.
func (e *Engine) Sync(ctx context.Context) (*Result, error) {
	if !e.mu.TryLock() {
		return nil, ErrBusy
	}
	defer e.mu.Unlock()
	unlock, err := e.lockStore(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	defer e.setPhase(PhaseIdle)

	started := e.opts.Now()
	res, err := e.sync(ctx)

	outcome := model.OutcomeFailed
	if err == nil {
		outcome = res.Outcome
		e.log.Info("sync complete",
			zap.String("outcome", res.Outcome),
			zap.Int("pushed_bytes", res.PushedBytes))
	} else {
		e.log.Error("sync failed", zap.Error(err))
	}
	e.record(ctx, model.KindSync, started, outcome, err)
	return res, err
}

func (e *Engine) sync(ctx context.Context) (*Result, error) {
	e.setPhase(PhaseFetchingRemote)
	local, err := snapshot.ReadAll(ctx, e.opts.Handles)
	if err != nil {
		return nil, fmt.Errorf("read local state: %w", err)
	}
	raw, err := e.opts.Client.Get(ctx)
	if errors.Is(err, remote.ErrChunkCount) {
		return nil, fmt.Errorf("%w: %w", ErrMalformedRemote, err)
	}
	if err != nil {
		return nil, fmt.Errorf("fetch remote state: %w", err)
	}
	doc, err := decodeDocument([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedRemote, err)
	}

	res := &Result{Provider: e.opts.Provider}

	if doc == nil {
		e.log.Info("remote state is empty, seeding it with local state")
		res.Outcome = model.OutcomeFirstSync
		return e.push(ctx, local, res)
	}

	e.setPhase(PhaseMerging)
	var merged model.AppState
	switch {
	case !e.opts.Force:
		merged = merge.AppState(local, doc.state)
	case e.opts.ForceDirection == config.ForceLocal:
		merged = local
	default:
		merged = doc.replace(local)
	}
	if e.opts.Force {
		res.Forced = true
		res.Direction = e.opts.ForceDirection
	}

	e.setPhase(PhasePersistingLocal)
	if err := snapshot.WriteAll(ctx, e.opts.Handles, merged); err != nil {
		return nil, fmt.Errorf("persist local state: %w", err)
	}

	res.Outcome = model.OutcomeOK
	return e.push(ctx, merged, res)
}

// lockStore takes the cycle lock of the local database and returns its
// release func. A lease held by another process maps to ErrBusy.
func (e *Engine) lockStore(ctx context.Context) (func(), error) {
	token, err := e.opts.Store.AcquireCycleLock(ctx, cycleLease)
	if errors.Is(err, store.ErrLocked) {
		return nil, ErrBusy
	}
	if err != nil {
		return nil, err
	}
	return func() {
		if err := e.opts.Store.ReleaseCycleLock(context.WithoutCancel(ctx), token); err != nil {
			e.log.Warn("failed to release cycle lock", zap.Error(err))
		}
	}, nil
}

// push uploads state and records the sync time.
func (e *Engine) push(ctx context.Context, state model.AppState, res *Result) (*Result, error) {
	e.setPhase(PhasePushingRemote)
	state.Normalize()
	payload, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	if err := e.opts.Client.Set(ctx, string(payload)); err != nil {
		return nil, fmt.Errorf("push remote state: %w", err)
	}

	res.PushedBytes = len(payload)
	res.SyncedAt = e.opts.Now()
	if err := e.opts.Store.MarkSynced(ctx, string(e.opts.Provider), res.SyncedAt); err != nil {
		return nil, fmt.Errorf("mark synced: %w", err)
	}
	return res, nil
}

// Import applies a backup document to the local stores. Without force the
// document is merged with local state as primary; with force every store
// the document carries replaces the local one. Nothing is written unless
// the document validates.
func (e *Engine) Import(ctx context.Context, data []byte, force bool) error {
	if !e.mu.TryLock() {
		return ErrBusy
	}
	defer e.mu.Unlock()
	unlock, err := e.lockStore(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	started := e.opts.Now()
	err = e.importDoc(ctx, data, force)
	outcome := model.OutcomeOK
	if err != nil {
		outcome = model.OutcomeFailed
		e.log.Error("import failed", zap.Error(err))
	} else {
		e.log.Info("import complete", zap.Bool("force", force))
	}
	e.record(ctx, model.KindImport, started, outcome, err)
	if err != nil {
		return err
	}

	if e.opts.OnReload != nil {
		e.opts.OnReload()
	}
	return nil
}

func (e *Engine) importDoc(ctx context.Context, data []byte, force bool) error {
	if err := validateImport(data); err != nil {
		return fmt.Errorf("%w: %v", ErrImportParse, err)
	}
	doc, err := decodeDocument(data)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrImportParse, err)
	}
	if doc == nil {
		return fmt.Errorf("%w: document is empty", ErrImportParse)
	}

	local, err := snapshot.ReadAll(ctx, e.opts.Handles)
	if err != nil {
		return fmt.Errorf("read local state: %w", err)
	}

	var next model.AppState
	if force {
		next = doc.replace(local)
	} else {
		next = merge.AppState(local, doc.state)
	}
	if err := snapshot.WriteAll(ctx, e.opts.Handles, next); err != nil {
		return fmt.Errorf("persist local state: %w", err)
	}
	return nil
}

// exportLayout avoids characters that are invalid in file names.
const exportLayout = "2006-01-02 15_04_05"

// Export serializes the local snapshot and returns it with a suggested
// backup file name.
func (e *Engine) Export(ctx context.Context) (string, []byte, error) {
	state, err := snapshot.ReadAll(ctx, e.opts.Handles)
	if err != nil {
		return "", nil, fmt.Errorf("read local state: %w", err)
	}
	data, err := json.Marshal(state)
	if err != nil {
		return "", nil, fmt.Errorf("encode state: %w", err)
	}
	return ExportFileName(e.opts.Now()), data, nil
}

// ExportFileName returns the backup file name for t in local time.
func ExportFileName(t time.Time) string {
	return "Backup-" + t.Local().Format(exportLayout) + ".json"
}

func (e *Engine) record(ctx context.Context, kind string, started time.Time, outcome string, err error) {
	entry := model.HistoryEntry{
		Kind:       kind,
		Provider:   string(e.opts.Provider),
		StartedAt:  started,
		FinishedAt: e.opts.Now(),
		Outcome:    outcome,
	}
	if err != nil {
		entry.Error = err.Error()
	}
	if _, herr := e.opts.Store.AddHistory(ctx, entry); herr != nil {
		e.log.Warn("failed to record history", zap.Error(herr))
	}
}
