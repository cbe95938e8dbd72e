package cli

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/state-sync/internal/config"
	"github.com/rcliao/state-sync/internal/store"
	"github.com/rcliao/state-sync/internal/syncer"
)

func init() {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Sync periodically until interrupted",
		Long: "Run a sync cycle now and then on every interval tick. The config file is watched and " +
			"edits take effect from the next cycle. Failed cycles are logged and retried on the next tick.",
		Run: runWatch,
	}

	cmd.Flags().Duration("interval", 5*time.Minute, "Time between sync cycles")

	RootCmd.AddCommand(cmd)
}

var errInvalidInterval = errors.New("interval must be positive")

// watcher owns the engine used by the watch loop and swaps it when the
// config changes.
type watcher struct {
	store *store.SQLiteStore
	log   *zap.Logger

	mu     sync.Mutex
	cfg    *config.Config
	engine *syncer.Engine
}

func (w *watcher) apply(cfg *config.Config) error {
	engine, err := buildEngine(w.store, cfg, w.log, nil)
	if err != nil {
		return err
	}
	w.mu.Lock()
	w.cfg = cfg
	w.engine = engine
	w.mu.Unlock()
	return nil
}

func (w *watcher) cycle(ctx context.Context) {
	w.mu.Lock()
	cfg, engine := w.cfg, w.engine
	w.mu.Unlock()

	if !cfg.CloudSyncReady() {
		w.log.Warn("credentials incomplete, skipping cycle", zap.String("provider", string(cfg.Provider)))
		return
	}
	// The engine logs the outcome of every cycle.
	engine.Sync(ctx)
}

func runWatch(cmd *cobra.Command, args []string) {
	interval, _ := cmd.Flags().GetDuration("interval")
	if interval <= 0 {
		exitErr("watch", errInvalidInterval)
	}

	log := newLogger()
	defer log.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	loader := config.NewLoader(getConfigPath(), log)
	cfg, err := loader.Load()
	if err != nil {
		exitErr("load config", err)
	}

	w := &watcher{store: s, log: log}
	if err := w.apply(cfg); err != nil {
		exitErr("create remote client", err)
	}

	err = loader.Watch(ctx, func(cfg *config.Config) {
		if err := w.apply(cfg); err != nil {
			log.Warn("keeping previous config", zap.Error(err))
			return
		}
		log.Info("config reloaded", zap.String("provider", string(cfg.Provider)))
	})
	if err != nil {
		exitErr("watch config", err)
	}

	log.Info("watching", zap.Duration("interval", interval))
	w.cycle(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Info("stopping")
			return
		case <-ticker.C:
			w.cycle(ctx)
		}
	}
}
