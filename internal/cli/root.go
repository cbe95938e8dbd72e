// Package cli implements the state-sync CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rcliao/state-sync/internal/config"
	"github.com/rcliao/state-sync/internal/logging"
	"github.com/rcliao/state-sync/internal/remote"
	"github.com/rcliao/state-sync/internal/snapshot"
	"github.com/rcliao/state-sync/internal/store"
	"github.com/rcliao/state-sync/internal/syncer"
)

var (
	dbPath     string
	configPath string
	formatFlag string
	verbose    bool
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "state-sync",
	Short: "Sync chat app state with a remote backend",
	Long: "Keeps the chat, prompt, mask, config and access stores in a local SQLite file and " +
		"reconciles them with an Upstash or WebDAV backend. Backups can be imported and exported as JSON.",
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $STATE_SYNC_DB or ~/.state-sync/state.db)")
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config path (default: $STATE_SYNC_CONFIG or ~/.config/state-sync/config.yaml)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging to stderr")
}

func getDBPath() string {
	if dbPath != "" {
		return dbPath
	}
	if env := os.Getenv("STATE_SYNC_DB"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".state-sync", "state.db")
}

func getConfigPath() string {
	if configPath != "" {
		return configPath
	}
	path, err := config.DefaultPath()
	if err != nil {
		exitErr("config path", err)
	}
	return path
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(getDBPath())
}

func newLogger() *zap.Logger {
	log, err := logging.New(verbose)
	if err != nil {
		exitErr("create logger", err)
	}
	return log
}

func loadConfig(log *zap.Logger) *config.Config {
	cfg, err := config.NewLoader(getConfigPath(), log).Load()
	if err != nil {
		exitErr("load config", err)
	}
	return cfg
}

// newEngine wires an engine for cfg against the local store s.
func newEngine(s *store.SQLiteStore, cfg *config.Config, log *zap.Logger, onReload func()) *syncer.Engine {
	engine, err := buildEngine(s, cfg, log, onReload)
	if err != nil {
		exitErr("create remote client", err)
	}
	return engine
}

func buildEngine(s *store.SQLiteStore, cfg *config.Config, log *zap.Logger, onReload func()) (*syncer.Engine, error) {
	client, err := remote.Open(cfg, log)
	if err != nil {
		return nil, err
	}
	return syncer.New(syncer.Options{
		Handles:        snapshot.FromStore(s),
		Store:          s,
		Client:         client,
		Provider:       cfg.Provider,
		Force:          cfg.ForceSync(),
		ForceDirection: cfg.ForceDirection,
		Logger:         log,
		OnReload:       onReload,
	})
}

func textFormat() bool {
	return formatFlag == "text"
}

func printJSON(v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
}

func exitErr(msg string, err error) {
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
