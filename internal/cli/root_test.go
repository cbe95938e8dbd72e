package cli

import (
	"path/filepath"
	"testing"

	"github.com/rcliao/state-sync/internal/config"
)

func TestGetDBPathPriority(t *testing.T) {
	t.Cleanup(func() { dbPath = "" })

	t.Setenv("STATE_SYNC_DB", "/tmp/from-env.db")
	if got := getDBPath(); got != "/tmp/from-env.db" {
		t.Errorf("expected env path, got %q", got)
	}

	dbPath = "/tmp/from-flag.db"
	if got := getDBPath(); got != "/tmp/from-flag.db" {
		t.Errorf("expected flag path, got %q", got)
	}
}

func TestConfigSetDoesNotPersistEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	configPath = path
	t.Cleanup(func() { configPath = "" })
	t.Setenv("STATE_SYNC_UPSTASH_API_KEY", "from-env")

	runConfigSet(nil, []string{"provider", "upstash"})
	runConfigSet(nil, []string{"upstash.endpoint", "https://db.upstash.io"})

	cfg, _, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != config.ProviderUpstash || cfg.Upstash.Endpoint != "https://db.upstash.io" {
		t.Errorf("fields not saved: %+v", cfg)
	}
	if cfg.Upstash.APIKey != "" {
		t.Errorf("env override leaked into file: %q", cfg.Upstash.APIKey)
	}
	if cfg.Version != config.Version {
		t.Errorf("version: got %d, want %d", cfg.Version, config.Version)
	}
}
