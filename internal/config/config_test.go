package config

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, result, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if result != nil {
		t.Errorf("expected no migration for missing file, got %+v", result)
	}
	if cfg.Version != Version {
		t.Errorf("version: got %d, want %d", cfg.Version, Version)
	}
	if cfg.Provider != ProviderWebDAV {
		t.Errorf("provider: got %q, want webdav", cfg.Provider)
	}
	if cfg.StoreKey() != DefaultStoreKey {
		t.Errorf("store key: got %q, want %q", cfg.StoreKey(), DefaultStoreKey)
	}
}

func TestMigrateUnversionedUsername(t *testing.T) {
	path := writeFile(t, "config.yaml", "provider: upstash\nupstash:\n  username: \"\"\n  endpoint: https://kv.example\n")

	cfg, result, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if result == nil || result.FromVersion != 0 || result.ToVersion != Version {
		t.Fatalf("unexpected migration result: %+v", result)
	}
	if cfg.Upstash.Username != DefaultStoreKey {
		t.Errorf("username: got %q, want %q", cfg.Upstash.Username, DefaultStoreKey)
	}

	// The upgrade is persisted, so a second load runs no migration.
	_, again, err := Load(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if again != nil {
		t.Errorf("migration ran twice: %+v", again)
	}
}

func TestMigrateKeepsExistingUsername(t *testing.T) {
	cfg := &Config{Version: 0, Provider: ProviderUpstash, Upstash: UpstashConfig{Username: "alice"}}
	if _, err := Migrate(cfg); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if cfg.Upstash.Username != "alice" {
		t.Errorf("username overwritten: %q", cfg.Upstash.Username)
	}
}

func TestMigrateClearsRetiredProxyURL(t *testing.T) {
	cfg := &Config{Version: 1, Provider: ProviderWebDAV, ProxyURL: "/api/cors/"}
	result, err := Migrate(cfg)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if cfg.ProxyURL != "" {
		t.Errorf("proxy_url: got %q, want empty", cfg.ProxyURL)
	}
	if len(result.Changes) != 1 {
		t.Errorf("changes: got %v", result.Changes)
	}

	custom := &Config{Version: 1, ProxyURL: "https://relay.example/"}
	Migrate(custom)
	if custom.ProxyURL != "https://relay.example/" {
		t.Errorf("custom proxy cleared: %q", custom.ProxyURL)
	}
}

func TestMigrateCurrentIsNoop(t *testing.T) {
	cfg := Default()
	cfg.ProxyURL = "/api/cors/"
	result, err := Migrate(cfg)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	if result != nil {
		t.Errorf("expected nil result, got %+v", result)
	}
	if cfg.ProxyURL != "/api/cors/" {
		t.Errorf("current config modified: %q", cfg.ProxyURL)
	}
}

func TestLoadTOML(t *testing.T) {
	path := writeFile(t, "config.toml", `
version = 2
provider = "upstash"
force_direction = "local"

[upstash]
endpoint = "https://kv.example"
username = "bob"
api_key = "secret"
force_sync = true
`)
	cfg, _, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != ProviderUpstash || cfg.ForceDirection != ForceLocal {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if !cfg.ForceSync() || cfg.StoreKey() != "bob" {
		t.Errorf("upstash block not decoded: %+v", cfg.Upstash)
	}
	if !cfg.CloudSyncReady() {
		t.Error("expected cloud sync ready")
	}
}

func TestSaveRoundTripFormats(t *testing.T) {
	for _, ext := range []string{".yaml", ".toml", ".json"} {
		t.Run(ext, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config"+ext)
			cfg := Default()
			cfg.Provider = ProviderUpstash
			cfg.Upstash.Endpoint = "https://kv.example"
			if err := Save(path, cfg); err != nil {
				t.Fatalf("save: %v", err)
			}
			got, result, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			if result != nil {
				t.Errorf("saved config should be current, got migration %+v", result)
			}
			if got.Provider != ProviderUpstash || got.Upstash.Endpoint != "https://kv.example" {
				t.Errorf("round trip mismatch: %+v", got)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("STATE_SYNC_PROVIDER", "UPSTASH")
	t.Setenv("STATE_SYNC_UPSTASH_API_KEY", "from-env")
	t.Setenv("STATE_SYNC_FORCE", "true")

	cfg, _, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Provider != ProviderUpstash {
		t.Errorf("provider: got %q", cfg.Provider)
	}
	if cfg.Upstash.APIKey != "from-env" || !cfg.Upstash.ForceSync {
		t.Errorf("env not applied: %+v", cfg.Upstash)
	}
}

func TestLoadFileIgnoresEnv(t *testing.T) {
	t.Setenv("STATE_SYNC_UPSTASH_API_KEY", "from-env")
	path := writeFile(t, "config.yaml", "version: 2\nprovider: upstash\nupstash:\n  api_key: from-file\n")

	cfg, _, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load file: %v", err)
	}
	if cfg.Upstash.APIKey != "from-file" {
		t.Errorf("api key: got %q, want from-file", cfg.Upstash.APIKey)
	}
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	path := writeFile(t, "config.yaml", "version: 2\nprovider: ftp\n")
	if _, _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unknown provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}

func TestCloudSyncReady(t *testing.T) {
	cfg := Default()
	if cfg.CloudSyncReady() {
		t.Error("empty webdav config should not be ready")
	}
	cfg.WebDAV = WebDAVConfig{Endpoint: "https://dav.example", Username: "u", Password: "p"}
	if !cfg.CloudSyncReady() {
		t.Error("filled webdav config should be ready")
	}
}

func TestSet(t *testing.T) {
	cfg := Default()
	if err := cfg.Set("upstash.api_key", "k"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := cfg.Set("use_proxy", "yes"); err != nil {
		t.Fatalf("set bool: %v", err)
	}
	if cfg.Upstash.APIKey != "k" || !cfg.UseProxy {
		t.Errorf("set not applied: %+v", cfg)
	}
	if err := cfg.Set("nope", "x"); err == nil {
		t.Error("expected unknown key error")
	}
	if err := cfg.Set("provider", "ftp"); err == nil {
		t.Error("expected validation error")
	}
	if cfg.Redacted().Upstash.APIKey != "***" {
		t.Error("api key not redacted")
	}
}

func TestLoaderWatchReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := Save(path, Default()); err != nil {
		t.Fatalf("save: %v", err)
	}

	l := NewLoader(path, nil)
	if _, err := l.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changed := make(chan *Config, 4)
	if err := l.Watch(ctx, func(c *Config) { changed <- c }); err != nil {
		t.Fatalf("watch: %v", err)
	}

	updated := Default()
	updated.Provider = ProviderUpstash
	if err := Save(path, updated); err != nil {
		t.Fatalf("save updated: %v", err)
	}

	select {
	case c := <-changed:
		if c.Provider != ProviderUpstash {
			t.Errorf("reloaded provider: got %q", c.Provider)
		}
		if l.Config().Provider != ProviderUpstash {
			t.Errorf("loader config not updated")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for reload")
	}
}
