// Package config handles the persisted sync configuration: provider
// selection, credentials, proxy settings and force-sync behavior.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Version is the current configuration schema version.
const Version = 2

// DefaultStoreKey is the remote key used when no username is configured.
const DefaultStoreKey = "chatgpt-next-web"

// Provider selects the remote backend.
type Provider string

const (
	ProviderWebDAV  Provider = "webdav"
	ProviderUpstash Provider = "upstash"
)

// ForceDirection decides which side replaces the other under force sync.
type ForceDirection string

const (
	ForceRemote ForceDirection = "remote"
	ForceLocal  ForceDirection = "local"
)

// WebDAVConfig holds credentials for a WebDAV file server.
type WebDAVConfig struct {
	Endpoint string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Username string `json:"username" yaml:"username" toml:"username"`
	Password string `json:"password" yaml:"password" toml:"password"`
}

// UpstashConfig holds credentials for the chunked KV backend.
type UpstashConfig struct {
	ForceSync bool   `json:"force_sync" yaml:"force_sync" toml:"force_sync"`
	Endpoint  string `json:"endpoint" yaml:"endpoint" toml:"endpoint"`
	Username  string `json:"username" yaml:"username" toml:"username"`
	APIKey    string `json:"api_key" yaml:"api_key" toml:"api_key"`
}

// Config is the sync configuration.
type Config struct {
	Version        int            `json:"version" yaml:"version" toml:"version"`
	Provider       Provider       `json:"provider" yaml:"provider" toml:"provider"`
	UseProxy       bool           `json:"use_proxy" yaml:"use_proxy" toml:"use_proxy"`
	ProxyURL       string         `json:"proxy_url" yaml:"proxy_url" toml:"proxy_url"`
	ForceDirection ForceDirection `json:"force_direction" yaml:"force_direction" toml:"force_direction"`
	WebDAV         WebDAVConfig   `json:"webdav" yaml:"webdav" toml:"webdav"`
	Upstash        UpstashConfig  `json:"upstash" yaml:"upstash" toml:"upstash"`
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	return &Config{
		Version:        Version,
		Provider:       ProviderWebDAV,
		ForceDirection: ForceRemote,
		Upstash: UpstashConfig{
			Username: DefaultStoreKey,
		},
	}
}

// DefaultPath returns the config path.
// Priority: $STATE_SYNC_CONFIG > ~/.config/state-sync/config.yaml.
func DefaultPath() (string, error) {
	if v := os.Getenv("STATE_SYNC_CONFIG"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".config", "state-sync", "config.yaml"), nil
}

// ApplyEnvOverrides applies STATE_SYNC_* environment variables on top of
// the file values.
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("STATE_SYNC_PROVIDER"); v != "" {
		c.Provider = Provider(strings.ToLower(v))
	}
	if v := os.Getenv("STATE_SYNC_UPSTASH_ENDPOINT"); v != "" {
		c.Upstash.Endpoint = v
	}
	if v := os.Getenv("STATE_SYNC_UPSTASH_API_KEY"); v != "" {
		c.Upstash.APIKey = v
	}
	if b := parseBoolEnv("STATE_SYNC_FORCE"); b != nil {
		c.Upstash.ForceSync = *b
	}
}

// Validate checks enumerated fields.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderWebDAV, ProviderUpstash:
	default:
		return fmt.Errorf("unknown provider %q (use webdav or upstash)", c.Provider)
	}
	switch c.ForceDirection {
	case ForceRemote, ForceLocal:
	case "":
		c.ForceDirection = ForceRemote
	default:
		return fmt.Errorf("unknown force_direction %q (use remote or local)", c.ForceDirection)
	}
	return nil
}

// StoreKey returns the remote key for the chunked KV backend.
func (c *Config) StoreKey() string {
	if c.Upstash.Username == "" {
		return DefaultStoreKey
	}
	return c.Upstash.Username
}

// ForceSync reports whether sync should replace instead of merge.
func (c *Config) ForceSync() bool {
	return c.Upstash.ForceSync
}

// CloudSyncReady reports whether every credential of the selected provider
// is filled in.
func (c *Config) CloudSyncReady() bool {
	switch c.Provider {
	case ProviderWebDAV:
		return allSet(c.WebDAV.Endpoint, c.WebDAV.Username, c.WebDAV.Password)
	case ProviderUpstash:
		return allSet(c.Upstash.Endpoint, c.Upstash.Username, c.Upstash.APIKey)
	}
	return false
}

func allSet(values ...string) bool {
	for _, v := range values {
		if v == "" {
			return false
		}
	}
	return true
}

// Set updates a single field addressed by its dotted key, e.g.
// "upstash.api_key".
func (c *Config) Set(key, value string) error {
	switch key {
	case "provider":
		c.Provider = Provider(value)
	case "use_proxy":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.UseProxy = b
	case "proxy_url":
		c.ProxyURL = value
	case "force_direction":
		c.ForceDirection = ForceDirection(value)
	case "webdav.endpoint":
		c.WebDAV.Endpoint = value
	case "webdav.username":
		c.WebDAV.Username = value
	case "webdav.password":
		c.WebDAV.Password = value
	case "upstash.force_sync":
		b, err := parseBool(value)
		if err != nil {
			return err
		}
		c.Upstash.ForceSync = b
	case "upstash.endpoint":
		c.Upstash.Endpoint = value
	case "upstash.username":
		c.Upstash.Username = value
	case "upstash.api_key":
		c.Upstash.APIKey = value
	default:
		return fmt.Errorf("unknown config key %q", key)
	}
	return c.Validate()
}

// Redacted returns a copy with secrets masked, for display.
func (c *Config) Redacted() *Config {
	out := *c
	if out.WebDAV.Password != "" {
		out.WebDAV.Password = "***"
	}
	if out.Upstash.APIKey != "" {
		out.Upstash.APIKey = "***"
	}
	return &out
}

func parseBool(v string) (bool, error) {
	if b := parseBoolValue(v); b != nil {
		return *b, nil
	}
	return false, fmt.Errorf("invalid boolean %q", v)
}

// parseBoolEnv returns nil if env not set, pointer to bool if set.
func parseBoolEnv(envKey string) *bool {
	return parseBoolValue(os.Getenv(envKey))
}

func parseBoolValue(v string) *bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes":
		b := true
		return &b
	case "0", "false", "no":
		b := false
		return &b
	}
	return nil
}
