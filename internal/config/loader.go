package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Load reads the config at path via LoadFile and applies environment
// overrides on top. Overrides are never written back.
func Load(path string) (*Config, *MigrationResult, error) {
	cfg, result, err := LoadFile(path)
	if err != nil {
		return nil, nil, err
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, result, nil
}

// LoadFile reads the config at path, upgrading and re-saving it when its
// version is behind. A missing file yields the defaults.
func LoadFile(path string) (*Config, *MigrationResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, nil, fmt.Errorf("read config: %w", err)
		}
		return Default(), nil, nil
	}

	cfg := Default()
	// A file without a version predates versioning and gets every migration.
	cfg.Version = 0
	if err := decode(path, data, cfg); err != nil {
		return nil, nil, err
	}

	result, err := Migrate(cfg)
	if err != nil {
		return nil, nil, err
	}
	if result != nil {
		if err := Save(path, cfg); err != nil {
			return nil, nil, fmt.Errorf("save migrated config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, result, nil
}

// Save writes cfg to path in the format implied by its extension, using a
// temp file and rename.
func Save(path string, cfg *Config) error {
	data, err := encode(path, cfg)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}

func decode(path string, data []byte, cfg *Config) error {
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("decode YAML: %w", err)
		}
	}
	return nil
}

func encode(path string, cfg *Config) ([]byte, error) {
	switch filepath.Ext(path) {
	case ".toml":
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
			return nil, fmt.Errorf("encode TOML: %w", err)
		}
		return buf.Bytes(), nil
	case ".json":
		return json.MarshalIndent(cfg, "", "  ")
	default:
		return yaml.Marshal(cfg)
	}
}

// Loader keeps the current config and reloads it when the file changes.
type Loader struct {
	path string
	log  *zap.Logger

	mu  sync.RWMutex
	cfg *Config
}

// NewLoader creates a loader for path.
func NewLoader(path string, log *zap.Logger) *Loader {
	if log == nil {
		log = zap.NewNop()
	}
	return &Loader{path: path, log: log}
}

// Load reads the file and stores the result as the current config.
func (l *Loader) Load() (*Config, error) {
	cfg, result, err := Load(l.path)
	if err != nil {
		return nil, err
	}
	if result != nil {
		l.log.Info("config migrated",
			zap.Int("from", result.FromVersion),
			zap.Int("to", result.ToVersion),
			zap.Strings("changes", result.Changes))
	}

	l.mu.Lock()
	l.cfg = cfg
	l.mu.Unlock()
	return cfg, nil
}

// Config returns the most recently loaded config.
func (l *Loader) Config() *Config {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.cfg
}

// Watch reloads the config whenever the file is written or replaced and
// passes the new value to onChange. Invalid edits are logged and skipped.
// The watcher stops when ctx is done.
func (l *Loader) Watch(ctx context.Context, onChange func(*Config)) error {
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	// Watch the directory: editors often replace the file via rename.
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target := filepath.Clean(l.path)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				cfg, err := l.Load()
				if err != nil {
					l.log.Warn("config reload failed", zap.String("path", l.path), zap.Error(err))
					continue
				}
				l.log.Debug("config reloaded", zap.String("path", l.path))
				if onChange != nil {
					onChange(cfg)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				l.log.Warn("config watcher error", zap.Error(err))
			}
		}
	}()
	return nil
}
