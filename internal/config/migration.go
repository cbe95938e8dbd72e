package config

import "fmt"

// retiredProxyURL is the relay path shipped as the default before v2.
const retiredProxyURL = "/api/cors/"

// MigrationResult describes a configuration upgrade.
type MigrationResult struct {
	FromVersion int
	ToVersion   int
	Changes     []string
}

// Migrate upgrades cfg in place to Version. It returns nil when cfg is
// already current. Each step runs at most once because the version is bumped
// after it.
func Migrate(cfg *Config) (*MigrationResult, error) {
	if cfg.Version >= Version {
		return nil, nil
	}

	result := &MigrationResult{FromVersion: cfg.Version, ToVersion: Version}
	for cfg.Version < Version {
		changes, err := applyMigration(cfg)
		if err != nil {
			return result, fmt.Errorf("migration from v%d to v%d failed: %w", cfg.Version, cfg.Version+1, err)
		}
		result.Changes = append(result.Changes, changes...)
	}
	return result, nil
}

func applyMigration(cfg *Config) ([]string, error) {
	var changes []string
	switch cfg.Version {
	case 0:
		changes = migrateV0ToV1(cfg)
	case 1:
		changes = migrateV1ToV2(cfg)
	default:
		return nil, fmt.Errorf("unknown version %d", cfg.Version)
	}
	cfg.Version++
	return changes, nil
}

// migrateV0ToV1 gives configs written before usernames existed the default
// store key.
func migrateV0ToV1(cfg *Config) []string {
	if cfg.Upstash.Username != "" {
		return nil
	}
	cfg.Upstash.Username = DefaultStoreKey
	return []string{"set upstash.username to " + DefaultStoreKey}
}

// migrateV1ToV2 drops the retired relay default.
func migrateV1ToV2(cfg *Config) []string {
	if cfg.ProxyURL != retiredProxyURL {
		return nil
	}
	cfg.ProxyURL = ""
	return []string{"cleared retired proxy_url " + retiredProxyURL}
}
