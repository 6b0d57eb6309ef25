// Package config loads a DataStoreConfig from a TOML file, with an optional
// .env overlay for deployment-specific overrides (shared memory directory,
// schema hash) the way the teacher's exchange config is overlaid by
// environment variables before being parsed.
package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/xrpa-io/xrpa-go/xrpatypes"
)

// DataStoreConfig describes one named dataset's transport and reconciler
// tuning: the shared-memory region it lives in, the schema it expects, and
// how aggressively to buffer outbound messages and retire stale ones.
type DataStoreConfig struct {
	// Name identifies this dataset; it is combined with SchemaHash to derive
	// the backing shared-memory region's file name.
	Name string `toml:"name"`

	// ShmDir is the directory holding the region's backing file. Overridable
	// by XRPA_SHM_DIR.
	ShmDir string `toml:"shm_dir"`

	// SchemaHashHex is the hex-encoded 32-byte schema hash a reader checks
	// against the region it opens. Overridable by XRPA_SCHEMA_HASH.
	SchemaHashHex string `toml:"schema_hash"`

	// ChangelogByteCount sizes the ring of change events the region holds.
	ChangelogByteCount int32 `toml:"changelog_byte_count"`

	// MessageArenaBytes bounds outbound message payload buffered between
	// outbound ticks.
	MessageArenaBytes int32 `toml:"message_arena_bytes"`

	// MessageLifetimeMs caps how old a message can be before it is dropped
	// instead of delivered. 0 means use the reconciler's default.
	MessageLifetimeMs int64 `toml:"message_lifetime_ms"`

	// TickRateHz is the fixed rate the runner loop ticks this dataset's
	// reconciler at.
	TickRateHz int `toml:"tick_rate_hz"`

	// HeartbeatIntervalMs is how often a transport stream emits a heartbeat
	// while otherwise idle, so a peer can detect a hung writer.
	HeartbeatIntervalMs int64 `toml:"heartbeat_interval_ms"`
}

// TransportConfig derives the xrpatypes.TransportConfig this dataset's
// streams are opened with.
func (c DataStoreConfig) TransportConfig() (xrpatypes.TransportConfig, error) {
	raw, err := hex.DecodeString(c.SchemaHashHex)
	if err != nil {
		return xrpatypes.TransportConfig{}, fmt.Errorf("config: invalid schema_hash for dataset %q: %w", c.Name, err)
	}
	if len(raw) != 32 {
		return xrpatypes.TransportConfig{}, fmt.Errorf("config: schema_hash for dataset %q must be 32 bytes, got %d", c.Name, len(raw))
	}
	return xrpatypes.TransportConfig{
		SchemaHash:         xrpatypes.ReadHashValue(raw),
		ChangelogByteCount: c.ChangelogByteCount,
	}, nil
}

// MessageLifetime returns MessageLifetimeMs as a time.Duration, or 0 if
// unset, leaving the reconciler's own default in effect.
func (c DataStoreConfig) MessageLifetime() time.Duration {
	if c.MessageLifetimeMs <= 0 {
		return 0
	}
	return time.Duration(c.MessageLifetimeMs) * time.Millisecond
}

// HeartbeatInterval returns HeartbeatIntervalMs as a time.Duration.
func (c DataStoreConfig) HeartbeatInterval() time.Duration {
	if c.HeartbeatIntervalMs <= 0 {
		return 0
	}
	return time.Duration(c.HeartbeatIntervalMs) * time.Millisecond
}

// Config is the top-level file shape: one or more named datasets, each
// reconciled independently.
type Config struct {
	DataStores map[string]DataStoreConfig `toml:"datastores"`
}

// Load reads and parses a DataStoreConfig TOML file at path. If envPath
// names an existing .env file, it is loaded first (without overwriting
// already-set process environment variables) so CI or container deployments
// can override individual fields without editing the TOML itself.
//
// Recognized overrides, applied per dataset after parsing:
//   - XRPA_SHM_DIR overrides every dataset's ShmDir.
//   - XRPA_SCHEMA_HASH overrides every dataset's SchemaHashHex.
func Load(path, envPath string) (*Config, error) {
	if envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			if err := godotenv.Load(envPath); err != nil {
				return nil, fmt.Errorf("config: loading %s: %w", envPath, err)
			}
		}
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var c Config
	if err := toml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	shmDir := os.Getenv("XRPA_SHM_DIR")
	schemaHash := os.Getenv("XRPA_SCHEMA_HASH")
	for name, ds := range c.DataStores {
		if shmDir != "" {
			ds.ShmDir = shmDir
		}
		if schemaHash != "" {
			ds.SchemaHashHex = schemaHash
		}
		c.DataStores[name] = ds
	}

	return &c, nil
}
