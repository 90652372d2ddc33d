package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is Qakka's top-level configuration, per spec.md §6.
type Config struct {
	// MaxShardSize is the row-count threshold; a new shard is allocated
	// once a shard's counter crosses 0.9x this value.
	MaxShardSize uint64 `json:"maxShardSize" yaml:"maxShardSize"`
	// ShardAllocationAdvanceMs is the future offset applied to a newly
	// allocated shard's pivot.
	ShardAllocationAdvanceMs int64 `json:"shardAllocationAdvanceMs" yaml:"shardAllocationAdvanceMs"`
	// LeaseSeconds is how long a message may remain INFLIGHT before the
	// sweeper redelivers it.
	LeaseSeconds int `json:"leaseSeconds" yaml:"leaseSeconds"`
	// MaxRedeliveries caps redeliveries before a message is dead-lettered.
	MaxRedeliveries int `json:"maxRedeliveries" yaml:"maxRedeliveries"`
	// RefreshBatch caps rows moved DEFAULT->INFLIGHT per actor Refresh.
	RefreshBatch int `json:"refreshBatch" yaml:"refreshBatch"`
	// BufferTarget is the in-memory buffer's high-water mark.
	BufferTarget int `json:"bufferTarget" yaml:"bufferTarget"`
	// LocalRegion is this process's region tag.
	LocalRegion string `json:"localRegion" yaml:"localRegion"`
	// Peers maps a remote region to the transport endpoint that hosts it.
	Peers map[string]string `json:"peers" yaml:"peers"`
	// AllocatorInterval and SweeperInterval tune the background tick
	// loops (§4.1, §4.4); stored here in milliseconds for JSON/YAML
	// round-tripping without a custom duration codec.
	AllocatorIntervalMs int `json:"allocatorIntervalMs" yaml:"allocatorIntervalMs"`
	SweeperIntervalMs   int `json:"sweeperIntervalMs" yaml:"sweeperIntervalMs"`
	// BodyGCGraceMs is how long an orphaned body must be unreferenced
	// before the body GC job reclaims it (§7, §9 supplemented feature 1).
	BodyGCGraceMs int64 `json:"bodyGCGraceMs" yaml:"bodyGCGraceMs"`
	// BufferRefreshRate caps how many Refresh attempts per second a single
	// actor's buffer will allow once below its low watermark, so a burst of
	// ShardCheckRequest/tick messages can't hammer storage; 0 disables the
	// limiter (always allow).
	BufferRefreshRate float64 `json:"bufferRefreshRate" yaml:"bufferRefreshRate"`
	// BufferRefreshBurst is the refresh limiter's burst size.
	BufferRefreshBurst int `json:"bufferRefreshBurst" yaml:"bufferRefreshBurst"`
}

// Default returns built-in defaults.
func Default() Config {
	return Config{
		MaxShardSize:             1_000_000,
		ShardAllocationAdvanceMs: 30_000,
		LeaseSeconds:             30,
		MaxRedeliveries:          5,
		RefreshBatch:             100,
		BufferTarget:             500,
		LocalRegion:              "local",
		Peers:                    map[string]string{},
		AllocatorIntervalMs:      5_000,
		SweeperIntervalMs:        2_000,
		BodyGCGraceMs:            10 * 60 * 1000,
		BufferRefreshRate:        50,
		BufferRefreshBurst:       10,
	}
}

// Load reads configuration from a JSON or YAML file (by extension),
// overlaying it onto Default(). If path is empty, returns defaults.
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(b, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse json %s: %w", path, err)
		}
	}
	return cfg, nil
}
