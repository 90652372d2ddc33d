package config

import (
	"os"
	"strconv"
	"strings"
)

// FromEnv overlays QAKKA_* environment variables onto cfg, keeping the
// teacher's environment-overlay pattern (FLO_* in the teacher, QAKKA_*
// here).
func FromEnv(cfg *Config) {
	if v := os.Getenv("QAKKA_MAX_SHARD_SIZE"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.MaxShardSize = n
		}
	}
	if v := os.Getenv("QAKKA_SHARD_ALLOCATION_ADVANCE_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.ShardAllocationAdvanceMs = n
		}
	}
	if v := os.Getenv("QAKKA_LEASE_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LeaseSeconds = n
		}
	}
	if v := os.Getenv("QAKKA_MAX_REDELIVERIES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxRedeliveries = n
		}
	}
	if v := os.Getenv("QAKKA_REFRESH_BATCH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.RefreshBatch = n
		}
	}
	if v := os.Getenv("QAKKA_BUFFER_TARGET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BufferTarget = n
		}
	}
	if v := os.Getenv("QAKKA_LOCAL_REGION"); v != "" {
		cfg.LocalRegion = v
	}
	if v := os.Getenv("QAKKA_PEERS"); v != "" {
		cfg.Peers = parsePeers(v)
	}
	if v := os.Getenv("QAKKA_ALLOCATOR_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AllocatorIntervalMs = n
		}
	}
	if v := os.Getenv("QAKKA_SWEEPER_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SweeperIntervalMs = n
		}
	}
	if v := os.Getenv("QAKKA_BODY_GC_GRACE_MS"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.BodyGCGraceMs = n
		}
	}
	if v := os.Getenv("QAKKA_BUFFER_REFRESH_RATE"); v != "" {
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.BufferRefreshRate = n
		}
	}
	if v := os.Getenv("QAKKA_BUFFER_REFRESH_BURST"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.BufferRefreshBurst = n
		}
	}
}

// parsePeers parses "region=addr,region2=addr2" into a map.
func parsePeers(v string) map[string]string {
	out := map[string]string{}
	for _, pair := range strings.Split(v, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		out[strings.TrimSpace(kv[0])] = strings.TrimSpace(kv[1])
	}
	return out
}
