package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.MaxShardSize != 1_000_000 {
		t.Fatalf("maxShardSize default")
	}
	if cfg.LeaseSeconds != 30 {
		t.Fatalf("leaseSeconds default")
	}
	if cfg.LocalRegion != "local" {
		t.Fatalf("localRegion default")
	}
}

func TestLoadJSON(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "qakka.json")
	data := []byte(`{"maxShardSize":500,"leaseSeconds":60,"localRegion":"us-east","peers":{"eu-west":"https://eu.example.com"}}`)
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxShardSize != 500 {
		t.Fatalf("maxShardSize = %d, want 500", cfg.MaxShardSize)
	}
	if cfg.LeaseSeconds != 60 {
		t.Fatalf("leaseSeconds = %d, want 60", cfg.LeaseSeconds)
	}
	if cfg.LocalRegion != "us-east" {
		t.Fatalf("localRegion = %q", cfg.LocalRegion)
	}
	if cfg.Peers["eu-west"] != "https://eu.example.com" {
		t.Fatalf("peers = %v", cfg.Peers)
	}
	// Unset fields keep Default()'s value, since Load overlays onto it.
	if cfg.RefreshBatch != 100 {
		t.Fatalf("refreshBatch should keep default, got %d", cfg.RefreshBatch)
	}
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "qakka.yaml")
	data := []byte("maxShardSize: 750\nleaseSeconds: 45\nlocalRegion: eu-west\n")
	if err := os.WriteFile(file, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	cfg, err := Load(file)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.MaxShardSize != 750 {
		t.Fatalf("maxShardSize = %d, want 750", cfg.MaxShardSize)
	}
	if cfg.LeaseSeconds != 45 {
		t.Fatalf("leaseSeconds = %d, want 45", cfg.LeaseSeconds)
	}
	if cfg.LocalRegion != "eu-west" {
		t.Fatalf("localRegion = %q", cfg.LocalRegion)
	}
}

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := Default()
	if cfg.MaxShardSize != want.MaxShardSize || cfg.LeaseSeconds != want.LeaseSeconds || cfg.LocalRegion != want.LocalRegion {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestFromEnv(t *testing.T) {
	cfg := Default()
	os.Setenv("QAKKA_LEASE_SECONDS", "90")
	os.Setenv("QAKKA_LOCAL_REGION", "ap-south")
	os.Setenv("QAKKA_PEERS", "us-east=https://a,eu-west=https://b")
	t.Cleanup(func() {
		os.Unsetenv("QAKKA_LEASE_SECONDS")
		os.Unsetenv("QAKKA_LOCAL_REGION")
		os.Unsetenv("QAKKA_PEERS")
	})
	FromEnv(&cfg)
	if cfg.LeaseSeconds != 90 {
		t.Fatalf("env override leaseSeconds")
	}
	if cfg.LocalRegion != "ap-south" {
		t.Fatalf("env override localRegion")
	}
	if cfg.Peers["us-east"] != "https://a" || cfg.Peers["eu-west"] != "https://b" {
		t.Fatalf("env override peers: %v", cfg.Peers)
	}
}
