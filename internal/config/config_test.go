package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultMatchesSpecDefaults(t *testing.T) {
	cfg := Default()

	if cfg.MaxMemoryContentBytes != 64*1024 {
		t.Fatalf("MaxMemoryContentBytes = %d, want 64KiB", cfg.MaxMemoryContentBytes)
	}
	if cfg.BM25K1 != 1.2 || cfg.BM25B != 0.75 {
		t.Fatalf("BM25 params = (%v, %v), want (1.2, 0.75)", cfg.BM25K1, cfg.BM25B)
	}
	if cfg.DedupThresholdIngest != 0.92 || cfg.DedupThresholdJanitor != 0.85 {
		t.Fatalf("dedup thresholds = (%v, %v), want (0.92, 0.85)", cfg.DedupThresholdIngest, cfg.DedupThresholdJanitor)
	}
	if cfg.Capacity.Agents != 10_000 || cfg.Capacity.Sessions != 50_000 {
		t.Fatalf("agent/session caps = (%d, %d), want (10000, 50000)", cfg.Capacity.Agents, cfg.Capacity.Sessions)
	}
	if cfg.TokenBudget.Total() != 8192 {
		t.Fatalf("token budget total = %d, want 8192", cfg.TokenBudget.Total())
	}
}

func TestLoadAbsentPathReturnsDefault(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxMemoriesPerUser != Default().MaxMemoriesPerUser {
		t.Fatal("expected default config for an absent path")
	}
}

func TestLoadOverridesOnTopOfDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := "max_memories_per_user: 500\nrerank_enabled: true\n"
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.MaxMemoriesPerUser != 500 {
		t.Fatalf("MaxMemoriesPerUser = %d, want 500", cfg.MaxMemoriesPerUser)
	}
	if !cfg.RerankEnabled {
		t.Fatal("expected rerank_enabled override to apply")
	}
	if cfg.BM25K1 != 1.2 {
		t.Fatalf("expected unrelated default BM25K1 to survive, got %v", cfg.BM25K1)
	}
}

func TestLoadMalformedYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("max_memories_per_user: [unterminated"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected malformed YAML to fail")
	}
}
