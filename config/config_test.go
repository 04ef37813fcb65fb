package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// go test -v --run TestLoadConfig
func TestLoadConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	if cfg.Feed.HandshakeTimeout != 5*time.Second || cfg.Feed.ReconnectMax != 20*time.Second {
		t.Errorf("unexpected feed timeouts: %+v", cfg.Feed)
	}
	// Absent keys keep their defaults.
	if cfg.Feed.ReconnectMin != time.Second || cfg.Feed.ReconnectFactor != 1.8 || cfg.Feed.SendQueue != 64 {
		t.Errorf("feed defaults not applied: %+v", cfg.Feed)
	}
	if len(cfg.Symbols) != 2 || cfg.Symbols[1] != "R_100" {
		t.Errorf("unexpected symbols: %v", cfg.Symbols)
	}
	if cfg.Analysis.Capacity != 50 || cfg.Analysis.Precision != -1 {
		t.Errorf("unexpected analysis config: %+v", cfg.Analysis)
	}

	if len(cfg.Bots) != 2 {
		t.Fatalf("expected 2 bots, got %d", len(cfg.Bots))
	}
	even := cfg.Bots[0]
	if !even.Active || even.Threshold != 58 || even.Stake != "1" || even.CooldownTicks != 10 {
		t.Errorf("unexpected bot config: %+v", even)
	}
	if even.Barrier != nil {
		t.Errorf("absent barrier should stay unset, got %d", *even.Barrier)
	}
	if b := cfg.Bots[1]; b.MaxConsecutiveLosses != -1 || b.Barrier == nil || *b.Barrier != 5 {
		t.Errorf("unexpected bot config: %+v", cfg.Bots[1])
	}

	if !cfg.Trading.AutoTrade || cfg.Trading.MaxExposure != "25" || cfg.Trading.PayoutRate != "0.95" {
		t.Errorf("unexpected trading config: %+v", cfg.Trading)
	}
	if cfg.Dashboard.Port != 9090 || cfg.Dashboard.Host != "0.0.0.0" {
		t.Errorf("unexpected dashboard config: %+v", cfg.Dashboard)
	}
	if cfg.Log.Environment != "dev" || cfg.Log.Format != "console" {
		t.Errorf("unexpected log config: %+v", cfg.Log)
	}
	if cfg.Postgres.DBName != "digitdash" || cfg.Postgres.Port != 5432 {
		t.Errorf("postgres defaults not applied: %+v", cfg.Postgres)
	}
}

// go test -v --run TestLoadConfigInvalid
func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := "trading:\n  mode: casino\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "invalid config") {
		t.Fatalf("expected a validation error, got %v", err)
	}

	barrier := filepath.Join(t.TempDir(), "barrier.yaml")
	body = "bots:\n  - name: over_under\n    barrier: 0\n"
	if err := os.WriteFile(barrier, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(barrier); err == nil || !strings.Contains(err.Error(), "Barrier") {
		t.Errorf("expected barrier 0 to be rejected, got %v", err)
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

// go test -v --run TestPostgresDSN
func TestPostgresDSN(t *testing.T) {
	cfg := PostgresConfig{
		Host:     "db",
		Port:     5433,
		User:     "dash",
		Password: "pw",
		DBName:   "digitdash",
		SSLMode:  "disable",
		TimeZone: "UTC",
	}
	want := "host=db port=5433 user=dash password=pw dbname=digitdash sslmode=disable TimeZone=UTC"
	if got := cfg.DSN("dev"); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
}
