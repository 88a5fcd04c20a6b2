package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"QuantCore/internal/model"
)

func clearEnv(t *testing.T) {
	for _, k := range []string{"QUANTCORE_ADDR", "SQLITE_PATH", "QUANTCORE_PARQUET_DIR", "LOG_LEVEL",
		"QUANTCORE_FILL_POLICY", "QUANTCORE_INITIAL_CAPITAL", "QUANTCORE_WORKERS", "QUANTCORE_TIMEOUT"} {
		t.Setenv(k, "")
	}
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	yamlContent := []byte(`
engine:
  initial_capital: 50000
  fill_policy: same_close
  cost:
    flat: 1.5
    rate: 0.001
  workers: 4
  timeout: 45s
server:
  addr: "127.0.0.1:9000"
logging:
  level: debug
  format: console
schedule:
  jobs:
    - name: nightly
      cron: "0 0 22 * * 1-5"
      request_file: requests/nightly.json
`)
	path := filepath.Join(t.TempDir(), "quantcore.yaml")
	if err := os.WriteFile(path, yamlContent, 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Engine.InitialCapital != 50000 {
		t.Errorf("Engine.InitialCapital = %g, want 50000", cfg.Engine.InitialCapital)
	}
	if cfg.Engine.FillPolicy != model.FillSameClose {
		t.Errorf("Engine.FillPolicy = %q, want same_close", cfg.Engine.FillPolicy)
	}
	if cfg.Engine.Cost.Flat != 1.5 || cfg.Engine.Cost.Rate != 0.001 {
		t.Errorf("Engine.Cost = %+v", cfg.Engine.Cost)
	}
	if cfg.Engine.Timeout != 45*time.Second {
		t.Errorf("Engine.Timeout = %s, want 45s", cfg.Engine.Timeout)
	}
	if cfg.Server.Addr != "127.0.0.1:9000" {
		t.Errorf("Server.Addr = %q", cfg.Server.Addr)
	}
	if len(cfg.Schedule.Jobs) != 1 || cfg.Schedule.Jobs[0].RequestFile != "requests/nightly.json" {
		t.Errorf("Schedule.Jobs = %+v", cfg.Schedule.Jobs)
	}
	// untouched sections fall back to defaults
	if cfg.Engine.TradingDaysPerYear != 252 {
		t.Errorf("Engine.TradingDaysPerYear = %g, want 252", cfg.Engine.TradingDaysPerYear)
	}
	if cfg.Database.SQLitePath != "data/quantcore.db" {
		t.Errorf("Database.SQLitePath = %q", cfg.Database.SQLitePath)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}

	opts := cfg.EngineOptions()
	if opts.Workers != 4 || opts.Cost.Flat != 1.5 {
		t.Errorf("EngineOptions() = %+v", opts)
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Engine.FillPolicy != model.FillNextOpen || cfg.Server.Addr != ":8080" || cfg.Logging.Format != "json" {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("SQLITE_PATH", "/tmp/q.db")
	t.Setenv("QUANTCORE_INITIAL_CAPITAL", "2500")
	t.Setenv("QUANTCORE_TIMEOUT", "2m")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}
	if cfg.Database.SQLitePath != "/tmp/q.db" {
		t.Errorf("Database.SQLitePath = %q", cfg.Database.SQLitePath)
	}
	if cfg.Engine.InitialCapital != 2500 || cfg.Engine.Timeout != 2*time.Minute {
		t.Errorf("engine overrides not applied: %+v", cfg.Engine)
	}

	t.Setenv("QUANTCORE_WORKERS", "many")
	if _, err := Load(""); err == nil {
		t.Error("expected error for non-numeric QUANTCORE_WORKERS")
	}
}

func TestValidate(t *testing.T) {
	clearEnv(t)
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"fill policy", func(c *Config) { c.Engine.FillPolicy = "vwap" }},
		{"capital", func(c *Config) { c.Engine.InitialCapital = -1 }},
		{"cost", func(c *Config) { c.Engine.Cost.Rate = -0.1 }},
		{"log format", func(c *Config) { c.Logging.Format = "xml" }},
		{"job", func(c *Config) { c.Schedule.Jobs = []Job{{Name: "x"}} }},
	}
	for _, tt := range tests {
		cfg, _ := Load("")
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: expected validation error", tt.name)
		}
	}
}
