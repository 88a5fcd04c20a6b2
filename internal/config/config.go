package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"QuantCore/internal/backtest"
	"QuantCore/internal/model"
	"QuantCore/internal/pipeline"
)

// Job is a scheduled re-run of a request file.
type Job struct {
	Name        string `yaml:"name"`
	Cron        string `yaml:"cron"`
	RequestFile string `yaml:"request_file"`
}

// Config holds all application configuration.
type Config struct {
	Engine struct {
		InitialCapital     float64          `yaml:"initial_capital"`
		TradingDaysPerYear float64          `yaml:"trading_days_per_year"`
		RiskFreeRate       float64          `yaml:"risk_free_rate"`
		FillPolicy         model.FillPolicy `yaml:"fill_policy"`
		Cost               backtest.Cost    `yaml:"cost"`
		Workers            int              `yaml:"workers"`
		Timeout            time.Duration    `yaml:"timeout"`
	} `yaml:"engine"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Database struct {
		SQLitePath string `yaml:"sqlite_path"`
	} `yaml:"database"`
	Data struct {
		ParquetDir string `yaml:"parquet_dir"`
	} `yaml:"data"`
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`
	Schedule struct {
		Jobs []Job `yaml:"jobs"`
	} `yaml:"schedule"`
}

// Load reads config from a YAML file, then applies environment variable
// overrides and defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if len(data) > 0 {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("QUANTCORE_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("QUANTCORE_PARQUET_DIR"); v != "" {
		cfg.Data.ParquetDir = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("QUANTCORE_FILL_POLICY"); v != "" {
		cfg.Engine.FillPolicy = model.FillPolicy(v)
	}
	if v := os.Getenv("QUANTCORE_INITIAL_CAPITAL"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("QUANTCORE_INITIAL_CAPITAL: %w", err)
		}
		cfg.Engine.InitialCapital = f
	}
	if v := os.Getenv("QUANTCORE_WORKERS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("QUANTCORE_WORKERS: %w", err)
		}
		cfg.Engine.Workers = n
	}
	if v := os.Getenv("QUANTCORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("QUANTCORE_TIMEOUT: %w", err)
		}
		cfg.Engine.Timeout = d
	}
	return nil
}

func applyDefaults(cfg *Config) {
	d := pipeline.DefaultOptions()
	if cfg.Engine.InitialCapital == 0 {
		cfg.Engine.InitialCapital = d.InitialCapital
	}
	if cfg.Engine.TradingDaysPerYear == 0 {
		cfg.Engine.TradingDaysPerYear = d.TradingDaysPerYear
	}
	if cfg.Engine.FillPolicy == "" {
		cfg.Engine.FillPolicy = d.FillPolicy
	}
	if cfg.Engine.Workers == 0 {
		cfg.Engine.Workers = d.Workers
	}
	if cfg.Engine.Timeout == 0 {
		cfg.Engine.Timeout = 30 * time.Second
	}
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8080"
	}
	if cfg.Database.SQLitePath == "" {
		cfg.Database.SQLitePath = "data/quantcore.db"
	}
	if cfg.Data.ParquetDir == "" {
		cfg.Data.ParquetDir = "data/bars"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
	for i := range cfg.Schedule.Jobs {
		if cfg.Schedule.Jobs[i].Name == "" {
			cfg.Schedule.Jobs[i].Name = fmt.Sprintf("job-%d", i+1)
		}
	}
}

// Validate checks that all values are usable.
func (c *Config) Validate() error {
	if c.Engine.InitialCapital <= 0 {
		return fmt.Errorf("engine.initial_capital must be positive")
	}
	if c.Engine.TradingDaysPerYear <= 0 {
		return fmt.Errorf("engine.trading_days_per_year must be positive")
	}
	if !c.Engine.FillPolicy.Valid() {
		return fmt.Errorf("engine.fill_policy must be %q or %q", model.FillNextOpen, model.FillSameClose)
	}
	if c.Engine.Cost.Flat < 0 || c.Engine.Cost.Rate < 0 {
		return fmt.Errorf("engine.cost must not be negative")
	}
	if c.Engine.Workers < 0 {
		return fmt.Errorf("engine.workers must not be negative")
	}
	if c.Engine.Timeout < 0 {
		return fmt.Errorf("engine.timeout must not be negative")
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging.format must be json or console")
	}
	for i, j := range c.Schedule.Jobs {
		if j.Cron == "" || j.RequestFile == "" {
			return fmt.Errorf("schedule.jobs[%d] needs cron and request_file", i)
		}
	}
	return nil
}

// EngineOptions converts the engine section for pipeline.NewEngine.
func (c *Config) EngineOptions() pipeline.Options {
	return pipeline.Options{
		InitialCapital:     c.Engine.InitialCapital,
		TradingDaysPerYear: c.Engine.TradingDaysPerYear,
		RiskFreeRate:       c.Engine.RiskFreeRate,
		FillPolicy:         c.Engine.FillPolicy,
		Cost:               c.Engine.Cost,
		Workers:            c.Engine.Workers,
		Timeout:            c.Engine.Timeout,
	}
}
