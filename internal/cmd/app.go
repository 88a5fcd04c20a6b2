package cmd

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"QuantCore/internal/collector"
	"QuantCore/internal/config"
	"QuantCore/internal/logging"
	"QuantCore/internal/pipeline"
	"QuantCore/internal/recorder"
	"QuantCore/internal/strategy"
)

// app bundles what every command needs.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	engine *pipeline.Engine
}

func loadApp() (*app, error) {
	path := cfgFile
	if path == "" {
		path = "configs/config.yaml"
		if v := os.Getenv("CONFIG_PATH"); v != "" {
			path = v
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return nil, err
	}
	eng := pipeline.NewEngine(strategy.Default(), cfg.EngineOptions(), logger)
	return &app{cfg: cfg, logger: logger, engine: eng}, nil
}

// source resolves a --data flag value.
func (a *app) source(kind string) (collector.Source, error) {
	switch kind {
	case "", "none":
		return nil, nil
	case "parquet":
		return collector.NewParquetSource(a.cfg.Data.ParquetDir), nil
	case "mock":
		return &collector.MockSource{}, nil
	default:
		return nil, fmt.Errorf("unknown data source %q (want parquet, mock or none)", kind)
	}
}

// openRecorder falls back to a no-op recorder when SQLite is unavailable.
func (a *app) openRecorder(enabled bool) recorder.Recorder {
	if !enabled || a.cfg.Database.SQLitePath == "" {
		return recorder.NewNoopRecorder()
	}
	sr, err := recorder.NewSQLiteRecorder(a.cfg.Database.SQLitePath, a.logger)
	if err != nil {
		a.logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		return recorder.NewNoopRecorder()
	}
	return sr
}

func (a *app) close() {
	_ = a.logger.Sync()
}
