package recorder

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Compile-time interface checks.
var (
	_ Recorder = (*SQLiteRecorder)(nil)
	_ Recorder = (*NoopRecorder)(nil)
)

// SQLiteRecorder persists ranking runs to a SQLite database.
type SQLiteRecorder struct {
	db     *sql.DB
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL lets readers query history while a run is being written.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	r := &SQLiteRecorder{db: db, logger: logger, now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ranking_runs (
			run_id         TEXT PRIMARY KEY,
			timestamp      INTEGER NOT NULL,
			source         TEXT,
			strategies     TEXT,
			total_analyzed INTEGER,
			ranked         INTEGER,
			condition_met  INTEGER,
			data_quality   REAL,
			coverage       REAL,
			top_symbol     TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON ranking_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS ranked_results (
			id              INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id          TEXT NOT NULL,
			rank            INTEGER,
			symbol          TEXT,
			composite_score REAL,
			grade           TEXT,
			condition_met   INTEGER,
			raw_values      TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_run ON ranked_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_symbol ON ranked_results(symbol)`,

		`CREATE TABLE IF NOT EXISTS symbol_failures (
			id       INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id   TEXT NOT NULL,
			symbol   TEXT,
			strategy TEXT,
			kind     TEXT,
			detail   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failures_run ON symbol_failures(run_id)`,

		`CREATE TABLE IF NOT EXISTS run_errors (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			source    TEXT,
			kind      TEXT,
			details   TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_errors_ts ON run_errors(timestamp)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return fmt.Errorf("exec %q: %w", stmtPrefix(s), err)
		}
	}
	return nil
}

// stmtPrefix shortens a statement for error messages.
func stmtPrefix(s string) string {
	const limit = 40
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}

// RecordRun stores the run header, every returned row and every failure in
// one transaction.
func (r *SQLiteRecorder) RecordRun(rec *RunRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	resp := rec.Response
	top := ""
	if len(resp.Results) > 0 {
		top = resp.Results[0].Symbol
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO ranking_runs
		(run_id, timestamp, source, strategies, total_analyzed, ranked, condition_met,
		 data_quality, coverage, top_symbol)
		VALUES (?,?,?,?,?,?,?,?,?,?)`,
		resp.RunID, resp.Reliability.CompletedAt.Unix(), rec.Source, strings.Join(rec.Strategies, ","),
		resp.TotalAnalyzed, len(resp.Results), resp.ConditionMet,
		resp.Reliability.DataQuality, resp.Reliability.Coverage, top,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, res := range resp.Results {
		raw, err := json.Marshal(res.RawValues)
		if err != nil {
			return fmt.Errorf("encode raw values: %w", err)
		}
		if _, err := tx.Exec(`INSERT INTO ranked_results
			(run_id, rank, symbol, composite_score, grade, condition_met, raw_values)
			VALUES (?,?,?,?,?,?,?)`,
			resp.RunID, res.Rank, res.Symbol, res.CompositeScore, res.Grade, res.ConditionMet, string(raw),
		); err != nil {
			return fmt.Errorf("insert result %s: %w", res.Symbol, err)
		}
	}

	for _, f := range resp.Failures {
		if _, err := tx.Exec(`INSERT INTO symbol_failures
			(run_id, symbol, strategy, kind, detail)
			VALUES (?,?,?,?,?)`,
			resp.RunID, f.Symbol, f.Strategy, string(f.Kind), f.Detail,
		); err != nil {
			return fmt.Errorf("insert failure %s: %w", f.Symbol, err)
		}
	}
	return tx.Commit()
}

func (r *SQLiteRecorder) RecordRunError(evt *RunErrorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.db.Exec(`INSERT INTO run_errors
		(timestamp, source, kind, details)
		VALUES (?,?,?,?)`,
		r.now().Unix(), evt.Source, string(evt.Kind), evt.Details,
	)
	return err
}

// RecentRuns returns the latest runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(`SELECT run_id, timestamp, source, strategies, total_analyzed, ranked,
		condition_met, data_quality, coverage, top_symbol
		FROM ranking_runs ORDER BY timestamp DESC, run_id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		var ts int64
		if err := rows.Scan(&s.RunID, &ts, &s.Source, &s.Strategies, &s.TotalAnalyzed, &s.Ranked,
			&s.ConditionMet, &s.DataQuality, &s.Coverage, &s.TopSymbol); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		s.Timestamp = time.Unix(ts, 0).UTC()
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
