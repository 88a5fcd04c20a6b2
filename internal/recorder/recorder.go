package recorder

import (
	"time"

	"QuantCore/internal/model"
)

// RunRecord holds everything stored for one successful ranking run.
type RunRecord struct {
	Source     string // "http", "cli", "schedule:<job>", "watch"
	Strategies []string
	Response   *model.Response
}

// RunErrorEvent records a request that failed as a whole.
type RunErrorEvent struct {
	Source  string
	Kind    model.Kind
	Details string
}

// RunSummary is one row of the run history.
type RunSummary struct {
	RunID         string
	Timestamp     time.Time
	Source        string
	Strategies    string
	TotalAnalyzed int
	Ranked        int
	ConditionMet  int
	DataQuality   float64
	Coverage      float64
	TopSymbol     string
}

// Recorder persists ranking history for later analysis.
type Recorder interface {
	RecordRun(rec *RunRecord) error
	RecordRunError(evt *RunErrorEvent) error
	RecentRuns(limit int) ([]RunSummary, error)
	Close() error
}
