package scheduler

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"QuantCore/internal/collector"
	"QuantCore/internal/config"
	"QuantCore/internal/model"
	"QuantCore/internal/recorder"
	"QuantCore/internal/report"
)

// Analyzer runs a ranking request.
type Analyzer interface {
	Analyze(ctx context.Context, req *model.Request) (*model.Response, error)
}

// Scheduler re-runs request files on cron schedules and records the results.
// RunFile is also the entry point for one-off and file-triggered runs.
type Scheduler struct {
	Cron     *cron.Cron
	Engine   Analyzer
	Source   collector.Source
	Recorder recorder.Recorder
	Logger   *zap.Logger
	Ctx      context.Context
	// Out receives the text report of each run when set.
	Out      io.Writer

	mu   sync.Mutex
	jobs map[string]config.Job
}

// NewScheduler creates a new Scheduler. src may be nil when request files
// carry their own market data.
func NewScheduler(ctx context.Context, eng Analyzer, src collector.Source, rec recorder.Recorder, logger *zap.Logger) *Scheduler {
	if rec == nil {
		rec = recorder.NewNoopRecorder()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		Cron:     cron.New(cron.WithSeconds()),
		Engine:   eng,
		Source:   src,
		Recorder: rec,
		Logger:   logger,
		Ctx:      ctx,
		jobs:     make(map[string]config.Job),
	}
}

// RegisterAll registers one cron entry per job.
func (s *Scheduler) RegisterAll(jobs []config.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, j := range jobs {
		if j.Name == "" {
			j.Name = fmt.Sprintf("job-%d", i+1)
		}
		if _, dup := s.jobs[j.Name]; dup {
			return fmt.Errorf("register job %s: duplicate name", j.Name)
		}
		job := j
		if _, err := s.Cron.AddFunc(job.Cron, func() { s.runJob(job) }); err != nil {
			return fmt.Errorf("register job %s: %w", job.Name, err)
		}
		s.jobs[job.Name] = job
		s.Logger.Info("job registered",
			zap.String("job", job.Name),
			zap.String("cron", job.Cron),
			zap.String("request_file", job.RequestFile),
		)
	}
	return nil
}

// Start starts the cron scheduler.
func (s *Scheduler) Start() {
	s.Cron.Start()
	s.Logger.Info("scheduler started", zap.Int("jobs", len(s.Cron.Entries())))
}

// Stop stops the cron scheduler and waits for running jobs.
func (s *Scheduler) Stop() {
	<-s.Cron.Stop().Done()
	s.Logger.Info("scheduler stopped")
}

// RunNow executes a registered job immediately.
func (s *Scheduler) RunNow(name string) (*model.Response, error) {
	s.mu.Lock()
	job, ok := s.jobs[name]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return s.runJob(job)
}

func (s *Scheduler) runJob(job config.Job) (*model.Response, error) {
	return s.RunFile("schedule:"+job.Name, job.RequestFile)
}

// RunFile analyzes one request file and records the outcome under source.
func (s *Scheduler) RunFile(source, path string) (*model.Response, error) {
	log := s.Logger.With(zap.String("source", source), zap.String("request_file", path))

	req, err := collector.ReadRequest(s.Ctx, path, s.Source)
	if err != nil {
		log.Error("load request failed", zap.Error(err))
		s.recordError(source, err)
		return nil, err
	}

	resp, err := s.Engine.Analyze(s.Ctx, req)
	if err != nil {
		log.Error("analysis failed", zap.Error(err))
		s.recordError(source, err)
		return nil, err
	}

	if err := s.Recorder.RecordRun(&recorder.RunRecord{
		Source:     source,
		Strategies: req.StrategyIDs,
		Response:   resp,
	}); err != nil {
		log.Error("record run failed", zap.Error(err))
	}

	top := ""
	if len(resp.Results) > 0 {
		top = resp.Results[0].Symbol
	}
	log.Info("run complete",
		zap.String("run_id", resp.RunID),
		zap.Int("ranked", len(resp.Results)),
		zap.String("top", top),
	)
	if s.Out != nil {
		s.mu.Lock()
		io.WriteString(s.Out, report.FormatRanking(resp))
		s.mu.Unlock()
	}
	return resp, nil
}

func (s *Scheduler) recordError(source string, err error) {
	p := model.Payload(err)
	if rerr := s.Recorder.RecordRunError(&recorder.RunErrorEvent{
		Source:  source,
		Kind:    p.Error,
		Details: p.Details,
	}); rerr != nil {
		s.Logger.Error("record run error failed", zap.Error(rerr))
	}
}
