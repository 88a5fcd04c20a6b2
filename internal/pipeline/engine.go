package pipeline

import (
	"context"
	"errors"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"QuantCore/internal/analytics"
	"QuantCore/internal/backtest"
	"QuantCore/internal/cache"
	"QuantCore/internal/calculator"
	"QuantCore/internal/collector"
	"QuantCore/internal/model"
	"QuantCore/internal/ranking"
	"QuantCore/internal/strategy"
)

// Options are the engine-wide defaults a request may override.
type Options struct {
	InitialCapital     float64
	TradingDaysPerYear float64
	RiskFreeRate       float64
	FillPolicy         model.FillPolicy
	Cost               backtest.Cost
	// Workers bounds the symbols processed concurrently.
	Workers int
	// Timeout caps a whole request; zero leaves it to the caller's context.
	Timeout time.Duration
}

// DefaultOptions returns the options used for zero fields.
func DefaultOptions() Options {
	return Options{
		InitialCapital:     100000,
		TradingDaysPerYear: analytics.DefaultTradingDaysPerYear,
		FillPolicy:         model.FillNextOpen,
		Workers:            runtime.NumCPU(),
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.InitialCapital == 0 {
		o.InitialCapital = d.InitialCapital
	}
	if o.TradingDaysPerYear == 0 {
		o.TradingDaysPerYear = d.TradingDaysPerYear
	}
	if o.FillPolicy == "" {
		o.FillPolicy = d.FillPolicy
	}
	if o.Workers <= 0 {
		o.Workers = d.Workers
	}
	return o
}

// Engine evaluates requests end to end. It holds no per-request state and
// is safe for concurrent use.
type Engine struct {
	registry *strategy.Registry
	opts     Options
	logger   *zap.Logger

	// OnCompute is installed on every per-call cache; tests use it to count
	// real backtest computations. A cache carried by the context keeps its own.
	OnCompute func(cache.Key)

	newRunID func() string
	now      func() time.Time
}

// NewEngine creates an Engine. A nil registry means the built-in catalog and
// a nil logger discards logs.
func NewEngine(reg *strategy.Registry, opts Options, logger *zap.Logger) *Engine {
	if reg == nil {
		reg = strategy.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		registry: reg,
		opts:     opts.withDefaults(),
		logger:   logger,
		newRunID: func() string { return uuid.New().String() },
		now:      time.Now,
	}
}

// Registry exposes the strategy catalog the engine resolves ids against.
func (e *Engine) Registry() *strategy.Registry { return e.registry }

// Options returns the effective engine options.
func (e *Engine) Options() Options { return e.opts }

// symbolOutcome is what one symbol contributes to the ranking barrier.
type symbolOutcome struct {
	loaded     bool
	scores     map[string]float64
	metrics    map[string]model.Metrics
	inPosition map[string]bool
	failures   []model.Failure
}

// Analyze runs every requested strategy over every universe symbol, then
// ranks the symbols that produced a score for all strategies.
//
// Request-level problems fail the whole call. Symbol-level problems are
// reported in Failures and the symbol is left out of the ranking. When the
// context ends first, no partial response is returned.
func (e *Engine) Analyze(ctx context.Context, req *model.Request) (*model.Response, error) {
	started := e.now()
	p, err := e.plan(req)
	if err != nil {
		return nil, err
	}

	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	runID := e.newRunID()
	log := e.logger.With(zap.String("run_id", runID))
	log.Info("analysis started",
		zap.Strings("strategies", p.ids),
		zap.Int("universe", len(p.universe)),
		zap.Int("workers", e.opts.Workers),
	)

	memo := e.cacheFor(ctx)

	outcomes := make([]symbolOutcome, len(p.universe))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)
	for i, sym := range p.universe {
		g.Go(func() error {
			out, err := e.analyzeSymbol(gctx, p, memo, sym)
			if err != nil {
				return err
			}
			outcomes[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warn("analysis aborted", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		log.Warn("analysis aborted", zap.Error(err))
		return nil, model.Timeout(runID, err)
	}

	values := make(map[string]map[string]float64, len(p.universe))
	var failures []model.Failure
	loaded := 0
	for i, sym := range p.universe {
		out := outcomes[i]
		if out.loaded {
			loaded++
		}
		failures = append(failures, out.failures...)
		if len(out.failures) == 0 {
			values[sym] = out.scores
		}
	}

	ranked, err := ranking.Rank(p.universe, values, p.weights)
	if err != nil {
		return nil, err
	}

	conditionMet := 0
	byIndex := make(map[string]int, len(p.universe))
	for i, sym := range p.universe {
		byIndex[sym] = i
	}
	for i := range ranked.Results {
		r := &ranked.Results[i]
		out := outcomes[byIndex[r.Symbol]]
		r.Metrics = out.metrics
		r.ConditionMet = true
		for _, id := range p.ids {
			if !out.inPosition[id] {
				r.ConditionMet = false
				break
			}
		}
		if r.ConditionMet {
			conditionMet++
		}
	}

	results := ranked.Results
	if p.outputCount > 0 && len(results) > p.outputCount {
		results = results[:p.outputCount]
	}

	total := len(p.universe)
	resp := &model.Response{
		RunID:         runID,
		Results:       results,
		TotalAnalyzed: total,
		ConditionMet:  conditionMet,
		Reliability: model.Reliability{
			DataQuality: share(loaded, total),
			Coverage:    share(len(ranked.Results), total),
			CompletedAt: e.now().UTC(),
		},
		Failures: failures,
	}
	log.Info("analysis complete",
		zap.Int("ranked", len(ranked.Results)),
		zap.Int("failures", len(failures)),
		zap.Int("condition_met", conditionMet),
		zap.Duration("elapsed", e.now().Sub(started)),
	)
	return resp, nil
}

func share(n, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total)
}

// analyzeSymbol only returns an error when the request must abort; every
// other problem is recorded as a failure of the symbol.
func (e *Engine) analyzeSymbol(ctx context.Context, p *plan, memo *cache.Cache, sym string) (symbolOutcome, error) {
	out := symbolOutcome{
		scores:     make(map[string]float64, len(p.ids)),
		metrics:    make(map[string]model.Metrics, len(p.ids)),
		inPosition: make(map[string]bool, len(p.ids)),
	}
	fail := func(id string, err error) {
		out.failures = append(out.failures, model.Failure{Symbol: sym, Strategy: id, Kind: model.KindOf(err), Detail: err.Error()})
		e.logger.Debug("symbol excluded", zap.String("symbol", sym), zap.String("strategy", id), zap.Error(err))
	}

	raw, ok := p.data[sym]
	if !ok {
		fail("", model.Errorf(model.KindInsufficientData, sym, "no market data"))
		return out, nil
	}
	series, err := e.prepare(sym, raw, p.calendar, p.resample, p.from, p.to)
	if err != nil {
		fail("", err)
		return out, nil
	}
	out.loaded = true

	fingerprint := series.Fingerprint()
	for _, id := range p.ids {
		st := p.strategies[id]
		key := runKey(id, p.params[id], series, fingerprint, p.cfg)
		res, err := memo.Get(ctx, key, func(ctx context.Context) (*model.BacktestResult, error) {
			frame, err := calculator.BuildFrame(series, st.Indicators())
			if err != nil {
				return nil, err
			}
			return e.run(ctx, st, p.params[id], series, frame, p.cfg)
		})
		if err != nil {
			if errors.Is(err, model.ErrComputationTimeout) {
				return out, err
			}
			fail(id, err)
			continue
		}
		score, ok := res.Signals.LastScore()
		if !ok {
			fail(id, model.Errorf(model.KindInsufficientData, sym, "%s has no score on the last bar", id))
			continue
		}
		out.scores[id] = score
		out.metrics[id] = res.Metrics
		out.inPosition[id] = res.Signals.InPosition()
	}
	return out, nil
}

func (e *Engine) prepare(sym string, raw []model.RawRecord, cal, resample model.Calendar, from, to time.Time) (*model.Series, error) {
	series, err := collector.Load(sym, raw, cal)
	if err != nil {
		return nil, err
	}
	if resample != "" {
		if series, err = collector.Resample(series, resample); err != nil {
			return nil, err
		}
	}
	series = series.Window(from, to)
	if series.Len() < 2 {
		return nil, model.Errorf(model.KindInsufficientData, sym, "%d bars in range", series.Len())
	}
	return series, nil
}

// run evaluates one strategy on one prepared series and summarizes the
// simulated portfolio.
func (e *Engine) run(ctx context.Context, st strategy.Strategy, params model.Params, series *model.Series,
	frame model.IndicatorFrame, cfg backtest.Config) (*model.BacktestResult, error) {
	signals, err := st.Evaluate(series, frame)
	if err != nil {
		return nil, err
	}
	outcome, err := backtest.Run(ctx, series, signals, cfg)
	if err != nil {
		return nil, err
	}
	result := &model.BacktestResult{
		StrategyID: st.ID(),
		Symbol:     series.Symbol,
		Params:     params,
		From:       series.First(),
		To:         series.Last(),
		FillPolicy: cfg.FillPolicy,
		ValuePath:  outcome.ValuePath,
		Fills:      outcome.Fills,
		Trades:     outcome.Trades,
		Signals:    signals,
	}
	result.Metrics, err = analytics.Summarize(result.Values(), outcome.Trades, analytics.Options{
		TradingDaysPerYear: e.opts.TradingDaysPerYear,
		RiskFreeRate:       e.opts.RiskFreeRate,
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Backtest runs a single strategy on a single symbol and returns the full
// result, value path and trade log included.
func (e *Engine) Backtest(ctx context.Context, req *model.BacktestRequest) (*model.BacktestResult, error) {
	st, err := e.registry.New(req.StrategyID, req.Params)
	if err != nil {
		return nil, err
	}
	from, to, err := parseRange(req.From, req.To)
	if err != nil {
		return nil, err
	}
	cfg, err := e.backtestConfig(req.InitialCapital, req.FillPolicy)
	if err != nil {
		return nil, err
	}
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	series, err := e.prepare(req.Symbol, req.Records, req.Calendar, "", from, to)
	if err != nil {
		return nil, err
	}
	key := runKey(req.StrategyID, req.Params, series, series.Fingerprint(), cfg)
	return e.cacheFor(ctx).Get(ctx, key, func(ctx context.Context) (*model.BacktestResult, error) {
		frame, err := calculator.BuildFrame(series, st.Indicators())
		if err != nil {
			return nil, err
		}
		return e.run(ctx, st, req.Params, series, frame, cfg)
	})
}

// cacheFor returns the cache carried by ctx, or a fresh one scoped to the
// call. Results from a carried cache are shared and must not be mutated.
func (e *Engine) cacheFor(ctx context.Context) *cache.Cache {
	if c := cache.FromContext(ctx); c != nil {
		return c
	}
	c := cache.New()
	c.OnCompute = e.OnCompute
	return c
}

func runKey(id string, params model.Params, series *model.Series, fingerprint uint64, cfg backtest.Config) cache.Key {
	return cache.NewKey(id, series.Symbol, params, series.First(), series.Last(), cfg.FillPolicy).
		WithRun(cfg.InitialCapital, fingerprint)
}

func (e *Engine) backtestConfig(capital float64, policy model.FillPolicy) (backtest.Config, error) {
	cfg := backtest.Config{
		InitialCapital: e.opts.InitialCapital,
		FillPolicy:     e.opts.FillPolicy,
		Cost:           e.opts.Cost,
	}
	if capital != 0 {
		cfg.InitialCapital = capital
	}
	if cfg.InitialCapital <= 0 {
		return cfg, model.Errorf(model.KindInsufficientCapital, "initial_capital", "must be positive, got %g", cfg.InitialCapital)
	}
	if policy != "" {
		cfg.FillPolicy = policy
	}
	if !cfg.FillPolicy.Valid() {
		return cfg, model.Errorf(model.KindInvalidParameter, "fill_policy", "unknown fill policy %q", cfg.FillPolicy)
	}
	return cfg, nil
}

func sortedKeys(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
