package pipeline

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"QuantCore/internal/cache"
	"QuantCore/internal/model"
)

// flatThenJump builds 30 daily bars at 100 with a final close of last.
func flatThenJump(last float64, pe *float64) []model.RawRecord {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := make([]model.RawRecord, 30)
	for i := range recs {
		c := 100.0
		if i == len(recs)-1 {
			c = last
		}
		recs[i] = model.RawRecord{
			Date: day.AddDate(0, 0, i).Format("2006-01-02"),
			Open: c, High: c, Low: c, Close: c, Volume: 1000,
			PERatio: pe,
		}
	}
	return recs
}

func pe(v float64) *float64 { return &v }

func scenarioRequest() *model.Request {
	data := map[string][]model.RawRecord{
		"A": flatThenJump(105, pe(10)),
		"B": flatThenJump(120, pe(20)),
		"C": flatThenJump(110, pe(15)),
		"D": flatThenJump(95, pe(30)),
		"E": flatThenJump(105, pe(10)),
	}
	return &model.Request{
		StrategyIDs: []string{"low_pe", "simple_momentum"},
		Parameters:  map[string]model.Params{"simple_momentum": {"lookback": 20}},
		MarketData:  data,
		Universe:    []string{"A", "B", "C", "D", "E"},
		OutputCount: 5,
		Weights:     map[string]float64{"low_pe": 0.6, "simple_momentum": 0.4},
	}
}

func newTestEngine() *Engine {
	e := NewEngine(nil, Options{Workers: 3}, nil)
	e.newRunID = func() string { return "run-1" }
	return e
}

func TestAnalyze_RanksUniverse(t *testing.T) {
	e := newTestEngine()
	var computes atomic.Int32
	e.OnCompute = func(cache.Key) { computes.Add(1) }

	resp, err := e.Analyze(context.Background(), scenarioRequest())
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if resp.RunID != "run-1" || resp.TotalAnalyzed != 5 {
		t.Errorf("unexpected header %s/%d", resp.RunID, resp.TotalAnalyzed)
	}
	want := []string{"A", "E", "C", "B", "D"}
	if len(resp.Results) != len(want) {
		t.Fatalf("expected %d results, got %d", len(want), len(resp.Results))
	}
	for i, sym := range want {
		if resp.Results[i].Symbol != sym {
			t.Errorf("position %d: expected %s, got %s", i, sym, resp.Results[i].Symbol)
		}
	}
	if math.Abs(resp.Results[0].CompositeScore-0.64) > 1e-9 {
		t.Errorf("expected composite 0.64 for A, got %.4f", resp.Results[0].CompositeScore)
	}
	// Only C is both cheap (P/E <= 15) and past the 5% momentum entry.
	if resp.ConditionMet != 1 {
		t.Errorf("expected 1 symbol meeting all conditions, got %d", resp.ConditionMet)
	}
	for _, r := range resp.Results {
		if r.ConditionMet != (r.Symbol == "C") {
			t.Errorf("%s: unexpected conditionMet %v", r.Symbol, r.ConditionMet)
		}
		if _, ok := r.Metrics["low_pe"]; !ok {
			t.Errorf("%s: missing low_pe metrics", r.Symbol)
		}
	}
	if resp.Reliability.DataQuality != 1 || resp.Reliability.Coverage != 1 {
		t.Errorf("unexpected reliability %+v", resp.Reliability)
	}
	if resp.Reliability.CompletedAt.IsZero() {
		t.Error("completedAt should be set")
	}
	if got := computes.Load(); got != 10 {
		t.Errorf("expected 10 backtests, got %d", got)
	}
}

func TestAnalyze_OutputCount(t *testing.T) {
	req := scenarioRequest()
	req.OutputCount = 2
	resp, err := newTestEngine().Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[1].Symbol != "E" {
		t.Errorf("expected top 2 [A E], got %d results", len(resp.Results))
	}
	if resp.Reliability.Coverage != 1 {
		t.Errorf("coverage counts every ranked symbol, got %g", resp.Reliability.Coverage)
	}
}

func TestAnalyze_PartialFailuresExcluded(t *testing.T) {
	req := scenarioRequest()
	dup := flatThenJump(100, pe(12))
	dup[3].Date = dup[2].Date
	req.MarketData["DUP"] = dup
	req.MarketData["NOPE"] = flatThenJump(100, nil)
	req.Universe = append(req.Universe, "MISSING", "DUP", "NOPE")

	resp, err := newTestEngine().Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if resp.TotalAnalyzed != 8 || len(resp.Results) != 5 {
		t.Fatalf("expected 5 of 8 ranked, got %d of %d", len(resp.Results), resp.TotalAnalyzed)
	}
	kinds := map[string]model.Kind{}
	for _, f := range resp.Failures {
		kinds[f.Symbol] = f.Kind
	}
	wantKinds := map[string]model.Kind{
		"MISSING": model.KindInsufficientData,
		"DUP":     model.KindDuplicateRecord,
		"NOPE":    model.KindInsufficientData,
	}
	for sym, k := range wantKinds {
		if kinds[sym] != k {
			t.Errorf("%s: expected %s, got %s", sym, k, kinds[sym])
		}
	}
	for _, r := range resp.Results {
		if _, bad := wantKinds[r.Symbol]; bad {
			t.Errorf("%s should be excluded", r.Symbol)
		}
	}
	if math.Abs(resp.Reliability.DataQuality-6.0/8) > 1e-12 {
		t.Errorf("expected data quality 6/8, got %g", resp.Reliability.DataQuality)
	}
	if math.Abs(resp.Reliability.Coverage-5.0/8) > 1e-12 {
		t.Errorf("expected coverage 5/8, got %g", resp.Reliability.Coverage)
	}
}

func TestAnalyze_RequestErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.Request)
		want   error
	}{
		{"unknown strategy", func(r *model.Request) { r.StrategyIDs = append(r.StrategyIDs, "tea_leaves") }, model.ErrUnknownStrategy},
		{"bad params", func(r *model.Request) { r.Parameters["simple_momentum"] = model.Params{"lookback": 0} }, model.ErrInvalidParameter},
		{"params for unrequested", func(r *model.Request) { r.Parameters["rsi_reversion"] = model.Params{} }, model.ErrInvalidParameter},
		{"negative output", func(r *model.Request) { r.OutputCount = -1 }, model.ErrInvalidParameter},
		{"no strategies", func(r *model.Request) { r.StrategyIDs = nil }, model.ErrInvalidParameter},
		{"empty universe", func(r *model.Request) { r.Universe = nil }, model.ErrInvalidParameter},
		{"negative weight", func(r *model.Request) { r.Weights["low_pe"] = -1 }, model.ErrInvalidParameter},
		{"weight for unrequested", func(r *model.Request) { r.Weights["macd_cross"] = 1 }, model.ErrInvalidParameter},
		{"bad date", func(r *model.Request) { r.From = "yesterday" }, model.ErrInvalidParameter},
		{"inverted range", func(r *model.Request) { r.From, r.To = "2024-02-01", "2024-01-01" }, model.ErrInvalidParameter},
		{"negative capital", func(r *model.Request) { r.InitialCapital = -10 }, model.ErrInsufficientCapital},
		{"bad fill policy", func(r *model.Request) { r.FillPolicy = "midpoint" }, model.ErrInvalidParameter},
	}
	for _, tt := range tests {
		req := scenarioRequest()
		tt.mutate(req)
		_, err := newTestEngine().Analyze(context.Background(), req)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestAnalyze_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	resp, err := newTestEngine().Analyze(ctx, scenarioRequest())
	if !errors.Is(err, model.ErrComputationTimeout) {
		t.Errorf("expected ComputationTimeoutError, got %v", err)
	}
	if resp != nil {
		t.Error("no partial response on cancellation")
	}
}

func TestAnalyze_Window(t *testing.T) {
	req := scenarioRequest()
	req.From = "2024-01-05"
	resp, err := newTestEngine().Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	// 26 bars remain, still enough for ROC(20)
	if len(resp.Results) != 5 {
		t.Errorf("expected 5 ranked, got %d", len(resp.Results))
	}

	req.From = "2024-01-25"
	resp, err = newTestEngine().Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(resp.Results) != 0 || len(resp.Failures) != 5 {
		t.Errorf("6 bars cannot feed ROC(20): %d ranked, %d failures", len(resp.Results), len(resp.Failures))
	}
}

func TestBacktest_SingleRun(t *testing.T) {
	e := newTestEngine()
	res, err := e.Backtest(context.Background(), &model.BacktestRequest{
		StrategyID:     "simple_momentum",
		Params:         model.Params{"lookback": 20},
		Symbol:         "C",
		Records:        flatThenJump(110, nil),
		InitialCapital: 10000,
		FillPolicy:     model.FillSameClose,
	})
	if err != nil {
		t.Fatalf("Backtest failed: %v", err)
	}
	if len(res.ValuePath) != 30 || len(res.Fills) != 1 {
		t.Fatalf("expected 30 values and 1 fill, got %d and %d", len(res.ValuePath), len(res.Fills))
	}
	// 90 shares bought at 110 on the last close, 100 cash left
	if res.ValuePath[29].Value != 10000 {
		t.Errorf("expected 10000 after buying at the close, got %g", res.ValuePath[29].Value)
	}

	if _, err := e.Backtest(context.Background(), &model.BacktestRequest{StrategyID: "nope"}); !errors.Is(err, model.ErrUnknownStrategy) {
		t.Errorf("expected UnknownStrategyError, got %v", err)
	}
}

func TestAnalyze_FailureNamesStrategy(t *testing.T) {
	req := scenarioRequest()
	req.StrategyIDs = []string{"low_pe", "ma_crossover"}
	req.Parameters = map[string]model.Params{"ma_crossover": {"fast": 5, "slow": 40}}
	req.Weights = nil

	e := newTestEngine()
	var computes atomic.Int32
	e.OnCompute = func(cache.Key) { computes.Add(1) }
	resp, err := e.Analyze(context.Background(), req)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if len(resp.Results) != 0 || len(resp.Failures) != 5 {
		t.Fatalf("30 bars cannot feed SMA(40): %d ranked, %d failures", len(resp.Results), len(resp.Failures))
	}
	for _, f := range resp.Failures {
		if f.Strategy != "ma_crossover" || f.Kind != model.KindInsufficientData {
			t.Errorf("%s: expected ma_crossover InsufficientData, got %q %s", f.Symbol, f.Strategy, f.Kind)
		}
	}
	if got := computes.Load(); got != 10 {
		t.Errorf("expected both strategies attempted for every symbol, got %d computations", got)
	}
}

func TestAnalyze_SharedCache(t *testing.T) {
	shared := cache.New()
	var computes atomic.Int32
	shared.OnCompute = func(cache.Key) { computes.Add(1) }
	ctx := cache.NewContext(context.Background(), shared)

	e := newTestEngine()
	const n = 4
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.Analyze(ctx, scenarioRequest())
			if err != nil {
				t.Errorf("Analyze failed: %v", err)
				return
			}
			if len(resp.Results) != 5 || resp.Results[0].Symbol != "A" {
				t.Errorf("unexpected ranking from shared cache: %+v", resp.Results)
			}
		}()
	}
	wg.Wait()

	if got := computes.Load(); got != 10 {
		t.Errorf("expected 10 backtests across %d requests, got %d", n, got)
	}
	if shared.Len() != 10 {
		t.Errorf("expected 10 stored results, got %d", shared.Len())
	}
}

func TestBacktest_SharedCache(t *testing.T) {
	shared := cache.New()
	var computes atomic.Int32
	shared.OnCompute = func(cache.Key) { computes.Add(1) }
	ctx := cache.NewContext(context.Background(), shared)

	req := func(capital, last float64) *model.BacktestRequest {
		return &model.BacktestRequest{
			StrategyID:     "simple_momentum",
			Params:         model.Params{"lookback": 20},
			Symbol:         "C",
			Records:        flatThenJump(last, nil),
			InitialCapital: capital,
			FillPolicy:     model.FillSameClose,
		}
	}

	e := newTestEngine()
	const n = 8
	results := make([]*model.BacktestResult, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := e.Backtest(ctx, req(10000, 110))
			if err != nil {
				t.Errorf("Backtest %d failed: %v", i, err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	if got := computes.Load(); got != 1 {
		t.Fatalf("expected 1 computation for %d identical backtests, got %d", n, got)
	}
	for i, r := range results {
		if r != results[0] {
			t.Errorf("caller %d got a different result", i)
		}
	}

	// a different capital or different bars is a different run
	if _, err := e.Backtest(ctx, req(20000, 110)); err != nil {
		t.Fatalf("Backtest failed: %v", err)
	}
	if _, err := e.Backtest(ctx, req(10000, 120)); err != nil {
		t.Fatalf("Backtest failed: %v", err)
	}
	if got := computes.Load(); got != 3 {
		t.Errorf("expected 3 computations, got %d", got)
	}

	// without a carried cache every call computes
	e.OnCompute = func(cache.Key) { computes.Add(1) }
	for i := 0; i < 2; i++ {
		if _, err := e.Backtest(context.Background(), req(10000, 110)); err != nil {
			t.Fatalf("Backtest failed: %v", err)
		}
	}
	if got := computes.Load(); got != 5 {
		t.Errorf("expected 5 computations, got %d", got)
	}
}
