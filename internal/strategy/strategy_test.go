package strategy

import (
	"errors"
	"math"
	"testing"
	"time"

	"QuantCore/internal/calculator"
	"QuantCore/internal/model"
)

func closesSeries(closes []float64) *model.Series {
	s := &model.Series{Symbol: "TEST", Calendar: model.CalendarDaily}
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, c := range closes {
		s.Points = append(s.Points, model.PricePoint{
			Date: day.AddDate(0, 0, i), Open: c, High: c, Low: c, Close: c,
			Fundamentals: model.UnknownFundamentals(),
		})
	}
	return s
}

func evaluate(t *testing.T, id string, params model.Params, s *model.Series) model.Signals {
	t.Helper()
	st, err := Default().New(id, params)
	if err != nil {
		t.Fatalf("New(%s) failed: %v", id, err)
	}
	frame, err := calculator.BuildFrame(s, st.Indicators())
	if err != nil {
		t.Fatalf("BuildFrame failed: %v", err)
	}
	sigs, err := st.Evaluate(s, frame)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if len(sigs) != s.Len() {
		t.Fatalf("expected %d signals, got %d", s.Len(), len(sigs))
	}
	return sigs
}

func actionsAt(sigs model.Signals, action model.Action) []int {
	var idx []int
	for i, s := range sigs {
		if s.Action == action {
			idx = append(idx, i)
		}
	}
	return idx
}

func sameInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// rising for 15 bars, falling for 20, recovering for 15.
func dropAndRecovery() []float64 {
	var c []float64
	for i := 0; i < 15; i++ {
		c = append(c, 100+float64(i))
	}
	for i := 0; i < 20; i++ {
		c = append(c, c[len(c)-1]-1)
	}
	for i := 0; i < 15; i++ {
		c = append(c, c[len(c)-1]+1)
	}
	return c
}

func TestRSIReversion_CrossingDates(t *testing.T) {
	sigs := evaluate(t, "rsi_reversion", nil, closesSeries(dropAndRecovery()))

	// RSI: bar 30 = 30.55, bar 31 = 28.37, bar 46 = 68.24, bar 47 = 70.51
	if got := actionsAt(sigs, model.Buy); !sameInts(got, []int{31}) {
		t.Errorf("expected buy at [31], got %v", got)
	}
	if got := actionsAt(sigs, model.Sell); !sameInts(got, []int{47}) {
		t.Errorf("expected sell at [47], got %v", got)
	}
	if !math.IsNaN(sigs[13].Score) {
		t.Errorf("score should be undefined during warm-up, got %.2f", sigs[13].Score)
	}
	if sigs.InPosition() {
		t.Error("should be flat after the sell")
	}
}

// falling from 100 to 80 over 20 days, then recovering to 110.
func dropThenRecover() []float64 {
	var c []float64
	for v := 100.0; v >= 80; v-- {
		c = append(c, v)
	}
	for v := 81.0; v <= 110; v++ {
		c = append(c, v)
	}
	return c
}

func TestRSIReversion_DropFromStart(t *testing.T) {
	closes := dropThenRecover()
	rsi := calculator.CalculateRSI(closes, 14)

	// Every change up to bar 20 is -1, so RSI is 0 when it first becomes
	// defined. After k up bars RSI = 100*(1 - (13/14)^k): 69.45 at k=16
	// (bar 36) and 71.63 at k=17 (bar 37).
	checks := []struct {
		bar  int
		want float64
	}{
		{14, 0},
		{20, 0},
		{36, 69.447},
		{37, 71.629},
	}
	for _, c := range checks {
		if math.Abs(rsi[c.bar]-c.want) > 0.01 {
			t.Errorf("RSI at bar %d: expected %.3f, got %.3f", c.bar, c.want, rsi[c.bar])
		}
	}

	sigs := evaluate(t, "rsi_reversion", nil, closesSeries(closes))
	if got := actionsAt(sigs, model.Buy); !sameInts(got, []int{14}) {
		t.Errorf("expected buy at [14], got %v", got)
	}
	if got := actionsAt(sigs, model.Sell); !sameInts(got, []int{37}) {
		t.Errorf("expected sell at [37], got %v", got)
	}
}

func TestCrossed_FirstDefinedValue(t *testing.T) {
	nan := math.NaN()
	tests := []struct {
		name  string
		v     []float64
		i     int
		below bool
		above bool
	}{
		{"warms up below", []float64{nan, 10}, 1, true, false},
		{"warms up above", []float64{nan, 90}, 1, false, true},
		{"warms up on the level", []float64{nan, 30}, 1, false, false},
		{"defined at bar 0", []float64{10}, 0, true, false},
		{"stays below", []float64{10, 20}, 1, false, false},
		{"crosses down", []float64{40, 20}, 1, true, false},
		{"undefined", []float64{40, nan}, 1, false, false},
	}
	for _, tt := range tests {
		if got := crossedBelow(tt.v, tt.i, 30); got != tt.below {
			t.Errorf("%s: crossedBelow = %v, want %v", tt.name, got, tt.below)
		}
		if got := crossedAbove(tt.v, tt.i, 70); got != tt.above {
			t.Errorf("%s: crossedAbove = %v, want %v", tt.name, got, tt.above)
		}
	}
}

func TestMACrossover_SignalsOnCrossOnly(t *testing.T) {
	closes := []float64{10, 9, 8, 7, 6, 7, 8, 9, 10, 11}
	sigs := evaluate(t, "ma_crossover", model.Params{"fast": 2, "slow": 4}, closesSeries(closes))

	if got := actionsAt(sigs, model.Buy); !sameInts(got, []int{6}) {
		t.Errorf("expected buy at [6], got %v", got)
	}
	if got := actionsAt(sigs, model.Sell); len(got) != 0 {
		t.Errorf("expected no sells, got %v", got)
	}
	score, ok := sigs.LastScore()
	if !ok || math.Abs(score-(10.5/9.5-1)) > 1e-12 {
		t.Errorf("unexpected last score %.6f (%v)", score, ok)
	}
}

func TestMomentum_Score(t *testing.T) {
	closes := []float64{100, 100, 100, 110, 121}
	sigs := evaluate(t, "simple_momentum", model.Params{"lookback": 1, "entry": 0.05}, closesSeries(closes))
	if got := actionsAt(sigs, model.Buy); !sameInts(got, []int{3}) {
		t.Errorf("expected buy at [3], got %v", got)
	}
	if score, _ := sigs.LastScore(); math.Abs(score-0.1) > 1e-12 {
		t.Errorf("expected score 0.1, got %.4f", score)
	}
}

func TestChannelBreakout(t *testing.T) {
	closes := []float64{10, 11, 10, 11, 10, 12, 11, 9}
	sigs := evaluate(t, "channel_breakout", model.Params{"period": 3}, closesSeries(closes))
	if got := actionsAt(sigs, model.Buy); !sameInts(got, []int{5}) {
		t.Errorf("expected buy at [5], got %v", got)
	}
	if got := actionsAt(sigs, model.Sell); !sameInts(got, []int{7}) {
		t.Errorf("expected sell at [7], got %v", got)
	}
}

func peSeries(pe ...float64) *model.Series {
	closes := make([]float64, len(pe))
	for i := range closes {
		closes[i] = 50
	}
	s := closesSeries(closes)
	for i, v := range pe {
		s.Points[i].PERatio = v
		s.Points[i].ROE = 0.2
	}
	return s
}

func TestLowPE_Levels(t *testing.T) {
	sigs := evaluate(t, "low_pe", nil, peSeries(30, 14, 14, 26, 10))
	if got := actionsAt(sigs, model.Buy); !sameInts(got, []int{1, 4}) {
		t.Errorf("expected buys at [1 4], got %v", got)
	}
	if got := actionsAt(sigs, model.Sell); !sameInts(got, []int{3}) {
		t.Errorf("expected sell at [3], got %v", got)
	}
	if score, _ := sigs.LastScore(); math.Abs(score-0.1) > 1e-12 {
		t.Errorf("expected score 1/PE = 0.1, got %.4f", score)
	}
}

func TestComposite_Threshold(t *testing.T) {
	s := peSeries(30, 14, 14, 26, 10)

	all := evaluate(t, "value_quality", nil, s)
	if got := actionsAt(all, model.Buy); !sameInts(got, []int{1, 4}) {
		t.Errorf("threshold 1: expected buys at [1 4], got %v", got)
	}
	if got := actionsAt(all, model.Sell); !sameInts(got, []int{3}) {
		t.Errorf("threshold 1: expected sell at [3], got %v", got)
	}

	half := evaluate(t, "value_quality", model.Params{"threshold": 0.5, "low_pe.max_pe": 12}, s)
	if got := actionsAt(half, model.Buy); !sameInts(got, []int{0}) {
		t.Errorf("threshold 0.5: expected buy at [0], got %v", got)
	}
	if half[3].Score != 0.5 {
		t.Errorf("expected half the members long at bar 3, got %.2f", half[3].Score)
	}
}

func TestRegistry_UnknownStrategy(t *testing.T) {
	_, err := Default().New("astrology", nil)
	if !errors.Is(err, model.ErrUnknownStrategy) {
		t.Errorf("expected UnknownStrategyError, got %v", err)
	}
}

func TestRegistry_InvalidParameters(t *testing.T) {
	tests := []struct {
		id     string
		params model.Params
	}{
		{"rsi_reversion", model.Params{"oversold": 120}},
		{"rsi_reversion", model.Params{"oversold": 80, "overbought": 70}},
		{"rsi_reversion", model.Params{"period": 14.5}},
		{"rsi_reversion", model.Params{"perod": 14}},
		{"ma_crossover", model.Params{"fast": 30, "slow": 10}},
		{"low_pe", model.Params{"max_pe": -5}},
		{"low_pe", model.Params{"max_pe": 20, "exit_pe": 10}},
		{"peg_growth", model.Params{"max_peg": 0}},
		{"simple_momentum", model.Params{"entry": math.NaN()}},
		{"value_quality", model.Params{"threshold": 0}},
		{"value_quality", model.Params{"low_pb.max_pb": 1}},
		{"momentum_value", model.Params{"simple_momentum.lookback": -3}},
	}
	for _, tt := range tests {
		_, err := Default().New(tt.id, tt.params)
		if !errors.Is(err, model.ErrInvalidParameter) {
			t.Errorf("%s %v: expected InvalidParameterError, got %v", tt.id, tt.params, err)
		}
	}
}

func TestRegistry_Catalog(t *testing.T) {
	defs := Default().List()
	want := []string{
		"bollinger_reversal", "channel_breakout", "high_dividend", "low_pb", "low_pe",
		"ma_crossover", "macd_cross", "momentum_value", "peg_growth", "quality_roe",
		"rsi_reversion", "simple_momentum", "value_quality",
	}
	if len(defs) != len(want) {
		t.Fatalf("expected %d strategies, got %d", len(want), len(defs))
	}
	for i, d := range defs {
		if d.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], d.ID)
		}
		st, err := d.New(nil)
		if err != nil {
			t.Errorf("%s: defaults should validate: %v", d.ID, err)
			continue
		}
		if st.ID() != d.ID || st.Category() != d.Category {
			t.Errorf("%s: strategy reports %s/%s", d.ID, st.ID(), st.Category())
		}
		if len(st.Indicators()) == 0 {
			t.Errorf("%s: declares no indicators", d.ID)
		}
	}

	if err := Default().Register(defs[0]); !errors.Is(err, model.ErrInvalidParameter) {
		t.Errorf("duplicate registration should fail, got %v", err)
	}
}

func TestEvaluate_MissingIndicator(t *testing.T) {
	st, _ := Default().New("rsi_reversion", nil)
	_, err := st.Evaluate(closesSeries(dropAndRecovery()), model.IndicatorFrame{})
	if model.KindOf(err) != model.KindInternal {
		t.Errorf("expected InternalError, got %v", err)
	}
}
