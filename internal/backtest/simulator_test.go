package backtest

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"QuantCore/internal/model"
)

type ohlc struct{ open, close float64 }

func makeSeries(bars ...ohlc) *model.Series {
	s := &model.Series{Symbol: "AAA", Calendar: model.CalendarDaily}
	day := time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC)
	for i, b := range bars {
		s.Points = append(s.Points, model.PricePoint{
			Date:  day.AddDate(0, 0, i),
			Open:  b.open,
			High:  math.Max(b.open, b.close),
			Low:   math.Min(b.open, b.close),
			Close: b.close,
		})
	}
	return s
}

func makeSignals(s *model.Series, actions ...model.Action) model.Signals {
	out := make(model.Signals, s.Len())
	for i, p := range s.Points {
		out[i] = model.Signal{Date: p.Date, Action: model.Hold}
		if i < len(actions) {
			out[i].Action = actions[i]
		}
	}
	return out
}

func values(o *Outcome) []float64 {
	out := make([]float64, len(o.ValuePath))
	for i, v := range o.ValuePath {
		out[i] = v.Value
	}
	return out
}

func equal(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestRun_AllHoldKeepsCapital(t *testing.T) {
	s := makeSeries(ohlc{10, 10}, ohlc{11, 11}, ohlc{9, 12})
	o, err := Run(context.Background(), s, makeSignals(s), Config{InitialCapital: 1000})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if got := values(o); !equal(got, []float64{1000, 1000, 1000}) {
		t.Errorf("expected constant path, got %v", got)
	}
	if len(o.Fills) != 0 || len(o.Trades) != 0 {
		t.Error("expected no fills or trades")
	}
}

func TestRun_FillPolicies(t *testing.T) {
	s := makeSeries(ohlc{10, 10}, ohlc{11, 12}, ohlc{13, 14}, ohlc{15, 15})
	sigs := makeSignals(s, model.Buy, model.Hold, model.Sell, model.Hold)

	tests := []struct {
		policy model.FillPolicy
		want   []float64
		entry  float64
		exit   float64
	}{
		// 10 shares at close 10, out at close 14
		{model.FillSameClose, []float64{100, 120, 140, 140}, 10, 14},
		// 9 shares at open 11 with 1 cash left, out at open 15
		{model.FillNextOpen, []float64{100, 109, 127, 136}, 11, 15},
	}
	for _, tt := range tests {
		o, err := Run(context.Background(), s, sigs, Config{InitialCapital: 100, FillPolicy: tt.policy})
		if err != nil {
			t.Fatalf("%s: Run failed: %v", tt.policy, err)
		}
		if got := values(o); !equal(got, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.policy, tt.want, got)
		}
		if len(o.Trades) != 1 {
			t.Fatalf("%s: expected 1 trade, got %d", tt.policy, len(o.Trades))
		}
		tr := o.Trades[0]
		if tr.EntryPrice.InexactFloat64() != tt.entry || tr.ExitPrice.InexactFloat64() != tt.exit {
			t.Errorf("%s: expected %.0f -> %.0f, got %s -> %s", tt.policy, tt.entry, tt.exit, tr.EntryPrice, tr.ExitPrice)
		}
	}
}

func TestRun_DefaultPolicyIsNextOpen(t *testing.T) {
	s := makeSeries(ohlc{10, 10}, ohlc{20, 20})
	o, err := Run(context.Background(), s, makeSignals(s, model.Buy), Config{InitialCapital: 100})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(o.Fills) != 1 || o.Fills[0].Price.InexactFloat64() != 20 {
		t.Errorf("expected one fill at the next open, got %+v", o.Fills)
	}
	if !o.Long {
		t.Error("position should still be open")
	}
}

func TestRun_LastBarSignalDropped(t *testing.T) {
	s := makeSeries(ohlc{10, 10}, ohlc{10, 10})
	o, err := Run(context.Background(), s, makeSignals(s, model.Hold, model.Buy), Config{InitialCapital: 100})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(o.Fills) != 0 {
		t.Errorf("signal on the last bar should not fill, got %d fills", len(o.Fills))
	}
}

func TestRun_RepeatedSignalsAreNoOps(t *testing.T) {
	s := makeSeries(ohlc{10, 10}, ohlc{10, 10}, ohlc{10, 10}, ohlc{10, 10})
	sigs := makeSignals(s, model.Sell, model.Buy, model.Buy, model.Hold)
	o, err := Run(context.Background(), s, sigs, Config{InitialCapital: 100, FillPolicy: model.FillSameClose})
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(o.Fills) != 1 {
		t.Errorf("expected a single buy fill, got %d", len(o.Fills))
	}
}

func TestRun_CostsReduceValue(t *testing.T) {
	s := makeSeries(ohlc{10, 10}, ohlc{10, 10})
	cfg := Config{InitialCapital: 100, FillPolicy: model.FillSameClose, Cost: Cost{Flat: 1}}
	o, err := Run(context.Background(), s, makeSignals(s, model.Buy), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	// 9 shares, 100 - 90 - 1 = 9 cash
	if got := values(o); !equal(got, []float64{99, 99}) {
		t.Errorf("expected [99 99], got %v", got)
	}
}

func TestRun_Errors(t *testing.T) {
	s := makeSeries(ohlc{10, 10}, ohlc{10, 10})
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name string
		ctx  context.Context
		sigs model.Signals
		cfg  Config
		want error
	}{
		{"zero capital", context.Background(), makeSignals(s), Config{}, model.ErrInsufficientCapital},
		{"negative capital", context.Background(), makeSignals(s), Config{InitialCapital: -5}, model.ErrInsufficientCapital},
		{"length mismatch", context.Background(), model.Signals{{}}, Config{InitialCapital: 100}, model.ErrInvalidParameter},
		{"bad policy", context.Background(), makeSignals(s), Config{InitialCapital: 100, FillPolicy: "vwap"}, model.ErrInvalidParameter},
		{"negative cost", context.Background(), makeSignals(s), Config{InitialCapital: 100, Cost: Cost{Rate: -0.1}}, model.ErrInvalidParameter},
		{"cancelled", cancelled, makeSignals(s), Config{InitialCapital: 100}, model.ErrComputationTimeout},
	}
	for _, tt := range tests {
		_, err := Run(tt.ctx, s, tt.sigs, tt.cfg)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}
