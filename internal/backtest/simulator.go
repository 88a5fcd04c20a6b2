package backtest

import (
	"context"
	"time"

	"QuantCore/internal/model"
	"QuantCore/internal/portfolio"
)

// Cost is the transaction cost model: Flat per fill plus Rate of notional.
type Cost struct {
	Flat float64 `yaml:"flat" json:"flat"`
	Rate float64 `yaml:"rate" json:"rate"`
}

// Config fixes the execution assumptions of one run.
type Config struct {
	InitialCapital float64
	FillPolicy     model.FillPolicy
	Cost           Cost
}

// Outcome is the raw product of a simulation, before analytics.
type Outcome struct {
	ValuePath []model.ValuePoint
	Fills     []model.Fill
	Trades    []model.Trade
	// Long is true when a position is still open after the last bar.
	Long bool
}

// Run replays signals over the series with a flat/long state machine.
//
// Under next_open a signal on bar i fills at the open of bar i+1, and a
// signal on the last bar is dropped. Under same_close it fills at the close
// of bar i. The portfolio value of every bar is marked at that bar's close.
func Run(ctx context.Context, s *model.Series, signals model.Signals, cfg Config) (*Outcome, error) {
	policy := cfg.FillPolicy
	if policy == "" {
		policy = model.FillNextOpen
	}
	if !policy.Valid() {
		return nil, model.Errorf(model.KindInvalidParameter, s.Symbol, "unknown fill policy %q", policy)
	}
	cost, err := portfolio.NewCostModel(cfg.Cost.Flat, cfg.Cost.Rate)
	if err != nil {
		return nil, err
	}
	ledger, err := portfolio.NewLedger(s.Symbol, cfg.InitialCapital, cost)
	if err != nil {
		return nil, err
	}
	if len(signals) != s.Len() {
		return nil, model.Errorf(model.KindInvalidParameter, s.Symbol,
			"%d signals for %d bars", len(signals), s.Len())
	}
	if s.Len() == 0 {
		return nil, model.Errorf(model.KindInsufficientData, s.Symbol, "empty series")
	}

	out := &Outcome{ValuePath: make([]model.ValuePoint, 0, s.Len())}
	pending := model.Hold
	for i, bar := range s.Points {
		if err := ctx.Err(); err != nil {
			return nil, model.Timeout(s.Symbol, err)
		}
		if d := signals[i].Date; !d.IsZero() && !d.Equal(bar.Date) {
			return nil, model.Errorf(model.KindInvalidParameter, s.Symbol,
				"signal %d dated %s, bar dated %s", i, d.Format("2006-01-02"), bar.Date.Format("2006-01-02"))
		}

		switch policy {
		case model.FillNextOpen:
			execute(ledger, pending, bar.Date, bar.Open)
			pending = signals[i].Action
		case model.FillSameClose:
			execute(ledger, signals[i].Action, bar.Date, bar.Close)
		}
		out.ValuePath = append(out.ValuePath, model.ValuePoint{Date: bar.Date, Value: ledger.Value(bar.Close)})
	}

	out.Fills = ledger.Fills()
	out.Trades = ledger.Trades()
	out.Long = ledger.Long()
	return out, nil
}

func execute(l *portfolio.Ledger, a model.Action, date time.Time, price float64) {
	switch a {
	case model.Buy:
		l.Buy(date, price)
	case model.Sell:
		l.Sell(date, price)
	}
}
