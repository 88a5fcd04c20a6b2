package portfolio

import (
	"math"
	"time"

	"github.com/shopspring/decimal"

	"QuantCore/internal/model"
)

// CostModel charges Flat per fill plus Rate times the traded notional.
type CostModel struct {
	Flat decimal.Decimal
	Rate decimal.Decimal
}

// NewCostModel converts float inputs, rejecting negative or non-finite values.
func NewCostModel(flat, rate float64) (CostModel, error) {
	for _, v := range []float64{flat, rate} {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return CostModel{}, model.Errorf(model.KindInvalidParameter, "cost", "costs must be finite and non-negative")
		}
	}
	return CostModel{Flat: decimal.NewFromFloat(flat), Rate: decimal.NewFromFloat(rate)}, nil
}

// Fee is the charge for trading notional.
func (c CostModel) Fee(notional decimal.Decimal) decimal.Decimal {
	return c.Flat.Add(c.Rate.Mul(notional))
}

// Ledger tracks cash, one long position and the trade log of a single run.
// A Ledger belongs to exactly one run and is not safe for concurrent use.
type Ledger struct {
	cost     CostModel
	cash     decimal.Decimal
	pos      model.Position
	entry    time.Time
	entryFee decimal.Decimal
	fills    []model.Fill
	trades   []model.Trade
}

// NewLedger opens a ledger with capital in cash.
func NewLedger(symbol string, capital float64, cost CostModel) (*Ledger, error) {
	if math.IsNaN(capital) || math.IsInf(capital, 0) || capital <= 0 {
		return nil, model.Errorf(model.KindInsufficientCapital, symbol, "initial capital %g must be positive", capital)
	}
	return &Ledger{
		cost: cost,
		cash: decimal.NewFromFloat(capital),
		pos:  model.Position{Symbol: symbol},
	}, nil
}

// Long reports whether a position is open.
func (l *Ledger) Long() bool { return l.pos.Quantity > 0 }

func (l *Ledger) Cash() decimal.Decimal    { return l.cash }
func (l *Ledger) Position() model.Position { return l.pos }
func (l *Ledger) Fills() []model.Fill      { return l.fills }
func (l *Ledger) Trades() []model.Trade    { return l.trades }

// Affordable is the largest whole-share quantity whose notional plus fee
// fits in cash.
func (l *Ledger) Affordable(price decimal.Decimal) int64 {
	if !price.IsPositive() {
		return 0
	}
	budget := l.cash.Sub(l.cost.Flat)
	if !budget.IsPositive() {
		return 0
	}
	unit := price.Mul(decimal.NewFromInt(1).Add(l.cost.Rate))
	qty := budget.Div(unit).Floor().IntPart()
	// Division rounding can overshoot by one share.
	for qty > 0 && l.outlay(price, qty).GreaterThan(l.cash) {
		qty--
	}
	return qty
}

func (l *Ledger) outlay(price decimal.Decimal, qty int64) decimal.Decimal {
	notional := price.Mul(decimal.NewFromInt(qty))
	return notional.Add(l.cost.Fee(notional))
}

// Buy opens a position with all affordable shares. It is a no-op while a
// position is open or when not even one share is affordable.
func (l *Ledger) Buy(date time.Time, price float64) (model.Fill, bool) {
	if l.Long() {
		return model.Fill{}, false
	}
	px := decimal.NewFromFloat(price)
	qty := l.Affordable(px)
	if qty <= 0 {
		return model.Fill{}, false
	}

	notional := px.Mul(decimal.NewFromInt(qty))
	fee := l.cost.Fee(notional)
	l.cash = l.cash.Sub(notional).Sub(fee)
	l.pos.Quantity = qty
	l.pos.AveragePrice = px
	l.entry = date
	l.entryFee = fee

	f := model.Fill{Date: date, Side: model.SideBuy, Quantity: qty, Price: px, Cost: fee}
	l.fills = append(l.fills, f)
	return f, true
}

// Sell closes the open position and records the round trip. It is a no-op
// when flat.
func (l *Ledger) Sell(date time.Time, price float64) (model.Fill, bool) {
	if !l.Long() {
		return model.Fill{}, false
	}
	px := decimal.NewFromFloat(price)
	qty := decimal.NewFromInt(l.pos.Quantity)
	notional := px.Mul(qty)
	fee := l.cost.Fee(notional)
	l.cash = l.cash.Add(notional).Sub(fee)

	costs := l.entryFee.Add(fee)
	l.trades = append(l.trades, model.Trade{
		Symbol:      l.pos.Symbol,
		EntryDate:   l.entry,
		ExitDate:    date,
		Quantity:    l.pos.Quantity,
		EntryPrice:  l.pos.AveragePrice,
		ExitPrice:   px,
		Costs:       costs,
		RealizedPnL: px.Sub(l.pos.AveragePrice).Mul(qty).Sub(costs),
	})

	f := model.Fill{Date: date, Side: model.SideSell, Quantity: l.pos.Quantity, Price: px, Cost: fee}
	l.fills = append(l.fills, f)
	l.pos.Quantity = 0
	l.pos.AveragePrice = decimal.Zero
	l.entryFee = decimal.Zero
	return f, true
}

// Value marks the ledger to market at close.
func (l *Ledger) Value(close float64) float64 {
	v := l.cash.Add(decimal.NewFromFloat(close).Mul(decimal.NewFromInt(l.pos.Quantity)))
	return v.InexactFloat64()
}
