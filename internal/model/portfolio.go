package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is the direction of a fill.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Position is an open holding. Quantity is whole shares.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
}

// Fill is one executed order in the trade log.
type Fill struct {
	Date     time.Time       `json:"date"`
	Side     Side            `json:"side"`
	Quantity int64           `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
	Cost     decimal.Decimal `json:"cost"`
}

// Trade is a closed round trip.
type Trade struct {
	Symbol      string          `json:"symbol"`
	EntryDate   time.Time       `json:"entry_date"`
	ExitDate    time.Time       `json:"exit_date"`
	Quantity    int64           `json:"quantity"`
	EntryPrice  decimal.Decimal `json:"entry_price"`
	ExitPrice   decimal.Decimal `json:"exit_price"`
	Costs       decimal.Decimal `json:"costs"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
}
