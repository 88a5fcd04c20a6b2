package model

import (
	"encoding/binary"
	"hash/fnv"
	"math"
	"time"
)

// RawRecord is a bar as supplied by the caller, before validation.
type RawRecord struct {
	Date          string   `json:"date"`
	Open          float64  `json:"open"`
	High          float64  `json:"high"`
	Low           float64  `json:"low"`
	Close         float64  `json:"close"`
	Volume        float64  `json:"volume"`
	PERatio       *float64 `json:"pe_ratio,omitempty"`
	PBRatio       *float64 `json:"pb_ratio,omitempty"`
	MarketCap     *float64 `json:"market_cap,omitempty"`
	DividendYield *float64 `json:"dividend_yield,omitempty"`
	ROE           *float64 `json:"roe,omitempty"`
	DebtToEquity  *float64 `json:"debt_to_equity,omitempty"`
	EPSGrowth     *float64 `json:"eps_growth,omitempty"`
}

// Fundamentals holds per-bar fundamental ratios. NaN means unknown.
type Fundamentals struct {
	PERatio       float64
	PBRatio       float64
	MarketCap     float64
	DividendYield float64
	ROE           float64
	DebtToEquity  float64
	EPSGrowth     float64 // fractional, 0.15 = 15%
}

// UnknownFundamentals returns a Fundamentals value with every field unknown.
func UnknownFundamentals() Fundamentals {
	nan := math.NaN()
	return Fundamentals{nan, nan, nan, nan, nan, nan, nan}
}

// PricePoint is a single validated bar.
type PricePoint struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
	Fundamentals
}

// Calendar declares the bar spacing of a Series.
type Calendar string

const (
	CalendarDaily  Calendar = "daily"
	CalendarWeekly Calendar = "weekly"
)

// MaxGap is the largest distance allowed between consecutive bars.
// Daily allows a long weekend plus a holiday.
func (c Calendar) MaxGap() time.Duration {
	switch c {
	case CalendarWeekly:
		return 12 * 24 * time.Hour
	default:
		return 5 * 24 * time.Hour
	}
}

// Valid reports whether c is a known calendar.
func (c Calendar) Valid() bool {
	return c == CalendarDaily || c == CalendarWeekly
}

// Series is the time-ordered bar history of one symbol.
// Points are strictly increasing by date and never mutated after loading.
type Series struct {
	Symbol   string
	Calendar Calendar
	Points   []PricePoint
}

func (s *Series) Len() int { return len(s.Points) }

// First returns the date of the first bar.
func (s *Series) First() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[0].Date
}

// Last returns the date of the last bar.
func (s *Series) Last() time.Time {
	if len(s.Points) == 0 {
		return time.Time{}
	}
	return s.Points[len(s.Points)-1].Date
}

// Closes extracts the close prices.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Close
	}
	return out
}

// Field extracts an arbitrary per-bar value.
func (s *Series) Field(f func(PricePoint) float64) []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = f(p)
	}
	return out
}

// Window returns a new Series restricted to [from, to]. Zero bounds are open.
// The returned Series shares no backing array with s.
func (s *Series) Window(from, to time.Time) *Series {
	out := &Series{Symbol: s.Symbol, Calendar: s.Calendar}
	for _, p := range s.Points {
		if !from.IsZero() && p.Date.Before(from) {
			continue
		}
		if !to.IsZero() && p.Date.After(to) {
			continue
		}
		out.Points = append(out.Points, p)
	}
	return out
}

// Fingerprint hashes every bar of the series. Equal fingerprints mean the
// same bars for cache purposes.
func (s *Series) Fingerprint() uint64 {
	h := fnv.New64a()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		h.Write(buf[:])
	}
	h.Write([]byte(s.Symbol))
	for _, p := range s.Points {
		put(uint64(p.Date.UnixNano()))
		for _, v := range []float64{p.Open, p.High, p.Low, p.Close, p.Volume,
			p.PERatio, p.PBRatio, p.MarketCap, p.DividendYield, p.ROE, p.DebtToEquity, p.EPSGrowth} {
			put(math.Float64bits(v))
		}
	}
	return h.Sum64()
}

// IndicatorFrame maps indicator keys to lines aligned with their Series.
// NaN entries are undefined (warm-up or missing input).
type IndicatorFrame map[string][]float64
