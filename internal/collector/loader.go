package collector

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"QuantCore/internal/model"
)

var dateLayouts = []string{"2006-01-02", time.RFC3339, "2006-01-02 15:04:05"}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// Load validates raw records and normalizes them into a date-ordered Series.
// It never coerces bad input: the first offending record fails the load.
func Load(symbol string, raw []model.RawRecord, cal model.Calendar) (*model.Series, error) {
	if cal == "" {
		cal = model.CalendarDaily
	}
	if !cal.Valid() {
		return nil, model.Errorf(model.KindInvalidParameter, symbol, "unknown calendar %q", cal)
	}
	if len(raw) == 0 {
		return nil, model.Errorf(model.KindInsufficientData, symbol, "no records")
	}

	points := make([]model.PricePoint, len(raw))
	for i, r := range raw {
		p, err := toPoint(symbol, i, r)
		if err != nil {
			return nil, err
		}
		points[i] = p
	}

	sort.SliceStable(points, func(i, j int) bool { return points[i].Date.Before(points[j].Date) })

	for i := 1; i < len(points); i++ {
		prev, cur := points[i-1].Date, points[i].Date
		if cur.Equal(prev) {
			return nil, model.Errorf(model.KindDuplicateRecord, symbol, "duplicate date %s", cur.Format("2006-01-02"))
		}
		if gap := cur.Sub(prev); gap > cal.MaxGap() {
			return nil, model.Errorf(model.KindDataValidation, symbol,
				"gap of %.0f days between %s and %s exceeds %s calendar",
				gap.Hours()/24, prev.Format("2006-01-02"), cur.Format("2006-01-02"), cal)
		}
	}

	return &model.Series{Symbol: symbol, Calendar: cal, Points: points}, nil
}

func toPoint(symbol string, i int, r model.RawRecord) (model.PricePoint, error) {
	id := recordID(symbol, i)
	date, ok := parseDate(r.Date)
	if !ok {
		return model.PricePoint{}, model.Errorf(model.KindDataValidation, id, "unparseable date %q", r.Date)
	}
	for _, v := range []float64{r.Open, r.High, r.Low, r.Close, r.Volume} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return model.PricePoint{}, model.Errorf(model.KindDataValidation, id, "non-finite value")
		}
	}
	switch {
	case r.Open < 0 || r.High < 0 || r.Low < 0 || r.Close < 0:
		return model.PricePoint{}, model.Errorf(model.KindDataValidation, id, "negative price")
	case r.High < math.Max(r.Open, r.Close):
		return model.PricePoint{}, model.Errorf(model.KindDataValidation, id, "high %.4f below max(open, close)", r.High)
	case r.Low > math.Min(r.Open, r.Close):
		return model.PricePoint{}, model.Errorf(model.KindDataValidation, id, "low %.4f above min(open, close)", r.Low)
	case r.Volume < 0:
		return model.PricePoint{}, model.Errorf(model.KindDataValidation, id, "negative volume")
	}

	return model.PricePoint{
		Date:   date,
		Open:   r.Open,
		High:   r.High,
		Low:    r.Low,
		Close:  r.Close,
		Volume: r.Volume,
		Fundamentals: model.Fundamentals{
			PERatio:       optional(r.PERatio),
			PBRatio:       optional(r.PBRatio),
			MarketCap:     optional(r.MarketCap),
			DividendYield: optional(r.DividendYield),
			ROE:           optional(r.ROE),
			DebtToEquity:  optional(r.DebtToEquity),
			EPSGrowth:     optional(r.EPSGrowth),
		},
	}, nil
}

func optional(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func recordID(symbol string, i int) string {
	return fmt.Sprintf("%s[%d]", symbol, i)
}
