package collector

import (
	"context"
	"hash/fnv"
	"math"
	"time"

	"QuantCore/internal/model"
)

// MockSource generates deterministic synthetic daily bars for development.
// Each symbol gets its own drift and cycle derived from its name.
type MockSource struct {
	BasePrice float64
	Days      int
	End       time.Time
}

func (m *MockSource) Name() string { return "mock" }

func (m *MockSource) Records(_ context.Context, symbol string) ([]model.RawRecord, error) {
	base := m.BasePrice
	if base <= 0 {
		base = 100
	}
	days := m.Days
	if days <= 0 {
		days = 260
	}
	end := m.End
	if end.IsZero() {
		end = time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)
	}
	return generateMockBars(symbol, base, days, end), nil
}

func generateMockBars(symbol string, basePrice float64, count int, end time.Time) []model.RawRecord {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	seed := float64(h.Sum32()%1000) / 1000

	drift := (seed - 0.4) * 0.002
	pe := 8 + seed*30
	roe := 0.05 + seed*0.25

	// Walk back over weekdays so the bars respect the daily calendar.
	dates := make([]time.Time, 0, count)
	for d := end; len(dates) < count; d = d.AddDate(0, 0, -1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}

	bars := make([]model.RawRecord, count)
	for i := 0; i < count; i++ {
		date := dates[count-1-i]
		p := basePrice * math.Exp(drift*float64(i)) * (1 + 0.05*math.Sin(float64(i)/(7+seed*10)))
		peNow := pe * (1 + 0.1*math.Sin(float64(i)/30))
		pb := peNow / 6
		bars[i] = model.RawRecord{
			Date:    date.Format("2006-01-02"),
			Open:    p * 0.999,
			High:    p * 1.005,
			Low:     p * 0.995,
			Close:   p,
			Volume:  1000000,
			PERatio: &peNow,
			PBRatio: &pb,
			ROE:     &roe,
		}
	}
	return bars
}
