package collector

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"

	"QuantCore/internal/model"
)

// Compile-time interface check.
var _ Source = (*ParquetSource)(nil)

// BarRecord is the Parquet schema for one daily bar.
type BarRecord struct {
	Timestamp     int64    `parquet:"timestamp,timestamp(millisecond)"` // Unix ms
	Open          float64  `parquet:"open"`
	High          float64  `parquet:"high"`
	Low           float64  `parquet:"low"`
	Close         float64  `parquet:"close"`
	Volume        float64  `parquet:"volume"`
	PERatio       *float64 `parquet:"pe_ratio,optional"`
	PBRatio       *float64 `parquet:"pb_ratio,optional"`
	MarketCap     *float64 `parquet:"market_cap,optional"`
	DividendYield *float64 `parquet:"dividend_yield,optional"`
	ROE           *float64 `parquet:"roe,optional"`
	DebtToEquity  *float64 `parquet:"debt_to_equity,optional"`
	EPSGrowth     *float64 `parquet:"eps_growth,optional"`
}

// ParquetSource reads bars from <Dir>/<SYMBOL>.parquet.
type ParquetSource struct {
	Dir string
}

// NewParquetSource creates a ParquetSource rooted at dir.
func NewParquetSource(dir string) *ParquetSource {
	return &ParquetSource{Dir: dir}
}

func (s *ParquetSource) Name() string { return "parquet" }

func (s *ParquetSource) path(symbol string) string {
	return filepath.Join(s.Dir, strings.ToUpper(symbol)+".parquet")
}

// Records reads every bar stored for symbol. Rows are returned in file order;
// ordering and validation are left to Load.
func (s *ParquetSource) Records(_ context.Context, symbol string) ([]model.RawRecord, error) {
	rows, err := parquet.ReadFile[BarRecord](s.path(symbol))
	if err != nil {
		return nil, fmt.Errorf("read parquet for %s: %w", symbol, err)
	}
	out := make([]model.RawRecord, len(rows))
	for i, r := range rows {
		out[i] = model.RawRecord{
			Date:          time.UnixMilli(r.Timestamp).UTC().Format(time.RFC3339),
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Close:         r.Close,
			Volume:        r.Volume,
			PERatio:       r.PERatio,
			PBRatio:       r.PBRatio,
			MarketCap:     r.MarketCap,
			DividendYield: r.DividendYield,
			ROE:           r.ROE,
			DebtToEquity:  r.DebtToEquity,
			EPSGrowth:     r.EPSGrowth,
		}
	}
	return out, nil
}

// Symbols lists the symbols that have a Parquet file in Dir.
func (s *ParquetSource) Symbols() ([]string, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, err
	}
	var syms []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".parquet") {
			continue
		}
		syms = append(syms, strings.TrimSuffix(e.Name(), ".parquet"))
	}
	sort.Strings(syms)
	return syms, nil
}

// WriteParquet stores raw records for symbol, replacing any existing file.
func (s *ParquetSource) WriteParquet(symbol string, recs []model.RawRecord) error {
	rows := make([]BarRecord, 0, len(recs))
	for _, r := range recs {
		date, ok := parseDate(r.Date)
		if !ok {
			return model.Errorf(model.KindDataValidation, symbol, "unparseable date %q", r.Date)
		}
		rows = append(rows, BarRecord{
			Timestamp:     date.UnixMilli(),
			Open:          r.Open,
			High:          r.High,
			Low:           r.Low,
			Close:         r.Close,
			Volume:        r.Volume,
			PERatio:       r.PERatio,
			PBRatio:       r.PBRatio,
			MarketCap:     r.MarketCap,
			DividendYield: r.DividendYield,
			ROE:           r.ROE,
			DebtToEquity:  r.DebtToEquity,
			EPSGrowth:     r.EPSGrowth,
		})
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return err
	}
	return parquet.WriteFile(s.path(symbol), rows)
}
