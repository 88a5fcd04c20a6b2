package collector

import (
	"context"

	"QuantCore/internal/model"
)

// Source supplies raw records for a symbol. Sources live on the host side of
// the engine; the core itself only sees the records they return.
type Source interface {
	Records(ctx context.Context, symbol string) ([]model.RawRecord, error)
	Name() string
}

// Gather reads every symbol in the universe from src into a market-data map
// suitable for a Request.
func Gather(ctx context.Context, src Source, universe []string) (map[string][]model.RawRecord, error) {
	out := make(map[string][]model.RawRecord, len(universe))
	for _, sym := range universe {
		recs, err := src.Records(ctx, sym)
		if err != nil {
			return nil, err
		}
		out[sym] = recs
	}
	return out, nil
}
