package collector

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"QuantCore/internal/model"
)

// ReadRequest decodes a request file. When src is set, universe symbols
// without inline market data are filled from it; symbols src has no data
// for are left out so the engine reports them as failures.
func ReadRequest(ctx context.Context, path string, src Source) (*model.Request, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read request: %w", err)
	}
	var req model.Request
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, model.Errorf(model.KindInvalidParameter, path, "decode request: %v", err)
	}
	if src == nil {
		return &req, nil
	}
	if err := FillMissing(ctx, &req, src); err != nil {
		return nil, err
	}
	return &req, nil
}

// FillMissing loads records from src for universe symbols the request
// carries no market data for.
func FillMissing(ctx context.Context, req *model.Request, src Source) error {
	if req.MarketData == nil {
		req.MarketData = make(map[string][]model.RawRecord, len(req.Universe))
	}
	for _, sym := range req.Universe {
		if _, ok := req.MarketData[sym]; ok {
			continue
		}
		recs, err := src.Records(ctx, sym)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("%s source: %w", src.Name(), err)
		}
		req.MarketData[sym] = recs
	}
	return nil
}
