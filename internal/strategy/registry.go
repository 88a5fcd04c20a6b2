package strategy

import (
	"sort"
	"sync"

	"QuantCore/internal/calculator"
	"QuantCore/internal/model"
)

// Registry maps strategy ids to definitions. It is safe for concurrent use.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]Definition)}
}

// Register adds a definition. Registering an id twice is an error.
func (r *Registry) Register(d Definition) error {
	if d.ID == "" || d.New == nil {
		return model.Errorf(model.KindInvalidParameter, d.ID, "definition needs an id and a constructor")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[d.ID]; ok {
		return model.Errorf(model.KindInvalidParameter, d.ID, "strategy already registered")
	}
	r.defs[d.ID] = d
	return nil
}

// Lookup returns the definition for id.
func (r *Registry) Lookup(id string) (Definition, error) {
	r.mu.RLock()
	d, ok := r.defs[id]
	r.mu.RUnlock()
	if !ok {
		return Definition{}, model.Errorf(model.KindUnknownStrategy, id, "no such strategy")
	}
	return d, nil
}

// New validates params and constructs the strategy.
func (r *Registry) New(id string, params model.Params) (Strategy, error) {
	d, err := r.Lookup(id)
	if err != nil {
		return nil, err
	}
	return d.New(params)
}

// List returns every definition sorted by id.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Definition, 0, len(r.defs))
	for _, d := range r.defs {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the built-in catalog.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultReg = NewRegistry()
		for _, d := range Catalog() {
			if err := defaultReg.Register(d); err != nil {
				panic(err)
			}
		}
	})
	return defaultReg
}

// Catalog returns fresh copies of the built-in definitions.
func Catalog() []Definition {
	momentum := Definition{
		ID: "simple_momentum", Category: CategoryMomentum,
		Description: "buy when rate of change crosses above entry, sell below exit",
		Params:      momentumParams, New: newMomentum,
	}
	lowPE := Definition{
		ID: "low_pe", Category: CategoryValue,
		Description: "hold while P/E is positive and cheap",
		Params:      lowPEParams, New: newRatioScreen("low_pe", CategoryValue, calculator.KindPE, "pe", lowPEParams, inverse),
	}
	quality := Definition{
		ID: "quality_roe", Category: CategoryQuality,
		Description: "hold while return on equity is high and leverage moderate",
		Params:      qualityParams, New: newQualityROE,
	}
	return []Definition{
		momentum,
		{
			ID: "ma_crossover", Category: CategoryMomentum,
			Description: "buy on a fast SMA crossing above the slow SMA, sell on the reverse",
			Params:      crossoverParams, New: newCrossover,
		},
		{
			ID: "macd_cross", Category: CategoryMomentum,
			Description: "buy when the MACD histogram turns positive, sell when it turns negative",
			Params:      macdParams, New: newMACDCross,
		},
		{
			ID: "channel_breakout", Category: CategoryMomentum,
			Description: "buy a close above the prior channel high, sell a close below the prior low",
			Params:      breakoutParams, New: newBreakout,
		},
		{
			ID: "rsi_reversion", Category: CategoryMeanReversion,
			Description: "buy when RSI crosses below oversold, sell when it crosses above overbought",
			Params:      rsiParams, New: newRSIReversion,
		},
		{
			ID: "bollinger_reversal", Category: CategoryMeanReversion,
			Description: "buy a close under the lower band, sell once it regains the middle band",
			Params:      bollingerParams, New: newBollingerReversal,
		},
		lowPE,
		{
			ID: "low_pb", Category: CategoryValue,
			Description: "hold while P/B is positive and cheap",
			Params:      lowPBParams, New: newRatioScreen("low_pb", CategoryValue, calculator.KindPB, "pb", lowPBParams, inverse),
		},
		{
			ID: "peg_growth", Category: CategoryGrowth,
			Description: "hold while PEG is positive and low",
			Params:      pegParams, New: newRatioScreen("peg_growth", CategoryGrowth, calculator.KindPEG, "peg", pegParams, negate),
		},
		quality,
		{
			ID: "high_dividend", Category: CategoryValue,
			Description: "hold while dividend yield is at or above the minimum",
			Params:      dividendParams, New: newHighDividend,
		},
		compositeDefinition("value_quality", "cheap and profitable", lowPE, quality),
		compositeDefinition("momentum_value", "trending and cheap", momentum, lowPE),
	}
}
