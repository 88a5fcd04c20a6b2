package model

import "time"

// Request is the single entry contract of the engine.
type Request struct {
	StrategyIDs    []string               `json:"strategy_ids"`
	Parameters     map[string]Params      `json:"parameters,omitempty"`
	MarketData     map[string][]RawRecord `json:"market_data"`
	Universe       []string               `json:"universe"`
	OutputCount    int                    `json:"output_count"`
	Weights        map[string]float64     `json:"weights,omitempty"`
	Calendar       Calendar               `json:"calendar,omitempty"`
	Resample       Calendar               `json:"resample,omitempty"`
	From           string                 `json:"from,omitempty"`
	To             string                 `json:"to,omitempty"`
	InitialCapital float64                `json:"initial_capital,omitempty"`
	FillPolicy     FillPolicy             `json:"fill_policy,omitempty"`
}

// BacktestRequest asks for the full result of one strategy on one symbol.
type BacktestRequest struct {
	StrategyID     string      `json:"strategy_id"`
	Params         Params      `json:"params,omitempty"`
	Symbol         string      `json:"symbol"`
	Records        []RawRecord `json:"records"`
	Calendar       Calendar    `json:"calendar,omitempty"`
	From           string      `json:"from,omitempty"`
	To             string      `json:"to,omitempty"`
	InitialCapital float64     `json:"initial_capital,omitempty"`
	FillPolicy     FillPolicy  `json:"fill_policy,omitempty"`
}

// Reliability describes how much of the universe backs a response.
type Reliability struct {
	DataQuality float64   `json:"dataQuality"`
	Coverage    float64   `json:"coverage"`
	CompletedAt time.Time `json:"completedAt"`
}

// Failure reports a symbol excluded from the ranking.
type Failure struct {
	Symbol   string `json:"symbol"`
	Strategy string `json:"strategy,omitempty"`
	Kind     Kind   `json:"kind"`
	Detail   string `json:"detail"`
}

// Response is the successful reply to a Request.
type Response struct {
	RunID         string         `json:"runId"`
	Results       []RankedResult `json:"results"`
	TotalAnalyzed int            `json:"totalAnalyzed"`
	ConditionMet  int            `json:"conditionMet"`
	Reliability   Reliability    `json:"reliability"`
	Failures      []Failure      `json:"failures,omitempty"`
}

// ErrorPayload is the reply when a Request fails as a whole.
type ErrorPayload struct {
	Error   Kind   `json:"error"`
	Details string `json:"details"`
}
