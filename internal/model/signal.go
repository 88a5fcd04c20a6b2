package model

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Action is a per-bar trading decision.
type Action int8

const (
	Hold Action = iota
	Buy
	Sell
)

func (a Action) String() string {
	switch a {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "hold"
	}
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	switch s {
	case "buy":
		*a = Buy
	case "sell":
		*a = Sell
	case "hold", "":
		*a = Hold
	default:
		return fmt.Errorf("unknown action %q", s)
	}
	return nil
}

// Signal is the output of one strategy for one bar.
// Score is NaN when the strategy has no opinion yet (warm-up).
type Signal struct {
	Date   time.Time
	Action Action
	Score  float64
}

// Signals is the per-bar signal sequence of one strategy on one Series.
type Signals []Signal

// Actions extracts the action column.
func (s Signals) Actions() []Action {
	out := make([]Action, len(s))
	for i, sig := range s {
		out[i] = sig.Action
	}
	return out
}

// InPosition reports whether the last non-hold action is a buy.
func (s Signals) InPosition() bool {
	for i := len(s) - 1; i >= 0; i-- {
		switch s[i].Action {
		case Buy:
			return true
		case Sell:
			return false
		}
	}
	return false
}

// LastScore returns the score of the final bar and whether it is defined.
func (s Signals) LastScore() (float64, bool) {
	if len(s) == 0 {
		return 0, false
	}
	v := s[len(s)-1].Score
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// Params are the caller-supplied parameters of one strategy.
type Params map[string]float64

// Canonical renders the params in sorted key order, for cache keys.
func (p Params) Canonical() string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%g", k, p[k])
	}
	return strings.Join(parts, ",")
}
