package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"QuantCore/internal/model"
)

// Key identifies one backtest: strategy, symbol, parameter set, date range
// and fill policy. Capital and Data pin the run inputs so a cache shared
// between requests never mixes results computed from different bars.
type Key struct {
	Strategy   string
	Symbol     string
	Params     string
	From       time.Time
	To         time.Time
	FillPolicy model.FillPolicy
	Capital    float64
	Data       uint64
}

// NewKey builds a key with params in canonical order.
func NewKey(strategy, symbol string, params model.Params, from, to time.Time, policy model.FillPolicy) Key {
	return Key{
		Strategy:   strategy,
		Symbol:     symbol,
		Params:     params.Canonical(),
		From:       from.UTC(),
		To:         to.UTC(),
		FillPolicy: policy,
	}
}

// WithRun returns k bound to an initial capital and a series fingerprint.
func (k Key) WithRun(capital float64, data uint64) Key {
	k.Capital = capital
	k.Data = data
	return k
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s|%s|%s|%g|%x", k.Strategy, k.Symbol, k.Params,
		k.From.Format(time.RFC3339), k.To.Format(time.RFC3339), k.FillPolicy, k.Capital, k.Data)
}

type ctxKey struct{}

// NewContext returns a context carrying c. The engine uses the carried cache
// instead of a fresh per-request one, so callers decide how widely results
// are shared.
func NewContext(ctx context.Context, c *Cache) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the cache carried by ctx, or nil.
func FromContext(ctx context.Context) *Cache {
	c, _ := ctx.Value(ctxKey{}).(*Cache)
	return c
}

// ComputeFunc produces the result for a key.
type ComputeFunc func(ctx context.Context) (*model.BacktestResult, error)

// Cache memoizes backtest results, by default for the lifetime of one
// request. Concurrent lookups of the same key share a single computation; only
// successful results are stored.
type Cache struct {
	// OnCompute, when set, is called each time a result is actually computed.
	OnCompute func(Key)

	group   singleflight.Group
	mu      sync.RWMutex
	entries map[Key]*model.BacktestResult

	hits     atomic.Int64
	computes atomic.Int64
}

// New creates an empty cache.
func New() *Cache {
	return &Cache{entries: make(map[Key]*model.BacktestResult)}
}

func (c *Cache) lookup(k Key) (*model.BacktestResult, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.entries[k]
	return r, ok
}

// Get returns the cached result for k, or runs compute once for all
// concurrent callers. Results are shared and must be treated as read-only.
//
// A caller whose context ends while waiting gets ComputationTimeoutError.
// If the computation it joined was cancelled by another caller's context,
// a caller with a live context starts a fresh computation.
func (c *Cache) Get(ctx context.Context, k Key, compute ComputeFunc) (*model.BacktestResult, error) {
	for {
		if r, ok := c.lookup(k); ok {
			c.hits.Add(1)
			return r, nil
		}

		ch := c.group.DoChan(k.String(), func() (any, error) {
			if r, ok := c.lookup(k); ok {
				return r, nil
			}
			c.computes.Add(1)
			if c.OnCompute != nil {
				c.OnCompute(k)
			}
			r, err := compute(ctx)
			if err != nil {
				return nil, err
			}
			c.mu.Lock()
			c.entries[k] = r
			c.mu.Unlock()
			return r, nil
		})

		select {
		case <-ctx.Done():
			return nil, model.Timeout(k.Symbol, ctx.Err())
		case res := <-ch:
			if res.Err == nil {
				return res.Val.(*model.BacktestResult), nil
			}
			if errors.Is(res.Err, model.ErrComputationTimeout) && ctx.Err() == nil {
				continue
			}
			return nil, res.Err
		}
	}
}

// Len is the number of stored results.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Stats reports cache hits and real computations so far.
func (c *Cache) Stats() (hits, computes int64) {
	return c.hits.Load(), c.computes.Load()
}
