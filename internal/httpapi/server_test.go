package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"QuantCore/internal/model"
	"QuantCore/internal/pipeline"
	"QuantCore/internal/recorder"
)

func bars(pe float64) []model.RawRecord {
	day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	recs := make([]model.RawRecord, 30)
	for i := range recs {
		v := pe
		c := 100 + float64(i)
		recs[i] = model.RawRecord{
			Date: day.AddDate(0, 0, i).Format("2006-01-02"),
			Open: c, High: c + 1, Low: c - 1, Close: c, Volume: 1000,
			PERatio: &v,
		}
	}
	return recs
}

func newTestServer(t *testing.T) (*Server, *recorder.SQLiteRecorder) {
	t.Helper()
	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "api.db"), nil)
	if err != nil {
		t.Fatalf("NewSQLiteRecorder failed: %v", err)
	}
	t.Cleanup(func() { rec.Close() })
	eng := pipeline.NewEngine(nil, pipeline.Options{Workers: 2}, nil)
	return NewServer(eng, rec, nil), rec
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if raw, ok := body.(string); ok {
			buf.WriteString(raw)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestAnalyze(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/v1/analyze", model.Request{
		StrategyIDs: []string{"low_pe"},
		MarketData:  map[string][]model.RawRecord{"AAA": bars(10), "BBB": bars(20)},
		Universe:    []string{"AAA", "BBB"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp model.Response
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Results) != 2 || resp.Results[0].Symbol != "AAA" {
		t.Errorf("expected AAA first, got %+v", resp.Results)
	}

	w = do(t, s, http.MethodGet, "/api/v1/runs", nil)
	var runs struct {
		Runs []recorder.RunSummary `json:"runs"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs.Runs) != 1 || runs.Runs[0].RunID != resp.RunID || runs.Runs[0].Source != "http" {
		t.Errorf("analysis not recorded: %+v", runs.Runs)
	}
}

func TestAnalyze_Errors(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		name   string
		body   any
		status int
		kind   model.Kind
	}{
		{"bad json", "{", http.StatusBadRequest, model.KindInvalidParameter},
		{"unknown strategy", model.Request{StrategyIDs: []string{"nope"}, Universe: []string{"AAA"}}, http.StatusNotFound, model.KindUnknownStrategy},
		{"empty universe", model.Request{StrategyIDs: []string{"low_pe"}}, http.StatusBadRequest, model.KindInvalidParameter},
		{"negative capital", model.Request{StrategyIDs: []string{"low_pe"}, Universe: []string{"AAA"}, InitialCapital: -1}, http.StatusUnprocessableEntity, model.KindInsufficientCapital},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, s, http.MethodPost, "/api/v1/analyze", tt.body)
			if w.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, w.Code, w.Body.String())
			}
			var p model.ErrorPayload
			if err := json.Unmarshal(w.Body.Bytes(), &p); err != nil {
				t.Fatalf("decode payload: %v", err)
			}
			if p.Error != tt.kind {
				t.Errorf("expected %s, got %s", tt.kind, p.Error)
			}
		})
	}
}

func TestBacktest(t *testing.T) {
	s, _ := newTestServer(t)
	w := do(t, s, http.MethodPost, "/api/v1/backtest", model.BacktestRequest{
		StrategyID: "low_pe",
		Symbol:     "AAA",
		Records:    bars(10),
		FillPolicy: model.FillSameClose,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var res model.BacktestResult
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(res.ValuePath) != 30 || len(res.Fills) != 1 {
		t.Errorf("expected 30 values and one fill, got %d and %d", len(res.ValuePath), len(res.Fills))
	}
}

func TestStrategiesAndHealth(t *testing.T) {
	s, _ := newTestServer(t)

	w := do(t, s, http.MethodGet, "/api/v1/strategies", nil)
	var list struct {
		Strategies []struct {
			ID string `json:"id"`
		} `json:"strategies"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode strategies: %v", err)
	}
	if len(list.Strategies) != 13 {
		t.Errorf("expected 13 strategies, got %d", len(list.Strategies))
	}

	if w := do(t, s, http.MethodGet, "/api/v1/strategies/rsi_reversion", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 for a known strategy, got %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/v1/strategies/nope", nil); w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for an unknown strategy, got %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/v1/runs?limit=0", nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for a bad limit, got %d", w.Code)
	}
	if w := do(t, s, http.MethodGet, "/api/v1/health", nil); w.Code != http.StatusOK {
		t.Errorf("expected 200 from health, got %d", w.Code)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[model.Kind]int{
		model.KindDataValidation:      http.StatusBadRequest,
		model.KindDuplicateRecord:     http.StatusBadRequest,
		model.KindInvalidParameter:    http.StatusBadRequest,
		model.KindUnknownStrategy:     http.StatusNotFound,
		model.KindInsufficientData:    http.StatusUnprocessableEntity,
		model.KindInsufficientCapital: http.StatusUnprocessableEntity,
		model.KindComputationTimeout:  http.StatusGatewayTimeout,
		model.KindInternal:            http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := StatusFor(kind); got != want {
			t.Errorf("StatusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}
