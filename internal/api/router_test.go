package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Miguel57216/LLM-Route/internal/broker"
	"github.com/Miguel57216/LLM-Route/internal/estimator"
	"github.com/Miguel57216/LLM-Route/internal/router"
	"github.com/Miguel57216/LLM-Route/internal/store"
)

// prefixEstimator returns a fixed win rate, failing prompts that start with
// "fail" and panicking on "panic".
type prefixEstimator struct {
	name    string
	winRate float64
}

func (p *prefixEstimator) Estimate(_ context.Context, prompt string) (float64, error) {
	switch {
	case strings.HasPrefix(prompt, "fail"):
		return 0, &estimator.InvocationError{Estimator: p.name, Err: errors.New("upstream timeout")}
	case strings.HasPrefix(prompt, "panic"):
		panic("boom")
	}
	return p.winRate, nil
}

func (p *prefixEstimator) ParallelSafe() bool { return true }
func (p *prefixEstimator) Name() string       { return p.name }

func discardLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestServer(t *testing.T, s store.Store, adminToken string) (http.Handler, *broker.Broker) {
	t.Helper()
	cfg := router.Config{Strong: "gpt4", Weak: "mixtral", Threshold: 0.5}
	hi, err := router.New(cfg, &prefixEstimator{name: "high", winRate: 0.8})
	require.NoError(t, err)
	lo, err := router.New(cfg, &prefixEstimator{name: "low", winRate: 0.2})
	require.NoError(t, err)

	b, err := broker.New(map[string]*router.Engine{"high": hi, "low": lo}, "high", s, nil, 2, discardLogger())
	require.NoError(t, err)
	return NewRouter(b, s, adminToken, 0, discardLogger()), b
}

func newSQLite(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLiteStore(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRoute_DefaultRouter(t *testing.T) {
	h, _ := newTestServer(t, nil, "")

	w := do(t, h, "POST", "/api/v1/route", map[string]string{"prompt": "prove the Riemann hypothesis"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res broker.RouteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, estimator.SideStrong, res.Side)
	assert.Equal(t, "gpt4", res.Model)
	assert.Equal(t, 0.8, res.WinRate)
	assert.Nil(t, res.DecisionID)
}

func TestRoute_ModelNameAndThreshold(t *testing.T) {
	h, _ := newTestServer(t, nil, "")

	w := do(t, h, "POST", "/api/v1/route", map[string]string{"prompt": "hi", "model": "router-low-0.1"})
	require.Equal(t, http.StatusOK, w.Code)
	var res broker.RouteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, estimator.SideStrong, res.Side)
	assert.Equal(t, 0.1, res.Threshold)

	w = do(t, h, "POST", "/api/v1/route", map[string]interface{}{"prompt": "hi", "router": "high", "threshold": 0.9})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, estimator.SideWeak, res.Side)
	assert.Equal(t, "mixtral", res.Model)
}

func TestRoute_ErrorStatuses(t *testing.T) {
	h, _ := newTestServer(t, nil, "")

	tests := []struct {
		name string
		body interface{}
		want int
	}{
		{"bad json", "{", http.StatusBadRequest},
		{"empty prompt", map[string]string{"prompt": ""}, http.StatusBadRequest},
		{"bad threshold", map[string]interface{}{"prompt": "x", "threshold": 2}, http.StatusBadRequest},
		{"bad model name", map[string]string{"prompt": "x", "model": "gpt-4"}, http.StatusBadRequest},
		{"unknown router", map[string]string{"prompt": "x", "router": "oracle"}, http.StatusNotFound},
		{"estimator failure", map[string]string{"prompt": "fail please"}, http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, h, "POST", "/api/v1/route", tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestRoute_RecoversFromPanic(t *testing.T) {
	h, _ := newTestServer(t, nil, "")
	w := do(t, h, "POST", "/api/v1/route", map[string]string{"prompt": "panic now"})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestEstimate(t *testing.T) {
	h, _ := newTestServer(t, nil, "")

	w := do(t, h, "POST", "/api/v1/estimate", map[string]string{"prompt": "hi", "router": "low"})
	require.Equal(t, http.StatusOK, w.Code)
	var res EstimateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "low", res.Router)
	assert.Equal(t, 0.2, res.WinRate)

	w = do(t, h, "POST", "/api/v1/estimate", map[string]string{"prompt": "hi"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, "high", res.Router)
}

func TestBatch(t *testing.T) {
	s := newSQLite(t)
	h, _ := newTestServer(t, s, "")

	w := do(t, h, "POST", "/api/v1/route/batch", BatchRequest{Prompts: []string{"a", "fail b", "c"}, Router: "low"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.Len(t, res.Results, 3)
	assert.Equal(t, "weak", res.Results[0].RoutedTo)
	assert.NotEmpty(t, res.Results[1].Error)
	assert.Equal(t, 2, res.Summary.Weak)
	assert.Equal(t, 1, res.Summary.Failed)

	decisions, err := s.ListDecisions(context.Background(), store.DecisionFilter{})
	require.NoError(t, err)
	assert.Len(t, decisions, 2)

	w = do(t, h, "POST", "/api/v1/route/batch", BatchRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, h, "POST", "/api/v1/route/batch", BatchRequest{Prompts: make([]string, MaxBatchPrompts+1)})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestRouters(t *testing.T) {
	h, _ := newTestServer(t, nil, "")
	w := do(t, h, "GET", "/api/v1/routers", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var infos []broker.RouterInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.Len(t, infos, 2)
	assert.Equal(t, "high", infos[0].Name)
	assert.True(t, infos[0].Default)
	assert.Equal(t, "gpt4", infos[1].StrongModel)
}

func TestDecisions(t *testing.T) {
	s := newSQLite(t)
	h, _ := newTestServer(t, s, "")

	w := do(t, h, "POST", "/api/v1/route", map[string]string{"prompt": "hello"})
	require.Equal(t, http.StatusOK, w.Code)
	var res broker.RouteResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	require.NotNil(t, res.DecisionID)

	do(t, h, "POST", "/api/v1/route", map[string]string{"prompt": "hello", "router": "low"})

	w = do(t, h, "GET", "/api/v1/decisions?router=low", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list []store.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "weak", list[0].RoutedTo)
	assert.Equal(t, store.HashPrompt("hello"), list[0].PromptHash)

	w = do(t, h, "GET", "/api/v1/decisions/"+res.DecisionID.String(), nil)
	require.Equal(t, http.StatusOK, w.Code)
	var d store.Decision
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &d))
	assert.Equal(t, *res.DecisionID, d.ID)
	assert.Equal(t, "high", d.Router)

	w = do(t, h, "GET", "/api/v1/decisions/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, "GET", "/api/v1/decisions/00000000-0000-0000-0000-000000000001", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = do(t, h, "GET", "/api/v1/decisions?limit=-3", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, h, "GET", "/api/v1/decisions?since=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecisions_NoStore(t *testing.T) {
	h, _ := newTestServer(t, nil, "")
	w := do(t, h, "GET", "/api/v1/decisions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestStats(t *testing.T) {
	s := newSQLite(t)
	h, _ := newTestServer(t, s, "secret")

	do(t, h, "POST", "/api/v1/route", map[string]string{"prompt": "one"})
	do(t, h, "POST", "/api/v1/route", map[string]string{"prompt": "two", "router": "low"})
	do(t, h, "POST", "/api/v1/route", map[string]string{"prompt": "fail three"})

	w := do(t, h, "GET", "/api/v1/stats", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(t, h, "GET", "/api/v1/stats", nil, "Authorization", "Bearer secret")
	require.Equal(t, http.StatusOK, w.Code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.Counters["high"].Strong)
	assert.Equal(t, int64(1), stats.Counters["high"].Failed)
	assert.Equal(t, int64(1), stats.Counters["low"].Weak)
	require.Len(t, stats.Logged, 2)
}

func TestMetricsRouter(t *testing.T) {
	h := NewMetricsRouter()

	w := do(t, h, "GET", "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	w = do(t, h, "GET", "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
