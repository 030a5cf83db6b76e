package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/Miguel57216/LLM-Route/internal/batch"
	"github.com/Miguel57216/LLM-Route/internal/broker"
	"github.com/Miguel57216/LLM-Route/internal/estimator"
	"github.com/Miguel57216/LLM-Route/internal/store"
)

// MaxBatchPrompts caps one batch request.
const MaxBatchPrompts = 1000

type RouteHandler struct {
	broker *broker.Broker
}

func NewRouteHandler(b *broker.Broker) *RouteHandler {
	return &RouteHandler{broker: b}
}

func (h *RouteHandler) Route(w http.ResponseWriter, r *http.Request) {
	var req broker.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	res, err := h.broker.Route(r.Context(), req, store.SourceAPI)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

type EstimateRequest struct {
	Prompt string `json:"prompt"`
	Router string `json:"router,omitempty"`
}

type EstimateResponse struct {
	Router  string  `json:"router"`
	WinRate float64 `json:"win_rate"`
}

func (h *RouteHandler) Estimate(w http.ResponseWriter, r *http.Request) {
	var req EstimateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	name := req.Router
	if name == "" {
		name = h.broker.DefaultRouter()
	}
	winRate, err := h.broker.Estimate(r.Context(), name, req.Prompt)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, EstimateResponse{Router: name, WinRate: winRate})
}

type BatchRequest struct {
	Prompts   []string `json:"prompts"`
	Router    string   `json:"router,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

type BatchItem struct {
	Index     int     `json:"index"`
	RoutedTo  string  `json:"routed_to,omitempty"`
	Model     string  `json:"model,omitempty"`
	WinRate   float64 `json:"win_rate"`
	Threshold float64 `json:"threshold"`
	Error     string  `json:"error,omitempty"`
}

type BatchResponse struct {
	Router  string        `json:"router"`
	Results []BatchItem   `json:"results"`
	Summary batch.Summary `json:"summary"`
}

func (h *RouteHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if len(req.Prompts) > MaxBatchPrompts {
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{"error": "too many prompts"})
		return
	}
	name := req.Router
	if name == "" {
		name = h.broker.DefaultRouter()
	}

	results, summary, err := h.broker.RouteBatch(r.Context(), name, req.Prompts, req.Threshold)
	if err != nil {
		writeError(w, err)
		return
	}

	items := make([]BatchItem, len(results))
	for i, res := range results {
		item := BatchItem{Index: res.Index}
		if res.Err != nil {
			item.Error = res.Err.Error()
		} else {
			item.RoutedTo = string(res.Decision.Side)
			item.Model = res.Decision.Model
			item.WinRate = res.Decision.WinRate
			item.Threshold = res.Decision.Threshold
		}
		items[i] = item
	}
	writeJSON(w, http.StatusOK, BatchResponse{Router: name, Results: items, Summary: summary})
}

func (h *RouteHandler) Routers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.broker.Routers())
}

// writeError maps broker and estimator errors to HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var ie *estimator.InvocationError
	switch {
	case errors.Is(err, broker.ErrInvalidRequest):
		status = http.StatusBadRequest
	case errors.Is(err, broker.ErrUnknownRouter):
		status = http.StatusNotFound
	case errors.As(err, &ie):
		status = http.StatusBadGateway
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
