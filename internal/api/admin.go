package api

import (
	"net/http"

	"github.com/Miguel57216/LLM-Route/internal/broker"
	"github.com/Miguel57216/LLM-Route/internal/hermes"
	"github.com/Miguel57216/LLM-Route/internal/store"
)

type AdminHandler struct {
	store  store.Store
	broker *broker.Broker
}

func NewAdminHandler(s store.Store, b *broker.Broker) *AdminHandler {
	return &AdminHandler{store: s, broker: b}
}

// StatsResponse combines the in-process counters since start with the
// persisted per-router aggregates, when a decision log is configured.
type StatsResponse struct {
	Counters map[string]hermes.RouterCounters `json:"counters"`
	Logged   []*store.RouterStats             `json:"logged,omitempty"`
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	resp := StatsResponse{Counters: h.broker.Counters()}
	if h.store != nil {
		stats, err := h.store.GetStats(r.Context())
		if err != nil {
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
			return
		}
		resp.Logged = stats
	}
	writeJSON(w, http.StatusOK, resp)
}
