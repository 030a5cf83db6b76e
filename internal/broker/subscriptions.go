package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Miguel57216/LLM-Route/internal/hermes"
	"github.com/Miguel57216/LLM-Route/internal/store"
)

// RequestTimeout bounds one NATS route request.
const RequestTimeout = 30 * time.Second

// SetupSubscriptions answers route requests arriving over NATS.
func (b *Broker) SetupSubscriptions() error {
	if b.hermes == nil {
		return nil
	}
	return b.hermes.Respond(hermes.SubjectRouteRequest, hermes.QueueGroup, b.handleRouteRequest)
}

func (b *Broker) handleRouteRequest(_ string, data []byte) (interface{}, error) {
	var evt hermes.RouteRequestEvent
	if err := json.Unmarshal(data, &evt); err != nil {
		b.logger.Warn("invalid route request event", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	return b.Route(ctx, RouteRequest{
		Prompt:    evt.Prompt,
		Router:    evt.Router,
		Threshold: evt.Threshold,
		Model:     evt.Model,
	}, store.SourceNATS)
}
