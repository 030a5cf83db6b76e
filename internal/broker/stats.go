package broker

import (
	"context"
	"time"

	"github.com/Miguel57216/LLM-Route/internal/hermes"
)

func (b *Broker) statsLoop(ctx context.Context, interval time.Duration) {
	defer b.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.publishStats()
		}
	}
}

func (b *Broker) publishStats() {
	evt := hermes.StatsEvent{Routers: b.Counters(), Timestamp: time.Now().UTC()}
	if err := b.hermes.Publish(hermes.SubjectStats, evt); err != nil {
		b.logger.Warn("failed to publish stats", "error", err)
	}
}
