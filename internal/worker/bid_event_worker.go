package worker

// bid_event_worker.go
// Forwards engine events from the Redis queue to the RabbitMQ topic exchange.
// The circuit breaker keeps a downed broker from stalling the pool; jobs that
// cannot be published land in the DLQ for manual replay.

import (
	"context"
	"encoding/json"

	"github.com/augustodevcode/bidexpert-engine/internal/infra"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// BidEventWorker publishes queued engine events to the broker.
type BidEventWorker struct {
	publisher *infra.EventPublisher
	cb        *infra.CircuitBreaker
	rdb       *redis.Client
}

func NewBidEventWorker(publisher *infra.EventPublisher, cb *infra.CircuitBreaker, rdb *redis.Client) *BidEventWorker {
	return &BidEventWorker{publisher: publisher, cb: cb, rdb: rdb}
}

// Process publishes one event. The job type doubles as the routing key
// (bid.accepted, lot.finalized) so consumers bind per event family.
func (w *BidEventWorker) Process(ctx context.Context, jobType string, raw json.RawMessage) {
	if w.publisher == nil {
		log.Debug().Str("type", jobType).Msg("bid_event_worker: no broker configured, dropping event")
		return
	}

	cbErr := w.cb.Execute(func() error {
		return w.publisher.Publish(ctx, jobType, raw)
	})
	infra.SetBreakerState(w.cb.State())

	if cbErr != nil {
		log.Error().Err(cbErr).Str("type", jobType).Msg("bid_event_worker: publish failed")
		SendToDLQ(ctx, w.rdb, QueueBidEvents, jobType, raw, cbErr.Error(), 1)
		return
	}
	log.Debug().Str("type", jobType).Msg("bid_event_worker: event published")
}
