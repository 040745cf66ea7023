package worker

import (
	"context"
	"encoding/json"

	"github.com/augustodevcode/bidexpert-engine/internal/notifier"

	"github.com/redis/go-redis/v9"
)

const QueueBidEvents = "jobs:bid_events"

// Job is the generic envelope for all async tasks.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher enqueues engine events into a Redis list. It is the
// notifier.Notifier the services emit through: a fast local LPUSH keeps the
// bid path independent of broker availability. The worker pool dequeues via
// BRPOP and forwards to the broker.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// Emit implements notifier.Notifier.
func (d *Dispatcher) Emit(ctx context.Context, ev notifier.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	job := Job{Type: ev.Kind, Payload: data}
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, QueueBidEvents, encoded).Err()
}
