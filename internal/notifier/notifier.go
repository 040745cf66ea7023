// Package notifier defines the fire-and-forget event contract the bidding
// engine emits after a durable commit. Emission failures must never affect
// whether a bid was accepted; callers log and move on.
package notifier

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Event kinds.
const (
	KindBidAccepted  = "bid.accepted"
	KindLotFinalized = "lot.finalized"
)

// Event is emitted at-least-once; duplicates are possible and consumers must
// dedupe on EventID.
type Event struct {
	EventID string `json:"event_id"`
	Kind    string `json:"kind"`

	TenantID  string `json:"tenant_id"`
	AuctionID string `json:"auction_id"`
	LotID     string `json:"lot_id"`

	BidID       string          `json:"bid_id,omitempty"`
	UserID      string          `json:"user_id,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Amount      decimal.Decimal `json:"amount"`
	AutoBid     bool            `json:"auto_bid,omitempty"`

	// Outcome is set on lot.finalized events: sold | unsold.
	Outcome string `json:"outcome,omitempty"`

	OccurredAt time.Time `json:"occurred_at"`
}

type Notifier interface {
	Emit(ctx context.Context, ev Event) error
}

// Nop discards every event. Used when no queue is configured.
type Nop struct{}

func (Nop) Emit(context.Context, Event) error { return nil }
