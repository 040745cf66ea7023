package dto

import "github.com/shopspring/decimal"

// ─── Requests ────────────────────────────────────────────────────────────────

type PlaceBidRequest struct {
	LotID  string          `json:"lot_id" validate:"required,uuid"`
	Amount decimal.Decimal `json:"amount" validate:"required"`
}

type SetAutoBidRequest struct {
	MaxAmount decimal.Decimal `json:"max_amount" validate:"required"`
}

// BidHistoryFilter is bound from the query string of GET /v1/lots/:id/bids.
type BidHistoryFilter struct {
	Limit int    `form:"limit,default=20" validate:"min=1"`
	Order string `form:"order,default=newest" validate:"oneof=newest highest"`
}

// ─── Responses ───────────────────────────────────────────────────────────────

// PlaceBidResponse carries either an acceptance (new price) or a structured
// rejection reason. Validation failures are results, never HTTP 5xx.
type PlaceBidResponse struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason,omitempty"`

	BidID    string          `json:"bid_id,omitempty"`
	LotID    string          `json:"lot_id"`
	NewPrice decimal.Decimal `json:"new_price"`
	BidCount int             `json:"bid_count"`
	// MinimumBid is the advertised next acceptable raise (price + increment).
	MinimumBid decimal.Decimal `json:"minimum_bid"`
	// AutoBidsResolved counts proxy counter-bids triggered by this bid.
	AutoBidsResolved int    `json:"auto_bids_resolved"`
	WinnerID         string `json:"winner_id,omitempty"`
}

type SetAutoBidResponse struct {
	Accepted  bool            `json:"accepted"`
	Reason    string          `json:"reason,omitempty"`
	LotID     string          `json:"lot_id"`
	MaxAmount decimal.Decimal `json:"max_amount"`
}

type BidResponse struct {
	ID          string          `json:"id"`
	LotID       string          `json:"lot_id"`
	UserID      string          `json:"user_id"`
	Amount      decimal.Decimal `json:"amount"`
	DisplayName string          `json:"display_name"`
	AutoBid     bool            `json:"auto_bid"`
	CreatedAt   string          `json:"created_at"`
}

type BidHistoryResponse struct {
	LotID string        `json:"lot_id"`
	Order string        `json:"order"`
	Bids  []BidResponse `json:"bids"`
}
