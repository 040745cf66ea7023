package dto

import "github.com/shopspring/decimal"

type RelistLotRequest struct {
	InitialPrice     decimal.Decimal `json:"initial_price" validate:"required"`
	BidIncrementStep decimal.Decimal `json:"bid_increment_step" validate:"required"`
	// OpenImmediately skips the draft state on the relisted copy.
	OpenImmediately bool `json:"open_immediately"`
}

type LotResponse struct {
	ID           string `json:"id"`
	PublicID     string `json:"public_id"`
	AuctionID    string `json:"auction_id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	WinnerID     string `json:"winner_id,omitempty"`
	BidCount     int    `json:"bid_count"`
	OriginalLotID string `json:"original_lot_id,omitempty"`

	InitialPrice     decimal.Decimal `json:"initial_price"`
	CurrentPrice     decimal.Decimal `json:"current_price"`
	BidIncrementStep decimal.Decimal `json:"bid_increment_step"`
	EvaluationValue  decimal.Decimal `json:"evaluation_value"`
	MinimumBid       decimal.Decimal `json:"minimum_bid"`
	// DiscountPct is the active stage's discount relative to evaluation value;
	// zero when no stage is active or the evaluation value is missing.
	DiscountPct decimal.Decimal `json:"discount_pct"`

	UpdatedAt string `json:"updated_at"`
}

type FinalizeLotResponse struct {
	LotID      string          `json:"lot_id"`
	Status     string          `json:"status"`
	WinnerID   string          `json:"winner_id,omitempty"`
	FinalPrice decimal.Decimal `json:"final_price"`
	BidCount   int             `json:"bid_count"`
}
