package dto

import "github.com/shopspring/decimal"

// ActiveStageResponse reports which pricing stage is live right now.
// Active=false means the clock is before the first stage or after the last.
type ActiveStageResponse struct {
	AuctionID    string          `json:"auction_id"`
	Active       bool            `json:"active"`
	StageNumber  int             `json:"stage_number,omitempty"`
	StartAt      string          `json:"start_at,omitempty"`
	EndAt        string          `json:"end_at,omitempty"`
	InitialPrice decimal.Decimal `json:"initial_price"`
}
