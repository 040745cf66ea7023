package service

import "errors"

// RejectReason codes a validation rejection. Rejections are results, not
// errors: they come back to the caller inside the response DTO and are never
// logged as failures.
type RejectReason string

const (
	ReasonLotNotFound     RejectReason = "lot_not_found"
	ReasonLotNotOpen      RejectReason = "lot_not_open"
	ReasonAuctionNotOpen  RejectReason = "auction_not_open"
	ReasonNoActiveStage   RejectReason = "no_active_stage"
	ReasonBidBelowFloor   RejectReason = "bid_below_floor"
	ReasonCeilingTooLow   RejectReason = "ceiling_below_price"
)

var (
	// ErrContention means the per-lot serialization could not be entered
	// within the configured wait. Retryable: the caller should re-read the
	// price and submit again.
	ErrContention = errors.New("lot is contended, retry with the latest price")

	// ErrIntegrity marks upstream data corruption (non-positive increment
	// step, winner without a ledger entry). Processing of the affected lot
	// halts rather than guessing intent.
	ErrIntegrity = errors.New("lot data integrity violation")

	// ErrNotFinalizable is returned when FinalizeLot runs before the final
	// stage has ended.
	ErrNotFinalizable = errors.New("final stage has not ended")
)
