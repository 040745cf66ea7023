package service

import (
	"context"

	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/clock"
	"github.com/augustodevcode/bidexpert-engine/internal/dto"
	"github.com/augustodevcode/bidexpert-engine/internal/model"
	"github.com/augustodevcode/bidexpert-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// StageService resolves which pricing stage of an auction is live.
type StageService interface {
	ActiveStage(ctx context.Context, auctionID uuid.UUID) (*dto.ActiveStageResponse, error)
}

type stageService struct {
	auctions repository.AuctionRepository
	clk      clock.Clock
}

func NewStageService(auctions repository.AuctionRepository, clk clock.Clock) StageService {
	return &stageService{auctions: auctions, clk: clk}
}

func (s *stageService) ActiveStage(ctx context.Context, auctionID uuid.UUID) (*dto.ActiveStageResponse, error) {
	auction, err := s.auctions.FindByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	resp := &dto.ActiveStageResponse{AuctionID: auctionID.String()}
	stage := ActiveStageAt(auction.Stages, s.clk.Now())
	if stage == nil {
		return resp, nil
	}
	resp.Active = true
	resp.StageNumber = stage.Number
	resp.StartAt = stage.StartAt.Format(time.RFC3339)
	resp.EndAt = stage.EndAt.Format(time.RFC3339)
	resp.InitialPrice = stage.InitialPrice
	return resp, nil
}

// ActiveStageAt returns the stage whose window contains now, or nil when the
// clock is before the first stage or past the last one. Stages should never
// overlap; if misconfigured data makes two stages contain now, the
// earliest-starting one wins and the overlap is logged as a data-integrity
// warning rather than crashing the lot.
func ActiveStageAt(stages []model.AuctionStage, now time.Time) *model.AuctionStage {
	var active *model.AuctionStage
	for i := range stages {
		st := &stages[i]
		if !st.Contains(now) {
			continue
		}
		if active == nil || st.StartAt.Before(active.StartAt) {
			if active != nil {
				log.Warn().
					Str("auction_id", st.AuctionID.String()).
					Int("stage_a", active.Number).
					Int("stage_b", st.Number).
					Msg("overlapping auction stages, earliest start wins")
			}
			active = st
		} else {
			log.Warn().
				Str("auction_id", st.AuctionID.String()).
				Int("stage_a", active.Number).
				Int("stage_b", st.Number).
				Msg("overlapping auction stages, earliest start wins")
		}
	}
	return active
}

// FinalStage returns the stage with the latest end time, or nil for an
// auction with no stages.
func FinalStage(stages []model.AuctionStage) *model.AuctionStage {
	var final *model.AuctionStage
	for i := range stages {
		st := &stages[i]
		if final == nil || st.EndAt.After(final.EndAt) {
			final = st
		}
	}
	return final
}

// StageDiscount computes a stage's discount percentage relative to the lot's
// evaluation value. Zero when the evaluation value is missing or non-positive.
func StageDiscount(evaluation, stageInitial decimal.Decimal) decimal.Decimal {
	if evaluation.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	hundred := decimal.NewFromInt(100)
	return evaluation.Sub(stageInitial).Div(evaluation).Mul(hundred).Round(2)
}
