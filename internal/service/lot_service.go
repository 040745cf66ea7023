package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/clock"
	"github.com/augustodevcode/bidexpert-engine/internal/dto"
	"github.com/augustodevcode/bidexpert-engine/internal/infra"
	"github.com/augustodevcode/bidexpert-engine/internal/lock"
	"github.com/augustodevcode/bidexpert-engine/internal/model"
	"github.com/augustodevcode/bidexpert-engine/internal/notifier"
	"github.com/augustodevcode/bidexpert-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// LotService owns the lot lifecycle outside the bid path: reads, finalization,
// administrative suspension / cancellation, and relisting.
type LotService interface {
	Get(ctx context.Context, lotID uuid.UUID) (*dto.LotResponse, error)
	GetByPublicID(ctx context.Context, publicID string) (*dto.LotResponse, error)

	// Finalize closes an open lot once its auction's final stage has ended:
	// sold to the highest bidder when the ledger is non-empty, unsold
	// otherwise. Idempotent on already-terminal lots.
	Finalize(ctx context.Context, lotID uuid.UUID) (*dto.FinalizeLotResponse, error)

	// FinalizeDue finalizes up to limit open lots whose final stage has
	// ended. Returns how many were finalized.
	FinalizeDue(ctx context.Context, limit int) (int, error)

	Suspend(ctx context.Context, lotID uuid.UUID) (*dto.LotResponse, error)
	Cancel(ctx context.Context, lotID uuid.UUID) (*dto.LotResponse, error)

	// Relist creates a fresh copy of a sold or unsold lot with a clean
	// ledger and marks the original relisted. The original is never mutated
	// beyond its status.
	Relist(ctx context.Context, lotID uuid.UUID, req dto.RelistLotRequest) (*dto.LotResponse, error)
}

type lotService struct {
	lots     repository.LotRepository
	bids     repository.BidRepository
	autoBids repository.AutoBidRepository
	auctions repository.AuctionRepository
	locks    *lock.Keyed
	clk      clock.Clock
	notif    notifier.Notifier
	lockWait time.Duration
}

func NewLotService(
	lots repository.LotRepository,
	bids repository.BidRepository,
	autoBids repository.AutoBidRepository,
	auctions repository.AuctionRepository,
	locks *lock.Keyed,
	clk clock.Clock,
	notif notifier.Notifier,
	lockWait time.Duration,
) LotService {
	if lockWait <= 0 {
		lockWait = 2 * time.Second
	}
	return &lotService{
		lots:     lots,
		bids:     bids,
		autoBids: autoBids,
		auctions: auctions,
		locks:    locks,
		clk:      clk,
		notif:    notif,
		lockWait: lockWait,
	}
}

// ── Reads ────────────────────────────────────────────────────────────────────

func (s *lotService) Get(ctx context.Context, lotID uuid.UUID) (*dto.LotResponse, error) {
	lot, err := s.lots.FindByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, lot)
}

func (s *lotService) GetByPublicID(ctx context.Context, publicID string) (*dto.LotResponse, error) {
	lot, err := s.lots.FindByPublicID(ctx, publicID)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, lot)
}

func (s *lotService) toResponse(ctx context.Context, lot *model.Lot) (*dto.LotResponse, error) {
	resp := &dto.LotResponse{
		ID:               lot.ID.String(),
		PublicID:         lot.PublicID,
		AuctionID:        lot.AuctionID.String(),
		Title:            lot.Title,
		Status:           lot.Status,
		BidCount:         lot.BidCount,
		InitialPrice:     lot.InitialPrice,
		CurrentPrice:     lot.CurrentPrice,
		BidIncrementStep: lot.BidIncrementStep,
		EvaluationValue:  lot.EvaluationValue,
		UpdatedAt:        lot.UpdatedAt.Format(time.RFC3339),
	}
	if lot.WinnerID != nil {
		resp.WinnerID = lot.WinnerID.String()
	}
	if lot.OriginalLotID != nil {
		resp.OriginalLotID = lot.OriginalLotID.String()
	}

	if !lot.AcceptsBids() {
		return resp, nil
	}

	// Advertised floor and stage discount only matter while bidding is live.
	auction, err := s.auctions.FindByID(ctx, lot.AuctionID)
	if err != nil {
		return nil, err
	}
	stage := ActiveStageAt(auction.Stages, s.clk.Now())
	if lot.BidCount > 0 {
		resp.MinimumBid = lot.CurrentPrice.Add(lot.BidIncrementStep)
	} else if stage != nil {
		resp.MinimumBid = stage.InitialPrice.Add(lot.BidIncrementStep)
	}
	if stage != nil {
		resp.DiscountPct = StageDiscount(lot.EvaluationValue, stage.InitialPrice)
	}
	return resp, nil
}

// ── Finalization ─────────────────────────────────────────────────────────────

func (s *lotService) Finalize(ctx context.Context, lotID uuid.UUID) (*dto.FinalizeLotResponse, error) {
	release, err := s.acquire(ctx, lotID)
	if err != nil {
		return nil, err
	}
	defer release()

	resp := &dto.FinalizeLotResponse{LotID: lotID.String()}
	var outcomeEv *notifier.Event

	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		lot, err := s.lots.FindForUpdateTx(tx, lotID)
		if err != nil {
			return err
		}
		if lot.Terminal() {
			// Already settled; report the recorded outcome.
			fillFinalizeResponse(resp, lot)
			return nil
		}
		if !lot.AcceptsBids() {
			// Suspended or draft lots are not finalized by the timeline.
			fillFinalizeResponse(resp, lot)
			return nil
		}

		auction, err := s.auctions.FindByID(ctx, lot.AuctionID)
		if err != nil {
			return err
		}
		final := FinalStage(auction.Stages)
		if final == nil || s.clk.Now().Before(final.EndAt) {
			return ErrNotFinalizable
		}

		status := model.LotUnsold
		var winnerID *uuid.UUID
		if lot.BidCount > 0 {
			top, err := s.bids.HighestByLotTx(tx, lotID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("%w: lot %s has bid_count %d but an empty ledger", ErrIntegrity, lot.PublicID, lot.BidCount)
				}
				return err
			}
			status = model.LotSold
			winnerID = &top.UserID
		}

		if err := s.lots.FinalizeTx(tx, lotID, status, winnerID); err != nil {
			return err
		}
		if err := s.autoBids.DeactivateAllForLotTx(tx, lotID); err != nil {
			return err
		}

		lot.Status = status
		lot.WinnerID = winnerID
		fillFinalizeResponse(resp, lot)

		outcome := "unsold"
		if status == model.LotSold {
			outcome = "sold"
		}
		ev := notifier.Event{
			EventID:    uuid.NewString(),
			Kind:       notifier.KindLotFinalized,
			TenantID:   lot.TenantID.String(),
			AuctionID:  lot.AuctionID.String(),
			LotID:      lot.ID.String(),
			Amount:     lot.CurrentPrice,
			Outcome:    outcome,
			OccurredAt: s.clk.Now(),
		}
		if winnerID != nil {
			ev.UserID = winnerID.String()
		}
		outcomeEv = &ev
		infra.IncLotFinalized(outcome)
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	if outcomeEv != nil {
		if err := s.notif.Emit(ctx, *outcomeEv); err != nil {
			log.Warn().Err(err).Str("lot_id", lotID.String()).Msg("finalize event emission failed, continuing")
		}
	}
	return resp, nil
}

func fillFinalizeResponse(resp *dto.FinalizeLotResponse, lot *model.Lot) {
	resp.Status = lot.Status
	resp.FinalPrice = lot.CurrentPrice
	resp.BidCount = lot.BidCount
	if lot.WinnerID != nil {
		resp.WinnerID = lot.WinnerID.String()
	}
}

func (s *lotService) FinalizeDue(ctx context.Context, limit int) (int, error) {
	due, err := s.lots.ListOpenPastFinalStage(ctx, s.clk.Now(), limit)
	if err != nil {
		return 0, err
	}

	finalized := 0
	for i := range due {
		if _, err := s.Finalize(ctx, due[i].ID); err != nil {
			// One bad lot must not block the rest of the batch.
			log.Error().Err(err).Str("lot_id", due[i].ID.String()).Msg("finalize batch: lot skipped")
			continue
		}
		finalized++
	}
	return finalized, nil
}

// ── Administrative transitions ───────────────────────────────────────────────

func (s *lotService) Suspend(ctx context.Context, lotID uuid.UUID) (*dto.LotResponse, error) {
	return s.transition(ctx, lotID, model.LotSuspended, func(lot *model.Lot) error {
		if lot.Status != model.LotOpenForBids {
			return fmt.Errorf("lot %s is %s, only open lots can be suspended", lot.PublicID, lot.Status)
		}
		return nil
	})
}

func (s *lotService) Cancel(ctx context.Context, lotID uuid.UUID) (*dto.LotResponse, error) {
	return s.transition(ctx, lotID, model.LotCancelled, func(lot *model.Lot) error {
		if lot.Terminal() {
			return fmt.Errorf("lot %s is already %s", lot.PublicID, lot.Status)
		}
		return nil
	})
}

func (s *lotService) transition(ctx context.Context, lotID uuid.UUID, status string, check func(*model.Lot) error) (*dto.LotResponse, error) {
	release, err := s.acquire(ctx, lotID)
	if err != nil {
		return nil, err
	}
	defer release()

	var updated *model.Lot
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		lot, err := s.lots.FindForUpdateTx(tx, lotID)
		if err != nil {
			return err
		}
		if err := check(lot); err != nil {
			return err
		}
		if err := s.lots.UpdateStatusTx(tx, lotID, status); err != nil {
			return err
		}
		if err := s.autoBids.DeactivateAllForLotTx(tx, lotID); err != nil {
			return err
		}
		lot.Status = status
		updated = lot
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return s.toResponse(ctx, updated)
}

// ── Relisting ────────────────────────────────────────────────────────────────

func (s *lotService) Relist(ctx context.Context, lotID uuid.UUID, req dto.RelistLotRequest) (*dto.LotResponse, error) {
	release, err := s.acquire(ctx, lotID)
	if err != nil {
		return nil, err
	}
	defer release()

	if req.BidIncrementStep.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: relist increment step must be positive", ErrIntegrity)
	}

	var relisted *model.Lot
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		original, err := s.lots.FindForUpdateTx(tx, lotID)
		if err != nil {
			return err
		}
		switch original.Status {
		case model.LotSold, model.LotUnsold:
		default:
			return fmt.Errorf("lot %s is %s, only sold or unsold lots can be relisted", original.PublicID, original.Status)
		}

		status := model.LotDraft
		if req.OpenImmediately {
			status = model.LotOpenForBids
		}
		origID := original.ID
		relisted = &model.Lot{
			PublicID:         fmt.Sprintf("%s-r%s", original.PublicID, uuid.NewString()[:8]),
			TenantID:         original.TenantID,
			AuctionID:        original.AuctionID,
			Title:            original.Title,
			Status:           status,
			InitialPrice:     req.InitialPrice,
			CurrentPrice:     decimal.Zero,
			BidIncrementStep: req.BidIncrementStep,
			EvaluationValue:  original.EvaluationValue,
			OriginalLotID:    &origID,
		}
		if err := s.lots.Create(ctx, tx, relisted); err != nil {
			return err
		}
		return s.lots.UpdateStatusTx(tx, original.ID, model.LotRelisted)
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Str("original_lot_id", lotID.String()).
		Str("new_lot_id", relisted.ID.String()).
		Msg("lot relisted")
	return s.toResponse(ctx, relisted)
}

func (s *lotService) acquire(ctx context.Context, lotID uuid.UUID) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.lockWait)
	defer cancel()
	release, err := s.locks.Acquire(waitCtx, lotID.String())
	if err != nil {
		return nil, ErrContention
	}
	return release, nil
}
