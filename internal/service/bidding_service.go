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

// BiddingService is the engine's write path: manual bids, proxy registration
// and the resolver cascade all funnel through the same per-lot serialization
// and the same commit transaction.
type BiddingService interface {
	PlaceBid(ctx context.Context, userID uuid.UUID, displayName string, req dto.PlaceBidRequest) (*dto.PlaceBidResponse, error)
	SetAutoBid(ctx context.Context, userID uuid.UUID, displayName string, lotID uuid.UUID, req dto.SetAutoBidRequest) (*dto.SetAutoBidResponse, error)
	BidHistory(ctx context.Context, lotID uuid.UUID, filter dto.BidHistoryFilter) (*dto.BidHistoryResponse, error)
}

// BiddingConfig carries the engine tunables from the config layer.
type BiddingConfig struct {
	LockWait           time.Duration
	HistoryMaxLimit    int
	SoftCloseWindow    time.Duration
	SoftCloseExtension time.Duration
}

type biddingService struct {
	lots     repository.LotRepository
	bids     repository.BidRepository
	autoBids repository.AutoBidRepository
	auctions repository.AuctionRepository
	locks    *lock.Keyed
	clk      clock.Clock
	notif    notifier.Notifier
	cfg      BiddingConfig
}

func NewBiddingService(
	lots repository.LotRepository,
	bids repository.BidRepository,
	autoBids repository.AutoBidRepository,
	auctions repository.AuctionRepository,
	locks *lock.Keyed,
	clk clock.Clock,
	notif notifier.Notifier,
	cfg BiddingConfig,
) BiddingService {
	if cfg.LockWait <= 0 {
		cfg.LockWait = 2 * time.Second
	}
	if cfg.HistoryMaxLimit <= 0 {
		cfg.HistoryMaxLimit = 100
	}
	return &biddingService{
		lots:     lots,
		bids:     bids,
		autoBids: autoBids,
		auctions: auctions,
		locks:    locks,
		clk:      clk,
		notif:    notif,
		cfg:      cfg,
	}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

// bidOutcome is the result of one commit attempt. A rejection is an outcome,
// not an error; errors are reserved for integrity and infrastructure failures.
type bidOutcome struct {
	accepted bool
	reason   RejectReason
	bid      *model.Bid
	lot      *model.Lot // post-commit snapshot when accepted, pre-check state otherwise
}

func (o *bidOutcome) reject(reason RejectReason, lot *model.Lot) {
	o.accepted = false
	o.reason = reason
	o.lot = lot
}

// ── PlaceBid ─────────────────────────────────────────────────────────────────
// Contract (validated in order): lot exists → lot open → auction open →
// stage active (first bid only) → amount above floor. On success the ledger
// append and the price tuple advance commit in ONE transaction under the
// lot's row lock, then the proxy cascade runs, then events are emitted.

func (s *biddingService) PlaceBid(ctx context.Context, userID uuid.UUID, displayName string, req dto.PlaceBidRequest) (*dto.PlaceBidResponse, error) {
	lotID, err := uuid.Parse(req.LotID)
	if err != nil {
		return nil, fmt.Errorf("invalid lot_id: %w", err)
	}

	start := time.Now()
	release, err := s.acquireLot(ctx, lotID)
	if err != nil {
		infra.IncBidContention()
		return nil, err
	}
	defer release()

	out, err := s.commitBid(ctx, lotID, userID, displayName, req.Amount, false)
	if err != nil {
		return nil, err
	}
	if !out.accepted {
		infra.IncBidRejected(string(out.reason))
		return s.rejectedResponse(lotID, out), nil
	}

	infra.IncBidAccepted()
	s.emitBidEvent(ctx, out)

	resolved, err := s.resolveAutoBids(ctx, lotID)
	if err != nil {
		// The manual bid is already durable; cascade failures still surface.
		return nil, err
	}

	lot, err := s.lots.FindByID(ctx, lotID)
	if err != nil {
		return nil, err
	}
	infra.ObserveBidPlacement(time.Since(start))

	resp := &dto.PlaceBidResponse{
		Accepted:         true,
		BidID:            out.bid.ID.String(),
		LotID:            lotID.String(),
		NewPrice:         lot.CurrentPrice,
		BidCount:         lot.BidCount,
		MinimumBid:       lot.CurrentPrice.Add(lot.BidIncrementStep),
		AutoBidsResolved: resolved,
	}
	if lot.WinnerID != nil {
		resp.WinnerID = lot.WinnerID.String()
	}
	return resp, nil
}

func (s *biddingService) rejectedResponse(lotID uuid.UUID, out *bidOutcome) *dto.PlaceBidResponse {
	resp := &dto.PlaceBidResponse{
		Accepted: false,
		Reason:   string(out.reason),
		LotID:    lotID.String(),
	}
	if out.lot != nil {
		resp.NewPrice = out.lot.CurrentPrice
		resp.BidCount = out.lot.BidCount
		resp.MinimumBid = out.lot.CurrentPrice.Add(out.lot.BidIncrementStep)
	}
	return resp
}

// acquireLot enters the lot's serialization point or fails with ErrContention
// after the configured bounded wait. Never blocks indefinitely.
func (s *biddingService) acquireLot(ctx context.Context, lotID uuid.UUID) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg.LockWait)
	defer cancel()
	release, err := s.locks.Acquire(waitCtx, lotID.String())
	if err != nil {
		return nil, ErrContention
	}
	return release, nil
}

// commitBid runs the read-validate-write cycle for a single bid as one
// indivisible unit: the lot row is locked, the floor is re-derived from the
// price actually committed (not the one the caller saw), and the ledger
// append + price advance + proxy retirement land in the same transaction.
func (s *biddingService) commitBid(ctx context.Context, lotID, userID uuid.UUID, displayName string, amount decimal.Decimal, isAuto bool) (*bidOutcome, error) {
	out := &bidOutcome{}
	txErr := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		lot, err := s.lots.FindForUpdateTx(tx, lotID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				out.reject(ReasonLotNotFound, nil)
				return nil
			}
			return err
		}
		if !lot.AcceptsBids() {
			out.reject(ReasonLotNotOpen, lot)
			return nil
		}
		if lot.BidIncrementStep.LessThanOrEqual(decimal.Zero) {
			return fmt.Errorf("%w: lot %s has non-positive increment step", ErrIntegrity, lot.PublicID)
		}

		auction, err := s.auctions.FindByID(ctx, lot.AuctionID)
		if err != nil {
			return err
		}
		if auction.Status != model.AuctionOpen {
			out.reject(ReasonAuctionNotOpen, lot)
			return nil
		}

		// Floor: the active stage's starting price for the first bid, the
		// committed current price afterwards (a prior bid IS the floor, no
		// stage needed). Acceptance is strictly-greater-than.
		floor := lot.CurrentPrice
		if lot.BidCount == 0 {
			stage := ActiveStageAt(auction.Stages, s.clk.Now())
			if stage == nil {
				out.reject(ReasonNoActiveStage, lot)
				return nil
			}
			if stage.InitialPrice.GreaterThan(floor) {
				floor = stage.InitialPrice
			}
		}
		if amount.LessThanOrEqual(floor) {
			out.reject(ReasonBidBelowFloor, lot)
			return nil
		}

		bid := &model.Bid{
			LotID:       lot.ID,
			AuctionID:   lot.AuctionID,
			TenantID:    lot.TenantID,
			UserID:      userID,
			Amount:      amount,
			DisplayName: displayName,
			AutoBid:     isAuto,
			CreatedAt:   s.clk.Now(),
		}
		if err := s.bids.CreateTx(ctx, tx, bid); err != nil {
			return err
		}
		if err := s.lots.ApplyBidTx(tx, lot.ID, amount, userID); err != nil {
			return err
		}
		// Proxies whose ceiling no longer exceeds the price are spent.
		if err := s.autoBids.RetireBelowTx(tx, lot.ID, amount); err != nil {
			return err
		}

		if auction.SoftCloseEnabled {
			if err := s.maybeExtendFinalStage(tx, auction); err != nil {
				return err
			}
		}

		// Reflect the committed state in the returned snapshot.
		lot.CurrentPrice = amount
		lot.BidCount++
		uid := userID
		lot.WinnerID = &uid
		out.accepted = true
		out.bid = bid
		out.lot = lot
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}
	return out, nil
}

// maybeExtendFinalStage pushes the final stage's end back when a bid lands
// inside the soft-close window, so late bidding wars get breathing room
// before finalization.
func (s *biddingService) maybeExtendFinalStage(tx *gorm.DB, auction *model.Auction) error {
	final := FinalStage(auction.Stages)
	if final == nil {
		return nil
	}
	now := s.clk.Now()
	if now.After(final.EndAt) || final.EndAt.Sub(now) > s.cfg.SoftCloseWindow {
		return nil
	}
	newEnd := final.EndAt.Add(s.cfg.SoftCloseExtension)
	if err := s.auctions.ExtendStageEndTx(tx, final.ID, newEnd); err != nil {
		return err
	}
	final.EndAt = newEnd
	log.Info().
		Str("auction_id", auction.ID.String()).
		Int("stage", final.Number).
		Time("new_end", newEnd).
		Msg("soft close: final stage extended")
	return nil
}

// ── Auto-Bid Resolver ────────────────────────────────────────────────────────
// Explicit loop, not recursion: each round picks the single best eligible
// proxy (largest ceiling, earliest registration on ties, never the current
// provisional winner) and re-enters the commit path with
// min(price+step, ceiling). Every accepted round strictly raises the price
// and retires the proxies it passes, so the eligible set shrinks
// monotonically and the loop terminates. Caller must hold the lot's lock.

func (s *biddingService) resolveAutoBids(ctx context.Context, lotID uuid.UUID) (int, error) {
	resolved := 0
	for {
		lot, err := s.lots.FindByID(ctx, lotID)
		if err != nil {
			return resolved, err
		}
		if !lot.AcceptsBids() {
			return resolved, nil
		}
		exclude := uuid.Nil
		if lot.WinnerID != nil {
			exclude = *lot.WinnerID
		}
		proxy, err := s.autoBids.BestEligible(ctx, lotID, lot.CurrentPrice, exclude)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return resolved, nil
			}
			return resolved, err
		}

		amount := lot.CurrentPrice.Add(lot.BidIncrementStep)
		if amount.GreaterThan(proxy.MaxAmount) {
			// Settle exactly at the ceiling rather than exceeding it.
			amount = proxy.MaxAmount
		}

		out, err := s.commitBid(ctx, lotID, proxy.UserID, proxy.DisplayName, amount, true)
		if err != nil {
			return resolved, err
		}
		if !out.accepted {
			log.Warn().
				Str("lot_id", lotID.String()).
				Str("reason", string(out.reason)).
				Msg("auto-bid counter rejected, stopping cascade")
			return resolved, nil
		}
		resolved++
		infra.IncAutoBidResolved()
		s.emitBidEvent(ctx, out)
	}
}

// ── SetAutoBid ───────────────────────────────────────────────────────────────
// Registration is passive: it never places a bid by itself. The cascade fires
// on the next accepted manual bid.

func (s *biddingService) SetAutoBid(ctx context.Context, userID uuid.UUID, displayName string, lotID uuid.UUID, req dto.SetAutoBidRequest) (*dto.SetAutoBidResponse, error) {
	release, err := s.acquireLot(ctx, lotID)
	if err != nil {
		infra.IncBidContention()
		return nil, err
	}
	defer release()

	resp := &dto.SetAutoBidResponse{LotID: lotID.String(), MaxAmount: req.MaxAmount}

	lot, err := s.lots.FindByID(ctx, lotID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			resp.Reason = string(ReasonLotNotFound)
			return resp, nil
		}
		return nil, err
	}
	if !lot.AcceptsBids() {
		resp.Reason = string(ReasonLotNotOpen)
		return resp, nil
	}

	// The ceiling must be able to produce at least one valid counter-bid.
	floor := lot.CurrentPrice
	if lot.BidCount == 0 {
		auction, err := s.auctions.FindByID(ctx, lot.AuctionID)
		if err != nil {
			return nil, err
		}
		if stage := ActiveStageAt(auction.Stages, s.clk.Now()); stage != nil && stage.InitialPrice.GreaterThan(floor) {
			floor = stage.InitialPrice
		}
	}
	if req.MaxAmount.LessThanOrEqual(floor) {
		resp.Reason = string(ReasonCeilingTooLow)
		return resp, nil
	}

	ab := &model.AutoBid{
		LotID:       lotID,
		UserID:      userID,
		MaxAmount:   req.MaxAmount,
		DisplayName: displayName,
		Active:      true,
	}
	if err := s.autoBids.Upsert(ctx, ab); err != nil {
		return nil, err
	}
	resp.Accepted = true
	return resp, nil
}

// ── Bid Ledger queries ───────────────────────────────────────────────────────

func (s *biddingService) BidHistory(ctx context.Context, lotID uuid.UUID, filter dto.BidHistoryFilter) (*dto.BidHistoryResponse, error) {
	if filter.Limit < 1 {
		filter.Limit = 20
	}
	if filter.Limit > s.cfg.HistoryMaxLimit {
		filter.Limit = s.cfg.HistoryMaxLimit
	}
	order := repository.BidOrderNewest
	if filter.Order == repository.BidOrderHighest {
		order = repository.BidOrderHighest
	}

	bids, err := s.bids.ListByLot(ctx, lotID, filter.Limit, order)
	if err != nil {
		return nil, err
	}
	resp := &dto.BidHistoryResponse{
		LotID: lotID.String(),
		Order: order,
		Bids:  make([]dto.BidResponse, 0, len(bids)),
	}
	for _, b := range bids {
		resp.Bids = append(resp.Bids, dto.BidResponse{
			ID:          b.ID.String(),
			LotID:       b.LotID.String(),
			UserID:      b.UserID.String(),
			Amount:      b.Amount,
			DisplayName: b.DisplayName,
			AutoBid:     b.AutoBid,
			CreatedAt:   b.CreatedAt.Format(time.RFC3339),
		})
	}
	return resp, nil
}

// ── Events ───────────────────────────────────────────────────────────────────

// emitBidEvent is fire-and-forget: emission only happens after the commit is
// durable, and a failed emission never rolls an accepted bid back.
func (s *biddingService) emitBidEvent(ctx context.Context, out *bidOutcome) {
	ev := notifier.Event{
		EventID:     uuid.NewString(),
		Kind:        notifier.KindBidAccepted,
		TenantID:    out.bid.TenantID.String(),
		AuctionID:   out.bid.AuctionID.String(),
		LotID:       out.bid.LotID.String(),
		BidID:       out.bid.ID.String(),
		UserID:      out.bid.UserID.String(),
		DisplayName: out.bid.DisplayName,
		Amount:      out.bid.Amount,
		AutoBid:     out.bid.AutoBid,
		OccurredAt:  out.bid.CreatedAt,
	}
	if err := s.notif.Emit(ctx, ev); err != nil {
		log.Warn().Err(err).
			Str("lot_id", ev.LotID).
			Str("bid_id", ev.BidID).
			Msg("bid event emission failed, continuing")
	}
}
