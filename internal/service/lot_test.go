package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/dto"
	"github.com/augustodevcode/bidexpert-engine/internal/model"
	"github.com/augustodevcode/bidexpert-engine/internal/notifier"
	"github.com/augustodevcode/bidexpert-engine/internal/service"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pastFinalStage(f *fixture) {
	f.clk.Set(f.auction.Stages[1].EndAt.Add(time.Minute))
}

// ── Finalization ─────────────────────────────────────────────────────────────

func TestFinalize_SoldToHighestBidder(t *testing.T) {
	f := newFixture(t)
	alice, bob := uuid.New(), uuid.New()

	f.placeBid(t, alice, "Alice", 1100)
	f.placeBid(t, bob, "Bob", 1300)
	pastFinalStage(f)

	resp, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LotSold, resp.Status)
	assert.Equal(t, bob.String(), resp.WinnerID)
	assert.True(t, resp.FinalPrice.Equal(decimal.NewFromInt(1300)))
	assert.Equal(t, 2, resp.BidCount)

	events := f.notif.byKind(notifier.KindLotFinalized)
	require.Len(t, events, 1)
	assert.Equal(t, "sold", events[0].Outcome)
	assert.Equal(t, bob.String(), events[0].UserID)
}

func TestFinalize_UnsoldOnEmptyLedger(t *testing.T) {
	f := newFixture(t)
	pastFinalStage(f)

	resp, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LotUnsold, resp.Status)
	assert.Empty(t, resp.WinnerID)

	events := f.notif.byKind(notifier.KindLotFinalized)
	require.Len(t, events, 1)
	assert.Equal(t, "unsold", events[0].Outcome)
}

func TestFinalize_BeforeFinalStageEnd(t *testing.T) {
	f := newFixture(t)

	_, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	assert.ErrorIs(t, err, service.ErrNotFinalizable)
	assert.Equal(t, model.LotOpenForBids, f.currentLot(t).Status)
}

func TestFinalize_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.placeBid(t, uuid.New(), "Alice", 1100)
	pastFinalStage(f)

	first, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.NoError(t, err)
	second, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.NoError(t, err)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.WinnerID, second.WinnerID)
	// The settlement event fires once.
	assert.Len(t, f.notif.byKind(notifier.KindLotFinalized), 1)
}

func TestFinalize_WinnerWithoutLedgerRowIsIntegrity(t *testing.T) {
	f := newFixture(t)
	f.lot.BidCount = 3 // corrupted: count says bids exist, ledger is empty
	f.lots.put(f.lot)
	pastFinalStage(f)

	_, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.Error(t, err)
	assert.ErrorIs(t, err, service.ErrIntegrity)
	// The lot is left open rather than settled on a guess.
	assert.Equal(t, model.LotOpenForBids, f.currentLot(t).Status)
}

func TestFinalize_RetiresAllProxies(t *testing.T) {
	f := newFixture(t)
	alice, carol := uuid.New(), uuid.New()

	f.placeBid(t, alice, "Alice", 1100)
	f.setProxy(t, carol, "Carol", 5000)
	pastFinalStage(f)

	// Registration after the last bid means Carol's proxy is still standing
	// when the timeline ends; settlement retires it.
	_, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, f.autoBids.active(f.lot.ID))
}

func TestFinalizeDue_SettlesBatch(t *testing.T) {
	f := newFixture(t)
	f.placeBid(t, uuid.New(), "Alice", 1100)

	second := &model.Lot{
		PublicID:         "LOT-002",
		TenantID:         f.auction.TenantID,
		AuctionID:        f.auction.ID,
		Title:            "Parking space",
		Status:           model.LotOpenForBids,
		InitialPrice:     decimal.NewFromInt(1000),
		BidIncrementStep: decimal.NewFromInt(100),
		EvaluationValue:  decimal.NewFromInt(1500),
	}
	f.lots.put(second)

	pastFinalStage(f)
	n, err := f.lotSvc.FinalizeDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	assert.Equal(t, model.LotSold, f.currentLot(t).Status)
	other, err := f.lots.FindByID(context.Background(), second.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LotUnsold, other.Status)
}

func TestFinalizeDue_NothingDueBeforeTimelineEnds(t *testing.T) {
	f := newFixture(t)

	n, err := f.lotSvc.FinalizeDue(context.Background(), 10)
	require.NoError(t, err)
	assert.Zero(t, n)
}

// ── Administrative transitions ───────────────────────────────────────────────

func TestSuspend_BlocksBidding(t *testing.T) {
	f := newFixture(t)
	f.placeBid(t, uuid.New(), "Alice", 1100)

	resp, err := f.lotSvc.Suspend(context.Background(), f.lot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LotSuspended, resp.Status)

	bid := f.placeBid(t, uuid.New(), "Bob", 1500)
	assert.False(t, bid.Accepted)
	assert.Equal(t, "lot_not_open", bid.Reason)
}

func TestSuspend_OnlyOpenLots(t *testing.T) {
	f := newFixture(t)
	pastFinalStage(f)
	_, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.NoError(t, err)

	_, err = f.lotSvc.Suspend(context.Background(), f.lot.ID)
	assert.Error(t, err)
}

func TestCancel_RetiresProxies(t *testing.T) {
	f := newFixture(t)
	f.setProxy(t, uuid.New(), "Carol", 2000)

	resp, err := f.lotSvc.Cancel(context.Background(), f.lot.ID)
	require.NoError(t, err)
	assert.Equal(t, model.LotCancelled, resp.Status)
	assert.Equal(t, 0, f.autoBids.active(f.lot.ID))
}

func TestCancel_TerminalLotRejected(t *testing.T) {
	f := newFixture(t)
	pastFinalStage(f)
	_, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.NoError(t, err)

	_, err = f.lotSvc.Cancel(context.Background(), f.lot.ID)
	assert.Error(t, err)
}

// ── Relisting ────────────────────────────────────────────────────────────────

func TestRelist_CreatesFreshCopy(t *testing.T) {
	f := newFixture(t)
	pastFinalStage(f)
	_, err := f.lotSvc.Finalize(context.Background(), f.lot.ID) // unsold
	require.NoError(t, err)

	resp, err := f.lotSvc.Relist(context.Background(), f.lot.ID, dto.RelistLotRequest{
		InitialPrice:     decimal.NewFromInt(800),
		BidIncrementStep: decimal.NewFromInt(50),
		OpenImmediately:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, model.LotOpenForBids, resp.Status)
	assert.Equal(t, f.lot.ID.String(), resp.OriginalLotID)
	assert.Equal(t, 0, resp.BidCount)
	assert.True(t, resp.CurrentPrice.Equal(decimal.Zero))
	assert.True(t, resp.InitialPrice.Equal(decimal.NewFromInt(800)))
	assert.NotEqual(t, f.lot.PublicID, resp.PublicID)

	// The original is frozen as relisted, never mutated further.
	assert.Equal(t, model.LotRelisted, f.currentLot(t).Status)
}

func TestRelist_OpenLotRejected(t *testing.T) {
	f := newFixture(t)

	_, err := f.lotSvc.Relist(context.Background(), f.lot.ID, dto.RelistLotRequest{
		InitialPrice:     decimal.NewFromInt(800),
		BidIncrementStep: decimal.NewFromInt(50),
	})
	assert.Error(t, err)
}

func TestRelist_DefaultsToDraft(t *testing.T) {
	f := newFixture(t)
	pastFinalStage(f)
	_, err := f.lotSvc.Finalize(context.Background(), f.lot.ID)
	require.NoError(t, err)

	resp, err := f.lotSvc.Relist(context.Background(), f.lot.ID, dto.RelistLotRequest{
		InitialPrice:     decimal.NewFromInt(800),
		BidIncrementStep: decimal.NewFromInt(50),
	})
	require.NoError(t, err)
	assert.Equal(t, model.LotDraft, resp.Status)
}

// ── Reads ────────────────────────────────────────────────────────────────────

func TestGet_AdvertisesMinimumAndDiscount(t *testing.T) {
	f := newFixture(t)

	// Fresh lot: floor is the stage price, discount vs evaluation 2000.
	resp, err := f.lotSvc.Get(context.Background(), f.lot.ID)
	require.NoError(t, err)
	assert.True(t, resp.MinimumBid.Equal(decimal.NewFromInt(1100)), "minimum %s", resp.MinimumBid)
	assert.True(t, resp.DiscountPct.Equal(decimal.NewFromInt(50)), "discount %s", resp.DiscountPct)

	f.placeBid(t, uuid.New(), "Alice", 1100)
	resp, err = f.lotSvc.Get(context.Background(), f.lot.ID)
	require.NoError(t, err)
	assert.True(t, resp.MinimumBid.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, 1, resp.BidCount)
}

func TestGetByPublicID(t *testing.T) {
	f := newFixture(t)

	resp, err := f.lotSvc.GetByPublicID(context.Background(), "LOT-001")
	require.NoError(t, err)
	assert.Equal(t, f.lot.ID.String(), resp.ID)

	_, err = f.lotSvc.GetByPublicID(context.Background(), "LOT-MISSING")
	assert.Error(t, err)
}
