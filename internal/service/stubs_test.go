package service_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/clock"
	"github.com/augustodevcode/bidexpert-engine/internal/model"
	"github.com/augustodevcode/bidexpert-engine/internal/notifier"
	"github.com/augustodevcode/bidexpert-engine/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────
// Mutex-guarded in-memory repositories. The concurrency tests hammer these
// from many goroutines, so every method locks, and reads hand out copies —
// services mutate the snapshots they get back.

type stubAuctionRepo struct {
	mu       sync.Mutex
	auctions map[uuid.UUID]*model.Auction
}

func newStubAuctionRepo() *stubAuctionRepo {
	return &stubAuctionRepo{auctions: make(map[uuid.UUID]*model.Auction)}
}

func (r *stubAuctionRepo) put(a *model.Auction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	for i := range a.Stages {
		if a.Stages[i].ID == uuid.Nil {
			a.Stages[i].ID = uuid.New()
		}
		a.Stages[i].AuctionID = a.ID
	}
	r.auctions[a.ID] = a
}

func (r *stubAuctionRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Auction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.auctions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *a
	cp.Stages = append([]model.AuctionStage(nil), a.Stages...)
	sort.Slice(cp.Stages, func(i, j int) bool { return cp.Stages[i].Number < cp.Stages[j].Number })
	return &cp, nil
}

func (r *stubAuctionRepo) ExtendStageEndTx(_ *gorm.DB, stageID uuid.UUID, newEnd time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.auctions {
		for i := range a.Stages {
			if a.Stages[i].ID == stageID {
				a.Stages[i].EndAt = newEnd
				return nil
			}
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *stubAuctionRepo) DB() *gorm.DB { return nil }

var _ repository.AuctionRepository = (*stubAuctionRepo)(nil)

type stubLotRepo struct {
	mu       sync.Mutex
	lots     map[uuid.UUID]*model.Lot
	auctions *stubAuctionRepo
}

func newStubLotRepo(auctions *stubAuctionRepo) *stubLotRepo {
	return &stubLotRepo{lots: make(map[uuid.UUID]*model.Lot), auctions: auctions}
}

func (r *stubLotRepo) put(l *model.Lot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	r.lots[l.ID] = l
}

func (r *stubLotRepo) Create(_ context.Context, _ *gorm.DB, l *model.Lot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	cp := *l
	r.lots[l.ID] = &cp
	return nil
}

func (r *stubLotRepo) find(id uuid.UUID) (*model.Lot, error) {
	l, ok := r.lots[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *l
	return &cp, nil
}

func (r *stubLotRepo) FindByID(_ context.Context, id uuid.UUID) (*model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(id)
}

func (r *stubLotRepo) FindByPublicID(_ context.Context, publicID string) (*model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.lots {
		if l.PublicID == publicID {
			cp := *l
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubLotRepo) FindForUpdateTx(_ *gorm.DB, id uuid.UUID) (*model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.find(id)
}

func (r *stubLotRepo) ApplyBidTx(_ *gorm.DB, id uuid.UUID, price decimal.Decimal, winnerID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lots[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.CurrentPrice = price
	l.BidCount++
	w := winnerID
	l.WinnerID = &w
	l.UpdatedAt = time.Now()
	return nil
}

func (r *stubLotRepo) FinalizeTx(_ *gorm.DB, id uuid.UUID, status string, winnerID *uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lots[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.Status = status
	l.WinnerID = winnerID
	l.UpdatedAt = time.Now()
	return nil
}

func (r *stubLotRepo) UpdateStatusTx(_ *gorm.DB, id uuid.UUID, status string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.lots[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	l.Status = status
	return nil
}

func (r *stubLotRepo) ListOpenPastFinalStage(_ context.Context, now time.Time, limit int) ([]model.Lot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var due []model.Lot
	for _, l := range r.lots {
		if l.Status != model.LotOpenForBids {
			continue
		}
		a, ok := r.auctions.auctions[l.AuctionID]
		if !ok {
			continue
		}
		var finalEnd time.Time
		for _, st := range a.Stages {
			if st.EndAt.After(finalEnd) {
				finalEnd = st.EndAt
			}
		}
		if !finalEnd.After(now) {
			due = append(due, *l)
		}
		if len(due) >= limit {
			break
		}
	}
	return due, nil
}

func (r *stubLotRepo) DB() *gorm.DB { return nil }

var _ repository.LotRepository = (*stubLotRepo)(nil)

type stubBidRepo struct {
	mu   sync.Mutex
	bids []model.Bid
}

func (r *stubBidRepo) CreateTx(_ context.Context, _ *gorm.DB, b *model.Bid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	r.bids = append(r.bids, *b)
	return nil
}

func (r *stubBidRepo) ListByLot(_ context.Context, lotID uuid.UUID, limit int, order string) ([]model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Bid
	for _, b := range r.bids {
		if b.LotID == lotID {
			out = append(out, b)
		}
	}
	switch order {
	case repository.BidOrderHighest:
		sort.Slice(out, func(i, j int) bool {
			if !out[i].Amount.Equal(out[j].Amount) {
				return out[i].Amount.GreaterThan(out[j].Amount)
			}
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		})
	default:
		sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *stubBidRepo) HighestByLotTx(_ *gorm.DB, lotID uuid.UUID) (*model.Bid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.Bid
	for i := range r.bids {
		b := &r.bids[i]
		if b.LotID != lotID {
			continue
		}
		if best == nil ||
			b.Amount.GreaterThan(best.Amount) ||
			(b.Amount.Equal(best.Amount) && b.CreatedAt.Before(best.CreatedAt)) {
			best = b
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *stubBidRepo) CountByLotTx(_ *gorm.DB, lotID uuid.UUID) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var n int64
	for _, b := range r.bids {
		if b.LotID == lotID {
			n++
		}
	}
	return n, nil
}

func (r *stubBidRepo) DB() *gorm.DB { return nil }

// ledger returns the lot's bids in insertion order.
func (r *stubBidRepo) ledger(lotID uuid.UUID) []model.Bid {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []model.Bid
	for _, b := range r.bids {
		if b.LotID == lotID {
			out = append(out, b)
		}
	}
	return out
}

var _ repository.BidRepository = (*stubBidRepo)(nil)

type autoBidKey struct {
	lot  uuid.UUID
	user uuid.UUID
}

type stubAutoBidRepo struct {
	mu      sync.Mutex
	proxies map[autoBidKey]*model.AutoBid
	seq     int
}

func newStubAutoBidRepo() *stubAutoBidRepo {
	return &stubAutoBidRepo{proxies: make(map[autoBidKey]*model.AutoBid)}
}

func (r *stubAutoBidRepo) Upsert(_ context.Context, ab *model.AutoBid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := autoBidKey{lot: ab.LotID, user: ab.UserID}
	if existing, ok := r.proxies[key]; ok {
		existing.MaxAmount = ab.MaxAmount
		existing.DisplayName = ab.DisplayName
		existing.Active = true
		return nil
	}
	if ab.ID == uuid.Nil {
		ab.ID = uuid.New()
	}
	r.seq++
	cp := *ab
	// Distinct registration times so the tie-break is deterministic.
	cp.CreatedAt = time.Unix(int64(r.seq), 0)
	r.proxies[key] = &cp
	return nil
}

func (r *stubAutoBidRepo) FindByLotAndUser(_ context.Context, lotID, userID uuid.UUID) (*model.AutoBid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ab, ok := r.proxies[autoBidKey{lot: lotID, user: userID}]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *ab
	return &cp, nil
}

func (r *stubAutoBidRepo) BestEligible(_ context.Context, lotID uuid.UUID, above decimal.Decimal, excludeUser uuid.UUID) (*model.AutoBid, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var best *model.AutoBid
	for _, ab := range r.proxies {
		if ab.LotID != lotID || !ab.Active || ab.UserID == excludeUser {
			continue
		}
		if !ab.MaxAmount.GreaterThan(above) {
			continue
		}
		if best == nil ||
			ab.MaxAmount.GreaterThan(best.MaxAmount) ||
			(ab.MaxAmount.Equal(best.MaxAmount) && ab.CreatedAt.Before(best.CreatedAt)) {
			best = ab
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *best
	return &cp, nil
}

func (r *stubAutoBidRepo) RetireBelowTx(_ *gorm.DB, lotID uuid.UUID, price decimal.Decimal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ab := range r.proxies {
		if ab.LotID == lotID && ab.Active && !ab.MaxAmount.GreaterThan(price) {
			ab.Active = false
		}
	}
	return nil
}

func (r *stubAutoBidRepo) DeactivateAllForLotTx(_ *gorm.DB, lotID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, ab := range r.proxies {
		if ab.LotID == lotID {
			ab.Active = false
		}
	}
	return nil
}

func (r *stubAutoBidRepo) DB() *gorm.DB { return nil }

func (r *stubAutoBidRepo) active(lotID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ab := range r.proxies {
		if ab.LotID == lotID && ab.Active {
			n++
		}
	}
	return n
}

var _ repository.AutoBidRepository = (*stubAutoBidRepo)(nil)

// recordingNotifier captures emitted events; failErr simulates a dead queue.
type recordingNotifier struct {
	mu      sync.Mutex
	events  []notifier.Event
	failErr error
}

func (n *recordingNotifier) Emit(_ context.Context, ev notifier.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failErr != nil {
		return n.failErr
	}
	n.events = append(n.events, ev)
	return nil
}

func (n *recordingNotifier) byKind(kind string) []notifier.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []notifier.Event
	for _, ev := range n.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

var _ notifier.Notifier = (*recordingNotifier)(nil)

// fakeClock is a settable clock shared by service and test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	// Monotonic nudge so ledger rows never share a timestamp.
	c.t = c.t.Add(time.Microsecond)
	return c.t
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

var _ clock.Clock = (*fakeClock)(nil)
