package repository

import (
	"context"

	"github.com/augustodevcode/bidexpert-engine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Orderings for bid history queries.
const (
	BidOrderNewest  = "newest"
	BidOrderHighest = "highest"
)

// BidRepository is the sole writer of the append-only bid ledger.
// There is deliberately no Update or Delete.
type BidRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, b *model.Bid) error
	ListByLot(ctx context.Context, lotID uuid.UUID, limit int, order string) ([]model.Bid, error)

	// HighestByLotTx returns the winning bid: highest amount, earliest
	// timestamp on ties.
	HighestByLotTx(tx *gorm.DB, lotID uuid.UUID) (*model.Bid, error)

	CountByLotTx(tx *gorm.DB, lotID uuid.UUID) (int64, error)

	DB() *gorm.DB
}

type bidRepo struct{ db *gorm.DB }

func NewBidRepository(db *gorm.DB) BidRepository { return &bidRepo{db: db} }

func (r *bidRepo) DB() *gorm.DB { return r.db }

func (r *bidRepo) CreateTx(ctx context.Context, tx *gorm.DB, b *model.Bid) error {
	return tx.WithContext(ctx).Create(b).Error
}

func (r *bidRepo) ListByLot(ctx context.Context, lotID uuid.UUID, limit int, order string) ([]model.Bid, error) {
	var bids []model.Bid
	q := r.db.WithContext(ctx).Where("lot_id = ?", lotID)
	switch order {
	case BidOrderHighest:
		q = q.Order("amount DESC, created_at ASC")
	default:
		q = q.Order("created_at DESC")
	}
	err := q.Limit(limit).Find(&bids).Error
	return bids, err
}

func (r *bidRepo) HighestByLotTx(tx *gorm.DB, lotID uuid.UUID) (*model.Bid, error) {
	var b model.Bid
	err := tx.Where("lot_id = ?", lotID).
		Order("amount DESC, created_at ASC").
		First(&b).Error
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bidRepo) CountByLotTx(tx *gorm.DB, lotID uuid.UUID) (int64, error) {
	var n int64
	err := tx.Model(&model.Bid{}).Where("lot_id = ?", lotID).Count(&n).Error
	return n, err
}
