package repository

import (
	"context"

	"github.com/augustodevcode/bidexpert-engine/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AutoBidRepository manages standing proxy instructions.
type AutoBidRepository interface {
	// Upsert inserts or refreshes the (lot, user) proxy: new ceiling,
	// reactivated, display name updated.
	Upsert(ctx context.Context, ab *model.AutoBid) error

	FindByLotAndUser(ctx context.Context, lotID, userID uuid.UUID) (*model.AutoBid, error)

	// BestEligible returns the single proxy the resolver should act on:
	// active, ceiling strictly above price, not owned by excludeUser
	// (the provisional winner), largest ceiling first, earliest registration
	// on ties. gorm.ErrRecordNotFound when none qualifies.
	BestEligible(ctx context.Context, lotID uuid.UUID, above decimal.Decimal, excludeUser uuid.UUID) (*model.AutoBid, error)

	// RetireBelowTx deactivates every proxy whose ceiling no longer exceeds
	// price. Rows are kept so the user's intent stays visible.
	RetireBelowTx(tx *gorm.DB, lotID uuid.UUID, price decimal.Decimal) error

	// DeactivateAllForLotTx retires every proxy on a lot entering a terminal
	// or suspended state.
	DeactivateAllForLotTx(tx *gorm.DB, lotID uuid.UUID) error

	DB() *gorm.DB
}

type autoBidRepo struct{ db *gorm.DB }

func NewAutoBidRepository(db *gorm.DB) AutoBidRepository { return &autoBidRepo{db: db} }

func (r *autoBidRepo) DB() *gorm.DB { return r.db }

func (r *autoBidRepo) Upsert(ctx context.Context, ab *model.AutoBid) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "lot_id"}, {Name: "user_id"}},
		DoUpdates: clause.Assignments(map[string]interface{}{
			"max_amount":   ab.MaxAmount,
			"display_name": ab.DisplayName,
			"active":       true,
		}),
	}).Create(ab).Error
}

func (r *autoBidRepo) FindByLotAndUser(ctx context.Context, lotID, userID uuid.UUID) (*model.AutoBid, error) {
	var ab model.AutoBid
	err := r.db.WithContext(ctx).
		Where("lot_id = ? AND user_id = ?", lotID, userID).
		First(&ab).Error
	return &ab, err
}

func (r *autoBidRepo) BestEligible(ctx context.Context, lotID uuid.UUID, above decimal.Decimal, excludeUser uuid.UUID) (*model.AutoBid, error) {
	var ab model.AutoBid
	err := r.db.WithContext(ctx).
		Where("lot_id = ? AND active = true AND max_amount > ? AND user_id <> ?", lotID, above, excludeUser).
		Order("max_amount DESC, created_at ASC").
		First(&ab).Error
	if err != nil {
		return nil, err
	}
	return &ab, nil
}

func (r *autoBidRepo) RetireBelowTx(tx *gorm.DB, lotID uuid.UUID, price decimal.Decimal) error {
	return tx.Model(&model.AutoBid{}).
		Where("lot_id = ? AND active = true AND max_amount <= ?", lotID, price).
		Update("active", false).Error
}

func (r *autoBidRepo) DeactivateAllForLotTx(tx *gorm.DB, lotID uuid.UUID) error {
	return tx.Model(&model.AutoBid{}).
		Where("lot_id = ? AND active = true", lotID).
		Update("active", false).Error
}
