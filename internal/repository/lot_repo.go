package repository

import (
	"context"
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LotRepository defines the data access contract for lots.
// Services depend on this interface, not on the concrete GORM implementation,
// enabling clean unit testing via in-memory fakes.
type LotRepository interface {
	Create(ctx context.Context, tx *gorm.DB, l *model.Lot) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Lot, error)
	FindByPublicID(ctx context.Context, publicID string) (*model.Lot, error)

	// FindForUpdateTx reads the lot under a row lock. Every price mutation
	// must go through this read inside the same transaction.
	FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Lot, error)

	// ApplyBidTx advances the lot's price tuple after an accepted bid:
	// current_price, bid_count, provisional winner and updated_at in one write.
	ApplyBidTx(tx *gorm.DB, id uuid.UUID, price decimal.Decimal, winnerID uuid.UUID) error

	// FinalizeTx sets the terminal status and (for sold lots) the winner.
	FinalizeTx(tx *gorm.DB, id uuid.UUID, status string, winnerID *uuid.UUID) error

	UpdateStatusTx(tx *gorm.DB, id uuid.UUID, status string) error

	// ListOpenPastFinalStage returns open lots whose auction's last stage has
	// already ended — the candidates for timeline-driven finalization.
	ListOpenPastFinalStage(ctx context.Context, now time.Time, limit int) ([]model.Lot, error)

	// DB exposes the underlying *gorm.DB so services can open transactions.
	DB() *gorm.DB
}

type lotRepo struct{ db *gorm.DB }

func NewLotRepository(db *gorm.DB) LotRepository { return &lotRepo{db: db} }

func (r *lotRepo) DB() *gorm.DB { return r.db }

func (r *lotRepo) Create(ctx context.Context, tx *gorm.DB, l *model.Lot) error {
	return tx.WithContext(ctx).Create(l).Error
}

func (r *lotRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	var l model.Lot
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	return &l, err
}

func (r *lotRepo) FindByPublicID(ctx context.Context, publicID string) (*model.Lot, error) {
	var l model.Lot
	err := r.db.WithContext(ctx).Where("public_id = ?", publicID).First(&l).Error
	return &l, err
}

func (r *lotRepo) FindForUpdateTx(tx *gorm.DB, id uuid.UUID) (*model.Lot, error) {
	var l model.Lot
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&l, "id = ?", id).Error
	return &l, err
}

func (r *lotRepo) ApplyBidTx(tx *gorm.DB, id uuid.UUID, price decimal.Decimal, winnerID uuid.UUID) error {
	return tx.Model(&model.Lot{}).Where("id = ?", id).Updates(map[string]interface{}{
		"current_price": price,
		"bid_count":     gorm.Expr("bid_count + 1"),
		"winner_id":     winnerID,
		"updated_at":    time.Now(),
	}).Error
}

func (r *lotRepo) FinalizeTx(tx *gorm.DB, id uuid.UUID, status string, winnerID *uuid.UUID) error {
	return tx.Model(&model.Lot{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":     status,
		"winner_id":  winnerID,
		"updated_at": time.Now(),
	}).Error
}

func (r *lotRepo) UpdateStatusTx(tx *gorm.DB, id uuid.UUID, status string) error {
	return tx.Model(&model.Lot{}).Where("id = ?", id).Update("status", status).Error
}

func (r *lotRepo) ListOpenPastFinalStage(ctx context.Context, now time.Time, limit int) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.db.WithContext(ctx).Raw(`
		SELECT lots.* FROM lots
		JOIN (
			SELECT auction_id, MAX(end_at) AS final_end
			FROM auction_stages GROUP BY auction_id
		) s ON s.auction_id = lots.auction_id
		WHERE lots.status = ? AND s.final_end <= ?
		ORDER BY s.final_end ASC
		LIMIT ?`, model.LotOpenForBids, now, limit).Scan(&lots).Error
	return lots, err
}
