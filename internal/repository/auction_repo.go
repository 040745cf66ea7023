package repository

import (
	"context"
	"time"

	"github.com/augustodevcode/bidexpert-engine/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuctionRepository is read-mostly: auction/stage CRUD belongs to the lotting
// workflow, which is outside the bidding engine. The one write the engine
// performs is the soft-close stage extension.
type AuctionRepository interface {
	// FindByID loads the auction with its stages ordered by number.
	FindByID(ctx context.Context, id uuid.UUID) (*model.Auction, error)

	// ExtendStageEndTx pushes a stage's end time back (soft close).
	ExtendStageEndTx(tx *gorm.DB, stageID uuid.UUID, newEnd time.Time) error

	DB() *gorm.DB
}

type auctionRepo struct{ db *gorm.DB }

func NewAuctionRepository(db *gorm.DB) AuctionRepository { return &auctionRepo{db: db} }

func (r *auctionRepo) DB() *gorm.DB { return r.db }

func (r *auctionRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Auction, error) {
	var a model.Auction
	err := r.db.WithContext(ctx).
		Preload("Stages", func(db *gorm.DB) *gorm.DB { return db.Order("number ASC") }).
		First(&a, "id = ?", id).Error
	return &a, err
}

func (r *auctionRepo) ExtendStageEndTx(tx *gorm.DB, stageID uuid.UUID, newEnd time.Time) error {
	return tx.Model(&model.AuctionStage{}).Where("id = ?", stageID).
		Update("end_at", newEnd).Error
}
