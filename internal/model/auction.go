package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Auction statuses.
const (
	AuctionDraft     = "draft"
	AuctionOpen      = "open"
	AuctionFinished  = "finished"
	AuctionCancelled = "cancelled"
)

// Auction groups lots that share a stage timeline, seller and auctioneer.
// Seller/auctioneer metadata lives outside the bidding engine; only the ids
// needed for event emission are carried here.
type Auction struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`
	Title    string    `gorm:"not null"`
	Status   string    `gorm:"type:varchar(20);not null;default:'draft'"`

	// SoftCloseEnabled extends the final stage's end when a bid lands inside
	// the configured closing window.
	SoftCloseEnabled bool `gorm:"not null;default:false"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Stages []AuctionStage `gorm:"foreignKey:AuctionID"`
}

// AuctionStage is one phase ("praça") of a multi-stage declining-price
// timeline. Stage i+1 must not start before stage i ends, and its initial
// price must not exceed stage i's.
type AuctionStage struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	AuctionID uuid.UUID `gorm:"type:uuid;not null;index"`

	Number       int             `gorm:"not null"`
	StartAt      time.Time       `gorm:"not null"`
	EndAt        time.Time       `gorm:"not null"`
	InitialPrice decimal.Decimal `gorm:"type:decimal(14,2);not null"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contains reports whether now falls inside the stage's half-open window.
func (s *AuctionStage) Contains(now time.Time) bool {
	return !now.Before(s.StartAt) && now.Before(s.EndAt)
}
