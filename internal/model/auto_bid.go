package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AutoBid is a standing proxy instruction: "bid on my behalf up to MaxAmount".
// One per (user, lot). Retired proxies are deactivated, not deleted, so the
// user's intent stays visible in history.
type AutoBid struct {
	ID     uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LotID  uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_auto_bids_lot_user"`
	UserID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_auto_bids_lot_user"`

	MaxAmount   decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	DisplayName string          `gorm:"not null"`
	Active      bool            `gorm:"not null;default:true"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName overrides GORM's default pluralization (auto_bid → auto_bids).
func (AutoBid) TableName() string { return "auto_bids" }
