package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot statuses. A lot accepts bids only while open_for_bids; sold, unsold,
// cancelled and relisted are terminal. Relisting never mutates a terminal lot —
// it creates a new Lot linked back through OriginalLotID.
const (
	LotDraft       = "draft"
	LotOpenForBids = "open_for_bids"
	LotSold        = "sold"
	LotUnsold      = "unsold"
	LotCancelled   = "cancelled"
	LotSuspended   = "suspended"
	LotRelisted    = "relisted"
)

// Lot is a sellable unit inside an auction. CurrentPrice is monotonically
// non-decreasing once bidding starts; WinnerID holds the provisional winner
// while open and the final winner once sold.
type Lot struct {
	ID       uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	PublicID string    `gorm:"uniqueIndex;not null"`
	TenantID uuid.UUID `gorm:"type:uuid;not null;index"`

	AuctionID uuid.UUID `gorm:"type:uuid;not null;index"`
	Title     string    `gorm:"not null"`
	Status    string    `gorm:"type:varchar(20);not null;default:'draft';index"`

	InitialPrice     decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	CurrentPrice     decimal.Decimal `gorm:"type:decimal(14,2);not null;default:0"`
	BidIncrementStep decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	EvaluationValue  decimal.Decimal `gorm:"type:decimal(14,2);not null"`

	WinnerID *uuid.UUID `gorm:"type:uuid"`
	BidCount int        `gorm:"not null;default:0"`

	// OriginalLotID links a relisted copy back to the lot it replaces.
	OriginalLotID *uuid.UUID `gorm:"type:uuid"`

	CreatedAt time.Time
	UpdatedAt time.Time

	Auction *Auction `gorm:"foreignKey:AuctionID"`
}

// AcceptsBids reports whether Bid Placement may consider this lot at all.
func (l *Lot) AcceptsBids() bool { return l.Status == LotOpenForBids }

// Terminal reports whether the lot is immutable.
func (l *Lot) Terminal() bool {
	switch l.Status {
	case LotSold, LotUnsold, LotCancelled, LotRelisted:
		return true
	}
	return false
}
