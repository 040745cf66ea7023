package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bid is an immutable fact in the lot's ledger: a user offered Amount at a
// point in time. Rows are NEVER updated or deleted — corrections happen by
// appending, and losing bids simply stop being the highest.
type Bid struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	LotID     uuid.UUID `gorm:"type:uuid;not null;index"`
	AuctionID uuid.UUID `gorm:"type:uuid;not null;index"`
	TenantID  uuid.UUID `gorm:"type:uuid;not null"`
	UserID    uuid.UUID `gorm:"type:uuid;not null"`

	Amount      decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	DisplayName string          `gorm:"not null"`
	// AutoBid marks counter-bids placed by the resolver on a proxy's behalf.
	AutoBid bool `gorm:"not null;default:false"`

	CreatedAt time.Time `gorm:"index"`
}
