package models

import (
	"time"

	"github.com/google/uuid"
)

// Account is a wallet holder: a driver or the platform operator. Accounts are
// created lazily on first credit, mutated only by the settlement engine, and
// never deleted.
type Account struct {
	ID                    uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BalanceCents          int64     `gorm:"column:balance_cents;not null;default:0"`
	LifetimeEarningsCents int64     `gorm:"column:lifetime_earnings_cents;not null;default:0"`
	CreatedAt             time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
