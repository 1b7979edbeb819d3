package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// LedgerEntry is one immutable balance movement. balance_after must equal
// balance_before plus amount for credits, minus amount for debits. After
// creation only the completed -> reversed status transition is permitted.
type LedgerEntry struct {
	ID                 uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID          uuid.UUID               `gorm:"column:account_id;type:uuid;not null;index"`
	Direction          enums.LedgerDirection   `gorm:"column:direction;type:ledger_direction;not null"`
	Category           enums.LedgerCategory    `gorm:"column:category;type:ledger_category;not null"`
	AmountCents        int64                   `gorm:"column:amount_cents;not null"`
	BalanceBeforeCents int64                   `gorm:"column:balance_before_cents;not null"`
	BalanceAfterCents  int64                   `gorm:"column:balance_after_cents;not null"`
	Reference          string                  `gorm:"column:reference;not null;unique"`
	Description        string                  `gorm:"column:description;not null;default:''"`
	Status             enums.LedgerEntryStatus `gorm:"column:status;type:ledger_entry_status;not null;default:'completed'"`
	SourceType         *enums.SettlementSource `gorm:"column:source_type;type:settlement_source"`
	SourceID           *uuid.UUID              `gorm:"column:source_id;type:uuid;index"`
	Metadata           json.RawMessage         `gorm:"column:metadata;type:jsonb"`
	CreatedAt          time.Time               `gorm:"column:created_at;autoCreateTime"`
}
