package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// NegotiationRecord is one append-only message in a negotiation thread: an
// offer, a counter-offer, an acceptance, or free text. Records are never
// updated or deleted.
type NegotiationRecord struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	NegotiationID uuid.UUID       `gorm:"column:negotiation_id;type:uuid;not null;index"`
	SenderID      uuid.UUID       `gorm:"column:sender_id;type:uuid;not null"`
	SenderRole    enums.ActorRole `gorm:"column:sender_role;type:actor_role;not null"`
	PriceCents    *int64          `gorm:"column:price_cents"`
	Accepted      bool            `gorm:"column:accepted;not null;default:false"`
	Body          string          `gorm:"column:body;not null;default:''"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
}
