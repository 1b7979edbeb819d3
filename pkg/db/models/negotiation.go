package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// Negotiation is a live price-bargaining thread between one customer and one
// driver for one trip. The agreed price is immutable once resolved.
type Negotiation struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID uuid.UUID               `gorm:"column:customer_id;type:uuid;not null;index"`
	DriverID   uuid.UUID               `gorm:"column:driver_id;type:uuid;not null;index"`
	Status     enums.NegotiationStatus `gorm:"column:status;type:negotiation_status;not null;default:'active'"`

	PickupLat      float64 `gorm:"column:pickup_lat;not null"`
	PickupLng      float64 `gorm:"column:pickup_lng;not null"`
	PickupAddress  string  `gorm:"column:pickup_address;not null"`
	DropoffLat     float64 `gorm:"column:dropoff_lat;not null"`
	DropoffLng     float64 `gorm:"column:dropoff_lng;not null"`
	DropoffAddress string  `gorm:"column:dropoff_address;not null"`

	CustomerAccepted bool   `gorm:"column:customer_accepted;not null;default:false"`
	DriverAccepted   bool   `gorm:"column:driver_accepted;not null;default:false"`
	AgreedPriceCents *int64 `gorm:"column:agreed_price_cents"`

	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	PaymentLinkID        *string             `gorm:"column:payment_link_id"`
	PaymentLinkURL       *string             `gorm:"column:payment_link_url"`
	PaymentLinkCreatedAt *time.Time          `gorm:"column:payment_link_created_at"`

	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	Records []NegotiationRecord `gorm:"foreignKey:NegotiationID;constraint:OnDelete:CASCADE"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
