package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// TripBooking reserves seats on a shared trip. Each booking settles
// independently of its siblings on the same trip.
type TripBooking struct {
	ID         uuid.UUID               `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	TripID     uuid.UUID               `gorm:"column:trip_id;type:uuid;not null;index"`
	CustomerID uuid.UUID               `gorm:"column:customer_id;type:uuid;not null;index"`
	DriverID   uuid.UUID               `gorm:"column:driver_id;type:uuid;not null"`
	Seats      int                     `gorm:"column:seats;not null"`
	TotalPriceCents int64              `gorm:"column:total_price_cents;not null"`
	Status     enums.TripBookingStatus `gorm:"column:status;type:trip_booking_status;not null;default:'pending'"`

	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	PaymentLinkID        *string             `gorm:"column:payment_link_id"`
	PaymentLinkURL       *string             `gorm:"column:payment_link_url"`
	PaymentLinkCreatedAt *time.Time          `gorm:"column:payment_link_created_at"`

	CancelledAt *time.Time `gorm:"column:cancelled_at"`
	CompletedAt *time.Time `gorm:"column:completed_at"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
