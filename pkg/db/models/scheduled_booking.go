package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// ScheduledBooking is a pre-arranged ride with an admin-mediated dispatch
// flow. Price negotiation happens through the customer/driver price columns;
// agreed_price_cents is set once and settlement reads only that column.
type ScheduledBooking struct {
	ID               uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CustomerID       uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	DriverID         *uuid.UUID          `gorm:"column:driver_id;type:uuid;index"`
	AssignedByID     *uuid.UUID          `gorm:"column:assigned_by_id;type:uuid"`
	Status           enums.BookingStatus `gorm:"column:status;type:booking_status;not null;default:'pending'"`
	VehicleType      enums.VehicleType   `gorm:"column:vehicle_type;type:vehicle_type;not null;default:'standard'"`

	PickupLat           float64 `gorm:"column:pickup_lat;not null"`
	PickupLng           float64 `gorm:"column:pickup_lng;not null"`
	PickupAddress       string  `gorm:"column:pickup_address;not null"`
	DestinationLat      float64 `gorm:"column:destination_lat;not null"`
	DestinationLng      float64 `gorm:"column:destination_lng;not null"`
	DestinationAddress  string  `gorm:"column:destination_address;not null"`
	DestinationNotes    *string `gorm:"column:destination_notes"`

	PassengerCount int       `gorm:"column:passenger_count;not null;default:1"`
	LuggageCount   int       `gorm:"column:luggage_count;not null;default:0"`
	ScheduledAt    time.Time `gorm:"column:scheduled_at;not null"`

	CustomerPriceCents int64  `gorm:"column:customer_price_cents;not null"`
	DriverPriceCents   *int64 `gorm:"column:driver_price_cents"`
	AgreedPriceCents   *int64 `gorm:"column:agreed_price_cents"`

	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	PaymentLinkID        *string             `gorm:"column:payment_link_id"`
	PaymentLinkURL       *string             `gorm:"column:payment_link_url"`
	PaymentLinkCreatedAt *time.Time          `gorm:"column:payment_link_created_at"`

	AssignedAt   *time.Time `gorm:"column:assigned_at"`
	ConfirmedAt  *time.Time `gorm:"column:confirmed_at"`
	StartedAt    *time.Time `gorm:"column:started_at"`
	CompletedAt  *time.Time `gorm:"column:completed_at"`
	CancelledAt  *time.Time `gorm:"column:cancelled_at"`
	CancelReason *string    `gorm:"column:cancel_reason"`
	Notes        *string    `gorm:"column:notes"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
