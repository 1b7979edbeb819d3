package models

import (
	"time"

	"github.com/google/uuid"
)

// Trip is a driver-published shared ride with a fixed per-seat price.
// seats_available is the source of truth for inventory and is only mutated
// inside booking transactions.
type Trip struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	DriverID          uuid.UUID `gorm:"column:driver_id;type:uuid;not null;index"`
	OriginAddress     string    `gorm:"column:origin_address;not null"`
	DestinationAddress string   `gorm:"column:destination_address;not null"`
	DepartureAt       time.Time `gorm:"column:departure_at;not null"`
	SeatsTotal        int       `gorm:"column:seats_total;not null"`
	SeatsAvailable    int       `gorm:"column:seats_available;not null"`
	PricePerSeatCents int64     `gorm:"column:price_per_seat_cents;not null"`
	Active            bool      `gorm:"column:active;not null;default:true"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
