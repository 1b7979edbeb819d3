package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// Profile holds contact and availability data for an account. Drivers are
// flagged unavailable while they have a live negotiation or an active
// assignment so dispatch does not double-book them.
type Profile struct {
	AccountID          uuid.UUID       `gorm:"column:account_id;type:uuid;primaryKey"`
	Role               enums.ActorRole `gorm:"column:role;type:actor_role;not null"`
	Phone              string          `gorm:"column:phone;not null;default:''"`
	AvailableForTrips  bool            `gorm:"column:available_for_trips;not null;default:true"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
