package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// Notification is a persisted outbound message. Delivery failures record the
// error but never fail the business operation that produced them.
type Notification struct {
	ID        uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	AccountID uuid.UUID              `gorm:"column:account_id;type:uuid;not null;index"`
	Kind      enums.NotificationKind `gorm:"column:kind;type:notification_kind;not null"`
	Phone     string                 `gorm:"column:phone;not null;default:''"`
	Message   string                 `gorm:"column:message;not null"`
	SentAt    *time.Time             `gorm:"column:sent_at"`
	Error     *string                `gorm:"column:error"`
	CreatedAt time.Time              `gorm:"column:created_at;autoCreateTime"`
}
