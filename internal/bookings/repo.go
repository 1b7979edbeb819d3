package bookings

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
)

// ErrNotFound is returned when a scheduled booking cannot be located.
var ErrNotFound = errors.New("booking not found")

// Repository manages persistence for scheduled bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, booking *models.ScheduledBooking) error
	Get(ctx context.Context, id uuid.UUID) (*models.ScheduledBooking, error)
	// GetForUpdate locks the booking row so concurrent transitions serialize.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ScheduledBooking, error)
	Save(ctx context.Context, booking *models.ScheduledBooking) error
	ListByParticipant(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ScheduledBooking, error)
	ListAll(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.ScheduledBooking, error)
	// ListPendingPayment returns bookings whose payment link is still awaiting
	// a processor decision. Consumed by the payment reconciler.
	ListPendingPayment(ctx context.Context, limit int) ([]models.ScheduledBooking, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a booking repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, booking *models.ScheduledBooking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.ScheduledBooking, error) {
	var booking models.ScheduledBooking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.ScheduledBooking, error) {
	var booking models.ScheduledBooking
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) Save(ctx context.Context, booking *models.ScheduledBooking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

func (r *repository) ListByParticipant(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.ScheduledBooking, error) {
	q := r.db.WithContext(ctx).
		Where("customer_id = ? OR driver_id = ?", accountID, accountID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ScheduledBooking
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAll(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.ScheduledBooking, error) {
	q := r.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.ScheduledBooking
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListPendingPayment(ctx context.Context, limit int) ([]models.ScheduledBooking, error) {
	var rows []models.ScheduledBooking
	if err := r.db.WithContext(ctx).
		Where("payment_status = ? AND payment_link_id IS NOT NULL", enums.PaymentStatusPending).
		Order("payment_link_created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
