package trips

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

// ErrTripNotFound is returned when a trip cannot be located.
var ErrTripNotFound = errors.New("trip not found")

// ErrBookingNotFound is returned when a trip booking cannot be located.
var ErrBookingNotFound = errors.New("trip booking not found")

// Repository manages persistence for shared trips and their seat bookings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateTrip(ctx context.Context, trip *models.Trip) error
	GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	// GetTripForUpdate locks the trip row so seat decrements serialize.
	GetTripForUpdate(ctx context.Context, id uuid.UUID) (*models.Trip, error)
	SaveTrip(ctx context.Context, trip *models.Trip) error
	ListActiveTrips(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Trip, error)
	ListTripsByDriver(ctx context.Context, driverID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Trip, error)

	CreateBooking(ctx context.Context, booking *models.TripBooking) error
	GetBooking(ctx context.Context, id uuid.UUID) (*models.TripBooking, error)
	GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.TripBooking, error)
	SaveBooking(ctx context.Context, booking *models.TripBooking) error
	ListBookingsByCustomer(ctx context.Context, customerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.TripBooking, error)
	ListBookingsByTrip(ctx context.Context, tripID uuid.UUID) ([]models.TripBooking, error)
	// ListBookingsPendingPayment feeds the payment reconciler.
	ListBookingsPendingPayment(ctx context.Context, limit int) ([]models.TripBooking, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a trip repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateTrip(ctx context.Context, trip *models.Trip) error {
	return r.db.WithContext(ctx).Create(trip).Error
}

func (r *repository) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	if err := r.db.WithContext(ctx).First(&trip, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return &trip, nil
}

func (r *repository) GetTripForUpdate(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	var trip models.Trip
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&trip, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTripNotFound
		}
		return nil, err
	}
	return &trip, nil
}

func (r *repository) SaveTrip(ctx context.Context, trip *models.Trip) error {
	return r.db.WithContext(ctx).Save(trip).Error
}

func (r *repository) ListActiveTrips(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Trip, error) {
	q := r.db.WithContext(ctx).
		Where("active = TRUE AND seats_available > 0 AND departure_at > NOW()").
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Trip
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListTripsByDriver(ctx context.Context, driverID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Trip, error) {
	q := r.db.WithContext(ctx).
		Where("driver_id = ?", driverID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Trip
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateBooking(ctx context.Context, booking *models.TripBooking) error {
	return r.db.WithContext(ctx).Create(booking).Error
}

func (r *repository) GetBooking(ctx context.Context, id uuid.UUID) (*models.TripBooking, error) {
	var booking models.TripBooking
	if err := r.db.WithContext(ctx).First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.TripBooking, error) {
	var booking models.TripBooking
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&booking, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) SaveBooking(ctx context.Context, booking *models.TripBooking) error {
	return r.db.WithContext(ctx).Save(booking).Error
}

func (r *repository) ListBookingsByCustomer(ctx context.Context, customerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.TripBooking, error) {
	q := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.TripBooking
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListBookingsByTrip(ctx context.Context, tripID uuid.UUID) ([]models.TripBooking, error) {
	var rows []models.TripBooking
	if err := r.db.WithContext(ctx).
		Where("trip_id = ?", tripID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListBookingsPendingPayment(ctx context.Context, limit int) ([]models.TripBooking, error) {
	var rows []models.TripBooking
	if err := r.db.WithContext(ctx).
		Where("payment_status = ? AND payment_link_id IS NOT NULL", enums.PaymentStatusPending).
		Order("payment_link_created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
