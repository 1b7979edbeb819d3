package negotiations

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

// ErrNotFound is returned when a negotiation cannot be located.
var ErrNotFound = errors.New("negotiation not found")

// Repository manages persistence for negotiations and their records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, negotiation *models.Negotiation) error
	Get(ctx context.Context, id uuid.UUID) (*models.Negotiation, error)
	// GetForUpdate locks the negotiation row so concurrent transitions
	// serialize on the record.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Negotiation, error)
	Save(ctx context.Context, negotiation *models.Negotiation) error
	CreateRecord(ctx context.Context, record *models.NegotiationRecord) error
	ListRecords(ctx context.Context, negotiationID uuid.UUID) ([]models.NegotiationRecord, error)
	ListByParticipant(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Negotiation, error)
	// ListPendingPayment feeds the payment reconciler.
	ListPendingPayment(ctx context.Context, limit int) ([]models.Negotiation, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a negotiation repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, negotiation *models.Negotiation) error {
	return r.db.WithContext(ctx).Create(negotiation).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Negotiation, error) {
	var negotiation models.Negotiation
	if err := r.db.WithContext(ctx).
		Preload("Records", func(q *gorm.DB) *gorm.DB { return q.Order("created_at ASC") }).
		First(&negotiation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &negotiation, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Negotiation, error) {
	var negotiation models.Negotiation
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&negotiation, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &negotiation, nil
}

func (r *repository) Save(ctx context.Context, negotiation *models.Negotiation) error {
	return r.db.WithContext(ctx).Omit("Records").Save(negotiation).Error
}

func (r *repository) CreateRecord(ctx context.Context, record *models.NegotiationRecord) error {
	return r.db.WithContext(ctx).Create(record).Error
}

func (r *repository) ListRecords(ctx context.Context, negotiationID uuid.UUID) ([]models.NegotiationRecord, error) {
	var records []models.NegotiationRecord
	if err := r.db.WithContext(ctx).
		Where("negotiation_id = ?", negotiationID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}

func (r *repository) ListByParticipant(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Negotiation, error) {
	q := r.db.WithContext(ctx).
		Where("customer_id = ? OR driver_id = ?", accountID, accountID).
		Order("created_at DESC, id DESC").
		Limit(limit)
	if cursor != nil {
		q = q.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Negotiation
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListPendingPayment(ctx context.Context, limit int) ([]models.Negotiation, error) {
	var rows []models.Negotiation
	if err := r.db.WithContext(ctx).
		Where("payment_status = ? AND payment_link_id IS NOT NULL", enums.PaymentStatusPending).
		Order("payment_link_created_at ASC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
