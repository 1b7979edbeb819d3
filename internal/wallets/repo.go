package wallets

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

// ErrNotFound is returned when a wallet account does not exist.
var ErrNotFound = errors.New("account not found")

// Repository manages persistence for wallet accounts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, account *models.Account) error
	Get(ctx context.Context, id uuid.UUID) (*models.Account, error)
	// GetForUpdate locks the account row for the duration of the enclosing
	// transaction. Settlement takes locks in a fixed order to avoid deadlock.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error)
	Save(ctx context.Context, account *models.Account) error
	SumLedger(ctx context.Context, accountID uuid.UUID) (credits int64, debits int64, err error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	var account models.Account
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&account, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &account, nil
}

func (r *repository) Save(ctx context.Context, account *models.Account) error {
	return r.db.WithContext(ctx).Save(account).Error
}

func (r *repository) SumLedger(ctx context.Context, accountID uuid.UUID) (int64, int64, error) {
	type row struct {
		Direction enums.LedgerDirection
		Total     int64
	}
	var rows []row
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntry{}).
		Select("direction, COALESCE(SUM(amount_cents), 0) AS total").
		Where("account_id = ? AND status <> ?", accountID, enums.LedgerEntryStatusReversed).
		Group("direction").
		Scan(&rows).Error; err != nil {
		return 0, 0, err
	}

	var credits, debits int64
	for _, r := range rows {
		switch r.Direction {
		case enums.LedgerDirectionCredit:
			credits = r.Total
		case enums.LedgerDirectionDebit:
			debits = r.Total
		}
	}
	return credits, debits, nil
}
