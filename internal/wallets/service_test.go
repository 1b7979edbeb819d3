package wallets

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
)

type fakeRepository struct {
	accounts map[uuid.UUID]*models.Account
	createFn func(ctx context.Context, account *models.Account) error
	sumFn    func(ctx context.Context, accountID uuid.UUID) (int64, int64, error)
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{accounts: make(map[uuid.UUID]*models.Account)}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, account *models.Account) error {
	if f.createFn != nil {
		return f.createFn(ctx, account)
	}
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeRepository) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if account, ok := f.accounts[id]; ok {
		return account, nil
	}
	return nil, ErrNotFound
}

func (f *fakeRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return f.Get(ctx, id)
}

func (f *fakeRepository) Save(ctx context.Context, account *models.Account) error {
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeRepository) SumLedger(ctx context.Context, accountID uuid.UUID) (int64, int64, error) {
	if f.sumFn != nil {
		return f.sumFn(ctx, accountID)
	}
	return 0, 0, nil
}

func TestService_GetOrCreateLazily(t *testing.T) {
	repo := newFakeRepository()
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	accountID := uuid.New()
	account, err := svc.GetOrCreate(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if account.ID != accountID {
		t.Fatalf("unexpected account id %s", account.ID)
	}
	if account.BalanceCents != 0 || account.LifetimeEarningsCents != 0 {
		t.Fatalf("new wallet should start at zero: %+v", account)
	}

	again, err := svc.GetOrCreate(context.Background(), accountID)
	if err != nil {
		t.Fatalf("second GetOrCreate error: %v", err)
	}
	if again != account {
		t.Fatal("expected existing wallet to be returned")
	}
}

func TestService_GetOrCreateLosesRace(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)

	accountID := uuid.New()
	winner := &models.Account{ID: accountID, BalanceCents: 500}
	repo.createFn = func(ctx context.Context, account *models.Account) error {
		// Simulate a concurrent insert winning first.
		repo.accounts[accountID] = winner
		return errors.New("duplicate key value")
	}

	got, err := svc.GetOrCreate(context.Background(), accountID)
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if got != winner {
		t.Fatal("expected re-read of concurrently created wallet")
	}
}

func TestService_Reconcile(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)

	accountID := uuid.New()
	repo.accounts[accountID] = &models.Account{ID: accountID, BalanceCents: 9000}

	repo.sumFn = func(ctx context.Context, id uuid.UUID) (int64, int64, error) {
		return 10000, 1000, nil
	}

	result, err := svc.Reconcile(context.Background(), accountID)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if !result.Consistent {
		t.Fatalf("expected consistent wallet, got drift %d", result.DriftCents)
	}
	if result.ComputedCents != 9000 {
		t.Fatalf("expected computed 9000, got %d", result.ComputedCents)
	}

	repo.sumFn = func(ctx context.Context, id uuid.UUID) (int64, int64, error) {
		return 10000, 2000, nil
	}
	result, err = svc.Reconcile(context.Background(), accountID)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if result.Consistent {
		t.Fatal("expected drift to be detected")
	}
	if result.DriftCents != 1000 {
		t.Fatalf("expected drift 1000, got %d", result.DriftCents)
	}
}

func TestService_GetWalletMissing(t *testing.T) {
	repo := newFakeRepository()
	svc, _ := NewService(repo)

	if _, err := svc.GetWallet(context.Background(), uuid.New()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := svc.GetWallet(context.Background(), uuid.Nil); err == nil {
		t.Fatal("expected validation error for nil account id")
	}
}
