package settlement

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridelinkhq/ridelink-backend/internal/ledger"
	"github.com/ridelinkhq/ridelink-backend/internal/wallets"
	"github.com/ridelinkhq/ridelink-backend/pkg/config"
	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeLedgerRepo struct {
	entries  []*models.LedgerEntry
	createFn func(entry *models.LedgerEntry) error
}

func (f *fakeLedgerRepo) WithTx(tx *gorm.DB) ledger.Repository { return f }

func (f *fakeLedgerRepo) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if f.createFn != nil {
		if err := f.createFn(entry); err != nil {
			return err
		}
	}
	for _, existing := range f.entries {
		if existing.Reference == entry.Reference {
			return fmt.Errorf("duplicate key value violates unique constraint \"ledger_entries_reference_key\"")
		}
	}
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	for _, e := range f.entries {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (f *fakeLedgerRepo) GetByReference(ctx context.Context, reference string) (*models.LedgerEntry, error) {
	for _, e := range f.entries {
		if e.Reference == reference {
			return e, nil
		}
	}
	return nil, ledger.ErrNotFound
}

func (f *fakeLedgerRepo) ListByAccountID(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeLedgerRepo) ListBySource(ctx context.Context, source enums.SettlementSource, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	var out []models.LedgerEntry
	for _, e := range f.entries {
		if e.SourceType != nil && *e.SourceType == source && e.SourceID != nil && *e.SourceID == sourceID {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (f *fakeLedgerRepo) CountBySource(ctx context.Context, source enums.SettlementSource, sourceID uuid.UUID) (int64, error) {
	entries, _ := f.ListBySource(ctx, source, sourceID)
	return int64(len(entries)), nil
}

func (f *fakeLedgerRepo) MarkReversed(ctx context.Context, id uuid.UUID) error {
	for _, e := range f.entries {
		if e.ID == id && e.Status == enums.LedgerEntryStatusCompleted {
			e.Status = enums.LedgerEntryStatusReversed
			return nil
		}
	}
	return ledger.ErrNotFound
}

type fakeWalletRepo struct {
	accounts map[uuid.UUID]*models.Account
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{accounts: make(map[uuid.UUID]*models.Account)}
}

func (f *fakeWalletRepo) WithTx(tx *gorm.DB) wallets.Repository { return f }

func (f *fakeWalletRepo) Create(ctx context.Context, account *models.Account) error {
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeWalletRepo) Get(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	if a, ok := f.accounts[id]; ok {
		return a, nil
	}
	return nil, wallets.ErrNotFound
}

func (f *fakeWalletRepo) GetForUpdate(ctx context.Context, id uuid.UUID) (*models.Account, error) {
	return f.Get(ctx, id)
}

func (f *fakeWalletRepo) Save(ctx context.Context, account *models.Account) error {
	f.accounts[account.ID] = account
	return nil
}

func (f *fakeWalletRepo) SumLedger(ctx context.Context, accountID uuid.UUID) (int64, int64, error) {
	return 0, 0, nil
}

type fakeNotifier struct {
	calls []int64
}

func (f *fakeNotifier) EarningCredited(ctx context.Context, accountID uuid.UUID, amountCents int64, source enums.SettlementSource, sourceID uuid.UUID) {
	f.calls = append(f.calls, amountCents)
}

func newTestService(t *testing.T) (Service, *fakeLedgerRepo, *fakeWalletRepo, *fakeNotifier, config.PlatformConfig) {
	t.Helper()

	ledgerRepo := &fakeLedgerRepo{}
	walletRepo := newFakeWalletRepo()
	notifier := &fakeNotifier{}
	platform := config.PlatformConfig{
		AccountID:        uuid.NewString(),
		DriverShareBps:   9000,
		MinimumFareCents: 50,
	}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(fakeTxRunner{}, ledgerRepo, walletRepo, platform, logg, nil, notifier)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}
	return svc, ledgerRepo, walletRepo, notifier, platform
}

func TestService_SettleSplitsNinetyTen(t *testing.T) {
	svc, ledgerRepo, walletRepo, notifier, platform := newTestService(t)

	driverID := uuid.New()
	sourceID := uuid.New()
	result, err := svc.Settle(context.Background(), SettleInput{
		Source:      enums.SettlementSourceNegotiation,
		SourceID:    sourceID,
		DriverID:    driverID,
		FareCents:   10000,
		Description: "ride fare",
	})
	if err != nil {
		t.Fatalf("Settle error: %v", err)
	}

	if result.Split.DriverCents != 9000 || result.Split.PlatformCents != 1000 {
		t.Fatalf("unexpected split: %+v", result.Split)
	}
	if len(ledgerRepo.entries) != 2 {
		t.Fatalf("expected exactly 2 ledger entries, got %d", len(ledgerRepo.entries))
	}

	driver := walletRepo.accounts[driverID]
	if driver == nil || driver.BalanceCents != 9000 || driver.LifetimeEarningsCents != 9000 {
		t.Fatalf("driver wallet not credited: %+v", driver)
	}
	platformWallet := walletRepo.accounts[platform.PlatformAccountID()]
	if platformWallet == nil || platformWallet.BalanceCents != 1000 {
		t.Fatalf("platform wallet not credited: %+v", platformWallet)
	}

	if result.DriverEntry.BalanceBeforeCents != 0 || result.DriverEntry.BalanceAfterCents != 9000 {
		t.Fatalf("driver entry balance math wrong: %+v", result.DriverEntry)
	}
	wantRef := fmt.Sprintf("negotiation:%s:driver", sourceID)
	if result.DriverEntry.Reference != wantRef {
		t.Fatalf("unexpected reference %q", result.DriverEntry.Reference)
	}
	if result.PlatformEntry.Category != enums.LedgerCategoryServiceFee {
		t.Fatalf("platform leg should be a service fee, got %s", result.PlatformEntry.Category)
	}

	if len(notifier.calls) != 1 || notifier.calls[0] != 9000 {
		t.Fatalf("expected driver notification of 9000, got %v", notifier.calls)
	}
}

func TestService_SettleRoundsHalfUpPerLeg(t *testing.T) {
	tests := []struct {
		fare     int64
		driver   int64
		platform int64
	}{
		{10000, 9000, 1000},
		{101, 91, 10},
		{99, 89, 10},
		{55, 50, 6},
	}

	for _, tc := range tests {
		svc, _, _, _, _ := newTestService(t)
		result, err := svc.Settle(context.Background(), SettleInput{
			Source:    enums.SettlementSourceBooking,
			SourceID:  uuid.New(),
			DriverID:  uuid.New(),
			FareCents: tc.fare,
		})
		if err != nil {
			t.Fatalf("fare %d: Settle error: %v", tc.fare, err)
		}
		if result.Split.DriverCents != tc.driver || result.Split.PlatformCents != tc.platform {
			t.Fatalf("fare %d: expected %d/%d, got %d/%d",
				tc.fare, tc.driver, tc.platform, result.Split.DriverCents, result.Split.PlatformCents)
		}
	}
}

func TestService_SettleRejectsBelowMinimum(t *testing.T) {
	svc, ledgerRepo, _, _, _ := newTestService(t)

	_, err := svc.Settle(context.Background(), SettleInput{
		Source:    enums.SettlementSourceNegotiation,
		SourceID:  uuid.New(),
		DriverID:  uuid.New(),
		FareCents: 49,
	})
	if err == nil {
		t.Fatal("expected minimum fare rejection")
	}
	if len(ledgerRepo.entries) != 0 {
		t.Fatal("no entries should be written for rejected fares")
	}
}

func TestService_SettleTwiceIsIdempotent(t *testing.T) {
	svc, ledgerRepo, walletRepo, _, _ := newTestService(t)

	driverID := uuid.New()
	input := SettleInput{
		Source:    enums.SettlementSourceTripBooking,
		SourceID:  uuid.New(),
		DriverID:  driverID,
		FareCents: 2000,
	}

	if _, err := svc.Settle(context.Background(), input); err != nil {
		t.Fatalf("first Settle error: %v", err)
	}
	if _, err := svc.Settle(context.Background(), input); !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled, got %v", err)
	}

	if len(ledgerRepo.entries) != 2 {
		t.Fatalf("duplicate settle must not add entries, got %d", len(ledgerRepo.entries))
	}
	if walletRepo.accounts[driverID].BalanceCents != 1800 {
		t.Fatalf("duplicate settle must not re-credit, got %d", walletRepo.accounts[driverID].BalanceCents)
	}
}

func TestService_SettleRaceFallsBackToUniqueConstraint(t *testing.T) {
	svc, ledgerRepo, _, _, _ := newTestService(t)

	// Simulate a racing transaction that slipped past the count check: the
	// first insert trips the reference constraint.
	ledgerRepo.createFn = func(entry *models.LedgerEntry) error {
		return fmt.Errorf("duplicate key value violates unique constraint \"ledger_entries_reference_key\"")
	}

	_, err := svc.Settle(context.Background(), SettleInput{
		Source:    enums.SettlementSourceNegotiation,
		SourceID:  uuid.New(),
		DriverID:  uuid.New(),
		FareCents: 1000,
	})
	if !errors.Is(err, ErrAlreadySettled) {
		t.Fatalf("expected ErrAlreadySettled from constraint race, got %v", err)
	}
}

func TestService_RefundWritesCompensatingDebits(t *testing.T) {
	svc, ledgerRepo, walletRepo, _, platform := newTestService(t)

	driverID := uuid.New()
	sourceID := uuid.New()
	if _, err := svc.Settle(context.Background(), SettleInput{
		Source:    enums.SettlementSourceBooking,
		SourceID:  sourceID,
		DriverID:  driverID,
		FareCents: 10000,
	}); err != nil {
		t.Fatalf("Settle error: %v", err)
	}

	result, err := svc.Refund(context.Background(), RefundInput{
		Source:   enums.SettlementSourceBooking,
		SourceID: sourceID,
		Reason:   "ride cancelled after payment",
	})
	if err != nil {
		t.Fatalf("Refund error: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected 2 compensating entries, got %d", len(result.Entries))
	}

	if got := walletRepo.accounts[driverID].BalanceCents; got != 0 {
		t.Fatalf("driver balance should return to zero, got %d", got)
	}
	if got := walletRepo.accounts[platform.PlatformAccountID()].BalanceCents; got != 0 {
		t.Fatalf("platform balance should return to zero, got %d", got)
	}

	// Lifetime earnings only ever grow.
	if got := walletRepo.accounts[driverID].LifetimeEarningsCents; got != 9000 {
		t.Fatalf("lifetime earnings must survive the refund, got %d", got)
	}

	// The originals keep their completed status; the debit alone claws the
	// money back, so a ledger-derived balance still matches the wallet.
	for _, accountID := range []uuid.UUID{driverID, platform.PlatformAccountID()} {
		var derived int64
		for _, e := range ledgerRepo.entries {
			if e.AccountID != accountID || e.Status != enums.LedgerEntryStatusCompleted {
				continue
			}
			switch e.Direction {
			case enums.LedgerDirectionCredit:
				derived += e.AmountCents
			case enums.LedgerDirectionDebit:
				derived -= e.AmountCents
			}
		}
		if e := findReversed(ledgerRepo.entries); e != nil {
			t.Fatalf("no entry should be marked reversed, found %s", e.Reference)
		}
		if derived != walletRepo.accounts[accountID].BalanceCents {
			t.Fatalf("ledger-derived balance %d diverges from cached %d for %s",
				derived, walletRepo.accounts[accountID].BalanceCents, accountID)
		}
	}

	// A second refund trips the unique refund reference instead of
	// debiting the wallets again.
	if _, err := svc.Refund(context.Background(), RefundInput{
		Source:   enums.SettlementSourceBooking,
		SourceID: sourceID,
		Reason:   "duplicate request",
	}); err == nil {
		t.Fatal("second refund must not double-debit")
	}
	if got := walletRepo.accounts[driverID].BalanceCents; got != 0 {
		t.Fatalf("driver balance moved on duplicate refund, got %d", got)
	}
}

func findReversed(entries []*models.LedgerEntry) *models.LedgerEntry {
	for _, e := range entries {
		if e.Status == enums.LedgerEntryStatusReversed {
			return e
		}
	}
	return nil
}

func TestService_RefundWithoutSettlement(t *testing.T) {
	svc, _, _, _, _ := newTestService(t)

	_, err := svc.Refund(context.Background(), RefundInput{
		Source:   enums.SettlementSourceNegotiation,
		SourceID: uuid.New(),
		Reason:   "nothing to refund",
	})
	if !errors.Is(err, ErrNotSettled) {
		t.Fatalf("expected ErrNotSettled, got %v", err)
	}
}

func TestService_SettleRejectsPlatformAsDriver(t *testing.T) {
	svc, _, _, _, platform := newTestService(t)

	_, err := svc.Settle(context.Background(), SettleInput{
		Source:    enums.SettlementSourceNegotiation,
		SourceID:  uuid.New(),
		DriverID:  platform.PlatformAccountID(),
		FareCents: 1000,
	})
	if err == nil {
		t.Fatal("expected rejection when driver is the platform account")
	}
}
