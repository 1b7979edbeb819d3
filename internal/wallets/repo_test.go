package wallets

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
)

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	accounts := `
CREATE TABLE IF NOT EXISTS accounts (
  id TEXT PRIMARY KEY,
  balance_cents INTEGER NOT NULL DEFAULT 0,
  lifetime_earnings_cents INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME,
  updated_at DATETIME
);`
	ledgerEntries := `
CREATE TABLE IF NOT EXISTS ledger_entries (
  id TEXT PRIMARY KEY,
  account_id TEXT NOT NULL,
  direction TEXT NOT NULL,
  category TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  balance_before_cents INTEGER NOT NULL,
  balance_after_cents INTEGER NOT NULL,
  reference TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'completed',
  source_type TEXT,
  source_id TEXT,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, db.Exec(accounts).Error)
	require.NoError(t, db.Exec(ledgerEntries).Error)
	return db
}

func seedLedgerEntry(t *testing.T, db *gorm.DB, accountID uuid.UUID, direction enums.LedgerDirection, amountCents int64, status enums.LedgerEntryStatus) {
	t.Helper()

	entry := &models.LedgerEntry{
		ID:          uuid.New(),
		AccountID:   accountID,
		Direction:   direction,
		Category:    enums.LedgerCategoryRideEarning,
		AmountCents: amountCents,
		Reference:   uuid.NewString(),
		Status:      status,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, db.Create(entry).Error)
}

func TestWalletRepoCreateAndGet(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	account := &models.Account{ID: uuid.New(), BalanceCents: 500}
	require.NoError(t, repo.Create(ctx, account))

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(500), got.BalanceCents)

	_, err = repo.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestWalletRepoSaveUpdatesBalance(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	account := &models.Account{ID: uuid.New()}
	require.NoError(t, repo.Create(ctx, account))

	account.BalanceCents = 9000
	account.LifetimeEarningsCents = 9000
	require.NoError(t, repo.Save(ctx, account))

	got, err := repo.Get(ctx, account.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(9000), got.BalanceCents)
	assert.Equal(t, int64(9000), got.LifetimeEarningsCents)
}

func TestWalletReconcileAfterRefundIsConsistent(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	svc, err := NewService(repo)
	require.NoError(t, err)
	ctx := context.Background()

	// A settled-then-refunded wallet: the earning credit and the
	// compensating refund debit both stay completed, balance back to zero.
	account := &models.Account{ID: uuid.New(), BalanceCents: 0, LifetimeEarningsCents: 9000}
	require.NoError(t, repo.Create(ctx, account))
	seedLedgerEntry(t, db, account.ID, enums.LedgerDirectionCredit, 9000, enums.LedgerEntryStatusCompleted)
	seedLedgerEntry(t, db, account.ID, enums.LedgerDirectionDebit, 9000, enums.LedgerEntryStatusCompleted)

	result, err := svc.Reconcile(ctx, account.ID)
	require.NoError(t, err)
	assert.True(t, result.Consistent)
	assert.Equal(t, int64(0), result.DriftCents)
	assert.Equal(t, int64(0), result.ComputedCents)
}

func TestWalletRepoSumLedgerSkipsReversed(t *testing.T) {
	db := setupWalletTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	accountID := uuid.New()
	seedLedgerEntry(t, db, accountID, enums.LedgerDirectionCredit, 9000, enums.LedgerEntryStatusCompleted)
	seedLedgerEntry(t, db, accountID, enums.LedgerDirectionCredit, 4500, enums.LedgerEntryStatusCompleted)
	seedLedgerEntry(t, db, accountID, enums.LedgerDirectionDebit, 2000, enums.LedgerEntryStatusCompleted)
	seedLedgerEntry(t, db, accountID, enums.LedgerDirectionCredit, 7777, enums.LedgerEntryStatusReversed)

	credits, debits, err := repo.SumLedger(ctx, accountID)
	require.NoError(t, err)
	assert.Equal(t, int64(13500), credits)
	assert.Equal(t, int64(2000), debits)
}
