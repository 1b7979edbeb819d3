package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
)

type fakeRepository struct {
	createFn func(ctx context.Context, entry *models.LedgerEntry) error
	listFn   func(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.LedgerEntry, error)
	countFn  func(ctx context.Context, source enums.SettlementSource, sourceID uuid.UUID) (int64, error)
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) Create(ctx context.Context, entry *models.LedgerEntry) error {
	if f.createFn != nil {
		return f.createFn(ctx, entry)
	}
	return nil
}

func (f *fakeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.LedgerEntry, error) {
	return nil, ErrNotFound
}

func (f *fakeRepository) GetByReference(ctx context.Context, reference string) (*models.LedgerEntry, error) {
	return nil, ErrNotFound
}

func (f *fakeRepository) ListByAccountID(ctx context.Context, accountID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.LedgerEntry, error) {
	if f.listFn != nil {
		return f.listFn(ctx, accountID, cursor, limit)
	}
	return nil, nil
}

func (f *fakeRepository) ListBySource(ctx context.Context, source enums.SettlementSource, sourceID uuid.UUID) ([]models.LedgerEntry, error) {
	return nil, nil
}

func (f *fakeRepository) CountBySource(ctx context.Context, source enums.SettlementSource, sourceID uuid.UUID) (int64, error) {
	if f.countFn != nil {
		return f.countFn(ctx, source, sourceID)
	}
	return 0, nil
}

func (f *fakeRepository) MarkReversed(ctx context.Context, id uuid.UUID) error { return nil }

func validInput() RecordEntryInput {
	source := enums.SettlementSourceNegotiation
	sourceID := uuid.New()
	return RecordEntryInput{
		AccountID:          uuid.New(),
		Direction:          enums.LedgerDirectionCredit,
		Category:           enums.LedgerCategoryRideEarning,
		AmountCents:        9000,
		BalanceBeforeCents: 1000,
		BalanceAfterCents:  10000,
		Reference:          "negotiation:" + sourceID.String() + ":driver",
		Description:        "ride earning",
		Source:             &source,
		SourceID:           &sourceID,
		Metadata:           json.RawMessage(`{"fare_cents":10000}`),
	}
}

func TestService_RecordEntry(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	input := validInput()
	var created *models.LedgerEntry
	repo.createFn = func(ctx context.Context, entry *models.LedgerEntry) error {
		created = entry
		return nil
	}

	got, err := svc.RecordEntry(context.Background(), input)
	if err != nil {
		t.Fatalf("RecordEntry error: %v", err)
	}
	if created == nil {
		t.Fatal("expected ledger entry to be created")
	}
	if created.ID == uuid.Nil {
		t.Fatal("expected entry id to be assigned")
	}
	if created.AccountID != input.AccountID || created.AmountCents != input.AmountCents {
		t.Fatalf("unexpected ledger entry data: %+v", created)
	}
	if created.Status != enums.LedgerEntryStatusCompleted {
		t.Fatalf("expected completed status, got %s", created.Status)
	}
	if created.SourceType == nil || *created.SourceType != enums.SettlementSourceNegotiation {
		t.Fatalf("source type not preserved: %+v", created.SourceType)
	}
	if string(created.Metadata) != string(input.Metadata) {
		t.Fatalf("metadata mismatch: %s", created.Metadata)
	}
	if got != created {
		t.Fatal("service should return created entry")
	}
}

func TestService_RecordEntryValidation(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*RecordEntryInput)
	}{
		{"missing account id", func(in *RecordEntryInput) { in.AccountID = uuid.Nil }},
		{"invalid direction", func(in *RecordEntryInput) { in.Direction = "sideways" }},
		{"invalid category", func(in *RecordEntryInput) { in.Category = "not_real" }},
		{"zero amount", func(in *RecordEntryInput) { in.AmountCents = 0 }},
		{"negative amount", func(in *RecordEntryInput) { in.AmountCents = -500 }},
		{"missing reference", func(in *RecordEntryInput) { in.Reference = "  " }},
		{"balance math broken", func(in *RecordEntryInput) { in.BalanceAfterCents = in.BalanceBeforeCents }},
		{"source without id", func(in *RecordEntryInput) { in.SourceID = nil }},
		{"id without source", func(in *RecordEntryInput) { in.Source = nil }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			input := validInput()
			tc.mutate(&input)
			if _, err := svc.RecordEntry(context.Background(), input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordEntryDebitBalanceMath(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	input := validInput()
	input.Direction = enums.LedgerDirectionDebit
	input.Category = enums.LedgerCategoryRefund
	input.BalanceBeforeCents = 10000
	input.BalanceAfterCents = 1000

	if _, err := svc.RecordEntry(context.Background(), input); err != nil {
		t.Fatalf("debit entry should validate: %v", err)
	}
}

func TestService_ListEntriesPagination(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	accountID := uuid.New()
	entries := make([]models.LedgerEntry, 0, 3)
	for i := 0; i < 3; i++ {
		entries = append(entries, models.LedgerEntry{ID: uuid.New(), AccountID: accountID})
	}
	repo.listFn = func(ctx context.Context, id uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.LedgerEntry, error) {
		if limit != 3 {
			t.Fatalf("expected limit+1 = 3, got %d", limit)
		}
		return entries, nil
	}

	got, next, err := svc.ListEntries(context.Background(), accountID, pagination.Params{Limit: 2})
	if err != nil {
		t.Fatalf("ListEntries error: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected trimmed page of 2, got %d", len(got))
	}
	if next == "" {
		t.Fatal("expected next cursor when extra row present")
	}
}

func TestService_HasSettlement(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	repo.countFn = func(ctx context.Context, source enums.SettlementSource, sourceID uuid.UUID) (int64, error) {
		return 2, nil
	}
	settled, err := svc.HasSettlement(context.Background(), enums.SettlementSourceBooking, uuid.New())
	if err != nil {
		t.Fatalf("HasSettlement error: %v", err)
	}
	if !settled {
		t.Fatal("expected settled when entries exist")
	}

	if _, err := svc.HasSettlement(context.Background(), "not_real", uuid.New()); err == nil {
		t.Fatal("expected invalid source error")
	}
}

func TestService_RecordEntryRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, entry *models.LedgerEntry) error {
		return expectedErr
	}

	if _, err := svc.RecordEntry(context.Background(), validInput()); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}
