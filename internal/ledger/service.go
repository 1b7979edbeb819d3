package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
)

// Service defines operations that record and read ledger entries.
type Service interface {
	RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error)
	ListEntries(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error)
	HasSettlement(ctx context.Context, source enums.SettlementSource, sourceID uuid.UUID) (bool, error)
	Reverse(ctx context.Context, entryID uuid.UUID) error
}

type service struct {
	repo Repository
}

// RecordEntryInput captures the immutable data a ledger entry requires.
// The balance columns must describe the account state around this single
// movement: after = before + amount for credits, before - amount for debits.
type RecordEntryInput struct {
	AccountID          uuid.UUID
	Direction          enums.LedgerDirection
	Category           enums.LedgerCategory
	AmountCents        int64
	BalanceBeforeCents int64
	BalanceAfterCents  int64
	Reference          string
	Description        string
	Source             *enums.SettlementSource
	SourceID           *uuid.UUID
	Metadata           json.RawMessage
}

// NewService wires a ledger service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	return &service{repo: repo}, nil
}

func validateEntryInput(input RecordEntryInput) error {
	if input.AccountID == uuid.Nil {
		return fmt.Errorf("account id is required")
	}
	if !input.Direction.IsValid() {
		return fmt.Errorf("invalid ledger direction %q", input.Direction)
	}
	if !input.Category.IsValid() {
		return fmt.Errorf("invalid ledger category %q", input.Category)
	}
	if input.AmountCents <= 0 {
		return fmt.Errorf("amount must be positive, got %d", input.AmountCents)
	}
	if strings.TrimSpace(input.Reference) == "" {
		return fmt.Errorf("reference is required")
	}
	expected := input.BalanceBeforeCents + input.AmountCents
	if input.Direction == enums.LedgerDirectionDebit {
		expected = input.BalanceBeforeCents - input.AmountCents
	}
	if input.BalanceAfterCents != expected {
		return fmt.Errorf("balance mismatch: expected %d after %s of %d, got %d",
			expected, input.Direction, input.AmountCents, input.BalanceAfterCents)
	}
	if (input.Source == nil) != (input.SourceID == nil) {
		return fmt.Errorf("source type and source id must be set together")
	}
	if input.Source != nil && !input.Source.IsValid() {
		return fmt.Errorf("invalid settlement source %q", *input.Source)
	}
	return nil
}

func (s *service) RecordEntry(ctx context.Context, input RecordEntryInput) (*models.LedgerEntry, error) {
	if err := validateEntryInput(input); err != nil {
		return nil, err
	}

	entry := &models.LedgerEntry{
		ID:                 uuid.New(),
		AccountID:          input.AccountID,
		Direction:          input.Direction,
		Category:           input.Category,
		AmountCents:        input.AmountCents,
		BalanceBeforeCents: input.BalanceBeforeCents,
		BalanceAfterCents:  input.BalanceAfterCents,
		Reference:          input.Reference,
		Description:        input.Description,
		Status:             enums.LedgerEntryStatusCompleted,
		SourceType:         input.Source,
		SourceID:           input.SourceID,
		Metadata:           input.Metadata,
	}

	if err := s.repo.Create(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) ListEntries(ctx context.Context, accountID uuid.UUID, params pagination.Params) ([]models.LedgerEntry, string, error) {
	if accountID == uuid.Nil {
		return nil, "", fmt.Errorf("account id is required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}

	limit := pagination.NormalizeLimit(params.Limit)
	entries, err := s.repo.ListByAccountID(ctx, accountID, cursor, limit+1)
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(entries) > limit {
		entries = entries[:limit]
		last := entries[len(entries)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return entries, next, nil
}

func (s *service) HasSettlement(ctx context.Context, source enums.SettlementSource, sourceID uuid.UUID) (bool, error) {
	if !source.IsValid() {
		return false, fmt.Errorf("invalid settlement source %q", source)
	}
	if sourceID == uuid.Nil {
		return false, fmt.Errorf("source id is required")
	}
	count, err := s.repo.CountBySource(ctx, source, sourceID)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *service) Reverse(ctx context.Context, entryID uuid.UUID) error {
	if entryID == uuid.Nil {
		return fmt.Errorf("entry id is required")
	}
	return s.repo.MarkReversed(ctx, entryID)
}
