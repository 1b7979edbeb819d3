package wallets

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
)

// Service exposes wallet reads and maintenance operations. Balance writes
// happen exclusively inside the settlement engine's transaction.
type Service interface {
	GetWallet(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	GetOrCreate(ctx context.Context, accountID uuid.UUID) (*models.Account, error)
	Reconcile(ctx context.Context, accountID uuid.UUID) (*ReconcileResult, error)
}

// ReconcileResult reports whether the cached balance matches the ledger.
type ReconcileResult struct {
	AccountID     uuid.UUID `json:"account_id"`
	BalanceCents  int64     `json:"balance_cents"`
	ComputedCents int64     `json:"computed_cents"`
	DriftCents    int64     `json:"drift_cents"`
	Consistent    bool      `json:"consistent"`
}

type service struct {
	repo Repository
}

// NewService wires a wallet service with the provided repository.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) GetWallet(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("account id is required")
	}
	return s.repo.Get(ctx, accountID)
}

// GetOrCreate returns the wallet, creating a zero-balance row on first use.
func (s *service) GetOrCreate(ctx context.Context, accountID uuid.UUID) (*models.Account, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("account id is required")
	}

	account, err := s.repo.Get(ctx, accountID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	account = &models.Account{ID: accountID}
	if createErr := s.repo.Create(ctx, account); createErr != nil {
		// Lost a race with another creator; re-read.
		if existing, getErr := s.repo.Get(ctx, accountID); getErr == nil {
			return existing, nil
		}
		return nil, createErr
	}
	return account, nil
}

// Reconcile recomputes the balance from non-reversed ledger entries and
// compares it against the cached column.
func (s *service) Reconcile(ctx context.Context, accountID uuid.UUID) (*ReconcileResult, error) {
	if accountID == uuid.Nil {
		return nil, fmt.Errorf("account id is required")
	}

	account, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return nil, err
	}

	credits, debits, err := s.repo.SumLedger(ctx, accountID)
	if err != nil {
		return nil, err
	}

	computed := credits - debits
	return &ReconcileResult{
		AccountID:     accountID,
		BalanceCents:  account.BalanceCents,
		ComputedCents: computed,
		DriftCents:    account.BalanceCents - computed,
		Consistent:    account.BalanceCents == computed,
	}, nil
}
