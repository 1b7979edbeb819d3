package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridelinkhq/ridelink-backend/internal/ledger"
	"github.com/ridelinkhq/ridelink-backend/internal/wallets"
	"github.com/ridelinkhq/ridelink-backend/pkg/config"
	"github.com/ridelinkhq/ridelink-backend/pkg/db"
	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	pkgerrors "github.com/ridelinkhq/ridelink-backend/pkg/errors"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/metrics"
	"github.com/ridelinkhq/ridelink-backend/pkg/money"
)

// ErrAlreadySettled signals that the source has ledger entries and no new
// settlement may be written. Callers treat this as success when re-processing
// duplicate payment confirmations.
var ErrAlreadySettled = errors.New("source already settled")

// ErrNotSettled signals a refund request for a source that was never settled.
var ErrNotSettled = errors.New("source has no settlement to refund")

// Service performs exactly-once fare settlement and refund reversal.
type Service interface {
	Settle(ctx context.Context, input SettleInput) (*Result, error)
	Refund(ctx context.Context, input RefundInput) (*RefundResult, error)
}

// Notifier receives post-commit settlement events. Failures are logged and
// never surfaced to the caller.
type Notifier interface {
	EarningCredited(ctx context.Context, accountID uuid.UUID, amountCents int64, source enums.SettlementSource, sourceID uuid.UUID)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// SettleInput identifies the paid ride and the fare to split.
type SettleInput struct {
	Source      enums.SettlementSource
	SourceID    uuid.UUID
	DriverID    uuid.UUID
	FareCents   int64
	Description string
}

// Result reports both ledger legs of a completed settlement.
type Result struct {
	Split         money.Split         `json:"split"`
	DriverEntry   *models.LedgerEntry `json:"driver_entry"`
	PlatformEntry *models.LedgerEntry `json:"platform_entry"`
}

// RefundInput identifies a settled source whose money should be clawed back.
type RefundInput struct {
	Source   enums.SettlementSource
	SourceID uuid.UUID
	Reason   string
}

// RefundResult reports the compensating entries written for a refund.
type RefundResult struct {
	Entries []models.LedgerEntry `json:"entries"`
}

type service struct {
	tx         txRunner
	ledgerRepo ledger.Repository
	walletRepo wallets.Repository
	platform   config.PlatformConfig
	logg       *logger.Logger
	metrics    *metrics.SettlementMetrics
	notifier   Notifier
}

// NewService wires the settlement engine.
func NewService(
	tx txRunner,
	ledgerRepo ledger.Repository,
	walletRepo wallets.Repository,
	platform config.PlatformConfig,
	logg *logger.Logger,
	sm *metrics.SettlementMetrics,
	notifier Notifier,
) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if ledgerRepo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if walletRepo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if err := platform.Validate(); err != nil {
		return nil, err
	}
	return &service{
		tx:         tx,
		ledgerRepo: ledgerRepo,
		walletRepo: walletRepo,
		platform:   platform,
		logg:       logg,
		metrics:    sm,
		notifier:   notifier,
	}, nil
}

func (s *service) Settle(ctx context.Context, input SettleInput) (*Result, error) {
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid settlement source %q", input.Source))
	}
	if input.SourceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source id is required")
	}
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id is required")
	}
	if input.FareCents < s.platform.MinimumFareCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("fare %d below minimum of %d cents", input.FareCents, s.platform.MinimumFareCents))
	}

	platformID := s.platform.PlatformAccountID()
	if input.DriverID == platformID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver account cannot be the platform account")
	}

	split, err := money.SplitFare(input.FareCents, s.platform.DriverShareBps)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "splitting fare")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"source":         string(input.Source),
		"source_id":      input.SourceID.String(),
		"driver_id":      input.DriverID.String(),
		"fare_cents":     input.FareCents,
		"driver_cents":   split.DriverCents,
		"platform_cents": split.PlatformCents,
	})

	result := &Result{Split: split}
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)
		walletRepo := s.walletRepo.WithTx(tx)

		count, err := ledgerRepo.CountBySource(ctx, input.Source, input.SourceID)
		if err != nil {
			return err
		}
		if count > 0 {
			return ErrAlreadySettled
		}

		driver, err := s.lockOrCreate(ctx, walletRepo, input.DriverID)
		if err != nil {
			return err
		}
		platform, err := s.lockOrCreate(ctx, walletRepo, platformID)
		if err != nil {
			return err
		}

		meta, _ := json.Marshal(map[string]any{
			"fare_cents":       input.FareCents,
			"driver_share_bps": s.platform.DriverShareBps,
		})

		driverEntry, err := s.writeCredit(ctx, ledgerRepo, walletRepo, driver, creditLeg{
			category:    enums.LedgerCategoryRideEarning,
			amountCents: split.DriverCents,
			reference:   settlementReference(input.Source, input.SourceID, "driver"),
			description: input.Description,
			source:      input.Source,
			sourceID:    input.SourceID,
			metadata:    meta,
		})
		if err != nil {
			return err
		}

		platformEntry, err := s.writeCredit(ctx, ledgerRepo, walletRepo, platform, creditLeg{
			category:    enums.LedgerCategoryServiceFee,
			amountCents: split.PlatformCents,
			reference:   settlementReference(input.Source, input.SourceID, "platform"),
			description: input.Description,
			source:      input.Source,
			sourceID:    input.SourceID,
			metadata:    meta,
		})
		if err != nil {
			return err
		}

		result.DriverEntry = driverEntry
		result.PlatformEntry = platformEntry
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrAlreadySettled) {
			s.metrics.IncDuplicate()
			s.logg.Info(ctx, "settlement skipped, source already settled")
			return nil, ErrAlreadySettled
		}
		// The unique reference constraint is the last line of defense when
		// two transactions race past the count check.
		if db.IsUniqueViolation(err, "ledger_entries_reference_key") {
			s.metrics.IncDuplicate()
			s.logg.Warn(ctx, "settlement raced, unique reference constraint hit")
			return nil, ErrAlreadySettled
		}
		return nil, err
	}

	s.metrics.IncSettled(string(input.Source))
	s.metrics.AddAmount("driver", split.DriverCents)
	s.metrics.AddAmount("platform", split.PlatformCents)
	s.logg.Info(ctx, "fare settled")

	if s.notifier != nil {
		s.notifier.EarningCredited(ctx, input.DriverID, split.DriverCents, input.Source, input.SourceID)
	}
	return result, nil
}

type creditLeg struct {
	category    enums.LedgerCategory
	amountCents int64
	reference   string
	description string
	source      enums.SettlementSource
	sourceID    uuid.UUID
	metadata    json.RawMessage
}

func (s *service) writeCredit(ctx context.Context, ledgerRepo ledger.Repository, walletRepo wallets.Repository, account *models.Account, leg creditLeg) (*models.LedgerEntry, error) {
	source := leg.source
	sourceID := leg.sourceID
	entry := &models.LedgerEntry{
		ID:                 uuid.New(),
		AccountID:          account.ID,
		Direction:          enums.LedgerDirectionCredit,
		Category:           leg.category,
		AmountCents:        leg.amountCents,
		BalanceBeforeCents: account.BalanceCents,
		BalanceAfterCents:  account.BalanceCents + leg.amountCents,
		Reference:          leg.reference,
		Description:        leg.description,
		Status:             enums.LedgerEntryStatusCompleted,
		SourceType:         &source,
		SourceID:           &sourceID,
		Metadata:           leg.metadata,
	}
	if err := ledgerRepo.Create(ctx, entry); err != nil {
		return nil, err
	}

	account.BalanceCents += leg.amountCents
	account.LifetimeEarningsCents += leg.amountCents
	if err := walletRepo.Save(ctx, account); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *service) Refund(ctx context.Context, input RefundInput) (*RefundResult, error) {
	if !input.Source.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid settlement source %q", input.Source))
	}
	if input.SourceID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "source id is required")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"source":    string(input.Source),
		"source_id": input.SourceID.String(),
	})

	result := &RefundResult{}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ledgerRepo := s.ledgerRepo.WithTx(tx)
		walletRepo := s.walletRepo.WithTx(tx)

		entries, err := ledgerRepo.ListBySource(ctx, input.Source, input.SourceID)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			return ErrNotSettled
		}

		meta, _ := json.Marshal(map[string]any{"reason": input.Reason})

		for _, original := range entries {
			if original.Direction != enums.LedgerDirectionCredit ||
				original.Status != enums.LedgerEntryStatusCompleted {
				continue
			}

			account, err := walletRepo.GetForUpdate(ctx, original.AccountID)
			if err != nil {
				return err
			}

			source := input.Source
			sourceID := input.SourceID
			refund := &models.LedgerEntry{
				ID:                 uuid.New(),
				AccountID:          account.ID,
				Direction:          enums.LedgerDirectionDebit,
				Category:           enums.LedgerCategoryRefund,
				AmountCents:        original.AmountCents,
				BalanceBeforeCents: account.BalanceCents,
				BalanceAfterCents:  account.BalanceCents - original.AmountCents,
				Reference:          original.Reference + ":refund",
				Description:        input.Reason,
				Status:             enums.LedgerEntryStatusCompleted,
				SourceType:         &source,
				SourceID:           &sourceID,
				Metadata:           meta,
			}
			if err := ledgerRepo.Create(ctx, refund); err != nil {
				return err
			}

			// The compensating debit is the whole clawback: the original
			// credit keeps its completed status so ledger sums still match
			// the cached balance, and lifetime earnings never move backward.
			account.BalanceCents -= original.AmountCents
			if err := walletRepo.Save(ctx, account); err != nil {
				return err
			}

			result.Entries = append(result.Entries, *refund)
		}

		if len(result.Entries) == 0 {
			return ErrNotSettled
		}
		return nil
	})
	if err != nil {
		if db.IsUniqueViolation(err, "ledger_entries_reference_key") {
			s.logg.Warn(ctx, "refund raced, unique reference constraint hit")
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "refund already recorded")
		}
		return nil, err
	}

	s.logg.Info(ctx, "settlement refunded")
	return result, nil
}

// lockOrCreate takes a row lock on the wallet, creating it first when this is
// the account's first credit.
func (s *service) lockOrCreate(ctx context.Context, repo wallets.Repository, accountID uuid.UUID) (*models.Account, error) {
	account, err := repo.GetForUpdate(ctx, accountID)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, wallets.ErrNotFound) {
		return nil, err
	}
	if createErr := repo.Create(ctx, &models.Account{ID: accountID}); createErr != nil {
		return nil, createErr
	}
	return repo.GetForUpdate(ctx, accountID)
}

func settlementReference(source enums.SettlementSource, sourceID uuid.UUID, leg string) string {
	return fmt.Sprintf("%s:%s:%s", source, sourceID, leg)
}
