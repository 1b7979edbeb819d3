package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/internal/profiles"
	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	pkgerrors "github.com/ridelinkhq/ridelink-backend/pkg/errors"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/money"
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
)

// Service persists and dispatches outbound notifications. Dispatch is best
// effort: the ride and payment flows never fail because a message did not go
// out, so the notify methods have no error return.
type Service interface {
	NegotiationUpdate(ctx context.Context, accountID uuid.UUID, message string)
	BookingUpdate(ctx context.Context, accountID uuid.UUID, message string)
	PaymentReceived(ctx context.Context, accountID uuid.UUID, amountCents int64)
	EarningCredited(ctx context.Context, accountID uuid.UUID, amountCents int64, source enums.SettlementSource, sourceID uuid.UUID)
	List(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*ListResult, error)
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

type service struct {
	repo     Repository
	profiles profiles.Repository
	sender   Sender
	logg     *logger.Logger
}

// NewService wires notifications dependencies.
func NewService(repo Repository, profileRepo profiles.Repository, sender Sender, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if profileRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profiles repository required")
	}
	if sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification sender required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{repo: repo, profiles: profileRepo, sender: sender, logg: logg}, nil
}

func (s *service) NegotiationUpdate(ctx context.Context, accountID uuid.UUID, message string) {
	s.dispatch(ctx, accountID, enums.NotificationKindNegotiationUpdate, message)
}

func (s *service) BookingUpdate(ctx context.Context, accountID uuid.UUID, message string) {
	s.dispatch(ctx, accountID, enums.NotificationKindBookingUpdate, message)
}

func (s *service) PaymentReceived(ctx context.Context, accountID uuid.UUID, amountCents int64) {
	message := fmt.Sprintf("Payment of $%s received. Your ride is confirmed.", money.ToDollarString(amountCents))
	s.dispatch(ctx, accountID, enums.NotificationKindPaymentReceived, message)
}

func (s *service) EarningCredited(ctx context.Context, accountID uuid.UUID, amountCents int64, source enums.SettlementSource, sourceID uuid.UUID) {
	message := fmt.Sprintf("You earned $%s. The amount has been credited to your wallet.", money.ToDollarString(amountCents))
	s.dispatch(ctx, accountID, enums.NotificationKindEarningCredited, message)
}

func (s *service) dispatch(ctx context.Context, accountID uuid.UUID, kind enums.NotificationKind, message string) {
	if accountID == uuid.Nil || message == "" {
		return
	}

	phone := ""
	if profile, err := s.profiles.Get(ctx, accountID); err == nil {
		phone = profile.Phone
	}

	row := &models.Notification{
		ID:        uuid.New(),
		AccountID: accountID,
		Kind:      kind,
		Phone:     phone,
		Message:   message,
	}

	if sendErr := s.sender.Send(ctx, phone, message); sendErr != nil {
		errText := sendErr.Error()
		row.Error = &errText
		s.logg.Warn(s.logg.WithField(ctx, "kind", string(kind)), "notification delivery failed")
	} else {
		now := time.Now().UTC()
		row.SentAt = &now
	}

	if err := s.repo.Create(ctx, row); err != nil {
		s.logg.Error(ctx, "persisting notification", err)
	}
}

func (s *service) List(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*ListResult, error) {
	if accountID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "account id required")
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByAccountID(ctx, accountID, cursor, limit+1)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return &ListResult{Items: rows, Cursor: next}, nil
}
