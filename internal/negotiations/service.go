package negotiations

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridelinkhq/ridelink-backend/internal/notifications"
	"github.com/ridelinkhq/ridelink-backend/internal/profiles"
	"github.com/ridelinkhq/ridelink-backend/internal/settlement"
	"github.com/ridelinkhq/ridelink-backend/pkg/config"
	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	pkgerrors "github.com/ridelinkhq/ridelink-backend/pkg/errors"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/money"
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
	"github.com/ridelinkhq/ridelink-backend/pkg/paylink"
	"github.com/ridelinkhq/ridelink-backend/pkg/types"
)

// Service drives a negotiation from creation through acceptance, payment, and
// completion.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.Negotiation, error)
	Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error)
	List(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.Negotiation, string, error)
	SubmitRecord(ctx context.Context, actor types.Actor, id uuid.UUID, input RecordInput) (*models.NegotiationRecord, error)
	Accept(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error)
	Decline(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error)
	Cancel(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error)
	Complete(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) error
	FailPayment(ctx context.Context, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput captures the data required to open a negotiation.
type CreateInput struct {
	DriverID       uuid.UUID `json:"driver_id" validate:"required"`
	PickupLat      float64   `json:"pickup_lat" validate:"min=-90,max=90"`
	PickupLng      float64   `json:"pickup_lng" validate:"min=-180,max=180"`
	PickupAddress  string    `json:"pickup_address" validate:"required"`
	DropoffLat     float64   `json:"dropoff_lat" validate:"min=-90,max=90"`
	DropoffLng     float64   `json:"dropoff_lng" validate:"min=-180,max=180"`
	DropoffAddress string    `json:"dropoff_address" validate:"required"`
}

// RecordInput is one offer or message. Price arrives either as cents or as a
// legacy dollar string, never both.
type RecordInput struct {
	PriceCents   *int64 `json:"price_cents,omitempty"`
	PriceDollars string `json:"price,omitempty"`
	Accepted     bool   `json:"accepted"`
	Body         string `json:"body"`
}

type service struct {
	tx       txRunner
	repo     Repository
	profiles profiles.Repository
	gateway  paylink.Gateway
	settle   settlement.Service
	notify   notifications.Service
	platform config.PlatformConfig
	logg     *logger.Logger
}

// NewService wires the negotiation state machine.
func NewService(
	tx txRunner,
	repo Repository,
	profileRepo profiles.Repository,
	gateway paylink.Gateway,
	settle settlement.Service,
	notify notifications.Service,
	platform config.PlatformConfig,
	logg *logger.Logger,
) (Service, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "negotiation repository required")
	}
	if profileRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "profiles repository required")
	}
	if gateway == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payment link gateway required")
	}
	if settle == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "settlement service required")
	}
	if notify == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications service required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		tx:       tx,
		repo:     repo,
		profiles: profileRepo,
		gateway:  gateway,
		settle:   settle,
		notify:   notify,
		platform: platform,
		logg:     logg,
	}, nil
}

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.Negotiation, error) {
	if actor.Role != enums.ActorRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can open a negotiation")
	}
	if input.DriverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id is required")
	}
	if input.DriverID == actor.AccountID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer and driver must differ")
	}
	if strings.TrimSpace(input.PickupAddress) == "" || strings.TrimSpace(input.DropoffAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup and dropoff addresses are required")
	}

	negotiation := &models.Negotiation{
		ID:             uuid.New(),
		CustomerID:     actor.AccountID,
		DriverID:       input.DriverID,
		Status:         enums.NegotiationStatusActive,
		PickupLat:      input.PickupLat,
		PickupLng:      input.PickupLng,
		PickupAddress:  input.PickupAddress,
		DropoffLat:     input.DropoffLat,
		DropoffLng:     input.DropoffLng,
		DropoffAddress: input.DropoffAddress,
		PaymentStatus:  enums.PaymentStatusUnpaid,
	}

	if err := s.repo.Create(ctx, negotiation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating negotiation")
	}

	// The driver is off the market while this negotiation is live.
	if err := s.profiles.SetAvailability(ctx, input.DriverID, false); err != nil && !errors.Is(err, profiles.ErrNotFound) {
		s.logg.Warn(s.logg.WithField(ctx, "driver_id", input.DriverID.String()), "clearing driver availability failed")
	}

	s.notify.NegotiationUpdate(ctx, input.DriverID, "A customer wants to negotiate a ride with you.")
	return negotiation, nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error) {
	negotiation, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "negotiation not found")
		}
		return nil, err
	}
	if err := authorizeParticipant(actor, negotiation); err != nil {
		return nil, err
	}
	return negotiation, nil
}

func (s *service) List(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.Negotiation, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListByParticipant(ctx, actor.AccountID, cursor, limit+1)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing negotiations")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) SubmitRecord(ctx context.Context, actor types.Actor, id uuid.UUID, input RecordInput) (*models.NegotiationRecord, error) {
	var priceCents *int64
	if input.PriceCents != nil || strings.TrimSpace(input.PriceDollars) != "" {
		resolved, err := money.ResolveClientAmount(input.PriceCents, input.PriceDollars)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid price")
		}
		if resolved <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "price must be positive")
		}
		priceCents = &resolved
	}
	if priceCents == nil && strings.TrimSpace(input.Body) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "a record needs a price or a message")
	}

	record := &models.NegotiationRecord{
		ID:            uuid.New(),
		NegotiationID: id,
		SenderID:      actor.AccountID,
		SenderRole:    actor.Role,
		PriceCents:    priceCents,
		Accepted:      input.Accepted,
		Body:          input.Body,
	}

	var recipient uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		negotiation, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "negotiation not found")
			}
			return err
		}
		if err := authorizeParticipant(actor, negotiation); err != nil {
			return err
		}
		if negotiation.Status != enums.NegotiationStatusActive {
			return stateError("negotiation is not active", negotiation.Status)
		}

		// A party offering twice in a row without a reply is tolerated but
		// logged, pending a product decision on strict enforcement.
		if records, err := repo.ListRecords(ctx, id); err == nil && len(records) > 0 {
			last := records[len(records)-1]
			if last.SenderID == actor.AccountID && last.PriceCents != nil && priceCents != nil {
				s.logg.Warn(s.logg.WithField(ctx, "negotiation_id", id.String()), "consecutive offers from the same party")
			}
		}

		recipient = counterpart(actor, negotiation)
		return repo.CreateRecord(ctx, record)
	})
	if err != nil {
		return nil, err
	}

	if priceCents != nil {
		s.notify.NegotiationUpdate(ctx, recipient, fmt.Sprintf("New offer: $%s.", money.ToDollarString(*priceCents)))
	}
	return record, nil
}

func (s *service) Accept(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error) {
	var negotiation *models.Negotiation
	var becameAccepted bool

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "negotiation not found")
			}
			return err
		}
		if err := authorizeParticipant(actor, current); err != nil {
			return err
		}
		if current.Status == enums.NegotiationStatusAccepted {
			// Idempotent re-accept after both sides agreed.
			negotiation = current
			return nil
		}
		if current.Status != enums.NegotiationStatusActive {
			return stateError("negotiation is not active", current.Status)
		}

		switch actor.AccountID {
		case current.CustomerID:
			current.CustomerAccepted = true
		case current.DriverID:
			current.DriverAccepted = true
		}

		if current.CustomerAccepted && current.DriverAccepted {
			records, err := repo.ListRecords(ctx, id)
			if err != nil {
				return err
			}
			agreed, err := resolveAgreedPrice(records)
			if err != nil {
				return err
			}
			if agreed < s.platform.MinimumFareCents {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("agreed price %d below minimum of %d cents", agreed, s.platform.MinimumFareCents))
			}
			// Once resolved, the agreed price is immutable.
			if current.AgreedPriceCents == nil {
				current.AgreedPriceCents = &agreed
			}
			current.Status = enums.NegotiationStatusAccepted
			becameAccepted = true
		}

		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		negotiation = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if negotiation.Status == enums.NegotiationStatusAccepted {
		// Link creation happens outside the lock; existence is re-checked.
		// An idempotent re-accept also lands here so a failed link gets
		// re-minted instead of stranding the negotiation.
		if err := s.ensurePaymentLink(ctx, negotiation); err != nil {
			return nil, err
		}
	}
	if becameAccepted {
		s.notify.NegotiationUpdate(ctx, counterpart(actor, negotiation), "Price agreed. A payment link is on its way.")
	}
	return negotiation, nil
}

func (s *service) Decline(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error) {
	return s.finish(ctx, actor, id, enums.NegotiationStatusDeclined, "The negotiation was declined.")
}

func (s *service) Cancel(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error) {
	return s.finish(ctx, actor, id, enums.NegotiationStatusCancelled, "The negotiation was cancelled.")
}

func (s *service) finish(ctx context.Context, actor types.Actor, id uuid.UUID, terminal enums.NegotiationStatus, message string) (*models.Negotiation, error) {
	var negotiation *models.Negotiation

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "negotiation not found")
			}
			return err
		}
		if err := authorizeParticipant(actor, current); err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return stateError("negotiation already finished", current.Status)
		}
		if terminal == enums.NegotiationStatusDeclined && current.Status != enums.NegotiationStatusActive {
			return stateError("only an active negotiation can be declined", current.Status)
		}

		now := time.Now().UTC()
		current.Status = terminal
		current.CancelledAt = &now
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		negotiation = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.releaseDriver(ctx, negotiation.DriverID)
	s.notify.NegotiationUpdate(ctx, counterpart(actor, negotiation), message)
	return negotiation, nil
}

func (s *service) Complete(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error) {
	var negotiation *models.Negotiation

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "negotiation not found")
			}
			return err
		}
		if err := authorizeParticipant(actor, current); err != nil {
			return err
		}
		if current.Status == enums.NegotiationStatusCompleted {
			negotiation = current
			return nil
		}
		if current.Status != enums.NegotiationStatusAccepted {
			return stateError("only an accepted negotiation can be completed", current.Status)
		}

		// Safety net: resolve the agreed price lazily if acceptance somehow
		// skipped it.
		if current.AgreedPriceCents == nil {
			records, err := repo.ListRecords(ctx, id)
			if err != nil {
				return err
			}
			agreed, err := resolveAgreedPrice(records)
			if err != nil {
				return err
			}
			current.AgreedPriceCents = &agreed
		}

		now := time.Now().UTC()
		current.Status = enums.NegotiationStatusCompleted
		current.CompletedAt = &now
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		negotiation = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.releaseDriver(ctx, negotiation.DriverID)
	return negotiation, nil
}

// ConfirmPayment is the idempotent entry point shared by the webhook handler
// and the poll-based reconciler.
func (s *service) ConfirmPayment(ctx context.Context, id uuid.UUID) error {
	negotiation, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "negotiation not found")
		}
		return err
	}
	if negotiation.PaymentStatus == enums.PaymentStatusPaid {
		return nil
	}
	if negotiation.AgreedPriceCents == nil {
		return stateError("negotiation has no agreed price", negotiation.Status)
	}

	// Settle first: the engine is idempotent, so a crash between settling and
	// marking paid is healed by the next delivery of the same event.
	_, err = s.settle.Settle(ctx, settlement.SettleInput{
		Source:      enums.SettlementSourceNegotiation,
		SourceID:    negotiation.ID,
		DriverID:    negotiation.DriverID,
		FareCents:   *negotiation.AgreedPriceCents,
		Description: "ride fare (negotiated)",
	})
	if err != nil && !errors.Is(err, settlement.ErrAlreadySettled) {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		current.PaymentStatus = enums.PaymentStatusPaid
		return repo.Save(ctx, current)
	})
	if err != nil {
		return err
	}

	s.notify.PaymentReceived(ctx, negotiation.CustomerID, *negotiation.AgreedPriceCents)
	return nil
}

// FailPayment marks a still-pending payment link as failed. Paid negotiations
// are never touched; a later Accept re-mints the link.
func (s *service) FailPayment(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "negotiation not found")
			}
			return err
		}
		if current.PaymentStatus != enums.PaymentStatusPending {
			return nil
		}
		current.PaymentStatus = enums.PaymentStatusFailed
		return repo.Save(ctx, current)
	})
}

func (s *service) ensurePaymentLink(ctx context.Context, negotiation *models.Negotiation) error {
	// Never mint a second link while a live one exists for this source.
	if negotiation.PaymentLinkID != nil && negotiation.PaymentStatus != enums.PaymentStatusFailed {
		return nil
	}
	if negotiation.AgreedPriceCents == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot create a payment link without an agreed price")
	}

	// A fixed key dedupes racing first mints; a re-mint after a failed link
	// needs a fresh one or the processor hands back the dead link.
	key := fmt.Sprintf("negotiation-%s", negotiation.ID)
	if negotiation.PaymentStatus == enums.PaymentStatusFailed {
		key = s.gateway.NewIdempotencyKey("negotiation")
	}
	link, err := s.gateway.CreateLink(ctx, paylink.CreateLinkParams{
		AmountCents:    *negotiation.AgreedPriceCents,
		Description:    "RideLink negotiated fare",
		ReferenceID:    fmt.Sprintf("negotiation:%s", negotiation.ID),
		IdempotencyKey: key,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	negotiation.PaymentLinkID = &link.ID
	negotiation.PaymentLinkURL = &link.URL
	negotiation.PaymentLinkCreatedAt = &now
	negotiation.PaymentStatus = enums.PaymentStatusPending
	return s.repo.Save(ctx, negotiation)
}

func (s *service) releaseDriver(ctx context.Context, driverID uuid.UUID) {
	if err := s.profiles.SetAvailability(ctx, driverID, true); err != nil && !errors.Is(err, profiles.ErrNotFound) {
		s.logg.Warn(s.logg.WithField(ctx, "driver_id", driverID.String()), "restoring driver availability failed")
	}
}

// resolveAgreedPrice picks the most recent explicitly accepted priced record,
// falling back to the most recent priced record of any kind.
func resolveAgreedPrice(records []models.NegotiationRecord) (int64, error) {
	var latest, latestAccepted *models.NegotiationRecord
	for i := range records {
		record := &records[i]
		if record.PriceCents == nil {
			continue
		}
		latest = record
		if record.Accepted {
			latestAccepted = record
		}
	}
	if latestAccepted != nil {
		return *latestAccepted.PriceCents, nil
	}
	if latest != nil {
		return *latest.PriceCents, nil
	}
	return 0, pkgerrors.New(pkgerrors.CodeStateConflict, "no priced offers to agree on")
}

func authorizeParticipant(actor types.Actor, negotiation *models.Negotiation) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.AccountID == negotiation.CustomerID || actor.AccountID == negotiation.DriverID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "you are not a participant in this negotiation")
}

func counterpart(actor types.Actor, negotiation *models.Negotiation) uuid.UUID {
	if actor.AccountID == negotiation.CustomerID {
		return negotiation.DriverID
	}
	return negotiation.CustomerID
}

func stateError(message string, status enums.NegotiationStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"status": string(status)})
}
