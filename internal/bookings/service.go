package bookings

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

// Service runs the scheduled booking lifecycle: customer request, admin
// dispatch, price negotiation, payment, and the ride itself.
type Service interface {
	Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.ScheduledBooking, error)
	Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ScheduledBooking, error)
	List(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.ScheduledBooking, string, error)
	AssignDriver(ctx context.Context, actor types.Actor, id, driverID uuid.UUID) (*models.ScheduledBooking, error)
	ProposePrice(ctx context.Context, actor types.Actor, id uuid.UUID, priceCents int64) (*models.ScheduledBooking, error)
	AcceptPrice(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ScheduledBooking, error)
	Start(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ScheduledBooking, error)
	Complete(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ScheduledBooking, error)
	Cancel(ctx context.Context, actor types.Actor, id uuid.UUID, reason string) (*models.ScheduledBooking, error)
	ConfirmPayment(ctx context.Context, id uuid.UUID) error
	FailPayment(ctx context.Context, id uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateInput captures a customer's scheduled ride request.
type CreateInput struct {
	VehicleType        enums.VehicleType `json:"vehicle_type"`
	PickupLat          float64           `json:"pickup_lat" validate:"min=-90,max=90"`
	PickupLng          float64           `json:"pickup_lng" validate:"min=-180,max=180"`
	PickupAddress      string            `json:"pickup_address" validate:"required"`
	DestinationLat     float64           `json:"destination_lat" validate:"min=-90,max=90"`
	DestinationLng     float64           `json:"destination_lng" validate:"min=-180,max=180"`
	DestinationAddress string            `json:"destination_address" validate:"required"`
	DestinationNotes   *string           `json:"destination_notes,omitempty"`
	PassengerCount     int               `json:"passenger_count" validate:"min=1"`
	LuggageCount       int               `json:"luggage_count" validate:"min=0"`
	ScheduledAt        time.Time         `json:"scheduled_at" validate:"required"`
	CustomerPriceCents *int64            `json:"customer_price_cents,omitempty"`
	CustomerPrice      string            `json:"customer_price,omitempty"`
	Notes              *string           `json:"notes,omitempty"`
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

// NewService wires the scheduled booking state machine.
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
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "booking repository required")
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

func (s *service) Create(ctx context.Context, actor types.Actor, input CreateInput) (*models.ScheduledBooking, error) {
	if actor.Role != enums.ActorRoleCustomer && !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can request a booking")
	}
	if strings.TrimSpace(input.PickupAddress) == "" || strings.TrimSpace(input.DestinationAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pickup and destination addresses are required")
	}
	if input.ScheduledAt.Before(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "scheduled time must be in the future")
	}
	if input.PassengerCount < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one passenger required")
	}

	customerPrice, err := money.ResolveClientAmount(input.CustomerPriceCents, input.CustomerPrice)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid customer price")
	}
	if customerPrice < s.platform.MinimumFareCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("offered price %d below minimum of %d cents", customerPrice, s.platform.MinimumFareCents))
	}

	vehicleType := input.VehicleType
	if vehicleType == "" {
		vehicleType = enums.VehicleTypeStandard
	}
	if !vehicleType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid vehicle type %q", vehicleType))
	}

	booking := &models.ScheduledBooking{
		ID:                 uuid.New(),
		CustomerID:         actor.AccountID,
		Status:             enums.BookingStatusPending,
		VehicleType:        vehicleType,
		PickupLat:          input.PickupLat,
		PickupLng:          input.PickupLng,
		PickupAddress:      input.PickupAddress,
		DestinationLat:     input.DestinationLat,
		DestinationLng:     input.DestinationLng,
		DestinationAddress: input.DestinationAddress,
		DestinationNotes:   input.DestinationNotes,
		PassengerCount:     input.PassengerCount,
		LuggageCount:       input.LuggageCount,
		ScheduledAt:        input.ScheduledAt,
		CustomerPriceCents: customerPrice,
		PaymentStatus:      enums.PaymentStatusUnpaid,
		Notes:              input.Notes,
	}

	if err := s.repo.Create(ctx, booking); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating booking")
	}

	s.notify.BookingUpdate(ctx, actor.AccountID, "Your booking request is in. A dispatcher will assign a driver shortly.")
	return booking, nil
}

func (s *service) Get(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ScheduledBooking, error) {
	booking, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, err
	}
	if err := authorize(actor, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) List(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.ScheduledBooking, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	var rows []models.ScheduledBooking
	if actor.IsAdmin() {
		rows, err = s.repo.ListAll(ctx, cursor, limit+1)
	} else {
		rows, err = s.repo.ListByParticipant(ctx, actor.AccountID, cursor, limit+1)
	}
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing bookings")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) AssignDriver(ctx context.Context, actor types.Actor, id, driverID uuid.UUID) (*models.ScheduledBooking, error) {
	if !actor.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only dispatchers can assign drivers")
	}
	if driverID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "driver id is required")
	}

	var booking *models.ScheduledBooking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := lockBooking(ctx, repo, id)
		if err != nil {
			return err
		}
		if current.Status != enums.BookingStatusPending && current.Status != enums.BookingStatusDriverAssigned {
			return stateError("booking is not awaiting dispatch", current.Status)
		}
		if current.CustomerID == driverID {
			return pkgerrors.New(pkgerrors.CodeValidation, "customer cannot drive their own booking")
		}

		now := time.Now().UTC()
		adminID := actor.AccountID
		current.DriverID = &driverID
		current.AssignedByID = &adminID
		current.AssignedAt = &now
		current.Status = enums.BookingStatusDriverAssigned
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.BookingUpdate(ctx, driverID, "You have been assigned a scheduled ride. Review and propose or accept the price.")
	s.notify.BookingUpdate(ctx, booking.CustomerID, "A driver has been assigned to your booking.")
	return booking, nil
}

// ProposePrice lets the assigned driver counter the customer's offer.
func (s *service) ProposePrice(ctx context.Context, actor types.Actor, id uuid.UUID, priceCents int64) (*models.ScheduledBooking, error) {
	if priceCents < s.platform.MinimumFareCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("proposed price %d below minimum of %d cents", priceCents, s.platform.MinimumFareCents))
	}

	var booking *models.ScheduledBooking
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := lockBooking(ctx, repo, id)
		if err != nil {
			return err
		}
		if !isAssignedDriver(actor, current) && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned driver can propose a price")
		}
		switch current.Status {
		case enums.BookingStatusDriverAssigned, enums.BookingStatusPriceNegotiating:
		default:
			return stateError("booking is not open for price negotiation", current.Status)
		}

		current.DriverPriceCents = &priceCents
		current.Status = enums.BookingStatusPriceNegotiating
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.BookingUpdate(ctx, booking.CustomerID,
		fmt.Sprintf("Your driver proposed $%s for the ride.", money.ToDollarString(priceCents)))
	return booking, nil
}

// AcceptPrice locks in the counterparty's latest number: a customer accepts
// the driver's proposal, a driver accepts the customer's original offer.
func (s *service) AcceptPrice(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ScheduledBooking, error) {
	var booking *models.ScheduledBooking

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := lockBooking(ctx, repo, id)
		if err != nil {
			return err
		}

		// A failed link leaves the booking parked in payment_pending with
		// the price already agreed; re-accepting re-mints the link below.
		if current.PaymentStatus == enums.PaymentStatusFailed && current.AgreedPriceCents != nil {
			if actor.AccountID != current.CustomerID && !isAssignedDriver(actor, current) {
				return pkgerrors.New(pkgerrors.CodeForbidden, "only booking participants can accept the price")
			}
			booking = current
			return nil
		}

		var agreed int64
		switch {
		case actor.AccountID == current.CustomerID:
			if current.Status != enums.BookingStatusPriceNegotiating || current.DriverPriceCents == nil {
				return stateError("no driver proposal to accept", current.Status)
			}
			agreed = *current.DriverPriceCents
		case isAssignedDriver(actor, current):
			switch current.Status {
			case enums.BookingStatusDriverAssigned, enums.BookingStatusPriceNegotiating:
			default:
				return stateError("booking is not open for price acceptance", current.Status)
			}
			agreed = current.CustomerPriceCents
		default:
			return pkgerrors.New(pkgerrors.CodeForbidden, "only booking participants can accept the price")
		}

		if agreed < s.platform.MinimumFareCents {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("agreed price %d below minimum of %d cents", agreed, s.platform.MinimumFareCents))
		}

		current.AgreedPriceCents = &agreed
		current.Status = enums.BookingStatusPriceAccepted
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Link creation happens outside the lock; existence is re-checked.
	if err := s.ensurePaymentLink(ctx, booking); err != nil {
		return nil, err
	}

	s.notify.BookingUpdate(ctx, booking.CustomerID, "Price agreed. Complete payment to confirm your booking.")
	if booking.DriverID != nil {
		s.notify.BookingUpdate(ctx, *booking.DriverID, "The booking price was agreed. Awaiting customer payment.")
	}
	return booking, nil
}

// ConfirmPayment is the idempotent entry point shared by the webhook handler
// and the poll-based reconciler.
func (s *service) ConfirmPayment(ctx context.Context, id uuid.UUID) error {
	booking, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return err
	}
	if booking.PaymentStatus == enums.PaymentStatusPaid {
		return nil
	}
	if booking.AgreedPriceCents == nil || booking.DriverID == nil {
		return stateError("booking has no agreed price or driver", booking.Status)
	}

	// Settle first: the engine is idempotent, so a crash between settling and
	// marking paid is healed by the next delivery of the same event.
	_, err = s.settle.Settle(ctx, settlement.SettleInput{
		Source:      enums.SettlementSourceBooking,
		SourceID:    booking.ID,
		DriverID:    *booking.DriverID,
		FareCents:   *booking.AgreedPriceCents,
		Description: "scheduled ride fare",
	})
	if err != nil && !errors.Is(err, settlement.ErrAlreadySettled) {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := lockBooking(ctx, repo, id)
		if err != nil {
			return err
		}
		if current.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		now := time.Now().UTC()
		current.PaymentStatus = enums.PaymentStatusPaid
		current.Status = enums.BookingStatusConfirmed
		current.ConfirmedAt = &now
		return repo.Save(ctx, current)
	})
	if err != nil {
		return err
	}

	s.notify.PaymentReceived(ctx, booking.CustomerID, *booking.AgreedPriceCents)
	s.notify.BookingUpdate(ctx, *booking.DriverID, "The booking is paid and confirmed.")
	return nil
}

// FailPayment marks a still-pending payment link as failed. The booking stays
// in payment_pending so a fresh AcceptPrice can re-mint the link.
func (s *service) FailPayment(ctx context.Context, id uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := lockBooking(ctx, repo, id)
		if err != nil {
			return err
		}
		if current.PaymentStatus != enums.PaymentStatusPending {
			return nil
		}
		current.PaymentStatus = enums.PaymentStatusFailed
		return repo.Save(ctx, current)
	})
}

func (s *service) Start(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ScheduledBooking, error) {
	var booking *models.ScheduledBooking

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := lockBooking(ctx, repo, id)
		if err != nil {
			return err
		}
		if !isAssignedDriver(actor, current) && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned driver can start the ride")
		}
		if current.Status != enums.BookingStatusConfirmed {
			return stateError("only a confirmed booking can start", current.Status)
		}
		if current.PaymentStatus != enums.PaymentStatusPaid {
			return stateError("booking is not paid", current.Status)
		}

		now := time.Now().UTC()
		current.Status = enums.BookingStatusInProgress
		current.StartedAt = &now
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify.BookingUpdate(ctx, booking.CustomerID, "Your driver has started the ride.")
	return booking, nil
}

func (s *service) Complete(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.ScheduledBooking, error) {
	var booking *models.ScheduledBooking

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := lockBooking(ctx, repo, id)
		if err != nil {
			return err
		}
		if !isAssignedDriver(actor, current) && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the assigned driver can complete the ride")
		}
		if current.Status == enums.BookingStatusCompleted {
			booking = current
			return nil
		}
		if current.Status != enums.BookingStatusInProgress {
			return stateError("only an in-progress ride can be completed", current.Status)
		}

		now := time.Now().UTC()
		current.Status = enums.BookingStatusCompleted
		current.CompletedAt = &now
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if booking.DriverID != nil {
		s.releaseDriver(ctx, *booking.DriverID)
	}
	s.notify.BookingUpdate(ctx, booking.CustomerID, "Your ride is complete. Thanks for riding with us.")
	return booking, nil
}

func (s *service) Cancel(ctx context.Context, actor types.Actor, id uuid.UUID, reason string) (*models.ScheduledBooking, error) {
	var booking *models.ScheduledBooking
	var staleLinkID string

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := lockBooking(ctx, repo, id)
		if err != nil {
			return err
		}
		if err := authorize(actor, current); err != nil {
			return err
		}
		if !current.Status.IsCancellable() {
			return stateError("booking can no longer be cancelled", current.Status)
		}

		now := time.Now().UTC()
		current.Status = enums.BookingStatusCancelled
		current.CancelledAt = &now
		if reason != "" {
			current.CancelReason = &reason
		}
		if current.PaymentLinkID != nil && current.PaymentStatus == enums.PaymentStatusPending {
			staleLinkID = *current.PaymentLinkID
			current.PaymentStatus = enums.PaymentStatusFailed
		}
		if err := repo.Save(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if staleLinkID != "" {
		if err := s.gateway.DeleteLink(ctx, staleLinkID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payment_link_id", staleLinkID), "deleting stale payment link failed")
		}
	}
	if booking.DriverID != nil {
		s.releaseDriver(ctx, *booking.DriverID)
		s.notify.BookingUpdate(ctx, *booking.DriverID, "The booking was cancelled.")
	}
	s.notify.BookingUpdate(ctx, booking.CustomerID, "Your booking was cancelled.")
	return booking, nil
}

func (s *service) ensurePaymentLink(ctx context.Context, booking *models.ScheduledBooking) error {
	// Never mint a second link while a live one exists for this source.
	if booking.PaymentLinkID != nil && booking.PaymentStatus != enums.PaymentStatusFailed {
		return nil
	}
	if booking.AgreedPriceCents == nil {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "cannot create a payment link without an agreed price")
	}

	// A fixed key dedupes racing first mints; a re-mint after a failed link
	// needs a fresh one or the processor hands back the dead link.
	key := fmt.Sprintf("booking-%s", booking.ID)
	if booking.PaymentStatus == enums.PaymentStatusFailed {
		key = s.gateway.NewIdempotencyKey("booking")
	}
	link, err := s.gateway.CreateLink(ctx, paylink.CreateLinkParams{
		AmountCents:    *booking.AgreedPriceCents,
		Description:    "RideLink scheduled ride",
		ReferenceID:    fmt.Sprintf("booking:%s", booking.ID),
		IdempotencyKey: key,
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	booking.PaymentLinkID = &link.ID
	booking.PaymentLinkURL = &link.URL
	booking.PaymentLinkCreatedAt = &now
	booking.PaymentStatus = enums.PaymentStatusPending
	booking.Status = enums.BookingStatusPaymentPending
	return s.repo.Save(ctx, booking)
}

func (s *service) releaseDriver(ctx context.Context, driverID uuid.UUID) {
	if err := s.profiles.SetAvailability(ctx, driverID, true); err != nil && !errors.Is(err, profiles.ErrNotFound) {
		s.logg.Warn(s.logg.WithField(ctx, "driver_id", driverID.String()), "restoring driver availability failed")
	}
}

func lockBooking(ctx context.Context, repo Repository, id uuid.UUID) (*models.ScheduledBooking, error) {
	booking, err := repo.GetForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "booking not found")
		}
		return nil, err
	}
	return booking, nil
}

func authorize(actor types.Actor, booking *models.ScheduledBooking) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.AccountID == booking.CustomerID || isAssignedDriver(actor, booking) {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "you are not a participant in this booking")
}

func isAssignedDriver(actor types.Actor, booking *models.ScheduledBooking) bool {
	return booking.DriverID != nil && actor.AccountID == *booking.DriverID
}

func stateError(message string, status enums.BookingStatus) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, message).
		WithDetails(map[string]any{"status": string(status)})
}
