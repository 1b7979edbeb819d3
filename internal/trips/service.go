package trips

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ridelinkhq/ridelink-backend/internal/notifications"
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

// MaxSeatsPerTrip bounds a single published trip.
const MaxSeatsPerTrip = 8

// Service manages driver-published shared trips and customer seat reservations.
type Service interface {
	CreateTrip(ctx context.Context, actor types.Actor, input CreateTripInput) (*models.Trip, error)
	ListTrips(ctx context.Context, params pagination.Params) ([]models.Trip, string, error)
	ListMyTrips(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.Trip, string, error)
	DeactivateTrip(ctx context.Context, actor types.Actor, tripID uuid.UUID) (*models.Trip, error)

	Reserve(ctx context.Context, actor types.Actor, input ReserveInput) (*models.TripBooking, error)
	GetBooking(ctx context.Context, actor types.Actor, bookingID uuid.UUID) (*models.TripBooking, error)
	ListMyBookings(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.TripBooking, string, error)
	CancelBooking(ctx context.Context, actor types.Actor, bookingID uuid.UUID) (*models.TripBooking, error)
	CompleteBooking(ctx context.Context, actor types.Actor, bookingID uuid.UUID) (*models.TripBooking, error)
	ConfirmPayment(ctx context.Context, bookingID uuid.UUID) error
	FailPayment(ctx context.Context, bookingID uuid.UUID) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CreateTripInput describes a shared trip to publish.
type CreateTripInput struct {
	OriginAddress      string    `json:"origin_address" validate:"required"`
	DestinationAddress string    `json:"destination_address" validate:"required"`
	DepartureAt        time.Time `json:"departure_at" validate:"required"`
	SeatsTotal         int       `json:"seats_total" validate:"min=1"`
	PricePerSeatCents  *int64    `json:"price_per_seat_cents,omitempty"`
	PricePerSeat       string    `json:"price_per_seat,omitempty"`
}

// ReserveInput requests seats on a published trip.
type ReserveInput struct {
	TripID uuid.UUID `json:"trip_id" validate:"required"`
	Seats  int       `json:"seats" validate:"min=1"`
}

type service struct {
	tx       txRunner
	repo     Repository
	gateway  paylink.Gateway
	settle   settlement.Service
	notify   notifications.Service
	platform config.PlatformConfig
	logg     *logger.Logger
}

// NewService wires the shared trip flows.
func NewService(
	tx txRunner,
	repo Repository,
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
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "trip repository required")
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
		gateway:  gateway,
		settle:   settle,
		notify:   notify,
		platform: platform,
		logg:     logg,
	}, nil
}

func (s *service) CreateTrip(ctx context.Context, actor types.Actor, input CreateTripInput) (*models.Trip, error) {
	if actor.Role != enums.ActorRoleDriver {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only drivers can publish trips")
	}
	if strings.TrimSpace(input.OriginAddress) == "" || strings.TrimSpace(input.DestinationAddress) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "origin and destination addresses are required")
	}
	if input.DepartureAt.Before(time.Now().UTC()) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "departure must be in the future")
	}
	if input.SeatsTotal < 1 || input.SeatsTotal > MaxSeatsPerTrip {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("seats must be between 1 and %d", MaxSeatsPerTrip))
	}

	pricePerSeat, err := money.ResolveClientAmount(input.PricePerSeatCents, input.PricePerSeat)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid seat price")
	}
	if pricePerSeat < s.platform.MinimumFareCents {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("seat price %d below minimum of %d cents", pricePerSeat, s.platform.MinimumFareCents))
	}

	trip := &models.Trip{
		ID:                 uuid.New(),
		DriverID:           actor.AccountID,
		OriginAddress:      input.OriginAddress,
		DestinationAddress: input.DestinationAddress,
		DepartureAt:        input.DepartureAt,
		SeatsTotal:         input.SeatsTotal,
		SeatsAvailable:     input.SeatsTotal,
		PricePerSeatCents:  pricePerSeat,
		Active:             true,
	}
	if err := s.repo.CreateTrip(ctx, trip); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "creating trip")
	}
	return trip, nil
}

func (s *service) ListTrips(ctx context.Context, params pagination.Params) ([]models.Trip, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListActiveTrips(ctx, cursor, limit+1)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing trips")
	}
	return paginateTrips(rows, limit)
}

func (s *service) ListMyTrips(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.Trip, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListTripsByDriver(ctx, actor.AccountID, cursor, limit+1)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing trips")
	}
	return paginateTrips(rows, limit)
}

func (s *service) DeactivateTrip(ctx context.Context, actor types.Actor, tripID uuid.UUID) (*models.Trip, error) {
	var trip *models.Trip

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.GetTripForUpdate(ctx, tripID)
		if err != nil {
			if errors.Is(err, ErrTripNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "trip not found")
			}
			return err
		}
		if current.DriverID != actor.AccountID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the publishing driver can deactivate a trip")
		}

		current.Active = false
		if err := repo.SaveTrip(ctx, current); err != nil {
			return err
		}
		trip = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return trip, nil
}

func (s *service) Reserve(ctx context.Context, actor types.Actor, input ReserveInput) (*models.TripBooking, error) {
	if actor.Role != enums.ActorRoleCustomer {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only customers can reserve seats")
	}
	if input.Seats < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one seat required")
	}

	var booking *models.TripBooking
	var driverID uuid.UUID

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		trip, err := repo.GetTripForUpdate(ctx, input.TripID)
		if err != nil {
			if errors.Is(err, ErrTripNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "trip not found")
			}
			return err
		}
		if !trip.Active || trip.DepartureAt.Before(time.Now().UTC()) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "trip is no longer open for reservations")
		}
		if trip.DriverID == actor.AccountID {
			return pkgerrors.New(pkgerrors.CodeValidation, "drivers cannot book their own trip")
		}
		if trip.SeatsAvailable < input.Seats {
			return pkgerrors.New(pkgerrors.CodeConflict,
				fmt.Sprintf("only %d seats left", trip.SeatsAvailable)).
				WithDetails(map[string]any{"seats_available": trip.SeatsAvailable})
		}

		trip.SeatsAvailable -= input.Seats
		if err := repo.SaveTrip(ctx, trip); err != nil {
			return err
		}

		booking = &models.TripBooking{
			ID:              uuid.New(),
			TripID:          trip.ID,
			CustomerID:      actor.AccountID,
			DriverID:        trip.DriverID,
			Seats:           input.Seats,
			TotalPriceCents: trip.PricePerSeatCents * int64(input.Seats),
			Status:          enums.TripBookingStatusPending,
			PaymentStatus:   enums.PaymentStatusUnpaid,
		}
		driverID = trip.DriverID
		return repo.CreateBooking(ctx, booking)
	})
	if err != nil {
		return nil, err
	}

	// Link creation happens outside the lock so a slow processor call never
	// holds seat inventory.
	if err := s.ensurePaymentLink(ctx, booking); err != nil {
		return nil, err
	}

	s.notify.BookingUpdate(ctx, driverID,
		fmt.Sprintf("%d seat(s) reserved on your trip. Awaiting payment.", booking.Seats))
	return booking, nil
}

func (s *service) GetBooking(ctx context.Context, actor types.Actor, bookingID uuid.UUID) (*models.TripBooking, error) {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "trip booking not found")
		}
		return nil, err
	}
	if err := authorizeBooking(actor, booking); err != nil {
		return nil, err
	}
	return booking, nil
}

func (s *service) ListMyBookings(ctx context.Context, actor types.Actor, params pagination.Params) ([]models.TripBooking, string, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.ListBookingsByCustomer(ctx, actor.AccountID, cursor, limit+1)
	if err != nil {
		return nil, "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "listing trip bookings")
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

func (s *service) CancelBooking(ctx context.Context, actor types.Actor, bookingID uuid.UUID) (*models.TripBooking, error) {
	var booking *models.TripBooking
	var staleLinkID string
	var wasPaid bool

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "trip booking not found")
			}
			return err
		}
		if err := authorizeBooking(actor, current); err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "trip booking already finished").
				WithDetails(map[string]any{"status": string(current.Status)})
		}

		// Seats flow back to the trip under the same lock ordering used by
		// Reserve: trip row after booking row is safe because cancellation is
		// the only path locking both.
		trip, err := repo.GetTripForUpdate(ctx, current.TripID)
		if err != nil {
			return err
		}
		trip.SeatsAvailable += current.Seats
		if trip.SeatsAvailable > trip.SeatsTotal {
			trip.SeatsAvailable = trip.SeatsTotal
		}
		if err := repo.SaveTrip(ctx, trip); err != nil {
			return err
		}

		now := time.Now().UTC()
		wasPaid = current.PaymentStatus == enums.PaymentStatusPaid
		if current.PaymentLinkID != nil && current.PaymentStatus == enums.PaymentStatusPending {
			staleLinkID = *current.PaymentLinkID
			current.PaymentStatus = enums.PaymentStatusFailed
		}
		if wasPaid {
			current.PaymentStatus = enums.PaymentStatusRefunded
		}
		current.Status = enums.TripBookingStatusCanceled
		current.CancelledAt = &now
		if err := repo.SaveBooking(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	if wasPaid {
		if _, err := s.settle.Refund(ctx, settlement.RefundInput{
			Source:   enums.SettlementSourceTripBooking,
			SourceID: booking.ID,
			Reason:   "trip booking cancelled after payment",
		}); err != nil && !errors.Is(err, settlement.ErrNotSettled) {
			return nil, err
		}
	}
	if staleLinkID != "" {
		if err := s.gateway.DeleteLink(ctx, staleLinkID); err != nil {
			s.logg.Warn(s.logg.WithField(ctx, "payment_link_id", staleLinkID), "deleting stale payment link failed")
		}
	}

	s.notify.BookingUpdate(ctx, booking.DriverID, "A seat reservation on your trip was cancelled.")
	return booking, nil
}

func (s *service) CompleteBooking(ctx context.Context, actor types.Actor, bookingID uuid.UUID) (*models.TripBooking, error) {
	var booking *models.TripBooking

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "trip booking not found")
			}
			return err
		}
		if current.DriverID != actor.AccountID && !actor.IsAdmin() {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the trip driver can complete a booking")
		}
		if current.Status == enums.TripBookingStatusCompleted {
			booking = current
			return nil
		}
		if current.Status != enums.TripBookingStatusReserved || current.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only a paid reservation can be completed").
				WithDetails(map[string]any{"status": string(current.Status)})
		}

		now := time.Now().UTC()
		current.Status = enums.TripBookingStatusCompleted
		current.CompletedAt = &now
		if err := repo.SaveBooking(ctx, current); err != nil {
			return err
		}
		booking = current
		return nil
	})
	if err != nil {
		return nil, err
	}
	return booking, nil
}

// ConfirmPayment is the idempotent entry point shared by the webhook handler
// and the poll-based reconciler.
func (s *service) ConfirmPayment(ctx context.Context, bookingID uuid.UUID) error {
	booking, err := s.repo.GetBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "trip booking not found")
		}
		return err
	}
	if booking.PaymentStatus == enums.PaymentStatusPaid {
		return nil
	}

	// Settle first: the engine is idempotent, so a crash between settling and
	// marking paid is healed by the next delivery of the same event.
	_, err = s.settle.Settle(ctx, settlement.SettleInput{
		Source:      enums.SettlementSourceTripBooking,
		SourceID:    booking.ID,
		DriverID:    booking.DriverID,
		FareCents:   booking.TotalPriceCents,
		Description: "shared trip seats",
	})
	if err != nil && !errors.Is(err, settlement.ErrAlreadySettled) {
		return err
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			return err
		}
		if current.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		current.PaymentStatus = enums.PaymentStatusPaid
		current.Status = enums.TripBookingStatusReserved
		return repo.SaveBooking(ctx, current)
	})
	if err != nil {
		return err
	}

	s.notify.PaymentReceived(ctx, booking.CustomerID, booking.TotalPriceCents)
	return nil
}

// FailPayment cancels a reservation whose link expired unpaid and returns its
// seats to the trip. Paid bookings are never touched.
func (s *service) FailPayment(ctx context.Context, bookingID uuid.UUID) error {
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		current, err := repo.GetBookingForUpdate(ctx, bookingID)
		if err != nil {
			if errors.Is(err, ErrBookingNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "trip booking not found")
			}
			return err
		}
		if current.PaymentStatus != enums.PaymentStatusPending || current.Status.IsTerminal() {
			return nil
		}

		trip, err := repo.GetTripForUpdate(ctx, current.TripID)
		if err != nil {
			return err
		}
		trip.SeatsAvailable += current.Seats
		if trip.SeatsAvailable > trip.SeatsTotal {
			trip.SeatsAvailable = trip.SeatsTotal
		}
		if err := repo.SaveTrip(ctx, trip); err != nil {
			return err
		}

		now := time.Now().UTC()
		current.PaymentStatus = enums.PaymentStatusFailed
		current.Status = enums.TripBookingStatusCanceled
		current.CancelledAt = &now
		return repo.SaveBooking(ctx, current)
	})
}

func (s *service) ensurePaymentLink(ctx context.Context, booking *models.TripBooking) error {
	// Never mint a second link while a live one exists for this source.
	if booking.PaymentLinkID != nil && booking.PaymentStatus != enums.PaymentStatusFailed {
		return nil
	}

	link, err := s.gateway.CreateLink(ctx, paylink.CreateLinkParams{
		AmountCents:    booking.TotalPriceCents,
		Description:    "RideLink shared trip seats",
		ReferenceID:    fmt.Sprintf("trip_booking:%s", booking.ID),
		IdempotencyKey: fmt.Sprintf("trip-booking-%s", booking.ID),
	})
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	booking.PaymentLinkID = &link.ID
	booking.PaymentLinkURL = &link.URL
	booking.PaymentLinkCreatedAt = &now
	booking.PaymentStatus = enums.PaymentStatusPending
	return s.repo.SaveBooking(ctx, booking)
}

func authorizeBooking(actor types.Actor, booking *models.TripBooking) error {
	if actor.IsAdmin() {
		return nil
	}
	if actor.AccountID == booking.CustomerID || actor.AccountID == booking.DriverID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "you are not a participant in this trip booking")
}

func paginateTrips(rows []models.Trip, limit int) ([]models.Trip, string, error) {
	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}
