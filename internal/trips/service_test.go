package trips

import (
	"context"
	"fmt"
	"io"
	"testing"
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
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
	"github.com/ridelinkhq/ridelink-backend/pkg/paylink"
	"github.com/ridelinkhq/ridelink-backend/pkg/types"
)

type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type fakeRepository struct {
	trips    map[uuid.UUID]*models.Trip
	bookings map[uuid.UUID]*models.TripBooking
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		trips:    make(map[uuid.UUID]*models.Trip),
		bookings: make(map[uuid.UUID]*models.TripBooking),
	}
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepository) CreateTrip(ctx context.Context, trip *models.Trip) error {
	cp := *trip
	f.trips[trip.ID] = &cp
	return nil
}

func (f *fakeRepository) GetTrip(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	stored, ok := f.trips[id]
	if !ok {
		return nil, ErrTripNotFound
	}
	cp := *stored
	return &cp, nil
}

func (f *fakeRepository) GetTripForUpdate(ctx context.Context, id uuid.UUID) (*models.Trip, error) {
	return f.GetTrip(ctx, id)
}

func (f *fakeRepository) SaveTrip(ctx context.Context, trip *models.Trip) error {
	cp := *trip
	f.trips[trip.ID] = &cp
	return nil
}

func (f *fakeRepository) ListActiveTrips(ctx context.Context, cursor *pagination.Cursor, limit int) ([]models.Trip, error) {
	var out []models.Trip
	for _, t := range f.trips {
		if t.Active && t.SeatsAvailable > 0 {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListTripsByDriver(ctx context.Context, driverID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.Trip, error) {
	var out []models.Trip
	for _, t := range f.trips {
		if t.DriverID == driverID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeRepository) CreateBooking(ctx context.Context, booking *models.TripBooking) error {
	cp := *booking
	f.bookings[booking.ID] = &cp
	return nil
}

func (f *fakeRepository) GetBooking(ctx context.Context, id uuid.UUID) (*models.TripBooking, error) {
	stored, ok := f.bookings[id]
	if !ok {
		return nil, ErrBookingNotFound
	}
	cp := *stored
	return &cp, nil
}

func (f *fakeRepository) GetBookingForUpdate(ctx context.Context, id uuid.UUID) (*models.TripBooking, error) {
	return f.GetBooking(ctx, id)
}

func (f *fakeRepository) SaveBooking(ctx context.Context, booking *models.TripBooking) error {
	cp := *booking
	f.bookings[booking.ID] = &cp
	return nil
}

func (f *fakeRepository) ListBookingsByCustomer(ctx context.Context, customerID uuid.UUID, cursor *pagination.Cursor, limit int) ([]models.TripBooking, error) {
	var out []models.TripBooking
	for _, b := range f.bookings {
		if b.CustomerID == customerID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListBookingsByTrip(ctx context.Context, tripID uuid.UUID) ([]models.TripBooking, error) {
	var out []models.TripBooking
	for _, b := range f.bookings {
		if b.TripID == tripID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeRepository) ListBookingsPendingPayment(ctx context.Context, limit int) ([]models.TripBooking, error) {
	var out []models.TripBooking
	for _, b := range f.bookings {
		if b.PaymentStatus == enums.PaymentStatusPending && b.PaymentLinkID != nil {
			out = append(out, *b)
		}
	}
	return out, nil
}

type fakeGateway struct {
	created []paylink.CreateLinkParams
	deleted []string
}

func (f *fakeGateway) CreateLink(ctx context.Context, params paylink.CreateLinkParams) (*paylink.Link, error) {
	f.created = append(f.created, params)
	return &paylink.Link{
		ID:        fmt.Sprintf("plink-%d", len(f.created)),
		URL:       "https://pay.example.com/l/trip",
		CreatedAt: time.Now().UTC(),
	}, nil
}

func (f *fakeGateway) PollStatus(ctx context.Context, linkID string) (paylink.LinkStatus, error) {
	return paylink.LinkStatusPending, nil
}

func (f *fakeGateway) DeleteLink(ctx context.Context, linkID string) error {
	f.deleted = append(f.deleted, linkID)
	return nil
}

func (f *fakeGateway) SigningSecret() string { return "secret" }

func (f *fakeGateway) NewIdempotencyKey(prefix string) string { return prefix + "-key" }

type fakeSettlement struct {
	settles []settlement.SettleInput
	refunds []settlement.RefundInput
}

func (f *fakeSettlement) Settle(ctx context.Context, input settlement.SettleInput) (*settlement.Result, error) {
	for _, prior := range f.settles {
		if prior.Source == input.Source && prior.SourceID == input.SourceID {
			return nil, settlement.ErrAlreadySettled
		}
	}
	f.settles = append(f.settles, input)
	return &settlement.Result{}, nil
}

func (f *fakeSettlement) Refund(ctx context.Context, input settlement.RefundInput) (*settlement.RefundResult, error) {
	f.refunds = append(f.refunds, input)
	return &settlement.RefundResult{}, nil
}

type fakeNotifier struct {
	messages map[uuid.UUID][]string
}

func (f *fakeNotifier) record(accountID uuid.UUID, message string) {
	if f.messages == nil {
		f.messages = make(map[uuid.UUID][]string)
	}
	f.messages[accountID] = append(f.messages[accountID], message)
}

func (f *fakeNotifier) NegotiationUpdate(ctx context.Context, accountID uuid.UUID, message string) {
	f.record(accountID, message)
}

func (f *fakeNotifier) BookingUpdate(ctx context.Context, accountID uuid.UUID, message string) {
	f.record(accountID, message)
}

func (f *fakeNotifier) PaymentReceived(ctx context.Context, accountID uuid.UUID, amountCents int64) {
	f.record(accountID, fmt.Sprintf("paid %d", amountCents))
}

func (f *fakeNotifier) EarningCredited(ctx context.Context, accountID uuid.UUID, amountCents int64, source enums.SettlementSource, sourceID uuid.UUID) {
	f.record(accountID, fmt.Sprintf("earned %d", amountCents))
}

func (f *fakeNotifier) List(ctx context.Context, accountID uuid.UUID, params pagination.Params) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

type testEnv struct {
	svc      Service
	repo     *fakeRepository
	gateway  *fakeGateway
	settle   *fakeSettlement
	notify   *fakeNotifier
	driver   types.Actor
	customer types.Actor
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo := newFakeRepository()
	gateway := &fakeGateway{}
	settle := &fakeSettlement{}
	notify := &fakeNotifier{}
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	svc, err := NewService(fakeTxRunner{}, repo, gateway, settle, notify, config.PlatformConfig{
		AccountID:        uuid.NewString(),
		DriverShareBps:   9000,
		MinimumFareCents: 50,
	}, logg)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	return &testEnv{
		svc:      svc,
		repo:     repo,
		gateway:  gateway,
		settle:   settle,
		notify:   notify,
		driver:   types.Actor{AccountID: uuid.New(), Role: enums.ActorRoleDriver},
		customer: types.Actor{AccountID: uuid.New(), Role: enums.ActorRoleCustomer},
	}
}

func (e *testEnv) publishTrip(t *testing.T, seats int, pricePerSeat int64) *models.Trip {
	t.Helper()

	price := pricePerSeat
	trip, err := e.svc.CreateTrip(context.Background(), e.driver, CreateTripInput{
		OriginAddress:      "Downtown Station",
		DestinationAddress: "Airport",
		DepartureAt:        time.Now().UTC().Add(6 * time.Hour),
		SeatsTotal:         seats,
		PricePerSeatCents:  &price,
	})
	if err != nil {
		t.Fatalf("publish trip: %v", err)
	}
	return trip
}

func TestService_ReserveDecrementsSeatsAndMintsLink(t *testing.T) {
	env := newTestEnv(t)
	trip := env.publishTrip(t, 4, 1500)

	booking, err := env.svc.Reserve(context.Background(), env.customer, ReserveInput{TripID: trip.ID, Seats: 2})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if booking.TotalPriceCents != 3000 {
		t.Fatalf("expected total 3000, got %d", booking.TotalPriceCents)
	}
	if booking.PaymentStatus != enums.PaymentStatusPending || booking.PaymentLinkID == nil {
		t.Fatalf("payment link not minted: %+v", booking)
	}

	stored, _ := env.repo.GetTrip(context.Background(), trip.ID)
	if stored.SeatsAvailable != 2 {
		t.Fatalf("seats not decremented, got %d", stored.SeatsAvailable)
	}
	if len(env.gateway.created) != 1 || env.gateway.created[0].AmountCents != 3000 {
		t.Fatalf("unexpected link params: %+v", env.gateway.created)
	}
}

func TestService_ReserveRejectsOverbooking(t *testing.T) {
	env := newTestEnv(t)
	trip := env.publishTrip(t, 2, 1500)

	if _, err := env.svc.Reserve(context.Background(), env.customer, ReserveInput{TripID: trip.ID, Seats: 2}); err != nil {
		t.Fatalf("first reserve: %v", err)
	}

	other := types.Actor{AccountID: uuid.New(), Role: enums.ActorRoleCustomer}
	_, err := env.svc.Reserve(context.Background(), other, ReserveInput{TripID: trip.ID, Seats: 1})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict when seats run out, got %v", err)
	}
}

func TestService_ReserveRejectsOwnTrip(t *testing.T) {
	env := newTestEnv(t)
	trip := env.publishTrip(t, 4, 1500)

	driverAsCustomer := types.Actor{AccountID: env.driver.AccountID, Role: enums.ActorRoleCustomer}
	_, err := env.svc.Reserve(context.Background(), driverAsCustomer, ReserveInput{TripID: trip.ID, Seats: 1})
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestService_ConfirmPaymentSettlesOncePerBooking(t *testing.T) {
	env := newTestEnv(t)
	trip := env.publishTrip(t, 4, 1500)

	booking, err := env.svc.Reserve(context.Background(), env.customer, ReserveInput{TripID: trip.ID, Seats: 2})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	if err := env.svc.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("first confirm: %v", err)
	}
	if err := env.svc.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("duplicate confirm must be a no-op: %v", err)
	}

	if len(env.settle.settles) != 1 {
		t.Fatalf("expected exactly one settlement, got %d", len(env.settle.settles))
	}
	call := env.settle.settles[0]
	if call.Source != enums.SettlementSourceTripBooking || call.SourceID != booking.ID {
		t.Fatalf("settlement tagged with wrong source: %+v", call)
	}
	if call.FareCents != 3000 || call.DriverID != env.driver.AccountID {
		t.Fatalf("unexpected settle input: %+v", call)
	}

	stored, _ := env.repo.GetBooking(context.Background(), booking.ID)
	if stored.Status != enums.TripBookingStatusReserved || stored.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("confirm did not advance the booking: %+v", stored)
	}
}

func TestService_CancelRestoresSeatsAndRefundsPaid(t *testing.T) {
	env := newTestEnv(t)
	trip := env.publishTrip(t, 4, 1500)

	booking, err := env.svc.Reserve(context.Background(), env.customer, ReserveInput{TripID: trip.ID, Seats: 3})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := env.svc.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	cancelled, err := env.svc.CancelBooking(context.Background(), env.customer, booking.ID)
	if err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	if cancelled.Status != enums.TripBookingStatusCanceled || cancelled.CancelledAt == nil {
		t.Fatalf("cancellation not recorded: %+v", cancelled)
	}
	if cancelled.PaymentStatus != enums.PaymentStatusRefunded {
		t.Fatalf("paid booking must be marked refunded, got %s", cancelled.PaymentStatus)
	}

	storedTrip, _ := env.repo.GetTrip(context.Background(), trip.ID)
	if storedTrip.SeatsAvailable != 4 {
		t.Fatalf("seats not restored, got %d", storedTrip.SeatsAvailable)
	}
	if len(env.settle.refunds) != 1 || env.settle.refunds[0].SourceID != booking.ID {
		t.Fatalf("expected one refund for the booking, got %+v", env.settle.refunds)
	}
}

func TestService_CancelUnpaidDeletesStaleLink(t *testing.T) {
	env := newTestEnv(t)
	trip := env.publishTrip(t, 4, 1500)

	booking, err := env.svc.Reserve(context.Background(), env.customer, ReserveInput{TripID: trip.ID, Seats: 1})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	cancelled, err := env.svc.CancelBooking(context.Background(), env.customer, booking.ID)
	if err != nil {
		t.Fatalf("cancel booking: %v", err)
	}
	if cancelled.PaymentStatus != enums.PaymentStatusFailed {
		t.Fatalf("pending payment must be marked failed, got %s", cancelled.PaymentStatus)
	}
	if len(env.gateway.deleted) != 1 {
		t.Fatalf("stale link must be deleted, got %d", len(env.gateway.deleted))
	}
	if len(env.settle.refunds) != 0 {
		t.Fatal("unpaid booking must not trigger a refund")
	}
}

func TestService_CompleteRequiresPaidReservation(t *testing.T) {
	env := newTestEnv(t)
	trip := env.publishTrip(t, 4, 1500)

	booking, err := env.svc.Reserve(context.Background(), env.customer, ReserveInput{TripID: trip.ID, Seats: 1})
	if err != nil {
		t.Fatalf("reserve: %v", err)
	}

	_, err = env.svc.CompleteBooking(context.Background(), env.driver, booking.ID)
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict before payment, got %v", err)
	}

	if err := env.svc.ConfirmPayment(context.Background(), booking.ID); err != nil {
		t.Fatalf("confirm payment: %v", err)
	}

	completed, err := env.svc.CompleteBooking(context.Background(), env.driver, booking.ID)
	if err != nil {
		t.Fatalf("complete booking: %v", err)
	}
	if completed.Status != enums.TripBookingStatusCompleted || completed.CompletedAt == nil {
		t.Fatalf("completion not recorded: %+v", completed)
	}
}

func TestService_CreateTripValidation(t *testing.T) {
	env := newTestEnv(t)

	price := int64(1500)
	cases := []struct {
		name  string
		input CreateTripInput
	}{
		{"past departure", CreateTripInput{
			OriginAddress: "a", DestinationAddress: "b",
			DepartureAt: time.Now().UTC().Add(-time.Hour),
			SeatsTotal:  2, PricePerSeatCents: &price,
		}},
		{"too many seats", CreateTripInput{
			OriginAddress: "a", DestinationAddress: "b",
			DepartureAt: time.Now().UTC().Add(time.Hour),
			SeatsTotal:  MaxSeatsPerTrip + 1, PricePerSeatCents: &price,
		}},
		{"missing addresses", CreateTripInput{
			DepartureAt: time.Now().UTC().Add(time.Hour),
			SeatsTotal:  2, PricePerSeatCents: &price,
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.svc.CreateTrip(context.Background(), env.driver, tc.input)
			if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}
