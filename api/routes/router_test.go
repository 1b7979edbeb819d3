package routes

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/ridelinkhq/ridelink-backend/internal/bookings"
	"github.com/ridelinkhq/ridelink-backend/internal/ledger"
	"github.com/ridelinkhq/ridelink-backend/internal/negotiations"
	"github.com/ridelinkhq/ridelink-backend/internal/notifications"
	"github.com/ridelinkhq/ridelink-backend/internal/trips"
	"github.com/ridelinkhq/ridelink-backend/internal/wallets"
	paylinkwebhook "github.com/ridelinkhq/ridelink-backend/internal/webhooks/paylink"
	pkgauth "github.com/ridelinkhq/ridelink-backend/pkg/auth"
	"github.com/ridelinkhq/ridelink-backend/pkg/config"
	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/pagination"
	"github.com/ridelinkhq/ridelink-backend/pkg/paylink"
	"github.com/ridelinkhq/ridelink-backend/pkg/types"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error { return nil }

type stubIdempotencyStore struct {
	data map[string]string
}

func (s *stubIdempotencyStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := s.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (s *stubIdempotencyStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = value.(string)
	return true, nil
}

func (s *stubIdempotencyStore) IdempotencyKey(scope, id string) string {
	return "test:" + scope + ":" + id
}

func (s *stubIdempotencyStore) Del(_ context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

type stubGateway struct{}

func (stubGateway) CreateLink(context.Context, paylink.CreateLinkParams) (*paylink.Link, error) {
	return &paylink.Link{ID: "link", URL: "https://pay.test/link"}, nil
}
func (stubGateway) PollStatus(context.Context, string) (paylink.LinkStatus, error) {
	return paylink.LinkStatusPending, nil
}
func (stubGateway) DeleteLink(context.Context, string) error { return nil }
func (stubGateway) SigningSecret() string                    { return "whsec" }
func (stubGateway) NewIdempotencyKey(prefix string) string   { return prefix + "-key" }

type stubNegotiations struct{}

func (stubNegotiations) Create(context.Context, types.Actor, negotiations.CreateInput) (*models.Negotiation, error) {
	return &models.Negotiation{}, nil
}
func (stubNegotiations) Get(context.Context, types.Actor, uuid.UUID) (*models.Negotiation, error) {
	return &models.Negotiation{}, nil
}
func (stubNegotiations) List(context.Context, types.Actor, pagination.Params) ([]models.Negotiation, string, error) {
	return nil, "", nil
}
func (stubNegotiations) SubmitRecord(context.Context, types.Actor, uuid.UUID, negotiations.RecordInput) (*models.NegotiationRecord, error) {
	return &models.NegotiationRecord{}, nil
}
func (stubNegotiations) Accept(context.Context, types.Actor, uuid.UUID) (*models.Negotiation, error) {
	return &models.Negotiation{}, nil
}
func (stubNegotiations) Decline(context.Context, types.Actor, uuid.UUID) (*models.Negotiation, error) {
	return &models.Negotiation{}, nil
}
func (stubNegotiations) Cancel(context.Context, types.Actor, uuid.UUID) (*models.Negotiation, error) {
	return &models.Negotiation{}, nil
}
func (stubNegotiations) Complete(context.Context, types.Actor, uuid.UUID) (*models.Negotiation, error) {
	return &models.Negotiation{}, nil
}
func (stubNegotiations) ConfirmPayment(context.Context, uuid.UUID) error { return nil }
func (stubNegotiations) FailPayment(context.Context, uuid.UUID) error    { return nil }

type stubBookings struct{}

func (stubBookings) Create(context.Context, types.Actor, bookings.CreateInput) (*models.ScheduledBooking, error) {
	return &models.ScheduledBooking{}, nil
}
func (stubBookings) Get(context.Context, types.Actor, uuid.UUID) (*models.ScheduledBooking, error) {
	return &models.ScheduledBooking{}, nil
}
func (stubBookings) List(context.Context, types.Actor, pagination.Params) ([]models.ScheduledBooking, string, error) {
	return nil, "", nil
}
func (stubBookings) AssignDriver(context.Context, types.Actor, uuid.UUID, uuid.UUID) (*models.ScheduledBooking, error) {
	return &models.ScheduledBooking{}, nil
}
func (stubBookings) ProposePrice(context.Context, types.Actor, uuid.UUID, int64) (*models.ScheduledBooking, error) {
	return &models.ScheduledBooking{}, nil
}
func (stubBookings) AcceptPrice(context.Context, types.Actor, uuid.UUID) (*models.ScheduledBooking, error) {
	return &models.ScheduledBooking{}, nil
}
func (stubBookings) Start(context.Context, types.Actor, uuid.UUID) (*models.ScheduledBooking, error) {
	return &models.ScheduledBooking{}, nil
}
func (stubBookings) Complete(context.Context, types.Actor, uuid.UUID) (*models.ScheduledBooking, error) {
	return &models.ScheduledBooking{}, nil
}
func (stubBookings) Cancel(context.Context, types.Actor, uuid.UUID, string) (*models.ScheduledBooking, error) {
	return &models.ScheduledBooking{}, nil
}
func (stubBookings) ConfirmPayment(context.Context, uuid.UUID) error { return nil }
func (stubBookings) FailPayment(context.Context, uuid.UUID) error    { return nil }

type stubTrips struct{}

func (stubTrips) CreateTrip(context.Context, types.Actor, trips.CreateTripInput) (*models.Trip, error) {
	return &models.Trip{}, nil
}
func (stubTrips) ListTrips(context.Context, pagination.Params) ([]models.Trip, string, error) {
	return nil, "", nil
}
func (stubTrips) ListMyTrips(context.Context, types.Actor, pagination.Params) ([]models.Trip, string, error) {
	return nil, "", nil
}
func (stubTrips) DeactivateTrip(context.Context, types.Actor, uuid.UUID) (*models.Trip, error) {
	return &models.Trip{}, nil
}
func (stubTrips) Reserve(context.Context, types.Actor, trips.ReserveInput) (*models.TripBooking, error) {
	return &models.TripBooking{}, nil
}
func (stubTrips) GetBooking(context.Context, types.Actor, uuid.UUID) (*models.TripBooking, error) {
	return &models.TripBooking{}, nil
}
func (stubTrips) ListMyBookings(context.Context, types.Actor, pagination.Params) ([]models.TripBooking, string, error) {
	return nil, "", nil
}
func (stubTrips) CancelBooking(context.Context, types.Actor, uuid.UUID) (*models.TripBooking, error) {
	return &models.TripBooking{}, nil
}
func (stubTrips) CompleteBooking(context.Context, types.Actor, uuid.UUID) (*models.TripBooking, error) {
	return &models.TripBooking{}, nil
}
func (stubTrips) ConfirmPayment(context.Context, uuid.UUID) error { return nil }
func (stubTrips) FailPayment(context.Context, uuid.UUID) error    { return nil }

type stubWallets struct{}

func (stubWallets) GetWallet(context.Context, uuid.UUID) (*models.Account, error) {
	return &models.Account{}, nil
}
func (stubWallets) GetOrCreate(context.Context, uuid.UUID) (*models.Account, error) {
	return &models.Account{}, nil
}
func (stubWallets) Reconcile(context.Context, uuid.UUID) (*wallets.ReconcileResult, error) {
	return &wallets.ReconcileResult{}, nil
}

type stubLedger struct{}

func (stubLedger) RecordEntry(context.Context, ledger.RecordEntryInput) (*models.LedgerEntry, error) {
	return &models.LedgerEntry{}, nil
}
func (stubLedger) ListEntries(context.Context, uuid.UUID, pagination.Params) ([]models.LedgerEntry, string, error) {
	return nil, "", nil
}
func (stubLedger) HasSettlement(context.Context, enums.SettlementSource, uuid.UUID) (bool, error) {
	return false, nil
}
func (stubLedger) Reverse(context.Context, uuid.UUID) error { return nil }

type stubNotifications struct{}

func (stubNotifications) NegotiationUpdate(context.Context, uuid.UUID, string)  {}
func (stubNotifications) BookingUpdate(context.Context, uuid.UUID, string)      {}
func (stubNotifications) PaymentReceived(context.Context, uuid.UUID, int64)     {}
func (stubNotifications) EarningCredited(context.Context, uuid.UUID, int64, enums.SettlementSource, uuid.UUID) {
}
func (stubNotifications) List(context.Context, uuid.UUID, pagination.Params) (*notifications.ListResult, error) {
	return &notifications.ListResult{}, nil
}

func testRouter(t *testing.T, cfg *config.Config) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	webhookSvc, err := paylinkwebhook.NewService(paylinkwebhook.ServiceParams{
		Negotiations: stubNegotiations{},
		Bookings:     stubBookings{},
		TripBookings: stubTrips{},
		Logger:       logg,
	})
	if err != nil {
		t.Fatalf("build webhook service: %v", err)
	}
	guard, err := paylinkwebhook.NewIdempotencyGuard(&stubIdempotencyStore{data: map[string]string{}}, time.Hour, "paylink")
	if err != nil {
		t.Fatalf("build webhook guard: %v", err)
	}

	return NewRouter(Deps{
		Config:           cfg,
		Logger:           logg,
		DBPinger:         stubPinger{},
		RedisPinger:      stubPinger{},
		IdempotencyStore: &stubIdempotencyStore{data: map[string]string{}},
		Gateway:          stubGateway{},
		Negotiations:     stubNegotiations{},
		Bookings:         stubBookings{},
		Trips:            stubTrips{},
		Wallets:          stubWallets{},
		Ledger:           stubLedger{},
		Notifications:    stubNotifications{},
		Webhook:          webhookSvc,
		WebhookGuard:     guard,
	})
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "test", Port: "8080"},
		JWT: config.JWTConfig{Secret: "secret", Issuer: "ridelink", ExpirationMinutes: 60},
	}
}

func TestRouterPublicEndpoints(t *testing.T) {
	router := testRouter(t, testConfig())

	for _, path := range []string{"/health/live", "/health/ready", "/api/public/ping"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestRouterProtectedEndpointsRequireAuth(t *testing.T) {
	router := testRouter(t, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRouterAcceptsMintedToken(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)

	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		AccountID: uuid.New(),
		Role:      enums.ActorRoleCustomer,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
}

func TestRouterAdminGroupBlocksNonAdmins(t *testing.T) {
	cfg := testConfig()
	router := testRouter(t, cfg)

	token, err := pkgauth.MintAccessToken(cfg.JWT, time.Now(), pkgauth.AccessTokenPayload{
		AccountID: uuid.New(),
		Role:      enums.ActorRoleDriver,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/admin/ping", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", resp.Code)
	}
}
