package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ridelinkhq/ridelink-backend/api/controllers"
	webhookcontrollers "github.com/ridelinkhq/ridelink-backend/api/controllers/webhooks"
	"github.com/ridelinkhq/ridelink-backend/api/middleware"
	"github.com/ridelinkhq/ridelink-backend/internal/bookings"
	"github.com/ridelinkhq/ridelink-backend/internal/ledger"
	"github.com/ridelinkhq/ridelink-backend/internal/negotiations"
	"github.com/ridelinkhq/ridelink-backend/internal/notifications"
	"github.com/ridelinkhq/ridelink-backend/internal/trips"
	"github.com/ridelinkhq/ridelink-backend/internal/wallets"
	paylinkwebhook "github.com/ridelinkhq/ridelink-backend/internal/webhooks/paylink"
	"github.com/ridelinkhq/ridelink-backend/pkg/config"
	"github.com/ridelinkhq/ridelink-backend/pkg/db"
	"github.com/ridelinkhq/ridelink-backend/pkg/enums"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/paylink"
	"github.com/ridelinkhq/ridelink-backend/pkg/redis"
)

// Deps carries everything the HTTP surface needs. The webhook guard and the
// idempotency store are separate because they dedupe different things: the
// guard dedupes processor events, the store dedupes client retries.
type Deps struct {
	Config *config.Config
	Logger *logger.Logger

	DBPinger    db.Pinger
	RedisPinger redis.Pinger

	IdempotencyStore redis.IdempotencyStore

	Gateway paylink.Gateway

	Negotiations  negotiations.Service
	Bookings      bookings.Service
	Trips         trips.Service
	Wallets       wallets.Service
	Ledger        ledger.Service
	Notifications notifications.Service

	Webhook      *paylinkwebhook.Service
	WebhookGuard *paylinkwebhook.IdempotencyGuard
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DBPinger, deps.RedisPinger))
	})

	r.Route("/api/public", func(r chi.Router) {
		r.Get("/ping", controllers.PublicPing())
	})

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.Post("/paylink", webhookcontrollers.PaylinkWebhook(deps.Webhook, deps.Gateway, deps.WebhookGuard, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(deps.IdempotencyStore, logg))

		r.Get("/ping", controllers.PrivatePing())

		r.Route("/negotiations", func(r chi.Router) {
			r.Post("/", controllers.NegotiationCreate(deps.Negotiations, logg))
			r.Get("/", controllers.NegotiationList(deps.Negotiations, logg))
			r.Get("/{negotiationId}", controllers.NegotiationDetail(deps.Negotiations, logg))
			r.Post("/{negotiationId}/records", controllers.NegotiationSubmitRecord(deps.Negotiations, logg))
			r.Post("/{negotiationId}/accept", controllers.NegotiationAccept(deps.Negotiations, logg))
			r.Post("/{negotiationId}/decline", controllers.NegotiationDecline(deps.Negotiations, logg))
			r.Post("/{negotiationId}/cancel", controllers.NegotiationCancel(deps.Negotiations, logg))
			r.Post("/{negotiationId}/complete", controllers.NegotiationComplete(deps.Negotiations, logg))
		})

		r.Route("/bookings", func(r chi.Router) {
			r.Post("/", controllers.BookingCreate(deps.Bookings, logg))
			r.Get("/", controllers.BookingList(deps.Bookings, logg))
			r.Get("/{bookingId}", controllers.BookingDetail(deps.Bookings, logg))
			r.With(middleware.RequireRole(enums.ActorRoleAdmin, logg)).
				Post("/{bookingId}/assign", controllers.BookingAssignDriver(deps.Bookings, logg))
			r.Post("/{bookingId}/price", controllers.BookingProposePrice(deps.Bookings, logg))
			r.Post("/{bookingId}/accept-price", controllers.BookingAcceptPrice(deps.Bookings, logg))
			r.Post("/{bookingId}/start", controllers.BookingStart(deps.Bookings, logg))
			r.Post("/{bookingId}/complete", controllers.BookingComplete(deps.Bookings, logg))
			r.Post("/{bookingId}/cancel", controllers.BookingCancel(deps.Bookings, logg))
		})

		r.Route("/trips", func(r chi.Router) {
			r.Post("/", controllers.TripCreate(deps.Trips, logg))
			r.Get("/", controllers.TripList(deps.Trips, logg))
			r.Get("/mine", controllers.TripListMine(deps.Trips, logg))
			r.Post("/{tripId}/deactivate", controllers.TripDeactivate(deps.Trips, logg))
			r.Post("/{tripId}/reserve", controllers.TripReserve(deps.Trips, logg))
		})

		r.Route("/trip-bookings", func(r chi.Router) {
			r.Get("/", controllers.TripBookingList(deps.Trips, logg))
			r.Get("/{tripBookingId}", controllers.TripBookingDetail(deps.Trips, logg))
			r.Post("/{tripBookingId}/cancel", controllers.TripBookingCancel(deps.Trips, logg))
			r.Post("/{tripBookingId}/complete", controllers.TripBookingComplete(deps.Trips, logg))
		})

		r.Route("/wallets", func(r chi.Router) {
			r.Get("/me", controllers.WalletFetch(deps.Wallets, logg))
			r.Get("/me/ledger", controllers.WalletLedger(deps.Ledger, logg))
		})

		r.Get("/notifications", controllers.ListNotifications(deps.Notifications, logg))
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.RequireRole(enums.ActorRoleAdmin, logg))
		r.Get("/ping", controllers.AdminPing())
		r.Route("/v1/bookings", func(r chi.Router) {
			r.Post("/{bookingId}/mark-paid", controllers.BookingMarkPaid(deps.Bookings, logg))
		})
		r.Route("/v1/wallets", func(r chi.Router) {
			r.Post("/{accountId}/reconcile", controllers.WalletReconcile(deps.Wallets, logg))
		})
	})

	return r
}
