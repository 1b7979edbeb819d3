package controllers

import (
	"net/http"

	"github.com/ridelinkhq/ridelink-backend/api/middleware"
	"github.com/ridelinkhq/ridelink-backend/api/responses"
	"github.com/ridelinkhq/ridelink-backend/api/validators"
	"github.com/ridelinkhq/ridelink-backend/internal/notifications"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
)

// ListNotifications returns the caller's notification feed.
func ListNotifications(svc notifications.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.List(r.Context(), actor.AccountID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
