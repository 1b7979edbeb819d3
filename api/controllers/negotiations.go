package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/api/middleware"
	"github.com/ridelinkhq/ridelink-backend/api/responses"
	"github.com/ridelinkhq/ridelink-backend/api/validators"
	"github.com/ridelinkhq/ridelink-backend/internal/negotiations"
	"github.com/ridelinkhq/ridelink-backend/pkg/db/models"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
	"github.com/ridelinkhq/ridelink-backend/pkg/types"
)

type listEnvelope struct {
	Items      any    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NegotiationCreate opens a direct negotiation with a driver.
func NegotiationCreate(svc negotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input negotiations.CreateInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		negotiation, err := svc.Create(r.Context(), actor, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, negotiation)
	}
}

func NegotiationDetail(svc negotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(r, "negotiationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		negotiation, err := svc.Get(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, negotiation)
	}
}

func NegotiationList(svc negotiations.Service, logg *logger.Logger) http.HandlerFunc {
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

		items, next, err := svc.List(r.Context(), actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, listEnvelope{Items: items, NextCursor: next})
	}
}

// NegotiationSubmitRecord appends an offer or message to the thread.
func NegotiationSubmitRecord(svc negotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(r, "negotiationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var input negotiations.RecordInput
		if err := validators.DecodeJSONBody(r, &input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		record, err := svc.SubmitRecord(r.Context(), actor, id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, record)
	}
}

func NegotiationAccept(svc negotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return negotiationTransition(svc.Accept, logg)
}

func NegotiationDecline(svc negotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return negotiationTransition(svc.Decline, logg)
}

func NegotiationCancel(svc negotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return negotiationTransition(svc.Cancel, logg)
}

func NegotiationComplete(svc negotiations.Service, logg *logger.Logger) http.HandlerFunc {
	return negotiationTransition(svc.Complete, logg)
}

func negotiationTransition(
	fn func(ctx context.Context, actor types.Actor, id uuid.UUID) (*models.Negotiation, error),
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.ActorFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		id, err := validators.ParsePathUUID(r, "negotiationId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		negotiation, err := fn(r.Context(), actor, id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, negotiation)
	}
}
