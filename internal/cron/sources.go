package cron

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ridelinkhq/ridelink-backend/internal/bookings"
	"github.com/ridelinkhq/ridelink-backend/internal/negotiations"
	"github.com/ridelinkhq/ridelink-backend/internal/trips"
)

// PendingLink is one outstanding payment link regardless of which ride flow
// minted it.
type PendingLink struct {
	ID        uuid.UUID
	LinkID    string
	CreatedAt time.Time
}

// PaymentSource abstracts a ride flow for the payment jobs: list outstanding
// links, confirm one as paid, or expire one as failed.
type PaymentSource interface {
	Name() string
	Pending(ctx context.Context, limit int) ([]PendingLink, error)
	Confirm(ctx context.Context, id uuid.UUID) error
	Fail(ctx context.Context, id uuid.UUID) error
}

// NegotiationSource adapts the negotiation flow.
type NegotiationSource struct {
	Repo    negotiations.Repository
	Service negotiations.Service
}

func (s NegotiationSource) Name() string { return "negotiation" }

func (s NegotiationSource) Pending(ctx context.Context, limit int) ([]PendingLink, error) {
	rows, err := s.Repo.ListPendingPayment(ctx, limit)
	if err != nil {
		return nil, err
	}
	links := make([]PendingLink, 0, len(rows))
	for _, row := range rows {
		if row.PaymentLinkID == nil {
			continue
		}
		links = append(links, PendingLink{ID: row.ID, LinkID: *row.PaymentLinkID, CreatedAt: linkCreatedAt(row.PaymentLinkCreatedAt, row.CreatedAt)})
	}
	return links, nil
}

func (s NegotiationSource) Confirm(ctx context.Context, id uuid.UUID) error {
	return s.Service.ConfirmPayment(ctx, id)
}

func (s NegotiationSource) Fail(ctx context.Context, id uuid.UUID) error {
	return s.Service.FailPayment(ctx, id)
}

// BookingSource adapts the scheduled booking flow.
type BookingSource struct {
	Repo    bookings.Repository
	Service bookings.Service
}

func (s BookingSource) Name() string { return "booking" }

func (s BookingSource) Pending(ctx context.Context, limit int) ([]PendingLink, error) {
	rows, err := s.Repo.ListPendingPayment(ctx, limit)
	if err != nil {
		return nil, err
	}
	links := make([]PendingLink, 0, len(rows))
	for _, row := range rows {
		if row.PaymentLinkID == nil {
			continue
		}
		links = append(links, PendingLink{ID: row.ID, LinkID: *row.PaymentLinkID, CreatedAt: linkCreatedAt(row.PaymentLinkCreatedAt, row.CreatedAt)})
	}
	return links, nil
}

func (s BookingSource) Confirm(ctx context.Context, id uuid.UUID) error {
	return s.Service.ConfirmPayment(ctx, id)
}

func (s BookingSource) Fail(ctx context.Context, id uuid.UUID) error {
	return s.Service.FailPayment(ctx, id)
}

// TripBookingSource adapts the shared trip reservation flow.
type TripBookingSource struct {
	Repo    trips.Repository
	Service trips.Service
}

func (s TripBookingSource) Name() string { return "trip_booking" }

func (s TripBookingSource) Pending(ctx context.Context, limit int) ([]PendingLink, error) {
	rows, err := s.Repo.ListBookingsPendingPayment(ctx, limit)
	if err != nil {
		return nil, err
	}
	links := make([]PendingLink, 0, len(rows))
	for _, row := range rows {
		if row.PaymentLinkID == nil {
			continue
		}
		links = append(links, PendingLink{ID: row.ID, LinkID: *row.PaymentLinkID, CreatedAt: linkCreatedAt(row.PaymentLinkCreatedAt, row.CreatedAt)})
	}
	return links, nil
}

func (s TripBookingSource) Confirm(ctx context.Context, id uuid.UUID) error {
	return s.Service.ConfirmPayment(ctx, id)
}

func (s TripBookingSource) Fail(ctx context.Context, id uuid.UUID) error {
	return s.Service.FailPayment(ctx, id)
}

func linkCreatedAt(linkTime *time.Time, rowTime time.Time) time.Time {
	if linkTime != nil {
		return *linkTime
	}
	return rowTime
}
