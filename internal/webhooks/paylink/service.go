package paylinkwebhook

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/ridelinkhq/ridelink-backend/pkg/errors"
	"github.com/ridelinkhq/ridelink-backend/pkg/logger"
)

// paymentConfirmer is the slice of a ride service the webhook needs: an
// idempotent "this source is paid" transition.
type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, id uuid.UUID) error
}

// ServiceParams collects the per-flow confirmers.
type ServiceParams struct {
	Negotiations paymentConfirmer
	Bookings     paymentConfirmer
	TripBookings paymentConfirmer
	Logger       *logger.Logger
}

// Service routes processor payment events to the owning ride flow.
type Service struct {
	negotiations paymentConfirmer
	bookings     paymentConfirmer
	tripBookings paymentConfirmer
	logg         *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Negotiations == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "negotiations confirmer required")
	}
	if params.Bookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "bookings confirmer required")
	}
	if params.TripBookings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "trip bookings confirmer required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		negotiations: params.Negotiations,
		bookings:     params.Bookings,
		tripBookings: params.TripBookings,
		logg:         params.Logger,
	}, nil
}

// PaymentEvent is the normalized processor payload.
type PaymentEvent struct {
	EventID string           `json:"event_id"`
	Type    string           `json:"type"`
	Data    PaymentEventData `json:"data"`
}

// PaymentEventData carries the order the processor settled and the reference
// we stamped on the payment link at creation time.
type PaymentEventData struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	ReferenceID string `json:"reference_id"`
}

// HandleEvent processes a payment update. Non-terminal and unknown event
// types are acknowledged without action so the processor stops retrying.
func (s *Service) HandleEvent(ctx context.Context, event *PaymentEvent) error {
	if event == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment event required")
	}

	switch strings.ToLower(event.Type) {
	case "payment.created", "payment.updated", "order.updated":
	default:
		return nil
	}

	status := strings.ToUpper(event.Data.Status)
	if status != "COMPLETED" && status != "PAID" {
		s.logg.Info(s.logg.WithField(ctx, "status", event.Data.Status), "ignoring non-terminal payment event")
		return nil
	}

	source, sourceID, err := ParseReference(event.Data.ReferenceID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parsing payment reference")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{
		"source":    source,
		"source_id": sourceID.String(),
		"event_id":  event.EventID,
	})

	switch source {
	case "negotiation":
		err = s.negotiations.ConfirmPayment(ctx, sourceID)
	case "booking":
		err = s.bookings.ConfirmPayment(ctx, sourceID)
	case "trip_booking":
		err = s.tripBookings.ConfirmPayment(ctx, sourceID)
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unknown payment source %q", source))
	}
	if err != nil {
		return err
	}

	s.logg.Info(ctx, "payment event applied")
	return nil
}

// ParseReference splits a "<source>:<uuid>" reference stamped on the payment
// link at creation time.
func ParseReference(reference string) (string, uuid.UUID, error) {
	source, rawID, ok := strings.Cut(strings.TrimSpace(reference), ":")
	if !ok || source == "" {
		return "", uuid.Nil, fmt.Errorf("malformed reference %q", reference)
	}
	id, err := uuid.Parse(rawID)
	if err != nil {
		return "", uuid.Nil, fmt.Errorf("malformed reference id %q: %w", rawID, err)
	}
	return source, id, nil
}
