package enums

import "fmt"

// BookingStatus tracks the lifecycle of a scheduled booking.
type BookingStatus string

const (
	BookingStatusPending          BookingStatus = "pending"
	BookingStatusDriverAssigned   BookingStatus = "driver_assigned"
	BookingStatusPriceNegotiating BookingStatus = "price_negotiating"
	BookingStatusPriceAccepted    BookingStatus = "price_accepted"
	BookingStatusPaymentPending   BookingStatus = "payment_pending"
	BookingStatusConfirmed        BookingStatus = "confirmed"
	BookingStatusInProgress       BookingStatus = "in_progress"
	BookingStatusCompleted        BookingStatus = "completed"
	BookingStatusCancelled        BookingStatus = "cancelled"
)

var validBookingStatuses = []BookingStatus{
	BookingStatusPending,
	BookingStatusDriverAssigned,
	BookingStatusPriceNegotiating,
	BookingStatusPriceAccepted,
	BookingStatusPaymentPending,
	BookingStatusConfirmed,
	BookingStatusInProgress,
	BookingStatusCompleted,
	BookingStatusCancelled,
}

// String implements fmt.Stringer.
func (b BookingStatus) String() string {
	return string(b)
}

// IsValid reports whether the value is a known BookingStatus.
func (b BookingStatus) IsValid() bool {
	for _, candidate := range validBookingStatuses {
		if candidate == b {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further public transition is allowed.
func (b BookingStatus) IsTerminal() bool {
	return b == BookingStatusCompleted || b == BookingStatusCancelled
}

// IsCancellable reports whether a cancel is still permitted. A trip that has
// started or finished can no longer be cancelled.
func (b BookingStatus) IsCancellable() bool {
	switch b {
	case BookingStatusPending,
		BookingStatusDriverAssigned,
		BookingStatusPriceNegotiating,
		BookingStatusPriceAccepted,
		BookingStatusPaymentPending:
		return true
	}
	return false
}

// ParseBookingStatus converts raw input into a BookingStatus.
func ParseBookingStatus(value string) (BookingStatus, error) {
	for _, candidate := range validBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid booking status %q", value)
}
