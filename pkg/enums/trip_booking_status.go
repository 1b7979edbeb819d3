package enums

import "fmt"

// TripBookingStatus tracks a seat reservation on a recurring trip.
type TripBookingStatus string

const (
	TripBookingStatusPending   TripBookingStatus = "pending"
	TripBookingStatusReserved  TripBookingStatus = "reserved"
	TripBookingStatusCanceled  TripBookingStatus = "canceled"
	TripBookingStatusCompleted TripBookingStatus = "completed"
)

var validTripBookingStatuses = []TripBookingStatus{
	TripBookingStatusPending,
	TripBookingStatusReserved,
	TripBookingStatusCanceled,
	TripBookingStatusCompleted,
}

// String implements fmt.Stringer.
func (s TripBookingStatus) String() string {
	return string(s)
}

// IsValid reports whether the value is a known TripBookingStatus.
func (s TripBookingStatus) IsValid() bool {
	for _, candidate := range validTripBookingStatuses {
		if candidate == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further public transition is allowed.
func (s TripBookingStatus) IsTerminal() bool {
	return s == TripBookingStatusCanceled || s == TripBookingStatusCompleted
}

// ParseTripBookingStatus converts raw input into a TripBookingStatus.
func ParseTripBookingStatus(value string) (TripBookingStatus, error) {
	for _, candidate := range validTripBookingStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid trip booking status %q", value)
}
