package enums

import "fmt"

// NegotiationStatus tracks the lifecycle of a price negotiation.
type NegotiationStatus string

const (
	NegotiationStatusActive    NegotiationStatus = "active"
	NegotiationStatusAccepted  NegotiationStatus = "accepted"
	NegotiationStatusDeclined  NegotiationStatus = "declined"
	NegotiationStatusCancelled NegotiationStatus = "cancelled"
	NegotiationStatusCompleted NegotiationStatus = "completed"
)

var validNegotiationStatuses = []NegotiationStatus{
	NegotiationStatusActive,
	NegotiationStatusAccepted,
	NegotiationStatusDeclined,
	NegotiationStatusCancelled,
	NegotiationStatusCompleted,
}

// String implements fmt.Stringer.
func (n NegotiationStatus) String() string {
	return string(n)
}

// IsValid reports whether the value is a known NegotiationStatus.
func (n NegotiationStatus) IsValid() bool {
	for _, candidate := range validNegotiationStatuses {
		if candidate == n {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further public transition is allowed.
func (n NegotiationStatus) IsTerminal() bool {
	switch n {
	case NegotiationStatusDeclined, NegotiationStatusCancelled, NegotiationStatusCompleted:
		return true
	}
	return false
}

// IsLive reports whether the negotiation still occupies the driver.
// Derived from the status enum; never stored separately.
func (n NegotiationStatus) IsLive() bool {
	switch n {
	case NegotiationStatusActive, NegotiationStatusAccepted:
		return true
	}
	return false
}

// ParseNegotiationStatus converts raw input into a NegotiationStatus.
func ParseNegotiationStatus(value string) (NegotiationStatus, error) {
	for _, candidate := range validNegotiationStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid negotiation status %q", value)
}
