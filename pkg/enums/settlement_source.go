package enums

import "fmt"

// SettlementSource discriminates which record a settlement (and its ledger
// entries) originated from. Exactly one source id accompanies each settlement.
type SettlementSource string

const (
	SettlementSourceNegotiation SettlementSource = "negotiation"
	SettlementSourceBooking     SettlementSource = "booking"
	SettlementSourceTripBooking SettlementSource = "trip_booking"
)

var validSettlementSources = []SettlementSource{
	SettlementSourceNegotiation,
	SettlementSourceBooking,
	SettlementSourceTripBooking,
}

// String implements fmt.Stringer.
func (s SettlementSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known SettlementSource.
func (s SettlementSource) IsValid() bool {
	for _, candidate := range validSettlementSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSettlementSource converts raw input into a SettlementSource.
func ParseSettlementSource(value string) (SettlementSource, error) {
	for _, candidate := range validSettlementSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid settlement source %q", value)
}
