package enums

import "fmt"

// NotificationKind labels outbound messages so delivery can be audited.
type NotificationKind string

const (
	NotificationKindNegotiationUpdate NotificationKind = "negotiation_update"
	NotificationKindBookingUpdate     NotificationKind = "booking_update"
	NotificationKindPaymentReceived   NotificationKind = "payment_received"
	NotificationKindEarningCredited   NotificationKind = "earning_credited"
)

var validNotificationKinds = []NotificationKind{
	NotificationKindNegotiationUpdate,
	NotificationKindBookingUpdate,
	NotificationKindPaymentReceived,
	NotificationKindEarningCredited,
}

// IsValid reports whether the value is a known NotificationKind.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
