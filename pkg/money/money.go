package money

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Amounts are integer minor units (cents) everywhere inside the service.
// Dollar-string conversion happens here and only here; state machines and the
// settlement engine never see dollars.

var centsPerUnit = decimal.NewFromInt(100)

// FromDollarString converts a client-facing dollar amount ("12.50", "$12.50")
// into cents. Sub-cent precision is rejected rather than silently rounded.
func FromDollarString(value string) (int64, error) {
	cleaned := strings.TrimSpace(value)
	cleaned = strings.TrimPrefix(cleaned, "$")
	cleaned = strings.ReplaceAll(cleaned, ",", "")
	if cleaned == "" {
		return 0, fmt.Errorf("amount is required")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q: %w", value, err)
	}
	cents := d.Mul(centsPerUnit)
	if !cents.Equal(cents.Truncate(0)) {
		return 0, fmt.Errorf("amount %q has sub-cent precision", value)
	}
	return cents.IntPart(), nil
}

// ToDollarString renders cents as a plain two-decimal dollar amount.
func ToDollarString(cents int64) string {
	return decimal.NewFromInt(cents).Div(centsPerUnit).StringFixed(2)
}

// ResolveClientAmount accepts the two shapes legacy clients send: an explicit
// integer cents field, or a dollar string. Exactly one must be present.
func ResolveClientAmount(cents *int64, dollars string) (int64, error) {
	hasDollars := strings.TrimSpace(dollars) != ""
	switch {
	case cents != nil && hasDollars:
		return 0, fmt.Errorf("provide either a cents amount or a dollar amount, not both")
	case cents != nil:
		return *cents, nil
	case hasDollars:
		return FromDollarString(dollars)
	default:
		return 0, fmt.Errorf("amount is required")
	}
}
