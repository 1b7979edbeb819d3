package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

const bpsDenominator = 10000

// Split is the outcome of dividing an agreed fare between the driver and the
// platform. Each leg is rounded half-up independently from the total, so the
// legs may not sum exactly to the total when rounding truncates. That is the
// accepted policy: neither leg is derived as "total minus other".
type Split struct {
	TotalCents    int64
	DriverCents   int64
	PlatformCents int64
}

// SplitFare divides totalCents using the driver share in basis points
// (9000 = 90%). Both legs use round-half-up to the minor unit.
func SplitFare(totalCents int64, driverShareBps int) (Split, error) {
	if totalCents <= 0 {
		return Split{}, fmt.Errorf("total must be positive, got %d", totalCents)
	}
	if driverShareBps <= 0 || driverShareBps >= bpsDenominator {
		return Split{}, fmt.Errorf("driver share must be between 1 and %d basis points, got %d", bpsDenominator-1, driverShareBps)
	}

	total := decimal.NewFromInt(totalCents)
	denominator := decimal.NewFromInt(bpsDenominator)

	driver := total.
		Mul(decimal.NewFromInt(int64(driverShareBps))).
		Div(denominator).
		Round(0)
	platform := total.
		Mul(decimal.NewFromInt(int64(bpsDenominator - driverShareBps))).
		Div(denominator).
		Round(0)

	return Split{
		TotalCents:    totalCents,
		DriverCents:   driver.IntPart(),
		PlatformCents: platform.IntPart(),
	}, nil
}
