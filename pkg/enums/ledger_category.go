package enums

import "fmt"

// LedgerCategory classifies what a ledger entry represents.
type LedgerCategory string

const (
	LedgerCategoryRideEarning LedgerCategory = "ride_earning"
	LedgerCategoryServiceFee  LedgerCategory = "service_fee"
	LedgerCategoryRefund      LedgerCategory = "refund"
	LedgerCategoryBonus       LedgerCategory = "bonus"
	LedgerCategoryPenalty     LedgerCategory = "penalty"
	LedgerCategoryWalletTopup LedgerCategory = "wallet_topup"
	LedgerCategoryWithdrawal  LedgerCategory = "withdrawal"
)

var validLedgerCategories = []LedgerCategory{
	LedgerCategoryRideEarning,
	LedgerCategoryServiceFee,
	LedgerCategoryRefund,
	LedgerCategoryBonus,
	LedgerCategoryPenalty,
	LedgerCategoryWalletTopup,
	LedgerCategoryWithdrawal,
}

// String implements fmt.Stringer.
func (c LedgerCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known LedgerCategory.
func (c LedgerCategory) IsValid() bool {
	for _, candidate := range validLedgerCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseLedgerCategory converts raw input into a LedgerCategory.
func ParseLedgerCategory(value string) (LedgerCategory, error) {
	for _, candidate := range validLedgerCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ledger category %q", value)
}
