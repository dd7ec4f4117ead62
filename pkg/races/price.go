package races

import "github.com/shopspring/decimal"

// UnitPrice computes fee per kilometer rounded half-up to two decimals.
// It returns nil unless both operands are present and distance is positive.
func UnitPrice(fee, distance *float64) *float64 {
	if fee == nil || distance == nil || *distance <= 0 {
		return nil
	}
	price, _ := decimal.NewFromFloat(*fee).
		DivRound(decimal.NewFromFloat(*distance), 8).
		Round(2).
		Float64()
	return &price
}
