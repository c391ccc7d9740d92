package services

import (
	"strings"

	"github.com/shopspring/decimal"
)

var promoCodes = map[string]float64{
	"10OFF": 0.10,
	"30OFF": 0.30,
	"50OFF": 0.50,
	"70OFF": 0.70,
}

// DiscountForCode returns the fractional discount of a promo code. Codes are matched
// case-insensitively; unknown or empty codes yield (0, false).
func DiscountForCode(code string) (float64, bool) {
	d, ok := promoCodes[strings.ToUpper(strings.TrimSpace(code))]
	return d, ok
}

// PricedLine is a quantity at a unit price.
type PricedLine struct {
	Price    float64
	Quantity int
}

// Subtotal sums price times quantity over lines.
func Subtotal(lines []PricedLine) decimal.Decimal {
	sum := decimal.Zero
	for _, l := range lines {
		sum = sum.Add(decimal.NewFromFloat(l.Price).Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum
}

// OrderTotal is subtotal*(1-discount)+shipping rounded to cents. Shipping is never discounted.
// The gateway charges per-unit amounts from UnitAmount, each rounded on its own, so the
// charged sum may differ from the stored total by at most (units+1)/2 cents.
func OrderTotal(lines []PricedLine, discount, shipping float64) float64 {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount))
	total := Subtotal(lines).Mul(factor).Add(decimal.NewFromFloat(shipping))
	return total.Round(2).InexactFloat64()
}

// UnitAmount converts a unit price to discounted minor units for the payment gateway.
func UnitAmount(price, discount float64) int64 {
	factor := decimal.NewFromInt(1).Sub(decimal.NewFromFloat(discount))
	return decimal.NewFromFloat(price).Mul(factor).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}
