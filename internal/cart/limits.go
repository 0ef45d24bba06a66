package cart

import (
	"errors"

	"github.com/shopspring/decimal"
)

// MaxQuantity is the largest quantity a line can hold.
const MaxQuantity = 9999

// PriceScale is the number of decimal places a unit price may carry.
const PriceScale = 2

// MaxUnitPrice is the largest accepted unit price.
var MaxUnitPrice = decimal.NewFromInt(1_000_000)

// maxPriceDigits is the integer digit count of MaxUnitPrice.
const maxPriceDigits = 7

var (
	errNegativePrice = errors.New("unit price must not be negative")
	errPriceTooLarge = errors.New("unit price exceeds 1000000")
	errPriceScale    = errors.New("unit price must have at most 2 decimal places")
)

// CheckUnitPrice reports whether p is a usable unit price: non-negative, at
// most MaxUnitPrice and at most PriceScale decimal places. Digit count and
// exponent are checked before any arithmetic, so values like 1e20000000 or
// 1e-20000000 are rejected without being expanded.
func CheckUnitPrice(p decimal.Decimal) error {
	if p.IsNegative() {
		return errNegativePrice
	}
	exp := int(p.Exponent())
	if exp > maxPriceDigits || p.NumDigits()+exp > maxPriceDigits {
		return errPriceTooLarge
	}
	// Trailing zeros such as 19.990 are allowed.
	if exp < -(maxPriceDigits+PriceScale) || !p.Equal(p.Truncate(PriceScale)) {
		return errPriceScale
	}
	if p.GreaterThan(MaxUnitPrice) {
		return errPriceTooLarge
	}
	return nil
}
