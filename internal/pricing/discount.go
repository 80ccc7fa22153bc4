package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// Discount computes the amount a coupon takes off subtotal.
//
// percent: min(subtotal*value/100, maxDiscount, subtotal)
// fixed:   min(value, subtotal)
//
// The result is never negative and never exceeds subtotal.
func Discount(kind enums.DiscountType, value decimal.Decimal, maxDiscount *decimal.Decimal, subtotal decimal.Decimal) decimal.Decimal {
	if !subtotal.IsPositive() || !value.IsPositive() {
		return decimal.Zero
	}

	var amount decimal.Decimal
	switch kind {
	case enums.DiscountTypePercent:
		amount = subtotal.Mul(value).Div(hundred)
		if maxDiscount != nil && !maxDiscount.IsNegative() {
			amount = decimal.Min(amount, *maxDiscount)
		}
	case enums.DiscountTypeFixed:
		amount = value
	default:
		return decimal.Zero
	}
	return decimal.Min(amount, subtotal)
}

// Reapply recomputes the coupon's discount for subtotal and returns the
// refreshed copy. ok is false when the minimum purchase is no longer met.
func (c AppliedCoupon) Reapply(subtotal decimal.Decimal) (AppliedCoupon, bool) {
	if subtotal.LessThan(c.MinPurchaseAmount) {
		return c, false
	}
	c.DiscountAmount = Discount(c.DiscountType, c.DiscountValue, c.MaxDiscountAmount, subtotal)
	return c, true
}
