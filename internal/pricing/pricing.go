// Package pricing derives cart totals. Everything here is pure: no I/O, no
// clock, no shared state.
package pricing

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// DisplayPlaces is the precision applied when a value is shown or persisted.
const DisplayPlaces = 2

var hundred = decimal.NewFromInt(100)

// PriceSnapshot captures a product's prices at the time it was read.
type PriceSnapshot struct {
	RegularPrice decimal.Decimal  `json:"regularPrice"`
	SalePrice    *decimal.Decimal `json:"salePrice,omitempty"`
}

// UnitPrice prefers a positive sale price that undercuts the regular price.
func (p PriceSnapshot) UnitPrice() decimal.Decimal {
	if p.SalePrice != nil && p.SalePrice.IsPositive() && p.SalePrice.LessThan(p.RegularPrice) {
		return *p.SalePrice
	}
	return p.RegularPrice
}

// Line is one priced entry of a cart.
type Line struct {
	Price    PriceSnapshot `json:"priceSnapshot"`
	Quantity int           `json:"quantity"`
}

// LineTotal is unit price times quantity, unrounded.
func (l Line) LineTotal() decimal.Decimal {
	return l.Price.UnitPrice().Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// AppliedCoupon is the subset of coupon terms attached to a cart. It carries
// enough to re-evaluate the discount without another lookup.
type AppliedCoupon struct {
	Code              string             `json:"code"`
	DiscountType      enums.DiscountType `json:"discountType"`
	DiscountValue     decimal.Decimal    `json:"discountValue"`
	MaxDiscountAmount *decimal.Decimal   `json:"maxDiscountAmount,omitempty"`
	MinPurchaseAmount decimal.Decimal    `json:"minPurchaseAmount"`
	DiscountAmount    decimal.Decimal    `json:"discountAmount"`
}

// Config holds the storefront-wide pricing knobs.
type Config struct {
	VATRatePercent    decimal.Decimal `json:"vatRatePercent"`
	ShippingThreshold decimal.Decimal `json:"shippingThreshold"`
	FlatShippingFee   decimal.Decimal `json:"flatShippingFee"`
}

// CouponRemoval explains why a coupon was dropped while pricing.
type CouponRemoval struct {
	Code   string                      `json:"code"`
	Reason enums.CouponRejectionReason `json:"reason"`
}

// Totals is the authoritative price breakdown of a cart.
type Totals struct {
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	Shipping      decimal.Decimal `json:"shipping"`
	VAT           decimal.Decimal `json:"vat"`
	Total         decimal.Decimal `json:"total"`
	CouponRemoved *CouponRemoval  `json:"couponRemoved,omitempty"`
}

// Rounded returns a copy rounded to display precision, half away from zero.
func (t Totals) Rounded() Totals {
	t.Subtotal = t.Subtotal.Round(DisplayPlaces)
	t.Discount = t.Discount.Round(DisplayPlaces)
	t.Shipping = t.Shipping.Round(DisplayPlaces)
	t.VAT = t.VAT.Round(DisplayPlaces)
	t.Total = t.Total.Round(DisplayPlaces)
	return t
}

// Subtotal sums unit price times quantity over every line.
func Subtotal(lines []Line) decimal.Decimal {
	sum := decimal.Zero
	for _, line := range lines {
		sum = sum.Add(line.LineTotal())
	}
	return sum
}

// ComputeTotals derives subtotal, discount, shipping, VAT and total. The
// discount is always recomputed from the coupon terms against the current
// subtotal; a coupon whose minimum is no longer met is dropped and reported in
// CouponRemoved.
func ComputeTotals(lines []Line, coupon *AppliedCoupon, cfg Config) Totals {
	subtotal := Subtotal(lines)

	totals := Totals{Subtotal: subtotal, Discount: decimal.Zero}
	if coupon != nil {
		if subtotal.LessThan(coupon.MinPurchaseAmount) {
			totals.CouponRemoved = &CouponRemoval{
				Code:   coupon.Code,
				Reason: enums.CouponRejectionReasonBelowMinimum,
			}
		} else {
			totals.Discount = Discount(coupon.DiscountType, coupon.DiscountValue, coupon.MaxDiscountAmount, subtotal)
		}
	}

	discounted := subtotal.Sub(totals.Discount)
	if discounted.GreaterThanOrEqual(cfg.ShippingThreshold) {
		totals.Shipping = decimal.Zero
	} else {
		totals.Shipping = cfg.FlatShippingFee
	}

	totals.VAT = discounted.Mul(cfg.VATRatePercent).Div(hundred)

	total := discounted.Add(totals.Shipping).Add(totals.VAT)
	if total.IsNegative() {
		total = decimal.Zero
	}
	totals.Total = total
	return totals
}
