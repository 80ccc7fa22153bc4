package cart

import (
	"time"

	"github.com/google/uuid"

	cartsvc "github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
)

type cartResponse struct {
	SessionID     string                 `json:"sessionId"`
	Version       int64                  `json:"version"`
	ItemCount     int                    `json:"itemCount"`
	Items         []cartItemResponse     `json:"items"`
	AppliedCoupon *appliedCouponResponse `json:"appliedCoupon,omitempty"`
	Totals        TotalsResponse         `json:"totals"`
	CouponRemoved *pricing.CouponRemoval `json:"couponRemoved,omitempty"`
	UpdatedAt     *time.Time             `json:"updatedAt,omitempty"`
}

type cartItemResponse struct {
	LineID         uuid.UUID  `json:"lineId"`
	ProductID      uuid.UUID  `json:"productId"`
	VariationID    *uuid.UUID `json:"variationId,omitempty"`
	Name           string     `json:"name"`
	VariationLabel string     `json:"variationLabel,omitempty"`
	Quantity       int        `json:"quantity"`
	RegularPrice   string     `json:"regularPrice"`
	SalePrice      *string    `json:"salePrice,omitempty"`
	UnitPrice      string     `json:"unitPrice"`
	LineTotal      string     `json:"lineTotal"`
}

type appliedCouponResponse struct {
	Code           string  `json:"code"`
	DiscountType   string  `json:"discountType"`
	DiscountValue  string  `json:"discountValue"`
	MaxDiscount    *string `json:"maxDiscountAmount,omitempty"`
	DiscountAmount string  `json:"discountAmount"`
}

type TotalsResponse struct {
	Subtotal string `json:"subtotal"`
	Discount string `json:"discount"`
	Shipping string `json:"shipping"`
	VAT      string `json:"vat"`
	Total    string `json:"total"`
}

// NewTotalsResponse renders totals at display precision.
func NewTotalsResponse(t pricing.Totals) TotalsResponse {
	r := t.Rounded()
	return TotalsResponse{
		Subtotal: r.Subtotal.StringFixed(2),
		Discount: r.Discount.StringFixed(2),
		Shipping: r.Shipping.StringFixed(2),
		VAT:      r.VAT.StringFixed(2),
		Total:    r.Total.StringFixed(2),
	}
}

func newCartResponse(c *cartsvc.Cart, cfg pricing.Config, removed *pricing.CouponRemoval) cartResponse {
	totals := c.Totals(cfg)
	if removed == nil {
		removed = totals.CouponRemoved
	}

	items := make([]cartItemResponse, 0, len(c.Items))
	for _, item := range c.Items {
		resp := cartItemResponse{
			LineID:         item.LineID,
			ProductID:      item.ProductID,
			VariationID:    item.VariationID,
			Name:           item.Name,
			VariationLabel: item.VariationLabel,
			Quantity:       item.Quantity,
			RegularPrice:   item.Price.RegularPrice.StringFixed(2),
			UnitPrice:      item.Price.UnitPrice().StringFixed(2),
			LineTotal:      item.Line().LineTotal().StringFixed(2),
		}
		if item.Price.SalePrice != nil {
			sale := item.Price.SalePrice.StringFixed(2)
			resp.SalePrice = &sale
		}
		items = append(items, resp)
	}

	resp := cartResponse{
		SessionID:     c.SessionID,
		Version:       c.Version,
		ItemCount:     c.ItemCount(),
		Items:         items,
		Totals:        NewTotalsResponse(totals),
		CouponRemoved: removed,
	}
	if !c.UpdatedAt.IsZero() {
		updated := c.UpdatedAt
		resp.UpdatedAt = &updated
	}
	if c.AppliedCoupon != nil && totals.CouponRemoved == nil {
		coupon := c.AppliedCoupon
		applied := &appliedCouponResponse{
			Code:           coupon.Code,
			DiscountType:   string(coupon.DiscountType),
			DiscountValue:  coupon.DiscountValue.String(),
			DiscountAmount: totals.Rounded().Discount.StringFixed(2),
		}
		if coupon.MaxDiscountAmount != nil {
			maxDiscount := coupon.MaxDiscountAmount.StringFixed(2)
			applied.MaxDiscount = &maxDiscount
		}
		resp.AppliedCoupon = applied
	}
	return resp
}
