package controllers

import (
	"net/http"

	"github.com/shopspring/decimal"

	cartctl "github.com/angelmondragon/storefront-checkout/api/controllers/cart"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type totalsRequest struct {
	Items         []totalsLine         `json:"items" validate:"dive"`
	AppliedCoupon *totalsCouponRequest `json:"appliedCoupon,omitempty"`
}

type totalsLine struct {
	RegularPrice decimal.Decimal  `json:"regularPrice" validate:"gte=0"`
	SalePrice    *decimal.Decimal `json:"salePrice,omitempty" validate:"omitempty,gte=0"`
	Quantity     int              `json:"quantity" validate:"min=1"`
}

type totalsCouponRequest struct {
	Code              string           `json:"code" validate:"required,coupon_code"`
	DiscountType      string           `json:"discountType" validate:"required,oneof=percent fixed"`
	DiscountValue     decimal.Decimal  `json:"discountValue" validate:"gte=0"`
	MaxDiscountAmount *decimal.Decimal `json:"maxDiscountAmount,omitempty" validate:"omitempty,gte=0"`
	MinPurchaseAmount decimal.Decimal  `json:"minPurchaseAmount" validate:"gte=0"`
}

type totalsResponse struct {
	cartctl.TotalsResponse
	CouponRemoved *pricing.CouponRemoval `json:"couponRemoved,omitempty"`
}

// Totals prices an arbitrary basket with the server's pricing config. It
// touches no state; the checkout recomputes everything from live data anyway.
func Totals(cfg pricing.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var payload totalsRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]pricing.Line, 0, len(payload.Items))
		for _, item := range payload.Items {
			lines = append(lines, pricing.Line{
				Price:    pricing.PriceSnapshot{RegularPrice: item.RegularPrice, SalePrice: item.SalePrice},
				Quantity: item.Quantity,
			})
		}

		var coupon *pricing.AppliedCoupon
		if c := payload.AppliedCoupon; c != nil {
			kind, err := enums.ParseDiscountType(c.DiscountType)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type"))
				return
			}
			coupon = &pricing.AppliedCoupon{
				Code:              c.Code,
				DiscountType:      kind,
				DiscountValue:     c.DiscountValue,
				MaxDiscountAmount: c.MaxDiscountAmount,
				MinPurchaseAmount: c.MinPurchaseAmount,
			}
		}

		totals := pricing.ComputeTotals(lines, coupon, cfg)
		responses.WriteSuccess(w, totalsResponse{
			TotalsResponse: cartctl.NewTotalsResponse(totals),
			CouponRemoved:  totals.CouponRemoved,
		})
	}
}
