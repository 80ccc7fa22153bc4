package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type validateCouponRequest struct {
	Code     string          `json:"code" validate:"required"`
	Subtotal decimal.Decimal `json:"subtotal" validate:"gte=0"`
}

type validateCouponResponse struct {
	Valid          bool                 `json:"valid"`
	Code           string               `json:"code"`
	Reason         string               `json:"reason,omitempty"`
	DiscountType   string               `json:"discountType,omitempty"`
	DiscountAmount *string              `json:"discountAmount,omitempty"`
	Coupon         *couponTermsResponse `json:"coupon,omitempty"`
}

type couponTermsResponse struct {
	DiscountValue     string  `json:"discountValue"`
	MinPurchaseAmount string  `json:"minPurchaseAmount"`
	MaxDiscountAmount *string `json:"maxDiscountAmount,omitempty"`
}

// CouponValidate answers whether a code would apply to the given subtotal.
// An ineligible coupon is a normal answer, not an error.
func CouponValidate(validator coupons.Validator, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if validator == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "coupon validator unavailable"))
			return
		}

		var payload validateCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		result, err := validator.Validate(ctx, payload.Code, payload.Subtotal, middleware.UserIDFromContext(ctx))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := validateCouponResponse{
			Valid:  result.Valid,
			Code:   coupons.NormalizeCode(payload.Code),
			Reason: string(result.Reason),
		}
		if result.Valid && result.Applied != nil {
			applied := result.Applied
			amount := applied.DiscountAmount.StringFixed(2)
			resp.DiscountType = string(applied.DiscountType)
			resp.DiscountAmount = &amount
			terms := &couponTermsResponse{
				DiscountValue:     applied.DiscountValue.String(),
				MinPurchaseAmount: applied.MinPurchaseAmount.StringFixed(2),
			}
			if applied.MaxDiscountAmount != nil {
				maxDiscount := applied.MaxDiscountAmount.StringFixed(2)
				terms.MaxDiscountAmount = &maxDiscount
			}
			resp.Coupon = terms
		}
		responses.WriteSuccess(w, resp)
	}
}
