package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	cartsvc "github.com/angelmondragon/storefront-checkout/internal/cart"
	checkoutsvc "github.com/angelmondragon/storefront-checkout/internal/checkout"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

type cartLoader interface {
	Get(ctx context.Context, sessionID string) (*cartsvc.Cart, error)
}

// Addresses are checked by the checkout service so the error details carry
// the shippingAddress./billingAddress. prefix.
type checkoutRequest struct {
	ShippingAddress types.Address    `json:"shippingAddress" validate:"-"`
	BillingAddress  *types.Address   `json:"billingAddress,omitempty" validate:"-"`
	ShippingMethod  string           `json:"shippingMethod"`
	PaymentMethod   string           `json:"paymentMethod"`
	ClientTotal     *decimal.Decimal `json:"clientTotal,omitempty"`
}

type checkoutResponse struct {
	Order         orders.OrderDTO        `json:"order"`
	CouponRemoved *pricing.CouponRemoval `json:"couponRemoved,omitempty"`
	Replayed      bool                   `json:"replayed,omitempty"`
}

// Checkout places an order from the session cart.
func Checkout(carts cartLoader, svc checkoutsvc.Service, timeout time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || carts == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		idempotencyKey := validators.SanitizeString(r.Header.Get("Idempotency-Key"), 128)
		if idempotencyKey == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "Idempotency-Key header required"))
			return
		}

		var payload checkoutRequest
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

		sessionID := middleware.SessionIDFromContext(ctx)
		c, err := carts.Get(ctx, sessionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.PlaceOrder(ctx, checkoutsvc.PlaceOrderInput{
			SessionID:       sessionID,
			UserID:          middleware.UserIDPtrFromContext(ctx),
			Cart:            c,
			ShippingAddress: payload.ShippingAddress,
			BillingAddress:  payload.BillingAddress,
			ShippingMethod:  enums.ShippingMethod(strings.TrimSpace(payload.ShippingMethod)),
			PaymentMethod:   enums.PaymentMethod(strings.TrimSpace(payload.PaymentMethod)),
			IdempotencyKey:  idempotencyKey,
			ClientTotal:     payload.ClientTotal,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		status := http.StatusCreated
		if result.Replayed {
			status = http.StatusOK
		}
		responses.WriteSuccessStatus(w, status, checkoutResponse{
			Order:         orders.NewOrderDTO(result.Order),
			CouponRemoved: result.CouponRemoved,
			Replayed:      result.Replayed,
		})
	}
}
