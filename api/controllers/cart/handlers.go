package cart

import (
	"net/http"

	"github.com/angelmondragon/storefront-checkout/api/middleware"
	"github.com/angelmondragon/storefront-checkout/api/responses"
	"github.com/angelmondragon/storefront-checkout/api/validators"
	cartsvc "github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

// CartFetch returns the session cart with display totals.
func CartFetch(svc cartsvc.Service, cfg pricing.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		c, err := svc.Get(r.Context(), middleware.SessionIDFromContext(r.Context()))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newCartResponse(c, cfg, nil))
	}
}

// CartAddItem adds a product (or merges into its existing line).
func CartAddItem(svc cartsvc.Service, cfg pricing.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload addItemRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.AddItem(r.Context(), cartsvc.AddItemInput{
			SessionID:   middleware.SessionIDFromContext(r.Context()),
			ProductID:   payload.ProductID,
			VariationID: payload.VariationID,
			Quantity:    payload.Quantity,
		})
		writeMutation(w, r, logg, cfg, result, err)
	}
}

// CartUpdateQuantity sets a line's quantity; zero removes the line.
func CartUpdateQuantity(svc cartsvc.Service, cfg pricing.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var payload updateQuantityRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.UpdateQuantity(r.Context(), middleware.SessionIDFromContext(r.Context()), lineID, *payload.Quantity)
		writeMutation(w, r, logg, cfg, result, err)
	}
}

func CartRemoveItem(svc cartsvc.Service, cfg pricing.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		lineID, err := validators.ParseUUIDParam(r, "lineId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.RemoveItem(r.Context(), middleware.SessionIDFromContext(r.Context()), lineID)
		writeMutation(w, r, logg, cfg, result, err)
	}
}

func CartClear(svc cartsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		if err := svc.Clear(r.Context(), middleware.SessionIDFromContext(r.Context())); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CartApplyCoupon validates a coupon against the current subtotal and
// attaches it to the cart.
func CartApplyCoupon(svc cartsvc.Service, cfg pricing.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		var payload applyCouponRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		result, err := svc.ApplyCoupon(ctx, middleware.SessionIDFromContext(ctx), validators.SanitizeString(payload.Code, 64), middleware.UserIDFromContext(ctx))
		writeMutation(w, r, logg, cfg, result, err)
	}
}

func CartRemoveCoupon(svc cartsvc.Service, cfg pricing.Config, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart service unavailable"))
			return
		}

		result, err := svc.RemoveCoupon(r.Context(), middleware.SessionIDFromContext(r.Context()))
		writeMutation(w, r, logg, cfg, result, err)
	}
}

func writeMutation(w http.ResponseWriter, r *http.Request, logg *logger.Logger, cfg pricing.Config, result *cartsvc.MutationResult, err error) {
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	if result == nil || result.Cart == nil {
		responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cart mutation returned no cart"))
		return
	}
	responses.WriteSuccess(w, newCartResponse(result.Cart, cfg, result.CouponRemoved))
}
