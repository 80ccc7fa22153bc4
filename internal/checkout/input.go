package checkout

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/cart"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// PlaceOrderInput is everything needed to turn a session cart into an order.
// ClientTotal is what the shopper saw; it is compared, never trusted.
type PlaceOrderInput struct {
	SessionID       string
	UserID          *string
	Cart            *cart.Cart
	ShippingAddress types.Address
	BillingAddress  *types.Address
	ShippingMethod  enums.ShippingMethod
	PaymentMethod   enums.PaymentMethod
	IdempotencyKey  string
	ClientTotal     *decimal.Decimal
}

// Result is the committed (or replayed) order. CouponRemoved is set when the
// cart's coupon no longer qualified and the order was priced without it.
type Result struct {
	Order         *models.Order
	CouponRemoved *pricing.CouponRemoval
	Replayed      bool
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	return v
}

// normalize trims free text and fills the billing address from shipping.
func (in PlaceOrderInput) normalize() PlaceOrderInput {
	in.SessionID = strings.TrimSpace(in.SessionID)
	in.IdempotencyKey = strings.TrimSpace(in.IdempotencyKey)
	if in.UserID != nil {
		uid := strings.TrimSpace(*in.UserID)
		if uid == "" {
			in.UserID = nil
		} else {
			in.UserID = &uid
		}
	}
	in.ShippingAddress = in.ShippingAddress.Normalize()
	if in.BillingAddress == nil || in.BillingAddress.IsZero() {
		billing := in.ShippingAddress
		in.BillingAddress = &billing
	} else {
		billing := in.BillingAddress.Normalize()
		in.BillingAddress = &billing
	}
	return in
}

func (in PlaceOrderInput) validate() error {
	if in.SessionID == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	if in.Cart == nil || in.Cart.IsEmpty() {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	details := map[string]string{}
	collectAddressErrors(details, "shippingAddress", in.ShippingAddress)
	if in.BillingAddress != nil {
		collectAddressErrors(details, "billingAddress", *in.BillingAddress)
	}
	if !in.PaymentMethod.IsValid() {
		details["paymentMethod"] = "must be one of cod, card, bkash, bank_transfer"
	}
	if !in.ShippingMethod.IsValid() {
		details["shippingMethod"] = "must be one of standard, express"
	}
	for _, item := range in.Cart.Items {
		if item.Quantity < 1 {
			details["items"] = "every line needs a quantity of at least 1"
			break
		}
	}
	if len(details) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "checkout details are incomplete").WithDetails(details)
	}
	return nil
}

func collectAddressErrors(details map[string]string, prefix string, addr types.Address) {
	err := validate.Struct(addr)
	if err == nil {
		return
	}
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		details[prefix] = "is invalid"
		return
	}
	for _, fe := range errs {
		details[fmt.Sprintf("%s.%s", prefix, fe.Field())] = validationMessage(fe)
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email"
	}
	return "is invalid"
}
