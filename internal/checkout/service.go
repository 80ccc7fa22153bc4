// Package checkout assembles orders from session carts. Prices, stock and
// coupons are re-read from the source of truth; the cart only names what the
// shopper wants.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/internal/orders"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/products"
	"github.com/angelmondragon/storefront-checkout/pkg/db"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox"
	"github.com/angelmondragon/storefront-checkout/pkg/outbox/payloads"
)

const orderSequenceName = "order_number"

// Unique indexes on orders, by Postgres name and by SQLite column.
const (
	idempotencyKeyIndex  = "idx_orders_idempotency_key"
	idempotencyKeyColumn = "orders.idempotency_key"
	orderNumberIndex     = "idx_orders_order_number"
	orderNumberColumn    = "orders.order_number"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type sequencer interface {
	NextSequence(ctx context.Context, name string) (int64, error)
}

type cartClearer interface {
	Clear(ctx context.Context, sessionID string) error
}

type checkoutRecorder interface {
	OrderPlaced(paymentMethod string)
	OrderFailed(code string)
	ObserveCheckout(outcome string, duration time.Duration)
}

// Service places orders.
type Service interface {
	PlaceOrder(ctx context.Context, input PlaceOrderInput) (*Result, error)
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	Tx          txRunner
	Products    *products.Repository
	Coupons     *coupons.Repository
	Validator   coupons.Validator
	Orders      orders.Repository
	Outbox      outboxPublisher
	Sequence    sequencer
	Cart        cartClearer
	Pricing     pricing.Config
	OrderPrefix string
	Metrics     checkoutRecorder
	Logger      *logger.Logger
	Clock       func() time.Time
}

type service struct {
	tx        txRunner
	products  *products.Repository
	coupons   *coupons.Repository
	validator coupons.Validator
	orders    orders.Repository
	outbox    outboxPublisher
	sequence  sequencer
	cart      cartClearer
	pricing   pricing.Config
	prefix    string
	metrics   checkoutRecorder
	logg      *logger.Logger
	now       func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Tx == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product repository required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon repository required")
	}
	if params.Validator == nil {
		return nil, fmt.Errorf("coupon validator required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if params.Sequence == nil {
		return nil, fmt.Errorf("order sequence required")
	}
	prefix := params.OrderPrefix
	if prefix == "" {
		prefix = "SO"
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Clock
	if now == nil {
		now = time.Now
	}
	return &service{
		tx:        params.Tx,
		products:  params.Products,
		coupons:   params.Coupons,
		validator: params.Validator,
		orders:    params.Orders,
		outbox:    params.Outbox,
		sequence:  params.Sequence,
		cart:      params.Cart,
		pricing:   params.Pricing,
		prefix:    prefix,
		metrics:   params.Metrics,
		logg:      logg,
		now:       now,
	}, nil
}

// PlaceOrder re-prices the cart from live data and commits stock, coupon
// usage, the order and its outbox event in one transaction.
func (s *service) PlaceOrder(ctx context.Context, input PlaceOrderInput) (*Result, error) {
	start := s.now()
	res, err := s.placeOrder(ctx, input)
	s.observe(start, res, err)
	return res, err
}

// priced is one cart line resolved against the live catalog.
type priced struct {
	selection products.Selection
	quantity  int
	price     pricing.PriceSnapshot
}

func (s *service) placeOrder(ctx context.Context, input PlaceOrderInput) (*Result, error) {
	input = input.normalize()
	if err := input.validate(); err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeUnauthorized) {
			return nil, err
		}
		return nil, s.failed(err)
	}
	ctx = s.logg.WithSessionID(ctx, input.SessionID)
	if input.UserID != nil {
		ctx = s.logg.WithUserID(ctx, *input.UserID)
	}

	if input.IdempotencyKey != "" {
		existing, err := s.orders.FindByIdempotencyKey(ctx, input.IdempotencyKey)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup idempotent order")
		}
		if existing != nil {
			return s.replay(ctx, existing, input)
		}
	}

	lines, err := s.resolveLines(ctx, input)
	if err != nil {
		return nil, s.failed(err)
	}

	applied, coupon, removal, err := s.revalidateCoupon(ctx, input, lines)
	if err != nil {
		return nil, err
	}

	totals := pricing.ComputeTotals(pricingLines(lines), applied, s.pricing)
	if totals.CouponRemoved != nil && removal == nil {
		removal = totals.CouponRemoved
		applied, coupon = nil, nil
	}
	rounded := totals.Rounded()
	if input.ClientTotal != nil && !input.ClientTotal.Round(pricing.DisplayPlaces).Equal(rounded.Total) {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"client_total": input.ClientTotal.String(),
			"server_total": rounded.Total.String(),
		}), "checkout.client_total_mismatch")
	}

	seq, err := s.sequence.NextSequence(ctx, orderSequenceName)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "allocate order number")
	}

	order := s.buildOrder(input, lines, rounded, applied, seq)

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		stock := s.products.WithTx(tx)
		for _, line := range lines {
			productID := line.selection.Product.ID
			variationID := line.selection.VariationID()
			if err := stock.DecrementStock(ctx, productID, variationID, line.quantity); err != nil {
				if !errors.Is(err, products.ErrStockShortfall) {
					return err
				}
				available, readErr := stock.CurrentStock(ctx, productID, variationID)
				if readErr != nil {
					return readErr
				}
				return products.InsufficientStock(productID, variationID, line.selection.Product.Name, available)
			}
		}

		if coupon != nil {
			if err := s.coupons.WithTx(tx).IncrementUsage(ctx, coupon.ID); err != nil {
				if errors.Is(err, coupons.ErrUsageExhausted) {
					return coupons.RejectionError(coupon.Code, enums.CouponRejectionReasonUsageExceeded)
				}
				return err
			}
		}

		if _, err := s.orders.WithTx(tx).Create(ctx, order); err != nil {
			if db.IsUniqueViolationOn(err, idempotencyKeyIndex, idempotencyKeyColumn) {
				return errDuplicateOrder
			}
			// A reset order_number counter collides with stored orders.
			// Nothing was committed, so the caller can retry.
			if db.IsUniqueViolationOn(err, orderNumberIndex, orderNumberColumn) {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order number already allocated").
					WithDetails(map[string]any{"orderNumber": order.OrderNumber})
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert order")
		}

		return s.outbox.Emit(ctx, tx, orderCreatedEvent(order, input))
	})
	if err != nil {
		if errors.Is(err, errDuplicateOrder) && input.IdempotencyKey != "" {
			existing, lookupErr := s.orders.FindByIdempotencyKey(ctx, input.IdempotencyKey)
			if lookupErr == nil && existing != nil {
				return s.replay(ctx, existing, input)
			}
		}
		return nil, s.failed(err)
	}

	logCtx := s.logg.WithOrderID(ctx, order.ID.String())
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"order_number":   order.OrderNumber,
		"total":          order.Total.StringFixed(pricing.DisplayPlaces),
		"payment_method": order.PaymentMethod,
		"item_count":     len(order.Items),
	}), "checkout.order_placed")

	if s.cart != nil {
		if err := s.cart.Clear(ctx, input.SessionID); err != nil {
			s.logg.Error(logCtx, "checkout.cart_clear_failed", err)
		}
	}

	return &Result{Order: order, CouponRemoved: removal}, nil
}

var errDuplicateOrder = errors.New("duplicate order")

// replay returns an order already stored under the same idempotency key. A
// key presented by a different session is a reuse, not a retry.
func (s *service) replay(ctx context.Context, existing *models.Order, input PlaceOrderInput) (*Result, error) {
	if existing.SessionID != input.SessionID {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key already used").
			WithDetails(map[string]any{"idempotencyKey": input.IdempotencyKey})
	}
	s.logg.Info(s.logg.WithOrderID(ctx, existing.ID.String()), "checkout.order_replayed")
	return &Result{Order: existing, Replayed: true}, nil
}

func (s *service) resolveLines(ctx context.Context, input PlaceOrderInput) ([]priced, error) {
	cache := map[uuid.UUID]*models.Product{}
	lines := make([]priced, 0, len(input.Cart.Items))
	for _, item := range input.Cart.Items {
		product, ok := cache[item.ProductID]
		if !ok {
			loaded, err := s.products.FindByID(ctx, item.ProductID)
			if err != nil {
				return nil, err
			}
			cache[item.ProductID] = loaded
			product = loaded
		}
		sel, err := products.Select(product, item.VariationID)
		if err != nil {
			return nil, err
		}
		if err := checkLive(sel, item.Quantity); err != nil {
			return nil, err
		}
		live := pricing.PriceSnapshot{RegularPrice: product.RegularPrice, SalePrice: product.SalePrice}
		if !live.UnitPrice().Equal(item.Price.UnitPrice()) {
			s.logg.Info(s.logg.WithFields(ctx, map[string]any{
				"product_id": product.ID.String(),
				"cart_price": item.Price.UnitPrice().String(),
				"live_price": live.UnitPrice().String(),
			}), "checkout.price_changed")
		}
		lines = append(lines, priced{selection: sel, quantity: item.Quantity, price: live})
	}
	return lines, nil
}

// revalidateCoupon runs the full coupon check, including the per-user limit.
// An invalid coupon is dropped rather than failing the order.
func (s *service) revalidateCoupon(ctx context.Context, input PlaceOrderInput, lines []priced) (*pricing.AppliedCoupon, *models.Coupon, *pricing.CouponRemoval, error) {
	if input.Cart.AppliedCoupon == nil {
		return nil, nil, nil, nil
	}
	code := input.Cart.AppliedCoupon.Code
	userID := ""
	if input.UserID != nil {
		userID = *input.UserID
	}
	result, err := s.validator.Validate(ctx, code, pricing.Subtotal(pricingLines(lines)), userID)
	if err != nil {
		return nil, nil, nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate coupon")
	}
	if !result.Valid {
		removal := &pricing.CouponRemoval{Code: coupons.NormalizeCode(code), Reason: result.Reason}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"coupon_code": removal.Code,
			"reason":      removal.Reason.String(),
		}), "checkout.coupon_removed")
		return nil, nil, removal, nil
	}
	return result.Applied, result.Coupon, nil, nil
}

func (s *service) buildOrder(input PlaceOrderInput, lines []priced, totals pricing.Totals, applied *pricing.AppliedCoupon, seq int64) *models.Order {
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		unit := line.price.UnitPrice()
		items = append(items, models.OrderItem{
			ProductID:      line.selection.Product.ID,
			VariationID:    line.selection.VariationID(),
			SKU:            line.selection.Product.SKU,
			Name:           line.selection.Product.Name,
			VariationLabel: line.selection.VariationLabel(),
			UnitPrice:      unit.Round(pricing.DisplayPlaces),
			Quantity:       line.quantity,
			LineTotal:      (pricing.Line{Price: line.price, Quantity: line.quantity}).LineTotal().Round(pricing.DisplayPlaces),
		})
	}

	var couponCode *string
	if applied != nil {
		code := applied.Code
		couponCode = &code
	}
	var key *string
	if input.IdempotencyKey != "" {
		k := input.IdempotencyKey
		key = &k
	}

	return &models.Order{
		ID:              uuid.New(),
		OrderNumber:     fmt.Sprintf("%s-%08d", s.prefix, seq),
		SessionID:       input.SessionID,
		UserID:          input.UserID,
		IdempotencyKey:  key,
		ShippingAddress: input.ShippingAddress,
		BillingAddress:  *input.BillingAddress,
		ShippingMethod:  input.ShippingMethod,
		Subtotal:        totals.Subtotal,
		Discount:        totals.Discount,
		ShippingCost:    totals.Shipping,
		VAT:             totals.VAT,
		Total:           totals.Total,
		CouponCode:      couponCode,
		PaymentMethod:   input.PaymentMethod,
		PaymentStatus:   input.PaymentMethod.InitialPaymentStatus(),
		Status:          enums.OrderStatusPending,
		Items:           items,
	}
}

func orderCreatedEvent(order *models.Order, input PlaceOrderInput) outbox.DomainEvent {
	count := 0
	for _, item := range order.Items {
		count += item.Quantity
	}
	return outbox.DomainEvent{
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{SessionID: input.SessionID, UserID: input.UserID, Role: "shopper"},
		Data: payloads.OrderCreatedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			SessionID:     order.SessionID,
			UserID:        order.UserID,
			Total:         order.Total.StringFixed(pricing.DisplayPlaces),
			CouponCode:    order.CouponCode,
			PaymentMethod: order.PaymentMethod,
			PaymentStatus: order.PaymentStatus,
			ItemCount:     count,
			ContactName:   order.ShippingAddress.Name,
			ContactMobile: order.ShippingAddress.Mobile,
			ContactEmail:  order.ShippingAddress.Email,
		},
	}
}

// failed wraps business failures as order_creation_failed. Timeouts and
// infrastructure errors stay retryable.
func (s *service) failed(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout timed out")
	}
	if errors.Is(err, errDuplicateOrder) {
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already exists")
	}
	typed := pkgerrors.As(err)
	if typed == nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "place order")
	}
	switch typed.Code() {
	case pkgerrors.CodeDependency, pkgerrors.CodeInternal:
		return err
	}
	return pkgerrors.OrderCreationFailed(err)
}

func (s *service) observe(start time.Time, res *Result, err error) {
	if s.metrics == nil {
		return
	}
	elapsed := s.now().Sub(start)
	switch {
	case err != nil:
		code := string(pkgerrors.CodeInternal)
		if typed := pkgerrors.As(err); typed != nil {
			code = string(typed.Code())
			if details, ok := typed.Details().(map[string]any); ok && typed.Code() == pkgerrors.CodeOrderCreationFailed {
				if cause, ok := details["cause"].(string); ok {
					code = cause
				}
			}
		}
		s.metrics.OrderFailed(code)
		s.metrics.ObserveCheckout("failure", elapsed)
	case res.Replayed:
		s.metrics.ObserveCheckout("replayed", elapsed)
	default:
		s.metrics.OrderPlaced(res.Order.PaymentMethod.String())
		s.metrics.ObserveCheckout("success", elapsed)
	}
}

// checkLive compares against the freshly loaded stock figure. A line that
// lost a race for the last units reports insufficient stock, not a sold-out
// listing.
func checkLive(sel products.Selection, qty int) error {
	if qty > sel.Stock() {
		return products.InsufficientStock(sel.Product.ID, sel.VariationID(), sel.Product.Name, sel.Stock())
	}
	if sel.Product.Availability == enums.AvailabilityOutOfStock {
		return products.OutOfStock(sel.Product.ID, sel.VariationID(), sel.Product.Name)
	}
	return nil
}

func pricingLines(lines []priced) []pricing.Line {
	out := make([]pricing.Line, 0, len(lines))
	for _, line := range lines {
		out = append(out, pricing.Line{Price: line.price, Quantity: line.quantity})
	}
	return out
}
