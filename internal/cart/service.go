package cart

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/internal/coupons"
	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/internal/products"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

const (
	opAddItem        = "add_item"
	opUpdateQuantity = "update_quantity"
	opRemoveItem     = "remove_item"
	opClear          = "clear"
	opApplyCoupon    = "apply_coupon"
	opRemoveCoupon   = "remove_coupon"
)

type productLoader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

type mutationRecorder interface {
	CartMutation(op string, ok bool)
}

// Service exposes the session cart operations.
type Service interface {
	Get(ctx context.Context, sessionID string) (*Cart, error)
	AddItem(ctx context.Context, input AddItemInput) (*MutationResult, error)
	UpdateQuantity(ctx context.Context, sessionID string, lineID uuid.UUID, quantity int) (*MutationResult, error)
	RemoveItem(ctx context.Context, sessionID string, lineID uuid.UUID) (*MutationResult, error)
	Clear(ctx context.Context, sessionID string) error
	ApplyCoupon(ctx context.Context, sessionID, code, userID string) (*MutationResult, error)
	RemoveCoupon(ctx context.Context, sessionID string) (*MutationResult, error)
}

// AddItemInput identifies what to add to the session cart.
type AddItemInput struct {
	SessionID   string
	ProductID   uuid.UUID
	VariationID *uuid.UUID
	Quantity    int
}

// MutationResult is the cart after a write. CouponRemoved is set when the
// edit invalidated the applied coupon.
type MutationResult struct {
	Cart          *Cart                  `json:"cart"`
	CouponRemoved *pricing.CouponRemoval `json:"couponRemoved,omitempty"`
}

type service struct {
	repo      Repository
	products  productLoader
	validator coupons.Validator
	notifier  Notifier
	metrics   mutationRecorder
	logg      *logger.Logger
	now       func() time.Time
}

// ServiceParams wires the cart service.
type ServiceParams struct {
	Repository Repository
	Products   productLoader
	Coupons    coupons.Validator
	Notifier   Notifier
	Metrics    mutationRecorder
	Logger     *logger.Logger
	Clock      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if params.Products == nil {
		return nil, fmt.Errorf("product loader required")
	}
	if params.Coupons == nil {
		return nil, fmt.Errorf("coupon validator required")
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
		repo:      params.Repository,
		products:  params.Products,
		validator: params.Coupons,
		notifier:  params.Notifier,
		metrics:   params.Metrics,
		logg:      logg,
		now:       now,
	}, nil
}

// Get returns the session cart, or an empty version-0 cart when none exists.
func (s *service) Get(ctx context.Context, sessionID string) (*Cart, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	return s.load(ctx, sessionID)
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*MutationResult, error) {
	res, err := s.addItem(ctx, input)
	s.record(opAddItem, err)
	return res, err
}

func (s *service) addItem(ctx context.Context, input AddItemInput) (*MutationResult, error) {
	if err := requireSession(input.SessionID); err != nil {
		return nil, err
	}
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}

	sel, err := s.selection(ctx, input.ProductID, input.VariationID)
	if err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	idx := cart.indexOfSelection(input.ProductID, input.VariationID)
	combined := input.Quantity
	if idx >= 0 {
		combined += cart.Items[idx].Quantity
	}
	if err := sel.Check(combined); err != nil {
		return nil, err
	}

	if idx >= 0 {
		refreshItem(&cart.Items[idx], sel)
		cart.Items[idx].Quantity = combined
	} else {
		item := Item{LineID: uuid.New(), ProductID: input.ProductID, Quantity: combined}
		refreshItem(&item, sel)
		cart.Items = append(cart.Items, item)
	}
	return s.commit(ctx, cart, true)
}

// UpdateQuantity sets a line's quantity. Anything below 1 removes the line.
// On a stock failure the stored cart is left untouched.
func (s *service) UpdateQuantity(ctx context.Context, sessionID string, lineID uuid.UUID, quantity int) (*MutationResult, error) {
	res, err := s.updateQuantity(ctx, sessionID, lineID, quantity)
	s.record(opUpdateQuantity, err)
	return res, err
}

func (s *service) updateQuantity(ctx context.Context, sessionID string, lineID uuid.UUID, quantity int) (*MutationResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := cart.indexOfLine(lineID)
	if idx < 0 {
		return nil, lineNotFound(lineID)
	}

	if quantity < 1 {
		cart.removeAt(idx)
		return s.commit(ctx, cart, true)
	}

	item := cart.Items[idx]
	sel, err := s.selection(ctx, item.ProductID, item.VariationID)
	if err != nil {
		return nil, err
	}
	if err := sel.Check(quantity); err != nil {
		return nil, err
	}
	refreshItem(&cart.Items[idx], sel)
	cart.Items[idx].Quantity = quantity
	return s.commit(ctx, cart, true)
}

func (s *service) RemoveItem(ctx context.Context, sessionID string, lineID uuid.UUID) (*MutationResult, error) {
	res, err := s.removeItem(ctx, sessionID, lineID)
	s.record(opRemoveItem, err)
	return res, err
}

func (s *service) removeItem(ctx context.Context, sessionID string, lineID uuid.UUID) (*MutationResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	idx := cart.indexOfLine(lineID)
	if idx < 0 {
		return nil, lineNotFound(lineID)
	}
	cart.removeAt(idx)
	return s.commit(ctx, cart, true)
}

// Clear deletes the session cart.
func (s *service) Clear(ctx context.Context, sessionID string) error {
	err := s.clear(ctx, sessionID)
	s.record(opClear, err)
	return err
}

func (s *service) clear(ctx context.Context, sessionID string) error {
	if err := requireSession(sessionID); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return err
	}
	s.notify(ctx, Event{
		Type:       enums.CartEventCleared,
		SessionID:  sessionID,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// ApplyCoupon validates code against the current subtotal and attaches it.
func (s *service) ApplyCoupon(ctx context.Context, sessionID, code, userID string) (*MutationResult, error) {
	res, err := s.applyCoupon(ctx, sessionID, code, userID)
	s.record(opApplyCoupon, err)
	return res, err
}

func (s *service) applyCoupon(ctx context.Context, sessionID, code, userID string) (*MutationResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart.AppliedCoupon != nil {
		return nil, pkgerrors.New(pkgerrors.CodeCouponAlreadyApplied, "remove the current coupon before applying another").
			WithDetails(map[string]any{"code": cart.AppliedCoupon.Code})
	}

	result, err := s.validator.Validate(ctx, code, cart.Subtotal(), userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate coupon")
	}
	if !result.Valid {
		return nil, coupons.RejectionError(code, result.Reason)
	}
	cart.AppliedCoupon = result.Applied
	return s.commit(ctx, cart, false)
}

func (s *service) RemoveCoupon(ctx context.Context, sessionID string) (*MutationResult, error) {
	res, err := s.removeCoupon(ctx, sessionID)
	s.record(opRemoveCoupon, err)
	return res, err
}

func (s *service) removeCoupon(ctx context.Context, sessionID string) (*MutationResult, error) {
	if err := requireSession(sessionID); err != nil {
		return nil, err
	}
	cart, err := s.load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	cart.AppliedCoupon = nil
	return s.commit(ctx, cart, false)
}

func (s *service) load(ctx context.Context, sessionID string) (*Cart, error) {
	cart, err := s.repo.Load(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return New(sessionID), nil
	}
	return cart, nil
}

func (s *service) selection(ctx context.Context, productID uuid.UUID, variationID *uuid.UUID) (products.Selection, error) {
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return products.Selection{}, err
	}
	return products.Select(product, variationID)
}

// commit re-checks the applied coupon when items changed, bumps the version,
// persists and notifies.
func (s *service) commit(ctx context.Context, cart *Cart, itemsChanged bool) (*MutationResult, error) {
	result := &MutationResult{Cart: cart}
	if itemsChanged && cart.AppliedCoupon != nil {
		result.CouponRemoved = s.revalidateCoupon(ctx, cart)
	}

	cart.Version++
	cart.UpdatedAt = s.now().UTC()
	if err := s.repo.Save(ctx, cart); err != nil {
		return nil, err
	}

	event := Event{
		Type:       enums.CartEventUpdated,
		SessionID:  cart.SessionID,
		Version:    cart.Version,
		ItemCount:  cart.ItemCount(),
		OccurredAt: cart.UpdatedAt,
	}
	s.notify(ctx, event)
	if result.CouponRemoved != nil {
		event.Type = enums.CartEventCouponRemoved
		event.CouponRemoved = result.CouponRemoved
		s.notify(ctx, event)
	}
	return result, nil
}

// revalidateCoupon runs the full coupon check against the new subtotal. When
// the coupon store is unreachable only the minimum purchase is re-checked.
func (s *service) revalidateCoupon(ctx context.Context, cart *Cart) *pricing.CouponRemoval {
	applied := *cart.AppliedCoupon
	subtotal := cart.Subtotal()

	result, err := s.validator.Validate(ctx, applied.Code, subtotal, "")
	if err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"coupon_code": applied.Code,
			"error":       err.Error(),
		}), "coupon revalidation degraded to minimum check")
		refreshed, ok := applied.Reapply(subtotal)
		if ok {
			cart.AppliedCoupon = &refreshed
			return nil
		}
		return s.dropCoupon(ctx, cart, enums.CouponRejectionReasonBelowMinimum)
	}
	if !result.Valid {
		return s.dropCoupon(ctx, cart, result.Reason)
	}
	cart.AppliedCoupon = result.Applied
	return nil
}

func (s *service) dropCoupon(ctx context.Context, cart *Cart, reason enums.CouponRejectionReason) *pricing.CouponRemoval {
	removal := &pricing.CouponRemoval{Code: cart.AppliedCoupon.Code, Reason: reason}
	cart.AppliedCoupon = nil
	logCtx := s.logg.WithSessionID(ctx, cart.SessionID)
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"coupon_code": removal.Code,
		"reason":      reason.String(),
	}), "cart.coupon_removed")
	return removal
}

func (s *service) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, event); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"event_type": event.Type,
			"error":      err.Error(),
		}), "cart notification failed")
	}
}

func (s *service) record(op string, err error) {
	if s.metrics != nil {
		s.metrics.CartMutation(op, err == nil)
	}
}

func refreshItem(item *Item, sel products.Selection) {
	item.Name = sel.Product.Name
	item.VariationID = sel.VariationID()
	item.VariationLabel = sel.VariationLabel()
	item.Price = pricing.PriceSnapshot{
		RegularPrice: sel.Product.RegularPrice,
		SalePrice:    sel.Product.SalePrice,
	}
}

func requireSession(sessionID string) error {
	if strings.TrimSpace(sessionID) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "session required")
	}
	return nil
}

func lineNotFound(lineID uuid.UUID) error {
	return pkgerrors.New(pkgerrors.CodeNotFound, "cart line not found").
		WithDetails(map[string]any{"lineId": lineID.String()})
}
