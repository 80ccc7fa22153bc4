package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
	"github.com/angelmondragon/storefront-checkout/pkg/logger"
)

type couponFinder interface {
	FindByCode(ctx context.Context, code string) (*models.Coupon, error)
}

// RedemptionCounter reports how many live orders a user placed with a coupon.
type RedemptionCounter interface {
	CountCouponRedemptions(ctx context.Context, code, userID string) (int64, error)
}

type rejectionRecorder interface {
	CouponRejected(reason string)
}

// Result is the outcome of a validation. Reason is set only when Valid is false.
type Result struct {
	Valid          bool                        `json:"valid"`
	Coupon         *models.Coupon              `json:"-"`
	Applied        *pricing.AppliedCoupon      `json:"coupon,omitempty"`
	DiscountAmount *decimal.Decimal            `json:"discountAmount,omitempty"`
	Reason         enums.CouponRejectionReason `json:"reason,omitempty"`
}

// Validator checks coupon eligibility against a subtotal.
type Validator interface {
	Validate(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (Result, error)
}

type validator struct {
	coupons     couponFinder
	redemptions RedemptionCounter
	metrics     rejectionRecorder
	logg        *logger.Logger
	now         func() time.Time
}

// Option customises the validator.
type Option func(*validator)

// WithClock overrides the time source used for the date window.
func WithClock(now func() time.Time) Option {
	return func(v *validator) {
		if now != nil {
			v.now = now
		}
	}
}

// WithRedemptionCounter enables the per-user limit check.
func WithRedemptionCounter(counter RedemptionCounter) Option {
	return func(v *validator) {
		v.redemptions = counter
	}
}

// WithMetrics records rejections by reason.
func WithMetrics(recorder rejectionRecorder) Option {
	return func(v *validator) {
		v.metrics = recorder
	}
}

// NewValidator builds a coupon validator.
func NewValidator(coupons couponFinder, logg *logger.Logger, opts ...Option) (Validator, error) {
	if coupons == nil {
		return nil, fmt.Errorf("coupon finder required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	v := &validator{
		coupons: coupons,
		logg:    logg,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v, nil
}

// NormalizeCode trims and upper-cases a shopper-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks, in order: the code exists, the coupon is enabled, now is
// within [StartDate, EndDate] (inclusive, UTC), subtotal meets the minimum,
// global usage is below the limit, and per-user redemptions are below the
// per-user limit when a user is known.
func (v *validator) Validate(ctx context.Context, code string, subtotal decimal.Decimal, userID string) (Result, error) {
	normalized := NormalizeCode(code)
	if normalized == "" {
		return v.reject(ctx, normalized, enums.CouponRejectionReasonInvalidCode), nil
	}

	coupon, err := v.coupons.FindByCode(ctx, normalized)
	if err != nil {
		return Result{}, err
	}
	if coupon == nil {
		return v.reject(ctx, normalized, enums.CouponRejectionReasonInvalidCode), nil
	}

	if reason, ok := Eligible(coupon, subtotal, v.now()); !ok {
		return v.reject(ctx, normalized, reason), nil
	}

	if userID != "" && coupon.UsageLimitPerUser > 0 && v.redemptions != nil {
		used, err := v.redemptions.CountCouponRedemptions(ctx, coupon.Code, userID)
		if err != nil {
			return Result{}, err
		}
		if used >= int64(coupon.UsageLimitPerUser) {
			return v.reject(ctx, normalized, enums.CouponRejectionReasonUsageExceeded), nil
		}
	}

	applied := Apply(coupon, subtotal)
	return Result{
		Valid:          true,
		Coupon:         coupon,
		Applied:        &applied,
		DiscountAmount: &applied.DiscountAmount,
	}, nil
}

func (v *validator) reject(ctx context.Context, code string, reason enums.CouponRejectionReason) Result {
	if v.metrics != nil {
		v.metrics.CouponRejected(reason.String())
	}
	v.logg.Info(v.logg.WithFields(ctx, map[string]any{
		"coupon_code": code,
		"reason":      reason.String(),
	}), "coupon.rejected")
	return Result{Valid: false, Reason: reason}
}

// Eligible runs the stateless checks in order and returns the first failing
// reason.
func Eligible(coupon *models.Coupon, subtotal decimal.Decimal, now time.Time) (enums.CouponRejectionReason, bool) {
	if !coupon.Enabled {
		return enums.CouponRejectionReasonDisabled, false
	}
	if !WithinWindow(coupon, now) {
		return enums.CouponRejectionReasonExpired, false
	}
	if subtotal.LessThan(coupon.MinPurchaseAmount) {
		return enums.CouponRejectionReasonBelowMinimum, false
	}
	if coupon.UsageLimit != nil && coupon.UsedCount >= *coupon.UsageLimit {
		return enums.CouponRejectionReasonUsageExceeded, false
	}
	return "", true
}

// WithinWindow reports StartDate <= now <= EndDate using full timestamps in UTC.
func WithinWindow(coupon *models.Coupon, now time.Time) bool {
	now = now.UTC()
	return !now.Before(coupon.StartDate.UTC()) && !now.After(coupon.EndDate.UTC())
}

// Apply snapshots the coupon terms and the discount it yields on subtotal.
func Apply(coupon *models.Coupon, subtotal decimal.Decimal) pricing.AppliedCoupon {
	applied := pricing.AppliedCoupon{
		Code:              coupon.Code,
		DiscountType:      coupon.DiscountType,
		DiscountValue:     coupon.DiscountValue,
		MinPurchaseAmount: coupon.MinPurchaseAmount,
	}
	if coupon.MaxDiscountAmount != nil {
		limit := *coupon.MaxDiscountAmount
		applied.MaxDiscountAmount = &limit
	}
	applied.DiscountAmount = pricing.Discount(applied.DiscountType, applied.DiscountValue, applied.MaxDiscountAmount, subtotal)
	return applied
}

// RejectionError converts a failed result into a coupon_rejected error.
func RejectionError(code string, reason enums.CouponRejectionReason) error {
	return pkgerrors.New(pkgerrors.CodeCouponRejected, rejectionMessage(reason)).
		WithDetails(map[string]any{
			"code":   NormalizeCode(code),
			"reason": reason.String(),
		})
}

func rejectionMessage(reason enums.CouponRejectionReason) string {
	switch reason {
	case enums.CouponRejectionReasonInvalidCode:
		return "coupon code is not valid"
	case enums.CouponRejectionReasonDisabled:
		return "coupon is not active"
	case enums.CouponRejectionReasonExpired:
		return "coupon is outside its validity period"
	case enums.CouponRejectionReasonBelowMinimum:
		return "order does not meet the coupon minimum purchase"
	case enums.CouponRejectionReasonUsageExceeded:
		return "coupon usage limit reached"
	default:
		return "coupon rejected"
	}
}
