package enums

import "fmt"

// CouponRejectionReason explains why a coupon could not be applied.
type CouponRejectionReason string

const (
	CouponRejectionReasonInvalidCode   CouponRejectionReason = "invalid_code"
	CouponRejectionReasonDisabled      CouponRejectionReason = "disabled"
	CouponRejectionReasonExpired       CouponRejectionReason = "expired"
	CouponRejectionReasonBelowMinimum  CouponRejectionReason = "below_minimum"
	CouponRejectionReasonUsageExceeded CouponRejectionReason = "usage_exceeded"
)

var validCouponRejectionReasons = []CouponRejectionReason{
	CouponRejectionReasonInvalidCode,
	CouponRejectionReasonDisabled,
	CouponRejectionReasonExpired,
	CouponRejectionReasonBelowMinimum,
	CouponRejectionReasonUsageExceeded,
}

// String implements fmt.Stringer.
func (c CouponRejectionReason) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CouponRejectionReason.
func (c CouponRejectionReason) IsValid() bool {
	for _, candidate := range validCouponRejectionReasons {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCouponRejectionReason converts raw input into a CouponRejectionReason.
func ParseCouponRejectionReason(value string) (CouponRejectionReason, error) {
	for _, candidate := range validCouponRejectionReasons {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coupon rejection reason %q", value)
}
