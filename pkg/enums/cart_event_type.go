package enums

import "fmt"

// CartEventType labels the notifications emitted after cart mutations.
type CartEventType string

const (
	CartEventUpdated       CartEventType = "cart.updated"
	CartEventCleared       CartEventType = "cart.cleared"
	CartEventCouponRemoved CartEventType = "cart.coupon_removed"
)

var validCartEventTypes = []CartEventType{
	CartEventUpdated,
	CartEventCleared,
	CartEventCouponRemoved,
}

// String implements fmt.Stringer.
func (c CartEventType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CartEventType.
func (c CartEventType) IsValid() bool {
	for _, candidate := range validCartEventTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCartEventType converts raw input into a CartEventType.
func ParseCartEventType(value string) (CartEventType, error) {
	for _, candidate := range validCartEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cart event type %q", value)
}
