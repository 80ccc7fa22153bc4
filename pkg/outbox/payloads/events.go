package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
)

// OrderCreatedEvent is consumed by notification and fulfilment services.
// Money fields are decimal strings rounded to two places.
type OrderCreatedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	SessionID     string              `json:"session_id"`
	UserID        *string             `json:"user_id,omitempty"`
	Total         string              `json:"total"`
	CouponCode    *string             `json:"coupon_code,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	ItemCount     int                 `json:"item_count"`
	ContactName   string              `json:"contact_name"`
	ContactMobile string              `json:"contact_mobile"`
	ContactEmail  *string             `json:"contact_email,omitempty"`
}

// OrderStatusChangedEvent records an order status/tracking transition.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	OrderNumber    string            `json:"order_number"`
	From           enums.OrderStatus `json:"from"`
	To             enums.OrderStatus `json:"to"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
}
