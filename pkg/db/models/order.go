package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// Order is the immutable snapshot written at checkout. Only Status and
// TrackingNumber change afterwards.
type Order struct {
	ID              uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string               `gorm:"column:order_number;not null;uniqueIndex"`
	SessionID       string               `gorm:"column:session_id;not null;index"`
	UserID          *string              `gorm:"column:user_id;index"`
	IdempotencyKey  *string              `gorm:"column:idempotency_key;uniqueIndex"`
	ShippingAddress types.Address        `gorm:"column:shipping_address;type:jsonb;not null"`
	BillingAddress  types.Address        `gorm:"column:billing_address;type:jsonb;not null"`
	ShippingMethod  enums.ShippingMethod `gorm:"column:shipping_method;type:shipping_method;not null"`
	Subtotal        decimal.Decimal      `gorm:"column:subtotal;type:numeric(12,2);not null"`
	Discount        decimal.Decimal      `gorm:"column:discount;type:numeric(12,2);not null"`
	ShippingCost    decimal.Decimal      `gorm:"column:shipping_cost;type:numeric(12,2);not null"`
	VAT             decimal.Decimal      `gorm:"column:vat;type:numeric(12,2);not null"`
	Total           decimal.Decimal      `gorm:"column:total;type:numeric(12,2);not null"`
	CouponCode      *string              `gorm:"column:coupon_code;index"`
	PaymentMethod   enums.PaymentMethod  `gorm:"column:payment_method;type:payment_method;not null"`
	PaymentStatus   enums.PaymentStatus  `gorm:"column:payment_status;type:payment_status;not null"`
	Status          enums.OrderStatus    `gorm:"column:status;type:order_status;not null"`
	TrackingNumber  *string              `gorm:"column:tracking_number"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt       time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	ensureID(&o.ID)
	return nil
}

// OrderItem copies name and price at order time instead of referencing the
// live product.
type OrderItem struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID       `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID       `gorm:"column:product_id;type:uuid;not null"`
	VariationID    *uuid.UUID      `gorm:"column:variation_id;type:uuid"`
	SKU            string          `gorm:"column:sku;not null"`
	Name           string          `gorm:"column:name;not null"`
	VariationLabel string          `gorm:"column:variation_label;not null;default:''"`
	UnitPrice      decimal.Decimal `gorm:"column:unit_price;type:numeric(12,2);not null"`
	Quantity       int             `gorm:"column:quantity;not null"`
	LineTotal      decimal.Decimal `gorm:"column:line_total;type:numeric(12,2);not null"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	ensureID(&i.ID)
	return nil
}
