package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	"github.com/angelmondragon/storefront-checkout/pkg/types"
)

// OrderDTO is the wire representation of an order. Money is rendered as
// fixed two-place decimal strings.
type OrderDTO struct {
	ID              uuid.UUID            `json:"id"`
	OrderNumber     string               `json:"orderNumber"`
	Status          enums.OrderStatus    `json:"status"`
	PaymentMethod   enums.PaymentMethod  `json:"paymentMethod"`
	PaymentStatus   enums.PaymentStatus  `json:"paymentStatus"`
	ShippingMethod  enums.ShippingMethod `json:"shippingMethod"`
	ShippingAddress types.Address        `json:"shippingAddress"`
	BillingAddress  types.Address        `json:"billingAddress"`
	Items           []OrderItemDTO       `json:"items"`
	Subtotal        string               `json:"subtotal"`
	Discount        string               `json:"discount"`
	ShippingCost    string               `json:"shippingCost"`
	VAT             string               `json:"vat"`
	Total           string               `json:"total"`
	CouponCode      *string              `json:"couponCode,omitempty"`
	TrackingNumber  *string              `json:"trackingNumber,omitempty"`
	CreatedAt       time.Time            `json:"createdAt"`
	UpdatedAt       time.Time            `json:"updatedAt"`
}

type OrderItemDTO struct {
	ProductID      uuid.UUID  `json:"productId"`
	VariationID    *uuid.UUID `json:"variationId,omitempty"`
	SKU            string     `json:"sku"`
	Name           string     `json:"name"`
	VariationLabel string     `json:"variationLabel,omitempty"`
	UnitPrice      string     `json:"unitPrice"`
	Quantity       int        `json:"quantity"`
	LineTotal      string     `json:"lineTotal"`
}

// NewOrderDTO maps a persisted order to its response shape.
func NewOrderDTO(order *models.Order) OrderDTO {
	items := make([]OrderItemDTO, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, OrderItemDTO{
			ProductID:      item.ProductID,
			VariationID:    item.VariationID,
			SKU:            item.SKU,
			Name:           item.Name,
			VariationLabel: item.VariationLabel,
			UnitPrice:      money(item.UnitPrice),
			Quantity:       item.Quantity,
			LineTotal:      money(item.LineTotal),
		})
	}
	return OrderDTO{
		ID:              order.ID,
		OrderNumber:     order.OrderNumber,
		Status:          order.Status,
		PaymentMethod:   order.PaymentMethod,
		PaymentStatus:   order.PaymentStatus,
		ShippingMethod:  order.ShippingMethod,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Items:           items,
		Subtotal:        money(order.Subtotal),
		Discount:        money(order.Discount),
		ShippingCost:    money(order.ShippingCost),
		VAT:             money(order.VAT),
		Total:           money(order.Total),
		CouponCode:      order.CouponCode,
		TrackingNumber:  order.TrackingNumber,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

func money(d decimal.Decimal) string {
	return d.StringFixed(pricing.DisplayPlaces)
}
