// Package cart keeps a shopper's cart in Redis, keyed by session, and
// applies the stock and coupon rules on every edit.
package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-checkout/internal/pricing"
)

// Item is one cart line. Name and VariationLabel are display copies taken
// when the line was last refreshed.
type Item struct {
	LineID         uuid.UUID             `json:"lineId"`
	ProductID      uuid.UUID             `json:"productId"`
	VariationID    *uuid.UUID            `json:"variationId,omitempty"`
	Name           string                `json:"name"`
	VariationLabel string                `json:"variationLabel,omitempty"`
	Quantity       int                   `json:"quantity"`
	Price          pricing.PriceSnapshot `json:"priceSnapshot"`
}

// Line converts the item into its pricing input.
func (i Item) Line() pricing.Line {
	return pricing.Line{Price: i.Price, Quantity: i.Quantity}
}

// Matches reports whether the item holds the given product and variation.
func (i Item) Matches(productID uuid.UUID, variationID *uuid.UUID) bool {
	if i.ProductID != productID {
		return false
	}
	if i.VariationID == nil || variationID == nil {
		return i.VariationID == nil && variationID == nil
	}
	return *i.VariationID == *variationID
}

// Cart is the session-owned cart value. Version increases on every write.
type Cart struct {
	SessionID     string                 `json:"sessionId"`
	Items         []Item                 `json:"items"`
	AppliedCoupon *pricing.AppliedCoupon `json:"appliedCoupon,omitempty"`
	Version       int64                  `json:"version"`
	UpdatedAt     time.Time              `json:"updatedAt"`
}

// New returns the empty cart for a session.
func New(sessionID string) *Cart {
	return &Cart{SessionID: sessionID, Items: []Item{}}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// Lines returns the pricing input for every item.
func (c *Cart) Lines() []pricing.Line {
	lines := make([]pricing.Line, 0, len(c.Items))
	for _, item := range c.Items {
		lines = append(lines, item.Line())
	}
	return lines
}

func (c *Cart) Subtotal() decimal.Decimal {
	return pricing.Subtotal(c.Lines())
}

// Totals prices the cart with its applied coupon.
func (c *Cart) Totals(cfg pricing.Config) pricing.Totals {
	return pricing.ComputeTotals(c.Lines(), c.AppliedCoupon, cfg)
}

// ItemCount is the number of units across all lines.
func (c *Cart) ItemCount() int {
	n := 0
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c *Cart) indexOfLine(lineID uuid.UUID) int {
	for i, item := range c.Items {
		if item.LineID == lineID {
			return i
		}
	}
	return -1
}

func (c *Cart) indexOfSelection(productID uuid.UUID, variationID *uuid.UUID) int {
	for i, item := range c.Items {
		if item.Matches(productID, variationID) {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(idx int) {
	c.Items = append(c.Items[:idx], c.Items[idx+1:]...)
}
