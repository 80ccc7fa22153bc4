package products

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-checkout/pkg/db/models"
	"github.com/angelmondragon/storefront-checkout/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-checkout/pkg/errors"
)

// Selection is a product plus the optional variation a shopper picked.
type Selection struct {
	Product   *models.Product
	Variation *models.ProductVariation
}

// Select resolves the variation on product. An unknown variation id is a
// validation error.
func Select(product *models.Product, variationID *uuid.UUID) (Selection, error) {
	sel := Selection{Product: product}
	if variationID == nil {
		return sel, nil
	}
	variation, ok := product.Variation(*variationID)
	if !ok {
		return sel, pkgerrors.New(pkgerrors.CodeValidation, "variation does not belong to product").
			WithDetails(map[string]any{"productId": product.ID.String(), "variationId": variationID.String()})
	}
	sel.Variation = variation
	return sel, nil
}

// Stock is the figure a quantity is checked against: the variation stock
// capped by the product total when a variation is selected, else the product
// total. Checkout's conditional decrement enforces the same pair.
func (s Selection) Stock() int {
	if s.Variation != nil {
		return min(s.Variation.Stock, s.Product.TotalStock)
	}
	return s.Product.TotalStock
}

// VariationID returns the selected variation id, if any.
func (s Selection) VariationID() *uuid.UUID {
	if s.Variation == nil {
		return nil
	}
	id := s.Variation.ID
	return &id
}

// VariationLabel returns the display label of the selection.
func (s Selection) VariationLabel() string {
	if s.Variation == nil {
		return ""
	}
	return s.Variation.Label()
}

// Check verifies qty units can be sold right now.
func (s Selection) Check(qty int) error {
	if s.Product.Availability == enums.AvailabilityOutOfStock || s.Stock() <= 0 {
		return OutOfStock(s.Product.ID, s.VariationID(), s.Product.Name)
	}
	if qty > s.Stock() {
		return InsufficientStock(s.Product.ID, s.VariationID(), s.Product.Name, s.Stock())
	}
	return nil
}

// OutOfStock builds the error returned when nothing can be sold.
func OutOfStock(productID uuid.UUID, variationID *uuid.UUID, name string) error {
	return pkgerrors.New(pkgerrors.CodeOutOfStock, fmt.Sprintf("%s is out of stock", name)).
		WithDetails(stockDetails(productID, variationID, name, 0))
}

// InsufficientStock builds the error returned when fewer units remain than requested.
func InsufficientStock(productID uuid.UUID, variationID *uuid.UUID, name string, available int) error {
	if available < 0 {
		available = 0
	}
	return pkgerrors.New(pkgerrors.CodeInsufficientStock, fmt.Sprintf("Only %d units available", available)).
		WithDetails(stockDetails(productID, variationID, name, available))
}

func stockDetails(productID uuid.UUID, variationID *uuid.UUID, name string, available int) map[string]any {
	details := map[string]any{
		"productId": productID.String(),
		"name":      name,
		"available": available,
	}
	if variationID != nil {
		details["variationId"] = variationID.String()
	}
	return details
}
