package cart

import "github.com/google/uuid"

type addItemRequest struct {
	ProductID   uuid.UUID  `json:"productId" validate:"required"`
	VariationID *uuid.UUID `json:"variationId,omitempty"`
	Quantity    int        `json:"quantity" validate:"required,min=1"`
}

// Quantity 0 is a removal, so only negatives are rejected here.
type updateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required,min=0"`
}

type applyCouponRequest struct {
	Code string `json:"code" validate:"required"`
}
