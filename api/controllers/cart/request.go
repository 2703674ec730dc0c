package cart

import "github.com/google/uuid"

// AddItemRequest adds units of a variant to the active cart.
type AddItemRequest struct {
	VariantID uuid.UUID `json:"variantId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,min=1"`
}

// UpdateItemRequest sets an absolute quantity; zero removes the line.
type UpdateItemRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

// ApplyPromotionRequest applies an explicit promotion code.
type ApplyPromotionRequest struct {
	Code string `json:"code" validate:"required"`
}

// MergeRequest folds the caller's previous guest cart into their user cart.
type MergeRequest struct {
	SourceCartID uuid.UUID `json:"sourceCartId" validate:"required"`
	SessionID    string    `json:"sessionId" validate:"required"`
}

// ConvertRequest closes the cart against a created order.
type ConvertRequest struct {
	OrderID uuid.UUID `json:"orderId" validate:"required"`
}
