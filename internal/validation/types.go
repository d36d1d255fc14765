package validation

import "github.com/shopspring/decimal"

// CheckoutLine is one cart line as submitted for an order.
type CheckoutLine struct {
	ItemID   string          `json:"itemId" validate:"required"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity" validate:"min=1"`
	Price    decimal.Decimal `json:"price"` // unit price, checked >= 0 at struct level
}

// CheckoutRequest is what the orchestrator is about to send; TotalAmount must equal the line sum.
type CheckoutRequest struct {
	UserEmail   string          `json:"userEmail" validate:"required"`
	Lines       []CheckoutLine  `json:"lines" validate:"required,min=1,dive"`
	TotalAmount decimal.Decimal `json:"totalAmount"`
}

// LoginRequest is the payload for POST /session/login
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest is the payload for POST /session/register
type RegisterRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required,min=6"`
	FullName string `json:"fullName" validate:"required"`
}

// AddToCartRequest is the payload for POST /cart/items
type AddToCartRequest struct {
	ItemID   string          `json:"itemId" validate:"required"`
	Name     string          `json:"name" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"imageUrl" validate:"omitempty,url"`
}

// UpdateQuantityRequest is the payload for PATCH /cart/items/:id. Values below 1 are clamped.
type UpdateQuantityRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

// InventoryRequest is the payload for the admin inventory add/update routes.
type InventoryRequest struct {
	Name     string          `json:"name" validate:"required"`
	Category string          `json:"category" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock" validate:"min=0"`
	ImageURL string          `json:"imageUrl" validate:"omitempty,url"`
}
