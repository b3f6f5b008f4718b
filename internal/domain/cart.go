package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CartLine is one (user, product, quantity) entry of a shopping cart
type CartLine struct {
	ID        uuid.UUID `json:"id" db:"id"`
	UserID    uuid.UUID `json:"user_id" db:"user_id"`
	ProductID uuid.UUID `json:"product_id" db:"product_id"`
	Quantity  int       `json:"quantity" db:"quantity"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// CartItem is a cart line joined with the live product it points at
type CartItem struct {
	ID        uuid.UUID
	ProductID uuid.UUID
	Title     string
	Image     string
	ImageURL  string
	Price     decimal.Decimal
	Quantity  int
	Stock     int
}
