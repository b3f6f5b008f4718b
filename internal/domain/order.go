package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CustomerSnapshot holds the profile fields copied onto an order at checkout
type CustomerSnapshot struct {
	Name     string     `json:"name" db:"customer_name"`
	Email    string     `json:"email" db:"customer_email"`
	Address  string     `json:"address" db:"customer_address"`
	Contact  string     `json:"contact" db:"customer_contact"`
	Birthday *time.Time `json:"birthday" db:"customer_birthday"`
	Gender   string     `json:"gender" db:"customer_gender"`
}

// Order represents a placed order
type Order struct {
	ID        uuid.UUID        `json:"id" db:"id"`
	UserID    uuid.UUID        `json:"user_id" db:"user_id"`
	Total     decimal.Decimal  `json:"total" db:"total"`
	Customer  CustomerSnapshot `json:"customer"`
	CreatedAt time.Time        `json:"created_at" db:"created_at"`
	Items     []OrderItem      `json:"items,omitempty"`
}

// OrderItem represents one purchased line of an order
type OrderItem struct {
	ID           uuid.UUID       `json:"id" db:"id"`
	OrderID      uuid.UUID       `json:"order_id" db:"order_id"`
	Position     int             `json:"position" db:"position"`
	ProductID    *uuid.UUID      `json:"product_id" db:"product_id"`
	ProductTitle string          `json:"product_title" db:"product_title"`
	Quantity     int             `json:"quantity" db:"quantity"`
	Price        decimal.Decimal `json:"price" db:"price"`
}

// LineTotal returns price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CalculateTotal sums the line totals of the order's items
func (o *Order) CalculateTotal() decimal.Decimal {
	total := decimal.Zero
	for _, item := range o.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}
