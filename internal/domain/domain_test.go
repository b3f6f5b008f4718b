package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCalculateTotal_ExactDecimalSum(t *testing.T) {
	order := &Order{Items: []OrderItem{
		{Price: decimal.RequireFromString("10.00"), Quantity: 2},
		{Price: decimal.RequireFromString("5.00"), Quantity: 1},
	}}
	assert.Equal(t, "25.00", order.CalculateTotal().StringFixed(2))

	order = &Order{Items: []OrderItem{
		{Price: decimal.RequireFromString("0.10"), Quantity: 3},
	}}
	assert.True(t, order.CalculateTotal().Equal(decimal.RequireFromString("0.30")))
}

func TestCalculateTotal_Property(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("total equals the sum of cents times quantity", prop.ForAll(
		func(cents []int64, qty int) bool {
			order := &Order{}
			var expected int64
			for _, c := range cents {
				order.Items = append(order.Items, OrderItem{Price: decimal.New(c, -2), Quantity: qty})
				expected += c * int64(qty)
			}
			return order.CalculateTotal().Equal(decimal.New(expected, -2))
		},
		gen.SliceOf(gen.Int64Range(0, 99999999)),
		gen.IntRange(1, 50),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestErrors_Categories(t *testing.T) {
	stock := &StockError{ProductID: uuid.New(), Title: "Keyboard", Available: 1, Requested: 2}
	wrapped := fmt.Errorf("failed to checkout: %w", stock)

	assert.True(t, errors.Is(wrapped, ErrInsufficientStock))
	assert.False(t, errors.Is(wrapped, ErrInvalidInput))
	assert.Equal(t, "insufficient stock for product: Keyboard", stock.Error())

	var se *StockError
	assert.True(t, errors.As(wrapped, &se))
	assert.Equal(t, 1, se.Available)

	verr := NewValidationError("email", "is required")
	verr.Add("password", "must be at least 8 characters")
	assert.True(t, errors.Is(verr, ErrInvalidInput))
	assert.Len(t, verr.Fields, 2)
	assert.Contains(t, verr.Error(), "email: is required")

	empty := &ValidationError{}
	assert.NoError(t, empty.OrNil())
}

func TestIdentity_CanAccess(t *testing.T) {
	owner := uuid.New()
	assert.True(t, Identity{UserID: owner, Role: RoleCustomer}.CanAccess(owner))
	assert.False(t, Identity{UserID: uuid.New(), Role: RoleCustomer}.CanAccess(owner))
	assert.True(t, Identity{UserID: uuid.New(), Role: RoleAdmin}.CanAccess(owner))
}
