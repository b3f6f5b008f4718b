package repository

import (
	"context"
	"database/sql"
	"fmt"

	"techcart/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrOrderNotFound = fmt.Errorf("order %w", domain.ErrNotFound)
)

// OrderRepository defines the interface for order data access
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	AddItem(ctx context.Context, item *domain.OrderItem) error
	SetTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error
	// FindByID returns the order with its items in position order. Item titles
	// come from the live product when it still exists.
	FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// List returns every order with its items, newest first
	List(ctx context.Context) ([]*domain.Order, error)
}

type orderRepository struct {
	db DBTX
}

// NewOrderRepository creates a new instance of OrderRepository
func NewOrderRepository(db DBTX) OrderRepository {
	return &orderRepository{db: db}
}

// Create inserts the order header with its customer snapshot
func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	query := `
		INSERT INTO orders (id, user_id, total, customer_name, customer_email, customer_address,
			customer_contact, customer_birthday, customer_gender, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		order.ID,
		order.UserID,
		order.Total,
		order.Customer.Name,
		order.Customer.Email,
		order.Customer.Address,
		order.Customer.Contact,
		order.Customer.Birthday,
		order.Customer.Gender,
		order.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// AddItem inserts one order line
func (r *orderRepository) AddItem(ctx context.Context, item *domain.OrderItem) error {
	query := `
		INSERT INTO order_items (id, order_id, position, product_id, product_title, quantity, price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		item.ID,
		item.OrderID,
		item.Position,
		item.ProductID,
		item.ProductTitle,
		item.Quantity,
		item.Price,
	)

	if err != nil {
		return fmt.Errorf("failed to create order item: %w", err)
	}

	return nil
}

// SetTotal writes the final total onto the order
func (r *orderRepository) SetTotal(ctx context.Context, id uuid.UUID, total decimal.Decimal) error {
	query := `UPDATE orders SET total = $2 WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, total)
	if err != nil {
		return fmt.Errorf("failed to set order total: %w", err)
	}

	return rowsAffected(result, ErrOrderNotFound)
}

const orderWithItemsQuery = `
	SELECT o.id, o.user_id, o.total, o.customer_name, o.customer_email, o.customer_address,
		o.customer_contact, o.customer_birthday, o.customer_gender, o.created_at,
		oi.id, oi.position, oi.product_id, COALESCE(p.title, oi.product_title), oi.quantity, oi.price
	FROM orders o
	LEFT JOIN order_items oi ON oi.order_id = o.id
	LEFT JOIN products p ON p.id = oi.product_id
`

// FindByID retrieves an order and its items
func (r *orderRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	orders, err := r.query(ctx, orderWithItemsQuery+` WHERE o.id = $1 ORDER BY oi.position`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find order by ID: %w", err)
	}

	if len(orders) == 0 {
		return nil, ErrOrderNotFound
	}

	return orders[0], nil
}

// List retrieves all orders in a single query and groups the rows per order
func (r *orderRepository) List(ctx context.Context) ([]*domain.Order, error) {
	orders, err := r.query(ctx, orderWithItemsQuery+` ORDER BY o.created_at DESC, o.id, oi.position`)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}

	return orders, nil
}

func (r *orderRepository) query(ctx context.Context, query string, args ...any) ([]*domain.Order, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	orders := []*domain.Order{}
	var current *domain.Order
	for rows.Next() {
		var (
			order     domain.Order
			birthday  sql.NullTime
			itemID    uuid.NullUUID
			position  sql.NullInt32
			productID uuid.NullUUID
			title     sql.NullString
			quantity  sql.NullInt32
			price     decimal.NullDecimal
		)

		err := rows.Scan(
			&order.ID,
			&order.UserID,
			&order.Total,
			&order.Customer.Name,
			&order.Customer.Email,
			&order.Customer.Address,
			&order.Customer.Contact,
			&birthday,
			&order.Customer.Gender,
			&order.CreatedAt,
			&itemID,
			&position,
			&productID,
			&title,
			&quantity,
			&price,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}

		if current == nil || current.ID != order.ID {
			if birthday.Valid {
				b := birthday.Time
				order.Customer.Birthday = &b
			}
			order.Items = []domain.OrderItem{}
			current = &order
			orders = append(orders, current)
		}

		if !itemID.Valid {
			continue
		}

		item := domain.OrderItem{
			ID:           itemID.UUID,
			OrderID:      current.ID,
			Position:     int(position.Int32),
			ProductTitle: title.String,
			Quantity:     int(quantity.Int32),
			Price:        price.Decimal,
		}
		if productID.Valid {
			pid := productID.UUID
			item.ProductID = &pid
		}
		current.Items = append(current.Items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	return orders, nil
}
