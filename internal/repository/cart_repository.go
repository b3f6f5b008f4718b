package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"techcart/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrCartLineNotFound = fmt.Errorf("cart line %w", domain.ErrNotFound)
)

// CartRepository defines the interface for cart data access
type CartRepository interface {
	// Save inserts the line or, when the user already has a line for the
	// product, replaces its quantity. line.ID and line.CreatedAt are set to the
	// stored row's values.
	Save(ctx context.Context, line *domain.CartLine) error
	FindForUser(ctx context.Context, id, userID uuid.UUID) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) error
	Delete(ctx context.Context, id, userID uuid.UUID) error
	// LockLines returns the user's lines oldest first, locked until the
	// transaction ends
	LockLines(ctx context.Context, userID uuid.UUID) ([]*domain.CartLine, error)
	// Items returns the user's lines joined with their products, oldest first
	Items(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error)
	// RemoveLines deletes the given lines of the user's cart. Lines saved
	// after they were read stay in the cart.
	RemoveLines(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error
}

type cartRepository struct {
	db DBTX
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db DBTX) CartRepository {
	return &cartRepository{db: db}
}

// Save upserts on (user_id, product_id) using parameterized queries
func (r *cartRepository) Save(ctx context.Context, line *domain.CartLine) error {
	query := `
		INSERT INTO carts (id, user_id, product_id, quantity, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity, updated_at = EXCLUDED.updated_at
		RETURNING id, created_at
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		line.ID,
		line.UserID,
		line.ProductID,
		line.Quantity,
		line.CreatedAt,
		line.UpdatedAt,
	).Scan(&line.ID, &line.CreatedAt)

	if err != nil {
		if isForeignKeyViolation(err) {
			return ErrProductNotFound
		}
		return fmt.Errorf("failed to save cart line: %w", err)
	}

	return nil
}

// FindForUser retrieves a line only when it belongs to userID
func (r *cartRepository) FindForUser(ctx context.Context, id, userID uuid.UUID) (*domain.CartLine, error) {
	query := `
		SELECT id, user_id, product_id, quantity, created_at, updated_at
		FROM carts
		WHERE id = $1 AND user_id = $2
	`

	line := &domain.CartLine{}
	err := r.db.QueryRowContext(ctx, query, id, userID).Scan(
		&line.ID,
		&line.UserID,
		&line.ProductID,
		&line.Quantity,
		&line.CreatedAt,
		&line.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrCartLineNotFound
		}
		return nil, fmt.Errorf("failed to find cart line: %w", err)
	}

	return line, nil
}

// UpdateQuantity sets the quantity of one of the user's lines
func (r *cartRepository) UpdateQuantity(ctx context.Context, id, userID uuid.UUID, quantity int) error {
	query := `
		UPDATE carts
		SET quantity = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`

	result, err := r.db.ExecContext(ctx, query, id, userID, quantity)
	if err != nil {
		return fmt.Errorf("failed to update cart line: %w", err)
	}

	return rowsAffected(result, ErrCartLineNotFound)
}

// Delete removes one of the user's lines
func (r *cartRepository) Delete(ctx context.Context, id, userID uuid.UUID) error {
	query := `DELETE FROM carts WHERE id = $1 AND user_id = $2`

	result, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete cart line: %w", err)
	}

	return rowsAffected(result, ErrCartLineNotFound)
}

// LockLines retrieves the user's raw cart lines with FOR UPDATE
func (r *cartRepository) LockLines(ctx context.Context, userID uuid.UUID) ([]*domain.CartLine, error) {
	query := `
		SELECT id, user_id, product_id, quantity, created_at, updated_at
		FROM carts
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
		FOR UPDATE
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart lines: %w", err)
	}
	defer rows.Close()

	lines := []*domain.CartLine{}
	for rows.Next() {
		line := &domain.CartLine{}
		err := rows.Scan(
			&line.ID,
			&line.UserID,
			&line.ProductID,
			&line.Quantity,
			&line.CreatedAt,
			&line.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart line: %w", err)
		}
		lines = append(lines, line)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart lines: %w", err)
	}

	return lines, nil
}

// Items retrieves the user's cart with live product data
func (r *cartRepository) Items(ctx context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	query := `
		SELECT c.id, c.product_id, p.title, p.image, p.price, c.quantity, p.stock
		FROM carts c
		JOIN products p ON p.id = c.product_id
		WHERE c.user_id = $1
		ORDER BY c.created_at ASC, c.id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item := &domain.CartItem{}
		var image sql.NullString
		err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.Title,
			&image,
			&item.Price,
			&item.Quantity,
			&item.Stock,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		item.Image = image.String
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}

// RemoveLines deletes the listed lines belonging to the user
func (r *cartRepository) RemoveLines(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, 0, len(ids)+1)
	args = append(args, userID)
	for i, id := range ids {
		placeholders[i] = fmt.Sprintf("$%d", i+2)
		args = append(args, id)
	}

	query := `DELETE FROM carts WHERE user_id = $1 AND id IN (` + strings.Join(placeholders, ", ") + `)`

	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to remove cart lines: %w", err)
	}

	return nil
}
