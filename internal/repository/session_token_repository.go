package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"techcart/internal/domain"

	"github.com/google/uuid"
)

var (
	ErrSessionTokenNotFound = fmt.Errorf("session token %w", domain.ErrNotFound)
)

// SessionTokenRepository defines the interface for session token data access
type SessionTokenRepository interface {
	Create(ctx context.Context, token *domain.SessionToken) error
	FindByID(ctx context.Context, id uuid.UUID) (*domain.SessionToken, error)
	Revoke(ctx context.Context, id uuid.UUID) error
	RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type sessionTokenRepository struct {
	db DBTX
}

// NewSessionTokenRepository creates a new instance of SessionTokenRepository
func NewSessionTokenRepository(db DBTX) SessionTokenRepository {
	return &sessionTokenRepository{db: db}
}

// Create inserts a new session token
func (r *sessionTokenRepository) Create(ctx context.Context, token *domain.SessionToken) error {
	query := `
		INSERT INTO session_tokens (id, user_id, expires_at, created_at, revoked)
		VALUES ($1, $2, $3, $4, $5)
	`

	_, err := r.db.ExecContext(
		ctx,
		query,
		token.ID,
		token.UserID,
		token.ExpiresAt,
		token.CreatedAt,
		token.Revoked,
	)

	if err != nil {
		return fmt.Errorf("failed to create session token: %w", err)
	}

	return nil
}

// FindByID retrieves a session token by its id, revoked or not
func (r *sessionTokenRepository) FindByID(ctx context.Context, id uuid.UUID) (*domain.SessionToken, error) {
	query := `
		SELECT id, user_id, expires_at, created_at, revoked
		FROM session_tokens
		WHERE id = $1
	`

	token := &domain.SessionToken{}
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&token.ID,
		&token.UserID,
		&token.ExpiresAt,
		&token.CreatedAt,
		&token.Revoked,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionTokenNotFound
		}
		return nil, fmt.Errorf("failed to find session token: %w", err)
	}

	return token, nil
}

// Revoke marks one active session token as revoked
func (r *sessionTokenRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE session_tokens
		SET revoked = TRUE
		WHERE id = $1 AND revoked = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("failed to revoke session token: %w", err)
	}

	return rowsAffected(result, ErrSessionTokenNotFound)
}

// RevokeAllForUser revokes every active token of the user and returns how many were revoked
func (r *sessionTokenRepository) RevokeAllForUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		UPDATE session_tokens
		SET revoked = TRUE
		WHERE user_id = $1 AND revoked = FALSE
	`

	result, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to revoke session tokens: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return n, nil
}
