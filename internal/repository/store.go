package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of *sql.DB and *sql.Tx the repositories need
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Repositories groups every repository bound to the same connection or transaction
type Repositories struct {
	Users    UserRepository
	Sessions SessionTokenRepository
	Products ProductRepository
	Carts    CartRepository
	Orders   OrderRepository
}

// Transactor hands out repositories and runs units of work atomically
type Transactor interface {
	Repositories() Repositories
	// WithinTx runs fn inside one transaction. The transaction commits when fn
	// returns nil and rolls back otherwise, returning fn's error unchanged.
	WithinTx(ctx context.Context, fn func(Repositories) error) error
}

// Store is the PostgreSQL Transactor
type Store struct {
	db *sql.DB
}

// NewStore creates a new Store over db
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func newRepositories(db DBTX) Repositories {
	return Repositories{
		Users:    NewUserRepository(db),
		Sessions: NewSessionTokenRepository(db),
		Products: NewProductRepository(db),
		Carts:    NewCartRepository(db),
		Orders:   NewOrderRepository(db),
	}
}

// Repositories returns repositories running outside any transaction
func (s *Store) Repositories() Repositories {
	return newRepositories(s.db)
}

// WithinTx runs fn in a READ COMMITTED transaction
func (s *Store) WithinTx(ctx context.Context, fn func(Repositories) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	if err := fn(newRepositories(tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("failed to roll back transaction: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}

func rowsAffected(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
