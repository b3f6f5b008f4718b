package repository

import (
	"context"
	"testing"
	"time"

	"techcart/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestProduct(title string, price string, stock int) *domain.Product {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.Product{
		ID:          uuid.New(),
		Title:       title,
		Description: "A product for tests",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func createTestProduct(t *testing.T, title string, price string, stock int) *domain.Product {
	t.Helper()
	product := newTestProduct(title, price, stock)
	require.NoError(t, NewProductRepository(testDB).Create(context.Background(), product))
	return product
}

// Product creation preserves attributes
func TestProperty_ProductCreationPreservesAttributes(t *testing.T) {
	productRepo := NewProductRepository(testDB)

	properties := gopter.NewProperties(nil)

	properties.Property("creating and retrieving a product preserves all attributes", prop.ForAll(
		func(title string, description string, cents int64, image string, stock int) bool {
			ctx := context.Background()

			product := newTestProduct(title, "0", stock)
			product.Description = description
			product.Price = decimal.New(cents, -2)
			product.Image = image

			if err := productRepo.Create(ctx, product); err != nil {
				t.Logf("FAIL: Failed to create product: %v", err)
				return false
			}

			retrieved, err := productRepo.FindByID(ctx, product.ID)
			if err != nil {
				t.Logf("FAIL: Failed to retrieve product: %v", err)
				return false
			}

			if retrieved.Title != product.Title || retrieved.Description != product.Description {
				t.Logf("FAIL: text mismatch. Expected %q/%q, got %q/%q",
					product.Title, product.Description, retrieved.Title, retrieved.Description)
				return false
			}

			// NUMERIC(10,2) round-trips exactly
			if !retrieved.Price.Equal(product.Price) {
				t.Logf("FAIL: Price mismatch. Expected %s, got %s", product.Price, retrieved.Price)
				return false
			}

			if retrieved.Image != product.Image {
				t.Logf("FAIL: Image mismatch. Expected %s, got %s", product.Image, retrieved.Image)
				return false
			}

			if retrieved.Stock != product.Stock {
				t.Logf("FAIL: Stock mismatch. Expected %d, got %d", product.Stock, retrieved.Stock)
				return false
			}

			_ = productRepo.Delete(ctx, product.ID)

			return true
		},
		gen.RegexMatch(`[A-Za-z0-9 ]{3,50}`),
		gen.RegexMatch(`[A-Za-z0-9 .,!?]{10,200}`),
		gen.Int64Range(0, 99999999),
		gen.OneConstOf("", "products/a.png", "products/b.webp"),
		gen.IntRange(0, 1000),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Product deletion removes from catalog
func TestProductRepository_DeleteRemovesFromCatalog(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	product := createTestProduct(t, "Doomed "+uuid.NewString(), "1.00", 1)

	require.NoError(t, repo.Delete(ctx, product.ID))

	_, err := repo.FindByID(ctx, product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, product.ID), domain.ErrNotFound)
}

func TestProductRepository_SearchTreatsTermLiterally(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	tag := uuid.NewString()[:8]

	percent := createTestProduct(t, "100% Cotton "+tag, "9.99", 3)
	plain := createTestProduct(t, "Cotton shirt "+tag, "9.99", 3)
	upper := createTestProduct(t, "MECHANICAL KEYBOARD "+tag, "49.00", 3)

	results, err := repo.List(ctx, "100% cotton "+tag)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, percent.ID, results[0].ID)

	results, err = repo.List(ctx, "cotton "+tag)
	require.NoError(t, err)
	assert.Len(t, results, 2)

	results, err = repo.List(ctx, "keyboard "+tag)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, upper.ID, results[0].ID)

	results, err = repo.List(ctx, "_"+tag)
	require.NoError(t, err)
	assert.Empty(t, results)

	all, err := repo.List(ctx, "   ")
	require.NoError(t, err)
	ids := map[uuid.UUID]bool{}
	for _, p := range all {
		ids[p.ID] = true
	}
	assert.True(t, ids[plain.ID])
}

func TestProductRepository_DecrementStockIsConditional(t *testing.T) {
	repo := NewProductRepository(testDB)
	ctx := context.Background()
	product := createTestProduct(t, "Limited "+uuid.NewString(), "5.00", 2)

	require.NoError(t, repo.DecrementStock(ctx, product.ID, 2))
	assert.ErrorIs(t, repo.DecrementStock(ctx, product.ID, 1), domain.ErrInsufficientStock)

	retrieved, err := repo.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, retrieved.Stock)
}
