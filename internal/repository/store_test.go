package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"techcart/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartRepository_SaveReplacesQuantity(t *testing.T) {
	repo := NewCartRepository(testDB)
	ctx := context.Background()
	user := createTestUser(t)
	product := createTestProduct(t, "Mouse "+uuid.NewString(), "12.50", 10)

	first := &domain.CartLine{ID: uuid.New(), UserID: user.ID, ProductID: product.ID, Quantity: 2,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.Save(ctx, first))

	second := &domain.CartLine{ID: uuid.New(), UserID: user.ID, ProductID: product.ID, Quantity: 5,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.Save(ctx, second))
	assert.Equal(t, first.ID, second.ID)

	items, err := repo.Items(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity)
	assert.Equal(t, product.Title, items[0].Title)
	assert.True(t, items[0].Price.Equal(decimal.RequireFromString("12.50")))
	assert.Equal(t, 10, items[0].Stock)
}

func TestCartRepository_ForeignLinesAreNotFound(t *testing.T) {
	repo := NewCartRepository(testDB)
	ctx := context.Background()
	owner := createTestUser(t)
	other := createTestUser(t)
	product := createTestProduct(t, "Cable "+uuid.NewString(), "3.00", 10)

	line := &domain.CartLine{ID: uuid.New(), UserID: owner.ID, ProductID: product.ID, Quantity: 1,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, repo.Save(ctx, line))

	_, err := repo.FindForUser(ctx, line.ID, other.ID)
	assert.ErrorIs(t, err, ErrCartLineNotFound)
	assert.ErrorIs(t, repo.UpdateQuantity(ctx, line.ID, other.ID, 3), ErrCartLineNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, line.ID, other.ID), ErrCartLineNotFound)

	require.NoError(t, repo.Delete(ctx, line.ID, owner.ID))
	assert.ErrorIs(t, repo.Delete(ctx, line.ID, owner.ID), domain.ErrNotFound)
}

func TestCartRepository_RemoveLinesKeepsLinesSavedMeanwhile(t *testing.T) {
	store := NewStore(testDB)
	ctx := context.Background()
	user := createTestUser(t)
	ordered := createTestProduct(t, "Keyboard "+uuid.NewString(), "40.00", 5)
	added := createTestProduct(t, "Mousepad "+uuid.NewString(), "8.00", 5)

	first := &domain.CartLine{ID: uuid.New(), UserID: user.ID, ProductID: ordered.ID, Quantity: 1,
		CreatedAt: time.Now(), UpdatedAt: time.Now()}
	require.NoError(t, store.Repositories().Carts.Save(ctx, first))

	updated := make(chan error, 1)
	err := store.WithinTx(ctx, func(repos Repositories) error {
		lines, err := repos.Carts.LockLines(ctx, user.ID)
		if err != nil {
			return err
		}
		require.Len(t, lines, 1)

		// another session commits a new line, then blocks on the locked one
		late := &domain.CartLine{ID: uuid.New(), UserID: user.ID, ProductID: added.ID, Quantity: 2,
			CreatedAt: time.Now(), UpdatedAt: time.Now()}
		require.NoError(t, store.Repositories().Carts.Save(ctx, late))
		go func() {
			updated <- store.Repositories().Carts.UpdateQuantity(ctx, first.ID, user.ID, 3)
		}()

		return repos.Carts.RemoveLines(ctx, user.ID, []uuid.UUID{lines[0].ID})
	})
	require.NoError(t, err)

	assert.ErrorIs(t, <-updated, ErrCartLineNotFound)

	items, err := store.Repositories().Carts.Items(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, added.ID, items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestStore_WithinTxRollsBackOnError(t *testing.T) {
	store := NewStore(testDB)
	ctx := context.Background()
	user := createTestUser(t)
	product := createTestProduct(t, "Rollback "+uuid.NewString(), "7.00", 4)
	boom := errors.New("boom")

	err := store.WithinTx(ctx, func(repos Repositories) error {
		require.NoError(t, repos.Products.DecrementStock(ctx, product.ID, 3))
		order := &domain.Order{ID: uuid.New(), UserID: user.ID, Total: decimal.Zero,
			Customer: user.Snapshot(), CreatedAt: time.Now()}
		require.NoError(t, repos.Orders.Create(ctx, order))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	retrieved, err := store.Repositories().Products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, retrieved.Stock)
}

func TestOrderRepository_ItemsKeepTitleAfterProductDeleted(t *testing.T) {
	store := NewStore(testDB)
	ctx := context.Background()
	user := createTestUser(t)
	keep := createTestProduct(t, "Headset "+uuid.NewString(), "10.00", 5)
	gone := createTestProduct(t, "Webcam "+uuid.NewString(), "5.00", 5)

	order := &domain.Order{ID: uuid.New(), UserID: user.ID, Total: decimal.Zero,
		Customer: user.Snapshot(), CreatedAt: time.Now()}

	err := store.WithinTx(ctx, func(repos Repositories) error {
		if err := repos.Orders.Create(ctx, order); err != nil {
			return err
		}
		for i, p := range []*domain.Product{keep, gone} {
			pid := p.ID
			item := &domain.OrderItem{ID: uuid.New(), OrderID: order.ID, Position: i, ProductID: &pid,
				ProductTitle: p.Title, Quantity: i + 1, Price: p.Price}
			if err := repos.Orders.AddItem(ctx, item); err != nil {
				return err
			}
		}
		return repos.Orders.SetTotal(ctx, order.ID, decimal.RequireFromString("20.00"))
	})
	require.NoError(t, err)

	require.NoError(t, store.Repositories().Products.Delete(ctx, gone.ID))

	found, err := store.Repositories().Orders.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "20.00", found.Total.StringFixed(2))
	assert.Equal(t, user.FullName(), found.Customer.Name)
	require.NotNil(t, found.Customer.Birthday)
	assert.Equal(t, "1990-12-10", found.Customer.Birthday.Format(domain.BirthdayLayout))
	require.Len(t, found.Items, 2)
	assert.Equal(t, keep.Title, found.Items[0].ProductTitle)
	assert.Equal(t, gone.Title, found.Items[1].ProductTitle)
	assert.Nil(t, found.Items[1].ProductID)

	all, err := store.Repositories().Orders.List(ctx)
	require.NoError(t, err)
	var listed *domain.Order
	for _, o := range all {
		if o.ID == order.ID {
			listed = o
		}
	}
	require.NotNil(t, listed)
	assert.Len(t, listed.Items, 2)

	_, err = store.Repositories().Orders.FindByID(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestProductRepository_LockForUpdateSerializesDecrements(t *testing.T) {
	store := NewStore(testDB)
	ctx := context.Background()
	product := createTestProduct(t, "Last unit "+uuid.NewString(), "99.00", 1)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := store.WithinTx(ctx, func(repos Repositories) error {
				locked, err := repos.Products.LockForUpdate(ctx, []uuid.UUID{product.ID})
				if err != nil {
					return err
				}
				if !locked[product.ID].HasStock(1) {
					return domain.ErrInsufficientStock
				}
				return repos.Products.DecrementStock(ctx, product.ID, 1)
			})
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	retrieved, err := store.Repositories().Products.FindByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, retrieved.Stock)
}
