package service

import (
	"context"
	"testing"

	"techcart/internal/audit"
	"techcart/internal/domain"
	"techcart/internal/repository/repotest"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newCartService(t *testing.T, store *repotest.Store, recorder audit.Recorder) CartService {
	return NewCartService(store, newLocalImages(t), recorder, zap.NewNop())
}

// Cart quantities are accepted exactly when they lie in [1, stock]
func TestProperty_CartQuantityWithinStock(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("add accepts 1..stock and rejects the rest", prop.ForAll(
		func(stock int, quantity int) bool {
			store := repotest.New()
			service := newCartService(t, store, &recordingAudit{})
			user := seedCustomer(store)
			product := seedProduct(store, "Mouse", "10.00", stock)

			_, err := service.AddOrUpdate(context.Background(), user, product.ID, quantity)

			switch {
			case quantity < 1:
				var verr *domain.ValidationError
				return assert.ErrorAs(t, err, &verr) && verr.Fields[0].Field == "quantity"
			case quantity > stock:
				var serr *domain.StockError
				return assert.ErrorAs(t, err, &serr) &&
					serr.Available == stock && serr.Requested == quantity &&
					store.CartSize(user.UserID) == 0
			default:
				return err == nil && store.CartSize(user.UserID) == 1
			}
		},
		gen.IntRange(0, 20),
		gen.IntRange(-3, 25),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCartService_AddReplacesQuantity(t *testing.T) {
	store := repotest.New()
	recorder := &recordingAudit{}
	service := newCartService(t, store, recorder)
	ctx := context.Background()
	user := seedCustomer(store)
	product := seedProduct(store, "Keyboard", "49.99", 10)

	first, err := service.AddOrUpdate(ctx, user, product.ID, 2)
	require.NoError(t, err)
	second, err := service.AddOrUpdate(ctx, user, product.ID, 3)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	items, err := service.ListCart(ctx, user)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].Quantity)
	assert.Equal(t, "Keyboard", items[0].Title)
	assert.Equal(t, "49.99", items[0].Price.StringFixed(2))
	assert.Equal(t, 10, items[0].Stock)

	assert.Equal(t, []audit.Action{audit.ActionCartLineSaved, audit.ActionCartLineSaved}, recorder.actions())
}

func TestCartService_AddUnknownProductIsValidationError(t *testing.T) {
	store := repotest.New()
	service := newCartService(t, store, &recordingAudit{})
	user := seedCustomer(store)

	_, err := service.AddOrUpdate(context.Background(), user, uuid.New(), 1)

	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "product_id", verr.Fields[0].Field)
}

func TestCartService_UpdateQuantity(t *testing.T) {
	store := repotest.New()
	service := newCartService(t, store, &recordingAudit{})
	ctx := context.Background()
	user := seedCustomer(store)
	product := seedProduct(store, "Headset", "80.00", 4)

	line, err := service.AddOrUpdate(ctx, user, product.ID, 1)
	require.NoError(t, err)

	updated, err := service.UpdateQuantity(ctx, user, line.ID, 4)
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Quantity)

	_, err = service.UpdateQuantity(ctx, user, line.ID, 5)
	var serr *domain.StockError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, "insufficient stock for product: Headset", err.Error())

	_, err = service.UpdateQuantity(ctx, user, line.ID, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = service.UpdateQuantity(ctx, user, uuid.New(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCartService_ForeignLinesLookMissing(t *testing.T) {
	store := repotest.New()
	service := newCartService(t, store, &recordingAudit{})
	ctx := context.Background()
	owner := seedCustomer(store)
	intruder := seedCustomer(store)
	product := seedProduct(store, "Webcam", "35.00", 3)

	line, err := service.AddOrUpdate(ctx, owner, product.ID, 1)
	require.NoError(t, err)

	assert.ErrorIs(t, service.RemoveLine(ctx, intruder, line.ID), domain.ErrNotFound)
	_, err = service.UpdateQuantity(ctx, intruder, line.ID, 2)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.Equal(t, 1, store.CartSize(owner.UserID))

	assert.ErrorIs(t, service.RemoveLine(ctx, domain.Identity{}, line.ID), domain.ErrUnauthorized)

	require.NoError(t, service.RemoveLine(ctx, owner, line.ID))
	assert.Equal(t, 0, store.CartSize(owner.UserID))
	assert.ErrorIs(t, service.RemoveLine(ctx, owner, line.ID), domain.ErrNotFound)
}
