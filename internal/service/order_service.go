package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"techcart/internal/audit"
	"techcart/internal/domain"
	"techcart/internal/notify"
	"techcart/internal/repository"
	"techcart/internal/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

// CheckoutMetrics counts checkout outcomes; *metrics.Manager satisfies it
type CheckoutMetrics interface {
	OrderPlaced(total decimal.Decimal)
	CheckoutFailed(reason string)
}

// OrderService defines the interface for checkout and order views
type OrderService interface {
	Checkout(ctx context.Context, identity domain.Identity) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, identity domain.Identity) (*domain.Order, error)
	ListOrders(ctx context.Context, identity domain.Identity) ([]*domain.Order, error)
	Receipt(ctx context.Context, orderID uuid.UUID, identity domain.Identity) (string, error)
}

type orderService struct {
	store    repository.Transactor
	metrics  CheckoutMetrics
	notifier notify.Notifier
	audit    audit.Recorder
	logger   *zap.Logger
}

// NewOrderService creates a new instance of OrderService
func NewOrderService(
	store repository.Transactor,
	metrics CheckoutMetrics,
	notifier notify.Notifier,
	recorder audit.Recorder,
	logger *zap.Logger,
) OrderService {
	return &orderService{
		store:    store,
		metrics:  metrics,
		notifier: notifier,
		audit:    recorder,
		logger:   logger,
	}
}

// Checkout turns the caller's cart into an order in one transaction. Stock is
// checked and decremented under row locks taken in product id order; any
// failure rolls back every write and is returned as is.
func (s *orderService) Checkout(ctx context.Context, identity domain.Identity) (*domain.Order, error) {
	ctx, span := telemetry.Tracer("techcart/orders").Start(ctx, "OrderService.Checkout")
	defer span.End()
	span.SetAttributes(attribute.String("user.id", identity.UserID.String()))

	var order *domain.Order
	err := s.store.WithinTx(ctx, func(repos repository.Repositories) error {
		var err error
		order, err = placeOrder(ctx, repos, identity.UserID)
		return err
	})
	if err != nil {
		reason := failureReason(err)
		s.metrics.CheckoutFailed(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		if reason == "internal" {
			s.logger.Error("Checkout failed", zap.String("user_id", identity.UserID.String()), zap.Error(err))
		} else {
			s.logger.Info("Checkout rejected",
				zap.String("user_id", identity.UserID.String()),
				zap.String("reason", reason),
				zap.Error(err),
			)
		}
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", order.ID.String()),
		attribute.Int("order.items", len(order.Items)),
		attribute.String("order.total", order.Total.StringFixed(2)),
	)
	s.metrics.OrderPlaced(order.Total)
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", identity.UserID.String()),
		zap.String("total", order.Total.StringFixed(2)),
		zap.Int("items", len(order.Items)),
	)
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionOrderPlaced,
		ActorID:  identity.UserID,
		Entity:   "order",
		EntityID: order.ID,
		Details:  map[string]any{"total": order.Total.StringFixed(2), "items": len(order.Items)},
	})

	if err := s.notifier.OrderPlaced(ctx, order); err != nil {
		s.logger.Warn("Failed to send order confirmation",
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
	}

	return order, nil
}

func placeOrder(ctx context.Context, repos repository.Repositories, userID uuid.UUID) (*domain.Order, error) {
	lines, err := repos.Carts.LockLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	user, err := repos.Users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load customer: %w", err)
	}

	order := &domain.Order{
		ID:        uuid.New(),
		UserID:    userID,
		Total:     decimal.Zero,
		Customer:  user.Snapshot(),
		CreatedAt: time.Now().UTC(),
		Items:     make([]domain.OrderItem, 0, len(lines)),
	}
	if err := repos.Orders.Create(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	slices.SortFunc(ids, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	ids = slices.Compact(ids)

	products, err := repos.Products.LockForUpdate(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock products: %w", err)
	}

	total := decimal.Zero
	for i, line := range lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, fmt.Errorf("cart line %s: %w", line.ID, repository.ErrProductNotFound)
		}
		if !product.HasStock(line.Quantity) {
			return nil, stockError(product, line.Quantity)
		}

		if err := repos.Products.DecrementStock(ctx, product.ID, line.Quantity); err != nil {
			if errors.Is(err, domain.ErrInsufficientStock) {
				return nil, stockError(product, line.Quantity)
			}
			return nil, fmt.Errorf("failed to decrement stock: %w", err)
		}
		product.Stock -= line.Quantity

		productID := product.ID
		item := domain.OrderItem{
			ID:           uuid.New(),
			OrderID:      order.ID,
			Position:     i,
			ProductID:    &productID,
			ProductTitle: product.Title,
			Quantity:     line.Quantity,
			Price:        product.Price,
		}
		if err := repos.Orders.AddItem(ctx, &item); err != nil {
			return nil, fmt.Errorf("failed to create order item: %w", err)
		}

		order.Items = append(order.Items, item)
		total = total.Add(item.LineTotal())
	}

	if err := repos.Orders.SetTotal(ctx, order.ID, total); err != nil {
		return nil, fmt.Errorf("failed to finalize order total: %w", err)
	}
	order.Total = total

	lineIDs := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		lineIDs = append(lineIDs, line.ID)
	}
	if err := repos.Carts.RemoveLines(ctx, userID, lineIDs); err != nil {
		return nil, fmt.Errorf("failed to clear cart: %w", err)
	}

	return order, nil
}

func failureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrEmptyCart):
		return "empty_cart"
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "internal"
	}
}

// GetOrder returns an order to its owner or to an admin
func (s *orderService) GetOrder(ctx context.Context, orderID uuid.UUID, identity domain.Identity) (*domain.Order, error) {
	order, err := s.store.Repositories().Orders.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if !identity.CanAccess(order.UserID) {
		s.logger.Warn("Order access denied",
			zap.String("order_id", orderID.String()),
			zap.String("user_id", identity.UserID.String()),
		)
		return nil, domain.ErrForbidden
	}

	return order, nil
}

// ListOrders returns every order, newest first. Admin only.
func (s *orderService) ListOrders(ctx context.Context, identity domain.Identity) ([]*domain.Order, error) {
	if !identity.IsAdmin() {
		return nil, domain.ErrForbidden
	}

	orders, err := s.store.Repositories().Orders.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Receipt renders a plain-text receipt under the same access rule as GetOrder
func (s *orderService) Receipt(ctx context.Context, orderID uuid.UUID, identity domain.Identity) (string, error) {
	order, err := s.GetOrder(ctx, orderID, identity)
	if err != nil {
		return "", err
	}

	receipt, err := notify.RenderReceipt(order)
	if err != nil {
		return "", fmt.Errorf("failed to render receipt: %w", err)
	}
	return receipt, nil
}
