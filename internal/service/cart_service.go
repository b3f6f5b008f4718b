package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"techcart/internal/audit"
	"techcart/internal/domain"
	"techcart/internal/repository"
	"techcart/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CartService defines the interface for shopping cart logic
type CartService interface {
	ListCart(ctx context.Context, identity domain.Identity) ([]*domain.CartItem, error)
	AddOrUpdate(ctx context.Context, identity domain.Identity, productID uuid.UUID, quantity int) (*domain.CartLine, error)
	UpdateQuantity(ctx context.Context, identity domain.Identity, lineID uuid.UUID, quantity int) (*domain.CartLine, error)
	RemoveLine(ctx context.Context, identity domain.Identity, lineID uuid.UUID) error
}

type cartService struct {
	store  repository.Transactor
	images storage.ImageStore
	audit  audit.Recorder
	logger *zap.Logger
}

// NewCartService creates a new instance of CartService
func NewCartService(
	store repository.Transactor,
	images storage.ImageStore,
	recorder audit.Recorder,
	logger *zap.Logger,
) CartService {
	return &cartService{
		store:  store,
		images: images,
		audit:  recorder,
		logger: logger,
	}
}

// ListCart returns the caller's lines joined with live product data, oldest first
func (s *cartService) ListCart(ctx context.Context, identity domain.Identity) ([]*domain.CartItem, error) {
	items, err := s.store.Repositories().Carts.Items(ctx, identity.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list cart: %w", err)
	}
	for _, item := range items {
		item.ImageURL = s.images.URL(item.Image)
	}
	return items, nil
}

// AddOrUpdate puts quantity units of the product in the cart, replacing the
// quantity of an existing line for the same product
func (s *cartService) AddOrUpdate(ctx context.Context, identity domain.Identity, productID uuid.UUID, quantity int) (*domain.CartLine, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	product, err := repos.Products.FindByID(ctx, productID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, domain.NewValidationError("product_id", "The selected product does not exist")
		}
		return nil, fmt.Errorf("failed to find product: %w", err)
	}

	if !product.HasStock(quantity) {
		return nil, stockError(product, quantity)
	}

	now := time.Now().UTC()
	line := &domain.CartLine{
		ID:        uuid.New(),
		UserID:    identity.UserID,
		ProductID: productID,
		Quantity:  quantity,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repos.Carts.Save(ctx, line); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// product deleted between the lookup and the insert
			return nil, domain.NewValidationError("product_id", "The selected product does not exist")
		}
		return nil, fmt.Errorf("failed to save cart line: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionCartLineSaved,
		ActorID:  identity.UserID,
		Entity:   "cart",
		EntityID: line.ID,
		Details:  map[string]any{"product_id": productID.String(), "quantity": quantity},
	})
	return line, nil
}

// UpdateQuantity changes the quantity of one of the caller's lines
func (s *cartService) UpdateQuantity(ctx context.Context, identity domain.Identity, lineID uuid.UUID, quantity int) (*domain.CartLine, error) {
	if err := validateQuantity(quantity); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	line, err := repos.Carts.FindForUser(ctx, lineID, identity.UserID)
	if err != nil {
		return nil, err
	}

	product, err := repos.Products.FindByID(ctx, line.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.HasStock(quantity) {
		return nil, stockError(product, quantity)
	}

	if err := repos.Carts.UpdateQuantity(ctx, lineID, identity.UserID, quantity); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update cart line: %w", err)
	}
	line.Quantity = quantity

	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionCartLineUpdated,
		ActorID:  identity.UserID,
		Entity:   "cart",
		EntityID: lineID,
		Details:  map[string]any{"quantity": quantity},
	})
	return line, nil
}

// RemoveLine deletes one of the caller's lines. A foreign line reads as missing.
func (s *cartService) RemoveLine(ctx context.Context, identity domain.Identity, lineID uuid.UUID) error {
	if identity.UserID == uuid.Nil {
		return domain.ErrUnauthorized
	}

	if err := s.store.Repositories().Carts.Delete(ctx, lineID, identity.UserID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to remove cart line: %w", err)
	}

	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionCartLineRemoved,
		ActorID:  identity.UserID,
		Entity:   "cart",
		EntityID: lineID,
	})
	return nil
}

func validateQuantity(quantity int) error {
	if quantity < 1 {
		return domain.NewValidationError("quantity", "Must be at least 1")
	}
	return nil
}

func stockError(product *domain.Product, requested int) *domain.StockError {
	return &domain.StockError{
		ProductID: product.ID,
		Title:     product.Title,
		Available: product.Stock,
		Requested: requested,
	}
}
