package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"techcart/internal/audit"
	"techcart/internal/domain"
	"techcart/internal/repository"
	"techcart/internal/storage"
	"techcart/internal/telemetry"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const (
	maxTitleLength = 255
	maxStock       = math.MaxInt32
)

// maxPrice is the largest value a NUMERIC(10,2) column holds
var maxPrice = decimal.RequireFromString("99999999.99")

// ProductInput carries the editable product fields. Nil means the field was not supplied.
type ProductInput struct {
	Title       string
	Description string
	Price       *decimal.Decimal
	Stock       *int
}

// Validate reports every missing or out-of-range field
func (in ProductInput) Validate() error {
	verr := &domain.ValidationError{}
	if strings.TrimSpace(in.Title) == "" {
		verr.Add("title", "This field is required")
	} else if utf8.RuneCountInString(in.Title) > maxTitleLength {
		verr.Add("title", "May not be greater than 255 characters")
	}
	if strings.TrimSpace(in.Description) == "" {
		verr.Add("description", "This field is required")
	}
	switch {
	case in.Price == nil:
		verr.Add("price", "This field is required")
	case in.Price.IsNegative():
		verr.Add("price", "Must be at least 0")
	case in.Price.Round(2).GreaterThan(maxPrice):
		verr.Add("price", "May not be greater than 99999999.99")
	}
	switch {
	case in.Stock == nil:
		verr.Add("stock", "This field is required")
	case *in.Stock < 0:
		verr.Add("stock", "Must be at least 0")
	case *in.Stock > maxStock:
		verr.Add("stock", "May not be greater than 2147483647")
	}
	return verr.OrNil()
}

// CatalogService defines the interface for product catalog logic
type CatalogService interface {
	ListProducts(ctx context.Context, search string) ([]*domain.Product, error)
	GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error)
	CreateProduct(ctx context.Context, actor domain.Identity, in ProductInput, image *storage.Image) (*domain.Product, error)
	UpdateProduct(ctx context.Context, actor domain.Identity, id uuid.UUID, in ProductInput, image *storage.Image) (*domain.Product, error)
	DeleteProduct(ctx context.Context, actor domain.Identity, id uuid.UUID) error
}

type catalogService struct {
	store  repository.Transactor
	images storage.ImageStore
	audit  audit.Recorder
	logger *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	store repository.Transactor,
	images storage.ImageStore,
	recorder audit.Recorder,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		store:  store,
		images: images,
		audit:  recorder,
		logger: logger,
	}
}

// ListProducts returns the catalog newest first, optionally filtered by search
func (s *catalogService) ListProducts(ctx context.Context, search string) ([]*domain.Product, error) {
	ctx, span := telemetry.Tracer("techcart/catalog").Start(ctx, "CatalogService.ListProducts")
	defer span.End()

	products, err := s.store.Repositories().Products.List(ctx, search)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	for _, p := range products {
		s.resolveURL(p)
	}
	span.SetAttributes(attribute.Int("products.count", len(products)))
	return products, nil
}

// GetProduct retrieves a single product
func (s *catalogService) GetProduct(ctx context.Context, id uuid.UUID) (*domain.Product, error) {
	product, err := s.store.Repositories().Products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolveURL(product)
	return product, nil
}

// CreateProduct stores the image first and removes it again when the insert fails
func (s *catalogService) CreateProduct(ctx context.Context, actor domain.Identity, in ProductInput, image *storage.Image) (*domain.Product, error) {
	if err := s.validate(in, image); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	product := &domain.Product{
		ID:          uuid.New(),
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Price:       in.Price.Round(2),
		Stock:       *in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if image != nil {
		key, err := s.images.Put(ctx, *image)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		product.Image = key
	}

	if err := s.store.Repositories().Products.Create(ctx, product); err != nil {
		s.discardImage(ctx, product.Image)
		return nil, fmt.Errorf("failed to create product: %w", err)
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID.String()),
		zap.String("title", product.Title),
	)
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionProductCreated,
		ActorID:  actor.UserID,
		Entity:   "product",
		EntityID: product.ID,
		Details:  map[string]any{"title": product.Title},
	})

	s.resolveURL(product)
	return product, nil
}

// UpdateProduct replaces the editable fields. A new image replaces the old
// asset only after the row update succeeded.
func (s *catalogService) UpdateProduct(ctx context.Context, actor domain.Identity, id uuid.UUID, in ProductInput, image *storage.Image) (*domain.Product, error) {
	if err := s.validate(in, image); err != nil {
		return nil, err
	}

	repos := s.store.Repositories()
	product, err := repos.Products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	oldImage := product.Image
	product.Title = strings.TrimSpace(in.Title)
	product.Description = in.Description
	product.Price = in.Price.Round(2)
	product.Stock = *in.Stock
	product.UpdatedAt = time.Now().UTC()

	if image != nil {
		key, err := s.images.Put(ctx, *image)
		if err != nil {
			return nil, fmt.Errorf("failed to store image: %w", err)
		}
		product.Image = key
	}

	if err := repos.Products.Update(ctx, product); err != nil {
		if image != nil {
			s.discardImage(ctx, product.Image)
		}
		if errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to update product: %w", err)
	}

	if image != nil && oldImage != "" {
		s.discardImage(ctx, oldImage)
	}

	s.logger.Info("Product updated", zap.String("product_id", product.ID.String()))
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionProductUpdated,
		ActorID:  actor.UserID,
		Entity:   "product",
		EntityID: product.ID,
		Details:  map[string]any{"image_replaced": image != nil},
	})

	s.resolveURL(product)
	return product, nil
}

// DeleteProduct removes the row, then its image
func (s *catalogService) DeleteProduct(ctx context.Context, actor domain.Identity, id uuid.UUID) error {
	repos := s.store.Repositories()
	product, err := repos.Products.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := repos.Products.Delete(ctx, id); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete product: %w", err)
	}

	s.discardImage(ctx, product.Image)

	s.logger.Info("Product deleted", zap.String("product_id", id.String()))
	s.audit.Record(ctx, audit.Event{
		Action:   audit.ActionProductDeleted,
		ActorID:  actor.UserID,
		Entity:   "product",
		EntityID: id,
		Details:  map[string]any{"title": product.Title},
	})
	return nil
}

func (s *catalogService) validate(in ProductInput, image *storage.Image) error {
	verr := &domain.ValidationError{}
	var fieldErr *domain.ValidationError
	if err := in.Validate(); errors.As(err, &fieldErr) {
		verr.Fields = append(verr.Fields, fieldErr.Fields...)
	}
	if image != nil {
		if err := storage.ValidateImage(*image); errors.As(err, &fieldErr) {
			verr.Fields = append(verr.Fields, fieldErr.Fields...)
		}
	}
	return verr.OrNil()
}

// discardImage deletes an asset that no row references; failures are logged only
func (s *catalogService) discardImage(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.images.Delete(ctx, key); err != nil {
		s.logger.Warn("Failed to delete image", zap.String("key", key), zap.Error(err))
	}
}

func (s *catalogService) resolveURL(p *domain.Product) {
	p.ImageURL = s.images.URL(p.Image)
}
