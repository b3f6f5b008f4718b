package transport

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"techcart/internal/domain"
	"techcart/internal/middleware"
	"techcart/internal/service"
	"techcart/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// multipart bodies may carry the image plus a little form overhead
const maxProductBody = storage.MaxImageSize + 1<<20

// ProductResponse is the wire form of a product
type ProductResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Price       string `json:"price"`
	Stock       int    `json:"stock"`
	Image       string `json:"image"`
	ImageURL    string `json:"image_url"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{
		ID:          p.ID.String(),
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price.StringFixed(2),
		Stock:       p.Stock,
		Image:       p.Image,
		ImageURL:    p.ImageURL,
		CreatedAt:   p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:   p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// productJSONRequest is the JSON alternative to the multipart form
type productJSONRequest struct {
	Title       string           `json:"title"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

// ProductHandler handles HTTP requests for the catalog
type ProductHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		r.Use(authMiddleware)

		r.Get("/", h.List)
		r.Get("/{id}", h.Get)

		r.Group(func(r chi.Router) {
			r.Use(adminMiddleware)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Update)
			// browsers cannot send multipart PUT from a plain form; accept POST with _method=PUT
			r.Post("/{id}", h.Update)
			r.Delete("/{id}", h.Delete)
		})
	})
}

// List handles GET /products?search=
func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.ListProducts(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	response := make([]ProductResponse, 0, len(products))
	for _, p := range products {
		response = append(response, newProductResponse(p))
	}
	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// Get handles GET /products/{id}
func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// Create handles POST /products
func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}

	in, image, cleanup, err := parseProductRequest(w, r)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	defer cleanup()

	product, err := h.catalog.CreateProduct(r.Context(), identity, in, image)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newProductResponse(product))
}

// Update handles PUT /products/{id}
func (h *ProductHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	in, image, cleanup, err := parseProductRequest(w, r)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}
	defer cleanup()

	product, err := h.catalog.UpdateProduct(r.Context(), identity, id, in, image)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

// Delete handles DELETE /products/{id}
func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}
	id, ok := h.productID(w, r)
	if !ok {
		return
	}

	if err := h.catalog.DeleteProduct(r.Context(), identity, id); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "product deleted successfully"})
}

// productID treats a malformed id like an unknown one
func (h *ProductHandler) productID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
		return uuid.Nil, false
	}
	return id, true
}

// parseProductRequest reads a multipart form (fields plus optional "image"
// file) or a JSON body. cleanup releases the uploaded file.
func parseProductRequest(w http.ResponseWriter, r *http.Request) (service.ProductInput, *storage.Image, func(), error) {
	noop := func() {}

	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		var req productJSONRequest
		if err := middleware.DecodeAndValidate(r, &req); err != nil {
			return service.ProductInput{}, nil, noop, err
		}
		return service.ProductInput{
			Title:       req.Title,
			Description: req.Description,
			Price:       req.Price,
			Stock:       req.Stock,
		}, nil, noop, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxProductBody)
	if err := r.ParseMultipartForm(maxProductBody); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return service.ProductInput{}, nil, noop, domain.NewValidationError("image", "may not be greater than 2048 kilobytes")
		}
		return service.ProductInput{}, nil, noop, fmt.Errorf("%w: %v", middleware.ErrMalformedBody, err)
	}
	cleanup := func() { _ = r.MultipartForm.RemoveAll() }

	in := service.ProductInput{
		Title:       strings.TrimSpace(r.PostFormValue("title")),
		Description: strings.TrimSpace(r.PostFormValue("description")),
	}
	verr := &domain.ValidationError{}

	if value := strings.TrimSpace(r.PostFormValue("price")); value != "" {
		price, err := decimal.NewFromString(value)
		if err != nil {
			verr.Add("price", "Must be a number")
		} else {
			in.Price = &price
		}
	}

	if value := strings.TrimSpace(r.PostFormValue("stock")); value != "" {
		stock, err := strconv.Atoi(value)
		if err != nil {
			verr.Add("stock", "Must be an integer")
		} else {
			in.Stock = &stock
		}
	}

	if err := verr.OrNil(); err != nil {
		cleanup()
		return service.ProductInput{}, nil, noop, err
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return in, nil, cleanup, nil
		}
		cleanup()
		return service.ProductInput{}, nil, noop, fmt.Errorf("%w: %v", middleware.ErrMalformedBody, err)
	}

	image := &storage.Image{Filename: header.Filename, Size: header.Size, Content: file}
	return in, image, func() {
		_ = file.Close()
		cleanup()
	}, nil
}
