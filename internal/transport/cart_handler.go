package transport

import (
	"net/http"

	"techcart/internal/domain"
	"techcart/internal/middleware"
	"techcart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AddToCartRequest represents the add-to-cart payload
type AddToCartRequest struct {
	ProductID string `json:"product_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

// UpdateCartRequest represents the change-quantity payload
type UpdateCartRequest struct {
	Quantity int `json:"quantity" validate:"required,min=1"`
}

// CartItemResponse is one line of the cart view
type CartItemResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Title     string `json:"title"`
	Img       string `json:"img"`
	ImageURL  string `json:"image_url"`
	Price     string `json:"price"`
	Qty       int    `json:"qty"`
	Stock     int    `json:"stock"`
}

// CartLineResponse is returned after a line is saved
type CartLineResponse struct {
	ID        string `json:"id"`
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

func newCartLineResponse(line *domain.CartLine) CartLineResponse {
	return CartLineResponse{
		ID:        line.ID.String(),
		ProductID: line.ProductID.String(),
		Quantity:  line.Quantity,
	}
}

// CartHandler handles HTTP requests for the shopping cart
type CartHandler struct {
	carts  service.CartService
	logger *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(carts service.CartService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		carts:  carts,
		logger: logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/cart", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", h.List)
		r.Post("/", h.Add)
		r.Put("/{id}", h.Update)
		r.Delete("/{id}", h.Remove)
	})
}

// List handles GET /cart
func (h *CartHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}

	items, err := h.carts.ListCart(r.Context(), identity)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	response := make([]CartItemResponse, 0, len(items))
	for _, item := range items {
		response = append(response, CartItemResponse{
			ID:        item.ID.String(),
			ProductID: item.ProductID.String(),
			Title:     item.Title,
			Img:       item.Image,
			ImageURL:  item.ImageURL,
			Price:     item.Price.StringFixed(2),
			Qty:       item.Quantity,
			Stock:     item.Stock,
		})
	}
	middleware.RespondWithJSON(w, http.StatusOK, response)
}

// Add handles POST /cart
func (h *CartHandler) Add(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}

	var req AddToCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	// validated as a uuid above
	productID := uuid.MustParse(req.ProductID)

	line, err := h.carts.AddOrUpdate(r.Context(), identity, productID, req.Quantity)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, newCartLineResponse(line))
}

// Update handles PUT /cart/{id}
func (h *CartHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}
	lineID, ok := parseLineID(w, r)
	if !ok {
		return
	}

	var req UpdateCartRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	line, err := h.carts.UpdateQuantity(r.Context(), identity, lineID, req.Quantity)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newCartLineResponse(line))
}

// Remove handles DELETE /cart/{id}
func (h *CartHandler) Remove(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}
	lineID, ok := parseLineID(w, r)
	if !ok {
		return
	}

	if err := h.carts.RemoveLine(r.Context(), identity, lineID); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "item removed from cart"})
}

func parseLineID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "cart line not found")
		return uuid.Nil, false
	}
	return id, true
}
