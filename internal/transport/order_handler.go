package transport

import (
	"net/http"
	"time"

	"techcart/internal/domain"
	"techcart/internal/middleware"
	"techcart/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CheckoutResponse confirms a placed order
type CheckoutResponse struct {
	Message string `json:"message"`
	OrderID string `json:"order_id"`
	Total   string `json:"total"`
}

// OrderResponse is the detailed view of an order
type OrderResponse struct {
	OrderID   string              `json:"order_id"`
	Total     string              `json:"total"`
	CreatedAt string              `json:"created_at"`
	Customer  CustomerResponse    `json:"customer"`
	Items     []OrderItemResponse `json:"items"`
}

// CustomerResponse is the customer snapshot stored on an order
type CustomerResponse struct {
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Address  string  `json:"address"`
	Contact  string  `json:"contact"`
	Birthday *string `json:"birthday"`
	Gender   string  `json:"gender"`
}

// OrderItemResponse is one purchased line
type OrderItemResponse struct {
	ProductID   *string `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       string  `json:"price"`
	TotalPrice  string  `json:"total_price"`
}

func newOrderResponse(order *domain.Order) OrderResponse {
	customer := CustomerResponse{
		Name:    order.Customer.Name,
		Email:   order.Customer.Email,
		Address: order.Customer.Address,
		Contact: order.Customer.Contact,
		Gender:  order.Customer.Gender,
	}
	if order.Customer.Birthday != nil {
		b := order.Customer.Birthday.Format(domain.BirthdayLayout)
		customer.Birthday = &b
	}

	items := make([]OrderItemResponse, 0, len(order.Items))
	for _, item := range order.Items {
		var productID *string
		if item.ProductID != nil {
			id := item.ProductID.String()
			productID = &id
		}
		items = append(items, OrderItemResponse{
			ProductID:   productID,
			ProductName: item.ProductTitle,
			Quantity:    item.Quantity,
			Price:       item.Price.StringFixed(2),
			TotalPrice:  item.LineTotal().StringFixed(2),
		})
	}

	return OrderResponse{
		OrderID:   order.ID.String(),
		Total:     order.Total.StringFixed(2),
		CreatedAt: order.CreatedAt.UTC().Format(time.RFC3339),
		Customer:  customer,
		Items:     items,
	}
}

// OrderHandler handles checkout and order views
type OrderHandler struct {
	orders service.OrderService
	logger *zap.Logger
}

// NewOrderHandler creates a new OrderHandler
func NewOrderHandler(orders service.OrderService, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{
		orders: orders,
		logger: logger,
	}
}

// RegisterRoutes registers checkout and order routes
func (h *OrderHandler) RegisterRoutes(r chi.Router, authMiddleware, adminMiddleware func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)

		r.Post("/checkout", h.Checkout)
		r.Get("/orders/{id}", h.Get)
		r.Get("/orders/{id}/receipt", h.Receipt)

		r.With(adminMiddleware).Get("/orders", h.List)
	})
}

// Checkout handles POST /checkout. Any request body is ignored; the order is
// built from the server-side cart.
func (h *OrderHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}

	order, err := h.orders.Checkout(r.Context(), identity)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CheckoutResponse{
		Message: "Order placed successfully",
		OrderID: order.ID.String(),
		Total:   order.Total.StringFixed(2),
	})
}

// Get handles GET /orders/{id}
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(r.Context(), orderID, identity)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, newOrderResponse(order))
}

// Receipt handles GET /orders/{id}/receipt
func (h *OrderHandler) Receipt(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}
	orderID, ok := parseOrderID(w, r)
	if !ok {
		return
	}

	receipt, err := h.orders.Receipt(r.Context(), orderID, identity)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(receipt))
}

// List handles GET /orders
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}

	orders, err := h.orders.ListOrders(r.Context(), identity)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	response := make([]OrderResponse, 0, len(orders))
	for _, order := range orders {
		response = append(response, newOrderResponse(order))
	}
	middleware.RespondWithJSON(w, http.StatusOK, response)
}

func parseOrderID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		middleware.RespondWithError(w, http.StatusNotFound, "order not found")
		return uuid.Nil, false
	}
	return id, true
}
