package transport

import (
	"errors"
	"net/http"

	"techcart/internal/domain"
	"techcart/internal/middleware"
	"techcart/internal/service"

	"go.uber.org/zap"
)

// respondWithServiceError maps a service error onto the JSON error envelope.
// Errors outside the domain categories are logged and reported as 500.
func respondWithServiceError(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	var (
		validationErr *domain.ValidationError
		stockErr      *domain.StockError
	)

	switch {
	case errors.As(err, &validationErr):
		middleware.RespondWithValidationErrors(w, validationErr.Fields)
	case errors.Is(err, middleware.ErrMalformedBody):
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
	case errors.As(err, &stockErr):
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, stockErr.Error(), map[string]interface{}{
			"product_id":    stockErr.ProductID.String(),
			"product_title": stockErr.Title,
			"available":     stockErr.Available,
			"requested":     stockErr.Requested,
		})
	case errors.Is(err, domain.ErrEmptyCart):
		middleware.RespondWithError(w, http.StatusBadRequest, "cart is empty")
	case errors.Is(err, service.ErrInvalidCredentials):
		middleware.RespondWithError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, domain.ErrUnauthorized):
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthenticated")
	case errors.Is(err, domain.ErrForbidden):
		middleware.RespondWithError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, err.Error())
	default:
		logger.Error("Request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
			zap.Stack("stack"),
		)
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// identityFrom returns the caller resolved by the auth middleware, answering 401 when absent
func identityFrom(w http.ResponseWriter, r *http.Request) (domain.Identity, bool) {
	identity, ok := middleware.IdentityFrom(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthenticated")
		return domain.Identity{}, false
	}
	return identity, true
}
