package transport

import (
	"net/http"

	"techcart/internal/domain"
	"techcart/internal/middleware"
	"techcart/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AuthResponse is returned by register and login
type AuthResponse struct {
	Token string      `json:"token"`
	User  UserProfile `json:"user"`
}

// UserProfile represents user profile data
type UserProfile struct {
	ID            string `json:"id"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Birthday      string `json:"birthday"`
	Gender        string `json:"gender"`
	ContactNumber string `json:"contact_number"`
	Address       string `json:"address"`
	Email         string `json:"email"`
	Role          string `json:"role"`
}

func newUserProfile(user *domain.User) UserProfile {
	return UserProfile{
		ID:            user.ID.String(),
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Birthday:      user.Birthday.Format(domain.BirthdayLayout),
		Gender:        user.Gender,
		ContactNumber: user.ContactNumber,
		Address:       user.Address,
		Email:         user.Email,
		Role:          string(user.Role),
	}
}

// AuthHandler handles HTTP requests for account operations
type AuthHandler struct {
	accounts service.AccountService
	logger   *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(accounts service.AccountService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		accounts: accounts,
		logger:   logger,
	}
}

// RegisterRoutes registers the account routes. limiter guards the public
// credential endpoints and may be nil.
func (h *AuthHandler) RegisterRoutes(r chi.Router, authMiddleware, limiter func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		if limiter != nil {
			r.Use(limiter)
		}
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/logout", h.Logout)
	})
}

// Register handles user registration
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterInput
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Registration validation failed", zap.Error(err))
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Register(r.Context(), req)
	if err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, AuthResponse{
		Token: result.Token,
		User:  newUserProfile(result.User),
	})
}

// Login handles user authentication
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		h.logger.Debug("Login validation failed", zap.Error(err))
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	result, err := h.accounts.Login(r.Context(), req)
	if err != nil {
		h.logger.Debug("Login failed", zap.Error(err))
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, AuthResponse{
		Token: result.Token,
		User:  newUserProfile(result.User),
	})
}

// Logout revokes the presented token
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(w, r)
	if !ok {
		return
	}

	if err := h.accounts.Logout(r.Context(), identity); err != nil {
		respondWithServiceError(w, r, h.logger, err)
		return
	}

	h.logger.Info("User logged out successfully", zap.String("user_id", identity.UserID.String()))
	middleware.RespondWithJSON(w, http.StatusOK, map[string]string{"message": "logged out successfully"})
}
