package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"techcart/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type stubAuthenticator struct {
	tokens map[string]domain.Identity
	err    error
}

func (s *stubAuthenticator) Authenticate(_ context.Context, raw string) (*domain.Identity, error) {
	if s.err != nil {
		return nil, s.err
	}
	identity, ok := s.tokens[raw]
	if !ok {
		return nil, domain.ErrUnauthorized
	}
	return &identity, nil
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

// Protected endpoints reject missing tokens
func TestProperty_ProtectedEndpointsRejectMissingTokens(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("requests without authorization header are rejected", prop.ForAll(
		func(pathSuffix string, method string) bool {
			middleware := AuthMiddleware(&stubAuthenticator{}, zap.NewNop())
			handler := middleware(okHandler())

			path := "/" + pathSuffix
			if path == "/" {
				path = "/test"
			}

			req := httptest.NewRequest(method, path, nil)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
		gen.OneConstOf("GET", "POST", "PUT", "DELETE"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Unknown or revoked tokens are rejected
func TestProperty_UnknownTokensAreRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tokens the authenticator does not accept yield 401", prop.ForAll(
		func(token string) bool {
			middleware := AuthMiddleware(&stubAuthenticator{}, zap.NewNop())
			handler := middleware(okHandler())

			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Valid tokens allow processing
func TestProperty_ValidTokensAllowProcessing(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("valid tokens expose the caller's identity", prop.ForAll(
		func(role string) bool {
			identity := domain.Identity{UserID: uuid.New(), Role: domain.Role(role), TokenID: uuid.New()}
			auth := &stubAuthenticator{tokens: map[string]domain.Identity{"good-token": identity}}

			handlerCalled := false
			handler := AuthMiddleware(auth, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				handlerCalled = true

				ctxRole, ok1 := GetUserRole(r.Context())
				got, ok2 := IdentityFrom(r.Context())
				if !ok1 || !ok2 {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}
				if ctxRole != identity.Role || got != identity {
					w.WriteHeader(http.StatusInternalServerError)
					return
				}

				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", "Bearer good-token")
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			return handlerCalled && w.Code == http.StatusOK
		},
		gen.OneConstOf("customer", "admin"),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

// Test missing Bearer prefix
func TestProperty_MissingBearerPrefixRejected(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("tokens without Bearer prefix are rejected", prop.ForAll(
		func(token string) bool {
			auth := &stubAuthenticator{tokens: map[string]domain.Identity{token: {UserID: uuid.New()}}}
			handler := AuthMiddleware(auth, zap.NewNop())(okHandler())

			req := httptest.NewRequest("GET", "/test", nil)
			req.Header.Set("Authorization", token)
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			return w.Code == http.StatusUnauthorized
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestAuthMiddleware_AuthenticatorFailureIsServerError(t *testing.T) {
	auth := &stubAuthenticator{err: errors.New("database unavailable")}
	handler := AuthMiddleware(auth, zap.NewNop())(okHandler())

	req := httptest.NewRequest("GET", "/test", nil)
	req.Header.Set("Authorization", "Bearer anything")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestRequireAdmin(t *testing.T) {
	tests := []struct {
		name     string
		identity *domain.Identity
		want     int
	}{
		{"admin passes", &domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin}, http.StatusOK},
		{"customer is forbidden", &domain.Identity{UserID: uuid.New(), Role: domain.RoleCustomer}, http.StatusForbidden},
		{"anonymous is forbidden", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireAdmin(zap.NewNop())(okHandler())

			req := httptest.NewRequest("POST", "/api/products", nil)
			if tt.identity != nil {
				req = req.WithContext(WithIdentity(req.Context(), *tt.identity))
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.want, w.Code)
		})
	}
}
