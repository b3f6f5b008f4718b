package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"techcart/internal/audit"
	"techcart/internal/domain"
	"techcart/internal/middleware"
	"techcart/internal/notify"
	"techcart/internal/repository/repotest"
	"techcart/internal/service"
	"techcart/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type nopMetrics struct{}

func (nopMetrics) OrderPlaced(decimal.Decimal) {}
func (nopMetrics) CheckoutFailed(string)       {}

type testAPI struct {
	store    *repotest.Store
	accounts service.AccountService
	router   http.Handler
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	logger := zap.NewNop()
	store := repotest.New()
	recorder := audit.NewLogRecorder(logger)
	images, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080/storage", logger)
	require.NoError(t, err)

	accounts := service.NewAccountService(store, "test-secret", 0, recorder, logger)
	catalog := service.NewCatalogService(store, images, recorder, logger)
	carts := service.NewCartService(store, images, recorder, logger)
	orders := service.NewOrderService(store, nopMetrics{}, notify.Noop{}, recorder, logger)

	authMiddleware := middleware.AuthMiddleware(accounts, logger)
	adminMiddleware := middleware.RequireAdmin(logger)

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		NewAuthHandler(accounts, logger).RegisterRoutes(r, authMiddleware, nil)
		NewProductHandler(catalog, logger).RegisterRoutes(r, authMiddleware, adminMiddleware)
		NewCartHandler(carts, logger).RegisterRoutes(r, authMiddleware)
		NewOrderHandler(orders, logger).RegisterRoutes(r, authMiddleware, adminMiddleware)
	})

	return &testAPI{store: store, accounts: accounts, router: r}
}

func (a *testAPI) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

func registerInput(email string) service.RegisterInput {
	return service.RegisterInput{
		FirstName:            "Ada",
		LastName:             "Lovelace",
		Birthday:             "1990-12-10",
		Gender:               "female",
		Address:              "1 Main St",
		ContactNumber:        "555-0100",
		Email:                email,
		Password:             "secret-password",
		PasswordConfirmation: "secret-password",
	}
}

// customer registers a fresh account and returns its bearer token
func (a *testAPI) customer(t *testing.T) string {
	t.Helper()
	w := a.do(t, http.MethodPost, "/api/register", "", registerInput(uuid.NewString()+"@example.com"))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Token
}

// admin creates an administrator and logs it in
func (a *testAPI) admin(t *testing.T) string {
	t.Helper()
	in := registerInput(uuid.NewString() + "@example.com")
	_, err := a.accounts.CreateAdmin(context.Background(), in)
	require.NoError(t, err)

	w := a.do(t, http.MethodPost, "/api/login", "", service.LoginInput{Email: in.Email, Password: in.Password})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp AuthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Token
}

func (a *testAPI) seedProduct(title, price string, stock int) domain.Product {
	p := domain.Product{
		ID:          uuid.New(),
		Title:       title,
		Description: title + " description",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
	}
	a.store.AddProduct(p)
	return p
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorDetail {
	t.Helper()
	var resp middleware.ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp.Error
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	api := newTestAPI(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/products"},
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/checkout"},
		{http.MethodGet, "/api/orders"},
		{http.MethodPost, "/api/logout"},
	} {
		t.Run(route.method+" "+route.path, func(t *testing.T) {
			w := api.do(t, route.method, route.path, "", nil)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}

func TestMultipartProductCreate(t *testing.T) {
	api := newTestAPI(t)
	token := api.admin(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("title", "Mechanical Keyboard"))
	require.NoError(t, form.WriteField("description", "Tactile switches"))
	require.NoError(t, form.WriteField("price", "89.90"))
	require.NoError(t, form.WriteField("stock", "7"))
	part, err := form.CreateFormFile("image", "keyboard.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("\x89PNG fake image bytes"))
	require.NoError(t, err)
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/products", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var product ProductResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&product))
	assert.Equal(t, "89.90", product.Price)
	assert.Equal(t, 7, product.Stock)
	assert.Regexp(t, `^products/[0-9a-f-]{36}\.png$`, product.Image)
	assert.Equal(t, "http://localhost:8080/storage/"+product.Image, product.ImageURL)
}

func TestMultipartProductCreateRejectsBadNumbers(t *testing.T) {
	api := newTestAPI(t)
	token := api.admin(t)

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	require.NoError(t, form.WriteField("title", "Cable"))
	require.NoError(t, form.WriteField("description", "USB-C"))
	require.NoError(t, form.WriteField("price", "cheap"))
	require.NoError(t, form.WriteField("stock", "many"))
	require.NoError(t, form.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/products", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	api.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	detail := decodeError(t, w)
	fields := detail.Details["validation_errors"].([]interface{})
	assert.Len(t, fields, 2)
}
