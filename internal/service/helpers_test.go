package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"techcart/internal/audit"
	"techcart/internal/domain"
	"techcart/internal/repository/repotest"
	"techcart/internal/storage"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// bcrypt at cost 10 makes the default 100 runs slow
func quickParameters() *gopter.TestParameters {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 15
	return params
}

type recordingAudit struct {
	mu     sync.Mutex
	events []audit.Event
}

func (r *recordingAudit) Record(_ context.Context, event audit.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingAudit) actions() []audit.Action {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]audit.Action, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Action)
	}
	return out
}

type fakeMetrics struct {
	mu       sync.Mutex
	placed   int
	revenue  decimal.Decimal
	failures map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{failures: map[string]int{}}
}

func (m *fakeMetrics) OrderPlaced(total decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.placed++
	m.revenue = m.revenue.Add(total)
}

func (m *fakeMetrics) CheckoutFailed(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures[reason]++
}

type fakeNotifier struct {
	mu     sync.Mutex
	orders []uuid.UUID
	err    error
}

func (n *fakeNotifier) OrderPlaced(_ context.Context, order *domain.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order.ID)
	return n.err
}

var errBoom = errors.New("boom")

func validRegisterInput(email string) RegisterInput {
	return RegisterInput{
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

func seedCustomer(store *repotest.Store) domain.Identity {
	user := domain.User{
		ID:            uuid.New(),
		FirstName:     "Grace",
		LastName:      "Hopper",
		Birthday:      time.Date(1985, 3, 4, 0, 0, 0, 0, time.UTC),
		Gender:        "female",
		Address:       "42 Harbor Rd",
		ContactNumber: "555-0199",
		Email:         uuid.NewString() + "@example.com",
		PasswordHash:  "x",
		Role:          domain.RoleCustomer,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	store.AddUser(user)
	return domain.Identity{UserID: user.ID, Role: user.Role, TokenID: uuid.New()}
}

func seedProduct(store *repotest.Store, title, price string, stock int) domain.Product {
	p := domain.Product{
		ID:          uuid.New(),
		Title:       title,
		Description: title + " description",
		Price:       decimal.RequireFromString(price),
		Stock:       stock,
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	store.AddProduct(p)
	return p
}

func newLocalImages(t *testing.T) *storage.LocalStore {
	t.Helper()
	images, err := storage.NewLocalStore(t.TempDir(), "http://localhost:8080/storage", zap.NewNop())
	require.NoError(t, err)
	return images
}

func adminIdentity() domain.Identity {
	return domain.Identity{UserID: uuid.New(), Role: domain.RoleAdmin, TokenID: uuid.New()}
}
