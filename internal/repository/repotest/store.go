// Package repotest provides an in-memory repository.Transactor for service and
// handler tests. Transactions run one at a time against a copy of the state and
// replace it on commit, so a failed unit of work leaves nothing behind.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"techcart/internal/domain"
	"techcart/internal/repository"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type cartRow struct {
	line domain.CartLine
	seq  int64
}

type orderRow struct {
	order domain.Order
	seq   int64
}

type state struct {
	seq      int64
	users    map[uuid.UUID]domain.User
	sessions map[uuid.UUID]domain.SessionToken
	products map[uuid.UUID]domain.Product
	carts    map[uuid.UUID]cartRow
	orders   map[uuid.UUID]orderRow
	items    map[uuid.UUID][]domain.OrderItem
}

func newState() *state {
	return &state{
		users:    map[uuid.UUID]domain.User{},
		sessions: map[uuid.UUID]domain.SessionToken{},
		products: map[uuid.UUID]domain.Product{},
		carts:    map[uuid.UUID]cartRow{},
		orders:   map[uuid.UUID]orderRow{},
		items:    map[uuid.UUID][]domain.OrderItem{},
	}
}

func (s *state) clone() *state {
	c := newState()
	c.seq = s.seq
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.carts {
		c.carts[k] = v
	}
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.items {
		c.items[k] = append([]domain.OrderItem(nil), v...)
	}
	return c
}

func (s *state) next() int64 {
	s.seq++
	return s.seq
}

// Store is an in-memory repository.Transactor
type Store struct {
	mu     sync.Mutex
	state  *state
	faults map[string]error
}

var _ repository.Transactor = (*Store)(nil)

// New creates an empty Store
func New() *Store {
	return &Store{state: newState(), faults: map[string]error{}}
}

// FailOn makes every later call of op (for example "products.update") return err
func (s *Store) FailOn(op string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.faults[op] = err
}

// Repositories returns repositories that each lock the store per call
func (s *Store) Repositories() repository.Repositories {
	return s.repositories(&view{store: s})
}

// WithinTx holds the store for the whole unit of work and commits the copy when fn succeeds
func (s *Store) WithinTx(ctx context.Context, fn func(repository.Repositories) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	draft := s.state.clone()
	if err := fn(s.repositories(&view{store: s, tx: draft})); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.state = draft
	return nil
}

func (s *Store) repositories(v *view) repository.Repositories {
	return repository.Repositories{
		Users:    &users{v},
		Sessions: &sessions{v},
		Products: &products{v},
		Carts:    &carts{v},
		Orders:   &orders{v},
	}
}

// view runs repository calls either on a transaction draft or on the live state
type view struct {
	store *Store
	tx    *state
}

func (v *view) run(op string, fn func(st *state) error) error {
	if v.tx != nil {
		if err := v.store.faults[op]; err != nil {
			return err
		}
		return fn(v.tx)
	}

	v.store.mu.Lock()
	defer v.store.mu.Unlock()
	if err := v.store.faults[op]; err != nil {
		return err
	}
	return fn(v.store.state)
}

// Seed helpers write straight into the live state.

// AddUser stores u as-is
func (s *Store) AddUser(u domain.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u.Email = strings.ToLower(u.Email)
	s.state.users[u.ID] = u
}

// AddProduct stores p as-is
func (s *Store) AddProduct(p domain.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.products[p.ID] = p
}

// Product returns the current committed copy of a product
func (s *Store) Product(id uuid.UUID) (domain.Product, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.state.products[id]
	return p, ok
}

// Session returns the current committed copy of a session token
func (s *Store) Session(id uuid.UUID) (domain.SessionToken, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.state.sessions[id]
	return t, ok
}

// CartSize returns how many lines the user's cart holds
func (s *Store) CartSize(userID uuid.UUID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, row := range s.state.carts {
		if row.line.UserID == userID {
			n++
		}
	}
	return n
}

// OrderCount returns how many orders exist
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.state.orders)
}

// ItemCount returns how many order items exist
func (s *Store) ItemCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, items := range s.state.items {
		n += len(items)
	}
	return n
}

type users struct{ v *view }

func (r *users) Create(_ context.Context, user *domain.User) error {
	return r.v.run("users.create", func(st *state) error {
		user.Email = strings.ToLower(user.Email)
		for _, u := range st.users {
			if u.Email == user.Email {
				return repository.ErrUserAlreadyExists
			}
		}
		st.users[user.ID] = *user
		return nil
	})
}

func (r *users) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	var found *domain.User
	err := r.v.run("users.find", func(st *state) error {
		email = strings.ToLower(email)
		for _, u := range st.users {
			if u.Email == email {
				u := u
				found = &u
				return nil
			}
		}
		return repository.ErrUserNotFound
	})
	return found, err
}

func (r *users) FindByID(_ context.Context, id uuid.UUID) (*domain.User, error) {
	var found *domain.User
	err := r.v.run("users.find", func(st *state) error {
		u, ok := st.users[id]
		if !ok {
			return repository.ErrUserNotFound
		}
		found = &u
		return nil
	})
	return found, err
}

type sessions struct{ v *view }

func (r *sessions) Create(_ context.Context, token *domain.SessionToken) error {
	return r.v.run("sessions.create", func(st *state) error {
		st.sessions[token.ID] = *token
		return nil
	})
}

func (r *sessions) FindByID(_ context.Context, id uuid.UUID) (*domain.SessionToken, error) {
	var found *domain.SessionToken
	err := r.v.run("sessions.find", func(st *state) error {
		t, ok := st.sessions[id]
		if !ok {
			return repository.ErrSessionTokenNotFound
		}
		found = &t
		return nil
	})
	return found, err
}

func (r *sessions) Revoke(_ context.Context, id uuid.UUID) error {
	return r.v.run("sessions.revoke", func(st *state) error {
		t, ok := st.sessions[id]
		if !ok || t.Revoked {
			return repository.ErrSessionTokenNotFound
		}
		t.Revoked = true
		st.sessions[id] = t
		return nil
	})
}

func (r *sessions) RevokeAllForUser(_ context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := r.v.run("sessions.revoke_all", func(st *state) error {
		for id, t := range st.sessions {
			if t.UserID == userID && !t.Revoked {
				t.Revoked = true
				st.sessions[id] = t
				n++
			}
		}
		return nil
	})
	return n, err
}

type products struct{ v *view }

func (r *products) Create(_ context.Context, product *domain.Product) error {
	return r.v.run("products.create", func(st *state) error {
		st.products[product.ID] = *product
		return nil
	})
}

func (r *products) Update(_ context.Context, product *domain.Product) error {
	return r.v.run("products.update", func(st *state) error {
		if _, ok := st.products[product.ID]; !ok {
			return repository.ErrProductNotFound
		}
		st.products[product.ID] = *product
		return nil
	})
}

func (r *products) Delete(_ context.Context, id uuid.UUID) error {
	return r.v.run("products.delete", func(st *state) error {
		if _, ok := st.products[id]; !ok {
			return repository.ErrProductNotFound
		}
		delete(st.products, id)
		for lineID, row := range st.carts {
			if row.line.ProductID == id {
				delete(st.carts, lineID)
			}
		}
		for orderID, items := range st.items {
			for i := range items {
				if items[i].ProductID != nil && *items[i].ProductID == id {
					items[i].ProductID = nil
				}
			}
			st.items[orderID] = items
		}
		return nil
	})
}

func (r *products) FindByID(_ context.Context, id uuid.UUID) (*domain.Product, error) {
	var found *domain.Product
	err := r.v.run("products.find", func(st *state) error {
		p, ok := st.products[id]
		if !ok {
			return repository.ErrProductNotFound
		}
		found = &p
		return nil
	})
	return found, err
}

func (r *products) List(_ context.Context, search string) ([]*domain.Product, error) {
	result := []*domain.Product{}
	err := r.v.run("products.list", func(st *state) error {
		term := strings.ToLower(strings.TrimSpace(search))
		for _, p := range st.products {
			if term != "" &&
				!strings.Contains(strings.ToLower(p.Title), term) &&
				!strings.Contains(strings.ToLower(p.Description), term) {
				continue
			}
			p := p
			result = append(result, &p)
		}
		return nil
	})
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID.String() < result[j].ID.String()
	})
	return result, err
}

func (r *products) LockForUpdate(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*domain.Product, error) {
	locked := map[uuid.UUID]*domain.Product{}
	err := r.v.run("products.lock", func(st *state) error {
		for _, id := range ids {
			if p, ok := st.products[id]; ok {
				locked[id] = &p
			}
		}
		return nil
	})
	return locked, err
}

func (r *products) DecrementStock(_ context.Context, id uuid.UUID, quantity int) error {
	return r.v.run("products.decrement", func(st *state) error {
		p, ok := st.products[id]
		if !ok || p.Stock < quantity {
			return repository.ErrStockConflict
		}
		p.Stock -= quantity
		st.products[id] = p
		return nil
	})
}

type carts struct{ v *view }

func (r *carts) Save(_ context.Context, line *domain.CartLine) error {
	return r.v.run("carts.save", func(st *state) error {
		for id, row := range st.carts {
			if row.line.UserID == line.UserID && row.line.ProductID == line.ProductID {
				row.line.Quantity = line.Quantity
				row.line.UpdatedAt = line.UpdatedAt
				st.carts[id] = row
				line.ID = row.line.ID
				line.CreatedAt = row.line.CreatedAt
				return nil
			}
		}
		if _, ok := st.products[line.ProductID]; !ok {
			return repository.ErrProductNotFound
		}
		st.carts[line.ID] = cartRow{line: *line, seq: st.next()}
		return nil
	})
}

func (r *carts) FindForUser(_ context.Context, id, userID uuid.UUID) (*domain.CartLine, error) {
	var found *domain.CartLine
	err := r.v.run("carts.find", func(st *state) error {
		row, ok := st.carts[id]
		if !ok || row.line.UserID != userID {
			return repository.ErrCartLineNotFound
		}
		found = &row.line
		return nil
	})
	return found, err
}

func (r *carts) UpdateQuantity(_ context.Context, id, userID uuid.UUID, quantity int) error {
	return r.v.run("carts.update", func(st *state) error {
		row, ok := st.carts[id]
		if !ok || row.line.UserID != userID {
			return repository.ErrCartLineNotFound
		}
		row.line.Quantity = quantity
		row.line.UpdatedAt = time.Now()
		st.carts[id] = row
		return nil
	})
}

func (r *carts) Delete(_ context.Context, id, userID uuid.UUID) error {
	return r.v.run("carts.delete", func(st *state) error {
		row, ok := st.carts[id]
		if !ok || row.line.UserID != userID {
			return repository.ErrCartLineNotFound
		}
		delete(st.carts, id)
		return nil
	})
}

func sortedRows(st *state, userID uuid.UUID) []cartRow {
	rows := []cartRow{}
	for _, row := range st.carts {
		if row.line.UserID == userID {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows
}

func (r *carts) LockLines(_ context.Context, userID uuid.UUID) ([]*domain.CartLine, error) {
	lines := []*domain.CartLine{}
	err := r.v.run("carts.lines", func(st *state) error {
		for _, row := range sortedRows(st, userID) {
			line := row.line
			lines = append(lines, &line)
		}
		return nil
	})
	return lines, err
}

func (r *carts) Items(_ context.Context, userID uuid.UUID) ([]*domain.CartItem, error) {
	items := []*domain.CartItem{}
	err := r.v.run("carts.items", func(st *state) error {
		for _, row := range sortedRows(st, userID) {
			p, ok := st.products[row.line.ProductID]
			if !ok {
				continue
			}
			items = append(items, &domain.CartItem{
				ID:        row.line.ID,
				ProductID: p.ID,
				Title:     p.Title,
				Image:     p.Image,
				Price:     p.Price,
				Quantity:  row.line.Quantity,
				Stock:     p.Stock,
			})
		}
		return nil
	})
	return items, err
}

func (r *carts) RemoveLines(_ context.Context, userID uuid.UUID, ids []uuid.UUID) error {
	return r.v.run("carts.remove", func(st *state) error {
		for _, id := range ids {
			if row, ok := st.carts[id]; ok && row.line.UserID == userID {
				delete(st.carts, id)
			}
		}
		return nil
	})
}

type orders struct{ v *view }

func (r *orders) Create(_ context.Context, order *domain.Order) error {
	return r.v.run("orders.create", func(st *state) error {
		o := *order
		o.Items = nil
		st.orders[o.ID] = orderRow{order: o, seq: st.next()}
		return nil
	})
}

func (r *orders) AddItem(_ context.Context, item *domain.OrderItem) error {
	return r.v.run("orders.add_item", func(st *state) error {
		if _, ok := st.orders[item.OrderID]; !ok {
			return repository.ErrOrderNotFound
		}
		st.items[item.OrderID] = append(st.items[item.OrderID], *item)
		return nil
	})
}

func (r *orders) SetTotal(_ context.Context, id uuid.UUID, total decimal.Decimal) error {
	return r.v.run("orders.set_total", func(st *state) error {
		row, ok := st.orders[id]
		if !ok {
			return repository.ErrOrderNotFound
		}
		row.order.Total = total
		st.orders[id] = row
		return nil
	})
}

func assemble(st *state, row orderRow) *domain.Order {
	order := row.order
	order.Items = []domain.OrderItem{}
	for _, item := range st.items[order.ID] {
		if item.ProductID != nil {
			if p, ok := st.products[*item.ProductID]; ok {
				item.ProductTitle = p.Title
			}
		}
		order.Items = append(order.Items, item)
	}
	sort.Slice(order.Items, func(i, j int) bool { return order.Items[i].Position < order.Items[j].Position })
	return &order
}

func (r *orders) FindByID(_ context.Context, id uuid.UUID) (*domain.Order, error) {
	var found *domain.Order
	err := r.v.run("orders.find", func(st *state) error {
		row, ok := st.orders[id]
		if !ok {
			return repository.ErrOrderNotFound
		}
		found = assemble(st, row)
		return nil
	})
	return found, err
}

func (r *orders) List(_ context.Context) ([]*domain.Order, error) {
	result := []*domain.Order{}
	err := r.v.run("orders.list", func(st *state) error {
		rows := make([]orderRow, 0, len(st.orders))
		for _, row := range st.orders {
			rows = append(rows, row)
		}
		sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
		for _, row := range rows {
			result = append(result, assemble(st, row))
		}
		return nil
	})
	return result, err
}
