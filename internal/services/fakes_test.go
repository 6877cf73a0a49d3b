package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

type fakeRepoError struct {
	msg         string
	notFound    bool
	conflict    bool
	unavailable bool
}

func (e *fakeRepoError) Error() string       { return e.msg }
func (e *fakeRepoError) IsNotFound() bool    { return e.notFound }
func (e *fakeRepoError) IsConflict() bool    { return e.conflict }
func (e *fakeRepoError) IsUnavailable() bool { return e.unavailable }

func notFoundErr(format string, args ...any) error {
	return &fakeRepoError{msg: fmt.Sprintf(format, args...) + " not found", notFound: true}
}

func conflictErr(format string, args ...any) error {
	return &fakeRepoError{msg: fmt.Sprintf(format, args...), conflict: true}
}

var errFakeUnavailable = &fakeRepoError{msg: "connection refused", unavailable: true}

// memoryStore backs every repository interface the services use. RunInTx snapshots state and
// restores it when fn fails, mirroring a database rollback.
type memoryStore struct {
	mu        sync.Mutex
	customers map[string]domain.Customer
	addresses map[string]domain.Address
	products  map[string]domain.Product
	orders    map[string]domain.Order
	users     map[string]domain.User

	failOrderInsert error
	failOrderUpdate error
	txCount         int
	rollbacks       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		customers: map[string]domain.Customer{
			"cus_001": {ID: "cus_001", FirstName: "John", LastName: "Doe", Email: "john.doe@example.com"},
			"cus_002": {ID: "cus_002", FirstName: "Jane", LastName: "Smith", Email: "jane.smith@example.com"},
		},
		addresses: map[string]domain.Address{
			"adr_001": {ID: "adr_001", CustomerID: "cus_001", StreetAddress: "1600 Amphitheatre Parkway", City: "Mountain View"},
			"adr_002": {ID: "adr_002", CustomerID: "cus_001", StreetAddress: "1 Infinite Loop", City: "Cupertino"},
		},
		products: map[string]domain.Product{
			"prd_001": {ID: "prd_001", Name: "T-Shirt", Price: decimal.RequireFromString("19.99"), StockQuantity: 100},
			"prd_002": {ID: "prd_002", Name: "Jeans", Price: decimal.RequireFromString("49.50"), StockQuantity: 50},
			"prd_003": {ID: "prd_003", Name: "Sneakers", Price: decimal.RequireFromString("89.00"), StockQuantity: 2},
		},
		orders: map[string]domain.Order{},
		users:  map[string]domain.User{},
	}
}

type memorySnapshot struct {
	products map[string]domain.Product
	orders   map[string]domain.Order
	users    map[string]domain.User
}

func (m *memoryStore) snapshot() memorySnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	orders := make(map[string]domain.Order, len(m.orders))
	for id, order := range m.orders {
		order.Lines = slices.Clone(order.Lines)
		orders[id] = order
	}
	return memorySnapshot{products: maps.Clone(m.products), orders: orders, users: maps.Clone(m.users)}
}

func (m *memoryStore) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products, m.orders, m.users = s.products, s.orders, s.users
}

func (m *memoryStore) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	m.txCount++
	snap := m.snapshot()
	if err := fn(ctx); err != nil {
		m.rollbacks++
		m.restore(snap)
		return err
	}
	return nil
}

func (m *memoryStore) stock(productID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.products[productID].StockQuantity
}

// customers

type memoryCustomers struct{ *memoryStore }

func (r memoryCustomers) FindByID(_ context.Context, id string) (domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	customer, ok := r.customers[id]
	if !ok {
		return domain.Customer{}, notFoundErr("customer %s", id)
	}
	return customer, nil
}

func (r memoryCustomers) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.customers[id]
	return ok, nil
}

func (r memoryCustomers) List(context.Context) ([]domain.Customer, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Collect(maps.Values(r.customers))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// addresses

type memoryAddresses struct{ *memoryStore }

func (r memoryAddresses) FindByID(_ context.Context, id string) (domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	address, ok := r.addresses[id]
	if !ok {
		return domain.Address{}, notFoundErr("address %s", id)
	}
	return address, nil
}

func (r memoryAddresses) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.addresses[id]
	return ok, nil
}

func (r memoryAddresses) List(context.Context) ([]domain.Address, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Collect(maps.Values(r.addresses))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r memoryAddresses) ListByCustomer(ctx context.Context, customerID string) ([]domain.Address, error) {
	all, _ := r.List(ctx)
	out := make([]domain.Address, 0)
	for _, a := range all {
		if a.CustomerID == customerID {
			out = append(out, a)
		}
	}
	return out, nil
}

// products and inventory

type memoryProducts struct{ *memoryStore }

func (r memoryProducts) FindByID(_ context.Context, id string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[id]
	if !ok {
		return domain.Product{}, notFoundErr("product %s", id)
	}
	return product, nil
}

func (r memoryProducts) FindByIDs(_ context.Context, ids []string) (map[string]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if product, ok := r.products[id]; ok {
			out[id] = product
		}
	}
	return out, nil
}

func (r memoryProducts) List(context.Context) ([]domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := slices.Collect(maps.Values(r.products))
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type memoryInventory struct{ *memoryStore }

func (r memoryInventory) Decrement(_ context.Context, productID string, quantity int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		invErr := repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, "product not found", notFoundErr("product %s", productID))
		invErr.ProductID = productID
		return domain.Product{}, invErr
	}
	if product.StockQuantity < quantity {
		invErr := repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock, "insufficient stock", nil)
		invErr.ProductID = productID
		invErr.Available = product.StockQuantity
		invErr.Requested = quantity
		return domain.Product{}, invErr
	}
	product.StockQuantity -= quantity
	r.products[productID] = product
	return product, nil
}

func (r memoryInventory) Increment(_ context.Context, productID string, quantity int) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		invErr := repositories.NewInventoryError(repositories.InventoryErrorStockNotFound, "product not found", nil)
		invErr.ProductID = productID
		return domain.Product{}, invErr
	}
	product.StockQuantity += quantity
	r.products[productID] = product
	return product, nil
}

// orders

type memoryOrders struct{ *memoryStore }

func (r memoryOrders) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOrderInsert != nil {
		return r.failOrderInsert
	}
	if _, ok := r.orders[order.ID]; ok {
		return conflictErr("order %s exists", order.ID)
	}
	if _, ok := r.customers[order.CustomerID]; !ok {
		return conflictErr("customer %s violates foreign key", order.CustomerID)
	}
	order.Lines = slices.Clone(order.Lines)
	r.orders[order.ID] = order
	return nil
}

func (r memoryOrders) UpdateHeader(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOrderUpdate != nil {
		return r.failOrderUpdate
	}
	current, ok := r.orders[order.ID]
	if !ok {
		return notFoundErr("order %s", order.ID)
	}
	current.Status = order.Status
	current.ShippingAddressID = order.ShippingAddressID
	current.BillingAddressID = order.BillingAddressID
	current.TotalAmount = order.TotalAmount
	current.UpdatedAt = order.UpdatedAt
	r.orders[order.ID] = current
	return nil
}

func (r memoryOrders) TransitionStatus(_ context.Context, orderID, from, to string, updatedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOrderUpdate != nil {
		return r.failOrderUpdate
	}
	current, ok := r.orders[orderID]
	if !ok {
		return notFoundErr("order %s", orderID)
	}
	if current.Status != from {
		return conflictErr("order %s is no longer %s", orderID, from)
	}
	current.Status = to
	current.UpdatedAt = updatedAt
	r.orders[orderID] = current
	return nil
}

func (r memoryOrders) FindByID(_ context.Context, id string) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, notFoundErr("order %s", id)
	}
	order.Lines = slices.Clone(order.Lines)
	return order, nil
}

func (r memoryOrders) Exists(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[id]
	return ok, nil
}

func (r memoryOrders) List(_ context.Context, filter repositories.OrderListFilter) (domain.CursorPage[domain.Order], error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Order, 0)
	for _, order := range r.orders {
		if filter.CustomerID != "" && order.CustomerID != filter.CustomerID {
			continue
		}
		if filter.Status != "" && order.Status != filter.Status {
			continue
		}
		order.Lines = slices.Clone(order.Lines)
		out = append(out, order)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return domain.CursorPage[domain.Order]{Items: out}, nil
}

func (r memoryOrders) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.orders[id]; !ok {
		return notFoundErr("order %s", id)
	}
	delete(r.orders, id)
	return nil
}

func (r memoryOrders) FindLines(ctx context.Context, orderID string) ([]domain.OrderLine, error) {
	order, err := r.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return order.Lines, nil
}

func (r memoryOrders) FindLine(ctx context.Context, orderID string, seqID int) (domain.OrderLine, error) {
	lines, err := r.FindLines(ctx, orderID)
	if err != nil {
		return domain.OrderLine{}, err
	}
	if idx := lineIndex(lines, seqID); idx >= 0 {
		return lines[idx], nil
	}
	return domain.OrderLine{}, notFoundErr("order %s line %d", orderID, seqID)
}

func (r memoryOrders) NextLineSeq(ctx context.Context, orderID string) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	next := 1
	for _, line := range r.orders[orderID].Lines {
		if line.SeqID >= next {
			next = line.SeqID + 1
		}
	}
	return next, nil
}

func (r memoryOrders) InsertLine(_ context.Context, line domain.OrderLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order, ok := r.orders[line.OrderID]
	if !ok {
		return conflictErr("order %s violates foreign key", line.OrderID)
	}
	order.Lines = append(slices.Clone(order.Lines), line)
	r.orders[line.OrderID] = order
	return nil
}

func (r memoryOrders) UpdateLine(_ context.Context, line domain.OrderLine) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.orders[line.OrderID]
	idx := lineIndex(order.Lines, line.SeqID)
	if idx < 0 {
		return notFoundErr("order %s line %d", line.OrderID, line.SeqID)
	}
	order.Lines = slices.Clone(order.Lines)
	order.Lines[idx] = line
	r.orders[line.OrderID] = order
	return nil
}

func (r memoryOrders) DeleteLine(_ context.Context, orderID string, seqID int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order := r.orders[orderID]
	idx := lineIndex(order.Lines, seqID)
	if idx < 0 {
		return notFoundErr("order %s line %d", orderID, seqID)
	}
	order.Lines = slices.Delete(slices.Clone(order.Lines), idx, idx+1)
	r.orders[orderID] = order
	return nil
}

// users

type memoryUsers struct{ *memoryStore }

func (r memoryUsers) Insert(_ context.Context, user domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(user.Username)
	if _, ok := r.users[key]; ok {
		return conflictErr("username %s taken", user.Username)
	}
	r.users[key] = user
	return nil
}

func (r memoryUsers) FindByUsername(_ context.Context, username string) (domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[strings.ToLower(username)]
	if !ok {
		return domain.User{}, notFoundErr("user %s", username)
	}
	return user, nil
}

type captureOrderEvents struct {
	events []OrderEvent
	err    error
}

func (c *captureOrderEvents) PublishOrderEvent(_ context.Context, event OrderEvent) error {
	c.events = append(c.events, event)
	return c.err
}

func (c *captureOrderEvents) types() []string {
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

type countingMetrics struct {
	created      int
	cancelled    int
	insufficient []string
}

func (m *countingMetrics) OrderCreated(context.Context, int, decimal.Decimal) { m.created++ }
func (m *countingMetrics) OrderCancelled(context.Context)                     { m.cancelled++ }
func (m *countingMetrics) InsufficientStock(_ context.Context, productID string) {
	m.insufficient = append(m.insufficient, productID)
}

var errBoom = errors.New("boom")

var fixedNow = time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)

func sequentialIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s%03d", prefix, n)
	}
}
