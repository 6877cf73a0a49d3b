package repositories

import (
	"context"
	"time"

	domain "github.com/orderdesk/api/internal/domain"
)

// Registry exposes typed repository accessors and lifecycle hooks for dependency injection.
type Registry interface {
	Close(ctx context.Context) error

	Customers() CustomerRepository
	Products() ProductRepository
	Addresses() AddressRepository
	Inventory() InventoryRepository
	Orders() OrderRepository
	Users() UserRepository
	Health() HealthRepository
	UnitOfWork
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
// Repositories invoked with the ctx passed to fn participate in the same transaction.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// CustomerRepository provides read access to customers.
type CustomerRepository interface {
	FindByID(ctx context.Context, customerID string) (domain.Customer, error)
	Exists(ctx context.Context, customerID string) (bool, error)
	List(ctx context.Context) ([]domain.Customer, error)
}

// ProductRepository provides read access to the product catalogue.
type ProductRepository interface {
	FindByID(ctx context.Context, productID string) (domain.Product, error)
	FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
}

// AddressRepository provides read access to customer contact addresses.
type AddressRepository interface {
	FindByID(ctx context.Context, addressID string) (domain.Address, error)
	Exists(ctx context.Context, addressID string) (bool, error)
	List(ctx context.Context) ([]domain.Address, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Address, error)
}

// InventoryRepository mutates product stock. Decrement must be atomic with its availability check.
type InventoryRepository interface {
	Decrement(ctx context.Context, productID string, quantity int) (domain.Product, error)
	Increment(ctx context.Context, productID string, quantity int) (domain.Product, error)
}

// OrderListFilter narrows order listings.
type OrderListFilter struct {
	CustomerID string
	Status     string
	Pagination domain.Pagination
}

// OrderRepository persists order headers and their lines.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	UpdateHeader(ctx context.Context, order domain.Order) error
	// TransitionStatus changes the status only while the stored status still equals from.
	// It reports a conflict when another writer moved the order first.
	TransitionStatus(ctx context.Context, orderID, from, to string, updatedAt time.Time) error
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	Exists(ctx context.Context, orderID string) (bool, error)
	List(ctx context.Context, filter OrderListFilter) (domain.CursorPage[domain.Order], error)
	Delete(ctx context.Context, orderID string) error

	FindLines(ctx context.Context, orderID string) ([]domain.OrderLine, error)
	FindLine(ctx context.Context, orderID string, seqID int) (domain.OrderLine, error)
	NextLineSeq(ctx context.Context, orderID string) (int, error)
	InsertLine(ctx context.Context, line domain.OrderLine) error
	UpdateLine(ctx context.Context, line domain.OrderLine) error
	DeleteLine(ctx context.Context, orderID string, seqID int) error
}

// UserRepository stores API accounts.
type UserRepository interface {
	Insert(ctx context.Context, user domain.User) error
	FindByUsername(ctx context.Context, username string) (domain.User, error)
}

// HealthRepository probes backing stores for readiness.
type HealthRepository interface {
	Collect(ctx context.Context) (domain.HealthReport, error)
}
