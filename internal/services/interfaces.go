package services

import (
	"context"
	"errors"
	"time"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

// Domain aliases keep handler signatures free of the domain import where only shapes matter.
type (
	Customer = domain.Customer
	Address  = domain.Address
	Product  = domain.Product
)

// OrderListFilter narrows order listings; see repositories.OrderListFilter.
type OrderListFilter = repositories.OrderListFilter

// ErrUnavailable marks failures caused by an unreachable backing store.
var ErrUnavailable = errors.New("service unavailable")

// OrderService owns the order lifecycle. Every mutating call runs in a single unit of work.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderView, error)
	GetOrder(ctx context.Context, orderID string) (OrderView, error)
	ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error)
	ListOrdersByCustomer(ctx context.Context, customerID string) ([]OrderView, error)
	UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (OrderView, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (OrderView, error)
	CancelOrder(ctx context.Context, cmd CancelOrderCommand) (OrderView, error)
	DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error
	AddOrderItem(ctx context.Context, cmd AddOrderItemCommand) (OrderLineView, error)
	UpdateOrderItem(ctx context.Context, cmd UpdateOrderItemCommand) (OrderLineView, error)
	DeleteOrderItem(ctx context.Context, cmd DeleteOrderItemCommand) error
}

// InventoryService is the stock ledger. Both operations join the caller's transaction through ctx.
type InventoryService interface {
	CheckAndDecrement(ctx context.Context, productID string, quantity int) (domain.Product, error)
	Increment(ctx context.Context, productID string, quantity int) (domain.Product, error)
}

// ReferenceService exposes read-only customer, product and address data.
type ReferenceService interface {
	ListCustomers(ctx context.Context) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (domain.Customer, error)
	ListCustomerAddresses(ctx context.Context, customerID string) ([]domain.Address, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	GetProduct(ctx context.Context, productID string) (domain.Product, error)
	ListContacts(ctx context.Context) ([]domain.Address, error)
}

// AuthService registers accounts and exchanges credentials for bearer tokens.
type AuthService interface {
	Register(ctx context.Context, cmd RegisterCommand) (AuthResult, error)
	Login(ctx context.Context, cmd LoginCommand) (AuthResult, error)
}

// SystemService reports process and dependency health.
type SystemService interface {
	HealthReport(ctx context.Context) (SystemHealthReport, error)
}

// OrderItemInput is one requested line on order creation.
type OrderItemInput struct {
	ProductID string
	Quantity  int
}

// CreateOrderCommand creates a PENDING order and decrements stock for every item.
type CreateOrderCommand struct {
	CustomerID        string
	ShippingAddressID *string
	BillingAddressID  *string
	Items             []OrderItemInput
	ActorID           string
}

// UpdateOrderCommand changes order addresses. Nil fields are left untouched.
type UpdateOrderCommand struct {
	OrderID           string
	ShippingAddressID *string
	BillingAddressID  *string
	ActorID           string
}

// UpdateOrderStatusCommand sets a free-form status, normalised to upper case.
type UpdateOrderStatusCommand struct {
	OrderID string
	Status  string
	ActorID string
}

// CancelOrderCommand cancels a PENDING order and restores its stock.
type CancelOrderCommand struct {
	OrderID string
	ActorID string
}

// DeleteOrderCommand removes an order and its lines without touching stock.
type DeleteOrderCommand struct {
	OrderID string
	ActorID string
}

// AddOrderItemCommand appends a line to an existing order.
type AddOrderItemCommand struct {
	OrderID   string
	ProductID string
	Quantity  int
	Status    *string
	ActorID   string
}

// UpdateOrderItemCommand patches one line. Nil fields are left untouched.
type UpdateOrderItemCommand struct {
	OrderID  string
	SeqID    int
	Quantity *int
	Status   *string
	ActorID  string
}

// DeleteOrderItemCommand removes one line.
type DeleteOrderItemCommand struct {
	OrderID string
	SeqID   int
	ActorID string
}

// RegisterCommand creates an account.
type RegisterCommand struct {
	Username string
	Password string
}

// LoginCommand authenticates an existing account.
type LoginCommand struct {
	Username string
	Password string
}

// AuthResult is returned by both Register and Login.
type AuthResult struct {
	Token     string
	Username  string
	Role      string
	ExpiresAt time.Time
}

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemHealthReport extends the dependency report with build metadata.
type SystemHealthReport struct {
	Status      string
	Checks      map[string]domain.HealthCheck
	Version     string
	CommitSHA   string
	Environment string
	Uptime      time.Duration
	GeneratedAt time.Time
}
