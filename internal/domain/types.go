package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pagination defines standard cursor-based paging inputs for list operations.
type Pagination struct {
	PageSize  int
	PageToken string
}

// CursorPage packages list results with an encoded next token.
type CursorPage[T any] struct {
	Items         []T
	NextPageToken string
}

// OrderStatus enumerates the well-known lifecycle states for orders. Statuses are free-form
// uppercase strings; only PENDING and CANCELLED carry behaviour.
type OrderStatus string

const (
	// OrderStatusPending is assigned on creation and is the only cancellable state.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusCancelled marks an order whose stock has been restored.
	OrderStatusCancelled OrderStatus = "CANCELLED"
	OrderStatusShipped   OrderStatus = "SHIPPED"
	OrderStatusCompleted OrderStatus = "COMPLETED"
)

// Customer is the party placing orders.
type Customer struct {
	ID        string
	FirstName string
	LastName  string
	Email     string
	Phone     string
	CreatedAt time.Time
}

// FullName joins first and last name for display.
func (c Customer) FullName() string {
	switch {
	case c.FirstName == "":
		return c.LastName
	case c.LastName == "":
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// Address is a contact mechanism owned by a single customer.
type Address struct {
	ID            string
	CustomerID    string
	StreetAddress string
	City          string
	State         string
	PostalCode    string
	Phone         string
	Email         string
}

// Product is a sellable item with its live price and available stock.
type Product struct {
	ID            string
	Name          string
	Color         string
	Size          string
	Price         decimal.Decimal
	StockQuantity int
}

// Order is the order header plus its line items.
type Order struct {
	ID                string
	CustomerID        string
	OrderDate         time.Time
	Status            string
	ShippingAddressID *string
	BillingAddressID  *string
	TotalAmount       decimal.Decimal
	Lines             []OrderLine
	UpdatedAt         time.Time
}

// OrderLine is one product/quantity entry within an order. UnitPrice is a snapshot taken when
// the line was created and never follows later product price changes.
type OrderLine struct {
	OrderID   string
	SeqID     int
	ProductID string
	Quantity  int
	UnitPrice decimal.Decimal
	Subtotal  decimal.Decimal
	Status    string
}

// LineTotal returns quantity multiplied by the unit price snapshot.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity))).Round(2)
}

// SumLines totals the subtotals of the provided lines.
func SumLines(lines []OrderLine) decimal.Decimal {
	total := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.Subtotal)
	}
	return total.Round(2)
}

// UserRoleUser is the role assigned to self-registered accounts.
const UserRoleUser = "USER"

// User is an API account able to obtain tokens.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

const (
	// HealthStatusOK indicates all dependencies are healthy.
	HealthStatusOK = "ok"
	// HealthStatusDegraded indicates at least one dependency is degraded but service remains running.
	HealthStatusDegraded = "degraded"
	// HealthStatusError indicates the service or a critical dependency is unavailable.
	HealthStatusError = "error"
)

// HealthCheck describes the outcome of an individual dependency probe.
type HealthCheck struct {
	Status    string
	Detail    string
	Error     string
	Latency   time.Duration
	CheckedAt time.Time
}

// HealthReport aggregates dependency status for readiness endpoints.
type HealthReport struct {
	Status      string
	Checks      map[string]HealthCheck
	GeneratedAt time.Time
}
