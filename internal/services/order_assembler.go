package services

import (
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/orderdesk/api/internal/domain"
)

// OrderView is an order joined with the display data clients need.
type OrderView struct {
	ID                string
	CustomerID        string
	CustomerName      string
	OrderDate         time.Time
	Status            string
	ShippingAddressID *string
	BillingAddressID  *string
	TotalAmount       decimal.Decimal
	Items             []OrderLineView
	UpdatedAt         time.Time
}

// OrderLineView is a line joined with its product name.
type OrderLineView struct {
	OrderID     string
	SeqID       int
	ProductID   string
	ProductName string
	Quantity    int
	UnitPrice   decimal.Decimal
	Subtotal    decimal.Decimal
	Status      string
}

// AssembleOrder joins order, its customer and the products referenced by its lines. Lines whose
// product is missing from products keep an empty name. It does no I/O.
func AssembleOrder(order domain.Order, customer domain.Customer, products map[string]domain.Product) OrderView {
	items := make([]OrderLineView, 0, len(order.Lines))
	for _, line := range order.Lines {
		items = append(items, AssembleLine(line, products[line.ProductID]))
	}
	return OrderView{
		ID:                order.ID,
		CustomerID:        order.CustomerID,
		CustomerName:      customer.FullName(),
		OrderDate:         order.OrderDate,
		Status:            order.Status,
		ShippingAddressID: cloneStringPtr(order.ShippingAddressID),
		BillingAddressID:  cloneStringPtr(order.BillingAddressID),
		TotalAmount:       order.TotalAmount,
		Items:             items,
		UpdatedAt:         order.UpdatedAt,
	}
}

// AssembleLine joins a single line with its product.
func AssembleLine(line domain.OrderLine, product domain.Product) OrderLineView {
	return OrderLineView{
		OrderID:     line.OrderID,
		SeqID:       line.SeqID,
		ProductID:   line.ProductID,
		ProductName: product.Name,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice,
		Subtotal:    line.Subtotal,
		Status:      line.Status,
	}
}

func cloneStringPtr(value *string) *string {
	if value == nil {
		return nil
	}
	v := *value
	return &v
}
