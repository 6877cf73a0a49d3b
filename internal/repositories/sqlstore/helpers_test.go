package sqlstore

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/config"
	"github.com/orderdesk/api/internal/platform/sqldb"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()

	provider, err := sqldb.Open(context.Background(), config.DatabaseConfig{Driver: "sqlite"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	require.NoError(t, provider.Migrate())

	reg, err := NewRegistry(provider)
	require.NoError(t, err)
	return reg
}

func testOrder(id string, status string, lines ...domain.OrderLine) domain.Order {
	shipping := "adr_001"
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := range lines {
		lines[i].OrderID = id
		if lines[i].SeqID == 0 {
			lines[i].SeqID = i + 1
		}
		lines[i].Subtotal = domain.LineTotal(lines[i].UnitPrice, lines[i].Quantity)
	}
	return domain.Order{
		ID:                id,
		CustomerID:        "cus_001",
		OrderDate:         now,
		Status:            status,
		ShippingAddressID: &shipping,
		TotalAmount:       domain.SumLines(lines),
		Lines:             lines,
		UpdatedAt:         now,
	}
}

func line(productID string, qty int, price string) domain.OrderLine {
	return domain.OrderLine{ProductID: productID, Quantity: qty, UnitPrice: decimal.RequireFromString(price)}
}
