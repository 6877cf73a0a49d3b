package sqlstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

func TestSeededReferenceData(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	customers, err := reg.Customers().List(ctx)
	require.NoError(t, err)
	require.Len(t, customers, 3)
	assert.Equal(t, "John Doe", customers[0].FullName())

	customer, err := reg.Customers().FindByID(ctx, "cus_002")
	require.NoError(t, err)
	assert.Equal(t, "jane.smith@example.com", customer.Email)

	ok, err := reg.Customers().Exists(ctx, "cus_404")
	require.NoError(t, err)
	assert.False(t, ok)

	products, err := reg.Products().List(ctx)
	require.NoError(t, err)
	require.Len(t, products, 4)
	assert.True(t, decimal.RequireFromString("19.99").Equal(products[0].Price))

	found, err := reg.Products().FindByIDs(ctx, []string{"prd_001", "prd_003", "prd_001", "prd_missing"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Contains(t, found, "prd_003")

	addresses, err := reg.Addresses().ListByCustomer(ctx, "cus_001")
	require.NoError(t, err)
	assert.Len(t, addresses, 2)

	all, err := reg.Addresses().List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	addr, err := reg.Addresses().FindByID(ctx, "adr_003")
	require.NoError(t, err)
	assert.Equal(t, "cus_002", addr.CustomerID)

	_, err = reg.Products().FindByID(ctx, "prd_missing")
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())
}

func TestUserRepository(t *testing.T) {
	reg := newTestRegistry(t)
	ctx := context.Background()

	user := domain.User{
		ID:           "usr_001",
		Username:     "alice",
		PasswordHash: "hash",
		Role:         "USER",
		CreatedAt:    time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	require.NoError(t, reg.Users().Insert(ctx, user))

	got, err := reg.Users().FindByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)
	assert.Equal(t, "hash", got.PasswordHash)
	assert.Equal(t, "USER", got.Role)
	assert.True(t, user.CreatedAt.Equal(got.CreatedAt))

	dup := user
	dup.ID = "usr_002"
	err = reg.Users().Insert(ctx, dup)
	var repoErr repositories.RepositoryError
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsConflict())

	_, err = reg.Users().FindByUsername(ctx, "bob")
	require.True(t, errors.As(err, &repoErr))
	assert.True(t, repoErr.IsNotFound())
}

func TestRegistryHealthIncludesDatabase(t *testing.T) {
	reg := newTestRegistry(t)

	report, err := reg.Health().Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.HealthStatusOK, report.Status)
	assert.Contains(t, report.Checks, "database")
}
