package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/sqldb"
	"github.com/orderdesk/api/internal/repositories"
)

// InventoryRepository mutates product stock with storage-level availability checks.
type InventoryRepository struct {
	provider *sqldb.Provider
}

// NewInventoryRepository constructs a SQL-backed inventory repository.
func NewInventoryRepository(provider *sqldb.Provider) (*InventoryRepository, error) {
	if provider == nil {
		return nil, errors.New("inventory repository requires sql provider")
	}
	return &InventoryRepository{provider: provider}, nil
}

// Decrement lowers stock only when enough is available. The guard lives in the UPDATE itself so
// concurrent decrements cannot drive stock negative or lose updates.
func (r *InventoryRepository) Decrement(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	const op = "inventory.decrement"
	productID = strings.TrimSpace(productID)
	if quantity <= 0 {
		return domain.Product{}, invalidQuantity(op, productID, quantity)
	}

	q := r.provider.Querier(ctx)
	row := q.QueryRowContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity - $1
		 WHERE id = $2 AND stock_quantity >= $3
		 RETURNING `+productColumns,
		quantity, productID, quantity)
	product, err := scanProduct(row)
	if err == nil {
		return product, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return domain.Product{}, sqldb.WrapError(op, err)
	}

	current, err := scanProduct(q.QueryRowContext(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, productID))
	if errors.Is(err, sql.ErrNoRows) {
		invErr := repositories.NewInventoryError(repositories.InventoryErrorStockNotFound,
			fmt.Sprintf("product %s not found", productID), sqldb.NotFound(op, "product %s", productID))
		invErr.Op = op
		invErr.ProductID = productID
		return domain.Product{}, invErr
	}
	if err != nil {
		return domain.Product{}, sqldb.WrapError(op, err)
	}

	invErr := repositories.NewInventoryError(repositories.InventoryErrorInsufficientStock,
		fmt.Sprintf("insufficient stock for %s: available %d, requested %d", current.Name, current.StockQuantity, quantity), nil)
	invErr.Op = op
	invErr.ProductID = productID
	invErr.Available = current.StockQuantity
	invErr.Requested = quantity
	return domain.Product{}, invErr
}

// Increment restores stock for an existing product.
func (r *InventoryRepository) Increment(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	const op = "inventory.increment"
	productID = strings.TrimSpace(productID)
	if quantity <= 0 {
		return domain.Product{}, invalidQuantity(op, productID, quantity)
	}

	row := r.provider.Querier(ctx).QueryRowContext(ctx,
		`UPDATE products SET stock_quantity = stock_quantity + $1 WHERE id = $2 RETURNING `+productColumns,
		quantity, productID)
	product, err := scanProduct(row)
	if errors.Is(err, sql.ErrNoRows) {
		invErr := repositories.NewInventoryError(repositories.InventoryErrorStockNotFound,
			fmt.Sprintf("product %s not found", productID), sqldb.NotFound(op, "product %s", productID))
		invErr.Op = op
		invErr.ProductID = productID
		return domain.Product{}, invErr
	}
	if err != nil {
		return domain.Product{}, sqldb.WrapError(op, err)
	}
	return product, nil
}

func invalidQuantity(op, productID string, quantity int) *repositories.InventoryError {
	invErr := repositories.NewInventoryError(repositories.InventoryErrorInvalidQuantity,
		fmt.Sprintf("quantity for %s must be > 0, got %d", productID, quantity), nil)
	invErr.Op = op
	invErr.ProductID = productID
	invErr.Requested = quantity
	return invErr
}
