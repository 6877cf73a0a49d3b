package sqlstore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/sqldb"
)

const productColumns = `id, name, color, size, price, stock_quantity`

// ProductRepository reads the product catalogue.
type ProductRepository struct {
	provider *sqldb.Provider
}

// NewProductRepository constructs a SQL-backed product repository.
func NewProductRepository(provider *sqldb.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires sql provider")
	}
	return &ProductRepository{provider: provider}, nil
}

// FindByID loads a single product with its current stock.
func (r *ProductRepository) FindByID(ctx context.Context, productID string) (domain.Product, error) {
	row := r.provider.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id = $1`, strings.TrimSpace(productID))
	product, err := scanProduct(row)
	if err != nil {
		return domain.Product{}, sqldb.WrapError("products.find", err)
	}
	return product, nil
}

// FindByIDs loads the products that exist among ids. Missing ids are absent from the result.
func (r *ProductRepository) FindByIDs(ctx context.Context, productIDs []string) (map[string]domain.Product, error) {
	result := make(map[string]domain.Product, len(productIDs))
	if len(productIDs) == 0 {
		return result, nil
	}

	seen := make(map[string]struct{}, len(productIDs))
	args := make([]any, 0, len(productIDs))
	for _, id := range productIDs {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; dup || id == "" {
			continue
		}
		seen[id] = struct{}{}
		args = append(args, id)
	}
	if len(args) == 0 {
		return result, nil
	}

	rows, err := r.provider.Querier(ctx).QueryContext(ctx,
		`SELECT `+productColumns+` FROM products WHERE id IN (`+placeholders(1, len(args))+`)`, args...)
	if err != nil {
		return nil, sqldb.WrapError("products.find_many", err)
	}
	defer rows.Close()

	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, sqldb.WrapError("products.find_many", err)
		}
		result[product.ID] = product
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.WrapError("products.find_many", err)
	}
	return result, nil
}

// List returns every product ordered by id.
func (r *ProductRepository) List(ctx context.Context) ([]domain.Product, error) {
	rows, err := r.provider.Querier(ctx).QueryContext(ctx, `SELECT `+productColumns+` FROM products ORDER BY id`)
	if err != nil {
		return nil, sqldb.WrapError("products.list", err)
	}
	defer rows.Close()

	products := make([]domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, sqldb.WrapError("products.list", err)
		}
		products = append(products, product)
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.WrapError("products.list", err)
	}
	return products, nil
}

func scanProduct(row scanner) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.Name, &p.Color, &p.Size, &p.Price, &p.StockQuantity)
	return p, err
}
