package sqlstore

import (
	"context"
	"errors"
	"strings"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/sqldb"
)

const customerColumns = `id, first_name, last_name, email, phone, created_at`

// CustomerRepository reads customers from the relational store.
type CustomerRepository struct {
	provider *sqldb.Provider
}

// NewCustomerRepository constructs a SQL-backed customer repository.
func NewCustomerRepository(provider *sqldb.Provider) (*CustomerRepository, error) {
	if provider == nil {
		return nil, errors.New("customer repository requires sql provider")
	}
	return &CustomerRepository{provider: provider}, nil
}

// FindByID loads a single customer.
func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (domain.Customer, error) {
	row := r.provider.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+customerColumns+` FROM customers WHERE id = $1`, strings.TrimSpace(customerID))
	customer, err := scanCustomer(row)
	if err != nil {
		return domain.Customer{}, sqldb.WrapError("customers.find", err)
	}
	return customer, nil
}

// Exists reports whether the customer id resolves.
func (r *CustomerRepository) Exists(ctx context.Context, customerID string) (bool, error) {
	return exists(ctx, r.provider, "customers.exists", `SELECT 1 FROM customers WHERE id = $1`, strings.TrimSpace(customerID))
}

// List returns every customer ordered by id.
func (r *CustomerRepository) List(ctx context.Context) ([]domain.Customer, error) {
	rows, err := r.provider.Querier(ctx).QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY id`)
	if err != nil {
		return nil, sqldb.WrapError("customers.list", err)
	}
	defer rows.Close()

	customers := make([]domain.Customer, 0)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, sqldb.WrapError("customers.list", err)
		}
		customers = append(customers, customer)
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.WrapError("customers.list", err)
	}
	return customers, nil
}

func scanCustomer(row scanner) (domain.Customer, error) {
	var c domain.Customer
	if err := row.Scan(&c.ID, &c.FirstName, &c.LastName, &c.Email, &c.Phone, &c.CreatedAt); err != nil {
		return domain.Customer{}, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	return c, nil
}
