package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/sqldb"
)

const addressColumns = `id, customer_id, street_address, city, state, postal_code, phone_number, email`

// AddressRepository reads customer contact addresses.
type AddressRepository struct {
	provider *sqldb.Provider
}

// NewAddressRepository constructs a SQL-backed address repository.
func NewAddressRepository(provider *sqldb.Provider) (*AddressRepository, error) {
	if provider == nil {
		return nil, errors.New("address repository requires sql provider")
	}
	return &AddressRepository{provider: provider}, nil
}

// FindByID loads a single address.
func (r *AddressRepository) FindByID(ctx context.Context, addressID string) (domain.Address, error) {
	row := r.provider.Querier(ctx).QueryRowContext(ctx,
		`SELECT `+addressColumns+` FROM contact_addresses WHERE id = $1`, strings.TrimSpace(addressID))
	addr, err := scanAddress(row)
	if err != nil {
		return domain.Address{}, sqldb.WrapError("addresses.find", err)
	}
	return addr, nil
}

// Exists reports whether the address id resolves.
func (r *AddressRepository) Exists(ctx context.Context, addressID string) (bool, error) {
	return exists(ctx, r.provider, "addresses.exists", `SELECT 1 FROM contact_addresses WHERE id = $1`, strings.TrimSpace(addressID))
}

// List returns every address ordered by id.
func (r *AddressRepository) List(ctx context.Context) ([]domain.Address, error) {
	rows, err := r.provider.Querier(ctx).QueryContext(ctx, `SELECT `+addressColumns+` FROM contact_addresses ORDER BY id`)
	if err != nil {
		return nil, sqldb.WrapError("addresses.list", err)
	}
	return collectAddresses("addresses.list", rows)
}

// ListByCustomer returns the addresses owned by a customer.
func (r *AddressRepository) ListByCustomer(ctx context.Context, customerID string) ([]domain.Address, error) {
	rows, err := r.provider.Querier(ctx).QueryContext(ctx,
		`SELECT `+addressColumns+` FROM contact_addresses WHERE customer_id = $1 ORDER BY id`, strings.TrimSpace(customerID))
	if err != nil {
		return nil, sqldb.WrapError("addresses.list_by_customer", err)
	}
	return collectAddresses("addresses.list_by_customer", rows)
}

func collectAddresses(op string, rows *sql.Rows) ([]domain.Address, error) {
	defer rows.Close()

	addresses := make([]domain.Address, 0)
	for rows.Next() {
		addr, err := scanAddress(rows)
		if err != nil {
			return nil, sqldb.WrapError(op, err)
		}
		addresses = append(addresses, addr)
	}
	if err := rows.Err(); err != nil {
		return nil, sqldb.WrapError(op, err)
	}
	return addresses, nil
}

func scanAddress(row scanner) (domain.Address, error) {
	var a domain.Address
	err := row.Scan(&a.ID, &a.CustomerID, &a.StreetAddress, &a.City, &a.State, &a.PostalCode, &a.Phone, &a.Email)
	return a, err
}
