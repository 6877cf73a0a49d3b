package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/orderdesk/api/internal/platform/sqldb"
	"github.com/orderdesk/api/internal/repositories"
)

// Registry implements repositories.Registry on top of a single SQL provider.
type Registry struct {
	provider  *sqldb.Provider
	customers *CustomerRepository
	products  *ProductRepository
	addresses *AddressRepository
	inventory *InventoryRepository
	orders    *OrderRepository
	users     *UserRepository
	health    repositories.HealthRepository
}

var _ repositories.Registry = (*Registry)(nil)

// RegistryOption customises registry construction.
type RegistryOption func(*registryConfig)

type registryConfig struct {
	checks []repositories.DependencyCheck
}

// WithHealthCheck appends an extra readiness probe, e.g. redis or kafka.
func WithHealthCheck(check repositories.DependencyCheck) RegistryOption {
	return func(cfg *registryConfig) {
		cfg.checks = append(cfg.checks, check)
	}
}

// NewRegistry builds every SQL repository against provider. The database ping is always part of readiness.
func NewRegistry(provider *sqldb.Provider, opts ...RegistryOption) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("sqlstore: provider is required")
	}

	cfg := registryConfig{
		checks: []repositories.DependencyCheck{{Name: "database", Check: provider.Ping}},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	health, err := repositories.NewDependencyHealthRepository(cfg.checks)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: build health repository: %w", err)
	}

	reg := &Registry{provider: provider, health: health}
	if reg.customers, err = NewCustomerRepository(provider); err != nil {
		return nil, err
	}
	if reg.products, err = NewProductRepository(provider); err != nil {
		return nil, err
	}
	if reg.addresses, err = NewAddressRepository(provider); err != nil {
		return nil, err
	}
	if reg.inventory, err = NewInventoryRepository(provider); err != nil {
		return nil, err
	}
	if reg.orders, err = NewOrderRepository(provider); err != nil {
		return nil, err
	}
	if reg.users, err = NewUserRepository(provider); err != nil {
		return nil, err
	}
	return reg, nil
}

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunInTx(ctx, fn)
}

func (r *Registry) Customers() repositories.CustomerRepository  { return r.customers }
func (r *Registry) Products() repositories.ProductRepository    { return r.products }
func (r *Registry) Addresses() repositories.AddressRepository   { return r.addresses }
func (r *Registry) Inventory() repositories.InventoryRepository { return r.inventory }
func (r *Registry) Orders() repositories.OrderRepository        { return r.orders }
func (r *Registry) Users() repositories.UserRepository          { return r.users }
func (r *Registry) Health() repositories.HealthRepository       { return r.health }
