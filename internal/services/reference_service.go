package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

// ReferenceServiceDeps bundles the read-only repositories behind the browse endpoints.
type ReferenceServiceDeps struct {
	Customers repositories.CustomerRepository
	Products  repositories.ProductRepository
	Addresses repositories.AddressRepository
}

type referenceService struct {
	customers repositories.CustomerRepository
	products  repositories.ProductRepository
	addresses repositories.AddressRepository
}

var _ ReferenceService = (*referenceService)(nil)

// NewReferenceService constructs the reference data service.
func NewReferenceService(deps ReferenceServiceDeps) (ReferenceService, error) {
	if deps.Customers == nil || deps.Products == nil || deps.Addresses == nil {
		return nil, errors.New("reference service: customer, product and address repositories are required")
	}
	return &referenceService{
		customers: deps.Customers,
		products:  deps.Products,
		addresses: deps.Addresses,
	}, nil
}

func (s *referenceService) ListCustomers(ctx context.Context) ([]domain.Customer, error) {
	customers, err := s.customers.List(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	return customers, nil
}

func (s *referenceService) GetCustomer(ctx context.Context, customerID string) (domain.Customer, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.Customer{}, fmt.Errorf("%w: customer id is required", ErrCustomerNotFound)
	}
	customer, err := s.customers.FindByID(ctx, customerID)
	if err != nil {
		return domain.Customer{}, mapRepositoryError(err, ErrCustomerNotFound, nil)
	}
	return customer, nil
}

// ListCustomerAddresses fails with ErrCustomerNotFound for unknown customers rather than
// returning an empty list.
func (s *referenceService) ListCustomerAddresses(ctx context.Context, customerID string) ([]domain.Address, error) {
	customerID = strings.TrimSpace(customerID)
	ok, err := s.customers.Exists(ctx, customerID)
	if err != nil {
		return nil, mapRepositoryError(err, ErrCustomerNotFound, nil)
	}
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrCustomerNotFound, customerID)
	}

	addresses, err := s.addresses.ListByCustomer(ctx, customerID)
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	return addresses, nil
}

func (s *referenceService) ListProducts(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	return products, nil
}

func (s *referenceService) GetProduct(ctx context.Context, productID string) (domain.Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.Product{}, fmt.Errorf("%w: product id is required", ErrProductNotFound)
	}
	product, err := s.products.FindByID(ctx, productID)
	if err != nil {
		return domain.Product{}, mapRepositoryError(err, ErrProductNotFound, nil)
	}
	return product, nil
}

func (s *referenceService) ListContacts(ctx context.Context) ([]domain.Address, error) {
	addresses, err := s.addresses.List(ctx)
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	return addresses, nil
}
