package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

// InventoryServiceDeps bundles the collaborators required to construct an inventory service.
type InventoryServiceDeps struct {
	Inventory repositories.InventoryRepository
	Metrics   OrderMetrics
	Logger    func(ctx context.Context, event string, fields map[string]any)
}

type inventoryService struct {
	repo    repositories.InventoryRepository
	metrics OrderMetrics
	logger  func(context.Context, string, map[string]any)
}

var _ InventoryService = (*inventoryService)(nil)

// NewInventoryService wires dependencies into a concrete InventoryService implementation.
func NewInventoryService(deps InventoryServiceDeps) (InventoryService, error) {
	if deps.Inventory == nil {
		return nil, errors.New("inventory service: inventory repository is required")
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopOrderMetrics{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &inventoryService{
		repo:    deps.Inventory,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// CheckAndDecrement removes quantity from stock or fails with ErrInsufficientStock leaving stock
// untouched.
func (s *inventoryService) CheckAndDecrement(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	productID, err := validateStockInput(productID, quantity)
	if err != nil {
		return domain.Product{}, err
	}

	product, err := s.repo.Decrement(ctx, productID, quantity)
	if err != nil {
		return domain.Product{}, s.mapInventoryError(ctx, err)
	}
	return product, nil
}

// Increment returns quantity to stock.
func (s *inventoryService) Increment(ctx context.Context, productID string, quantity int) (domain.Product, error) {
	productID, err := validateStockInput(productID, quantity)
	if err != nil {
		return domain.Product{}, err
	}

	product, err := s.repo.Increment(ctx, productID, quantity)
	if err != nil {
		return domain.Product{}, s.mapInventoryError(ctx, err)
	}
	return product, nil
}

func (s *inventoryService) mapInventoryError(ctx context.Context, err error) error {
	invErr, ok := repositories.AsInventoryError(err)
	if !ok {
		return mapRepositoryError(err, ErrProductNotFound, nil)
	}

	switch invErr.Code {
	case repositories.InventoryErrorInsufficientStock:
		s.metrics.InsufficientStock(ctx, invErr.ProductID)
		s.logger(ctx, "inventory.insufficient_stock", map[string]any{
			"productId": invErr.ProductID,
			"available": invErr.Available,
			"requested": invErr.Requested,
		})
		return fmt.Errorf("%w: %w", ErrInsufficientStock, invErr)
	case repositories.InventoryErrorStockNotFound:
		return fmt.Errorf("%w: %w", ErrProductNotFound, invErr)
	case repositories.InventoryErrorInvalidQuantity:
		return fmt.Errorf("%w: %w", ErrInventoryInvalidInput, invErr)
	default:
		return mapRepositoryError(err, ErrProductNotFound, nil)
	}
}

func validateStockInput(productID string, quantity int) (string, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return "", fmt.Errorf("%w: product id is required", ErrInventoryInvalidInput)
	}
	if quantity <= 0 {
		return "", fmt.Errorf("%w: quantity must be greater than zero", ErrInventoryInvalidInput)
	}
	return productID, nil
}
