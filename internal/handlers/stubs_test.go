package handlers

import (
	"context"
	"errors"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/services"
)

var errNotStubbed = errors.New("not implemented")

type stubOrderService struct {
	createFn     func(context.Context, services.CreateOrderCommand) (services.OrderView, error)
	getFn        func(context.Context, string) (services.OrderView, error)
	listFn       func(context.Context, services.OrderListFilter) (domain.CursorPage[services.OrderView], error)
	byCustomerFn func(context.Context, string) ([]services.OrderView, error)
	updateFn     func(context.Context, services.UpdateOrderCommand) (services.OrderView, error)
	statusFn     func(context.Context, services.UpdateOrderStatusCommand) (services.OrderView, error)
	cancelFn     func(context.Context, services.CancelOrderCommand) (services.OrderView, error)
	deleteFn     func(context.Context, services.DeleteOrderCommand) error
	addItemFn    func(context.Context, services.AddOrderItemCommand) (services.OrderLineView, error)
	updateItemFn func(context.Context, services.UpdateOrderItemCommand) (services.OrderLineView, error)
	deleteItemFn func(context.Context, services.DeleteOrderItemCommand) error
}

func (s *stubOrderService) CreateOrder(ctx context.Context, cmd services.CreateOrderCommand) (services.OrderView, error) {
	if s.createFn != nil {
		return s.createFn(ctx, cmd)
	}
	return services.OrderView{}, errNotStubbed
}

func (s *stubOrderService) GetOrder(ctx context.Context, orderID string) (services.OrderView, error) {
	if s.getFn != nil {
		return s.getFn(ctx, orderID)
	}
	return services.OrderView{}, errNotStubbed
}

func (s *stubOrderService) ListOrders(ctx context.Context, filter services.OrderListFilter) (domain.CursorPage[services.OrderView], error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return domain.CursorPage[services.OrderView]{}, nil
}

func (s *stubOrderService) ListOrdersByCustomer(ctx context.Context, customerID string) ([]services.OrderView, error) {
	if s.byCustomerFn != nil {
		return s.byCustomerFn(ctx, customerID)
	}
	return nil, errNotStubbed
}

func (s *stubOrderService) UpdateOrder(ctx context.Context, cmd services.UpdateOrderCommand) (services.OrderView, error) {
	if s.updateFn != nil {
		return s.updateFn(ctx, cmd)
	}
	return services.OrderView{}, errNotStubbed
}

func (s *stubOrderService) UpdateOrderStatus(ctx context.Context, cmd services.UpdateOrderStatusCommand) (services.OrderView, error) {
	if s.statusFn != nil {
		return s.statusFn(ctx, cmd)
	}
	return services.OrderView{}, errNotStubbed
}

func (s *stubOrderService) CancelOrder(ctx context.Context, cmd services.CancelOrderCommand) (services.OrderView, error) {
	if s.cancelFn != nil {
		return s.cancelFn(ctx, cmd)
	}
	return services.OrderView{}, errNotStubbed
}

func (s *stubOrderService) DeleteOrder(ctx context.Context, cmd services.DeleteOrderCommand) error {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, cmd)
	}
	return errNotStubbed
}

func (s *stubOrderService) AddOrderItem(ctx context.Context, cmd services.AddOrderItemCommand) (services.OrderLineView, error) {
	if s.addItemFn != nil {
		return s.addItemFn(ctx, cmd)
	}
	return services.OrderLineView{}, errNotStubbed
}

func (s *stubOrderService) UpdateOrderItem(ctx context.Context, cmd services.UpdateOrderItemCommand) (services.OrderLineView, error) {
	if s.updateItemFn != nil {
		return s.updateItemFn(ctx, cmd)
	}
	return services.OrderLineView{}, errNotStubbed
}

func (s *stubOrderService) DeleteOrderItem(ctx context.Context, cmd services.DeleteOrderItemCommand) error {
	if s.deleteItemFn != nil {
		return s.deleteItemFn(ctx, cmd)
	}
	return errNotStubbed
}

type stubReferenceService struct {
	customers []domain.Customer
	addresses []domain.Address
	products  []domain.Product
	err       error
}

func (s *stubReferenceService) ListCustomers(context.Context) ([]domain.Customer, error) {
	return s.customers, s.err
}

func (s *stubReferenceService) GetCustomer(_ context.Context, id string) (domain.Customer, error) {
	if s.err != nil {
		return domain.Customer{}, s.err
	}
	for _, c := range s.customers {
		if c.ID == id {
			return c, nil
		}
	}
	return domain.Customer{}, services.ErrCustomerNotFound
}

func (s *stubReferenceService) ListCustomerAddresses(_ context.Context, id string) ([]domain.Address, error) {
	if _, err := s.GetCustomer(context.Background(), id); err != nil {
		return nil, err
	}
	out := make([]domain.Address, 0)
	for _, a := range s.addresses {
		if a.CustomerID == id {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *stubReferenceService) ListProducts(context.Context) ([]domain.Product, error) {
	return s.products, s.err
}

func (s *stubReferenceService) GetProduct(_ context.Context, id string) (domain.Product, error) {
	if s.err != nil {
		return domain.Product{}, s.err
	}
	for _, p := range s.products {
		if p.ID == id {
			return p, nil
		}
	}
	return domain.Product{}, services.ErrProductNotFound
}

func (s *stubReferenceService) ListContacts(context.Context) ([]domain.Address, error) {
	return s.addresses, s.err
}

type stubAuthService struct {
	registerFn func(context.Context, services.RegisterCommand) (services.AuthResult, error)
	loginFn    func(context.Context, services.LoginCommand) (services.AuthResult, error)
}

func (s *stubAuthService) Register(ctx context.Context, cmd services.RegisterCommand) (services.AuthResult, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, cmd)
	}
	return services.AuthResult{}, errNotStubbed
}

func (s *stubAuthService) Login(ctx context.Context, cmd services.LoginCommand) (services.AuthResult, error) {
	if s.loginFn != nil {
		return s.loginFn(ctx, cmd)
	}
	return services.AuthResult{}, errNotStubbed
}

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *stubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

var (
	_ services.OrderService     = (*stubOrderService)(nil)
	_ services.ReferenceService = (*stubReferenceService)(nil)
	_ services.AuthService      = (*stubAuthService)(nil)
	_ services.SystemService    = (*stubSystemService)(nil)
)
