package services

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/repositories"
)

const (
	orderEventCreated       = "order.created"
	orderEventUpdated       = "order.updated"
	orderEventStatusChanged = "order.status.changed"
	orderEventCancelled     = "order.cancelled"
	orderEventDeleted       = "order.deleted"

	orderIDPrefix = "ord_"
)

var statusCaser = cases.Upper(language.Und)

// OrderEventPublisher publishes order domain events for downstream consumers.
type OrderEventPublisher interface {
	PublishOrderEvent(ctx context.Context, event OrderEvent) error
}

// OrderEvent captures metadata for emitted order domain events.
type OrderEvent struct {
	Type           string
	OrderID        string
	PreviousStatus string
	CurrentStatus  string
	ActorID        string
	OccurredAt     time.Time
	Metadata       map[string]any
}

// OrderMetrics receives lifecycle counters.
type OrderMetrics interface {
	OrderCreated(ctx context.Context, lines int, total decimal.Decimal)
	OrderCancelled(ctx context.Context)
	InsufficientStock(ctx context.Context, productID string)
}

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Customers   repositories.CustomerRepository
	Addresses   repositories.AddressRepository
	Products    repositories.ProductRepository
	Inventory   InventoryService
	UnitOfWork  repositories.UnitOfWork
	Clock       func() time.Time
	IDGenerator func() string
	Events      OrderEventPublisher
	Metrics     OrderMetrics
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	customers  repositories.CustomerRepository
	addresses  repositories.AddressRepository
	products   repositories.ProductRepository
	inventory  InventoryService
	unitOfWork repositories.UnitOfWork
	clock      func() time.Time
	newID      func() string
	events     OrderEventPublisher
	metrics    OrderMetrics
	logger     func(context.Context, string, map[string]any)
}

var _ OrderService = (*orderService)(nil)

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	switch {
	case deps.Orders == nil:
		return nil, errors.New("order service: order repository is required")
	case deps.Customers == nil:
		return nil, errors.New("order service: customer repository is required")
	case deps.Addresses == nil:
		return nil, errors.New("order service: address repository is required")
	case deps.Products == nil:
		return nil, errors.New("order service: product repository is required")
	case deps.Inventory == nil:
		return nil, errors.New("order service: inventory service is required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopOrderMetrics{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		customers:  deps.Customers,
		addresses:  deps.Addresses,
		products:   deps.Products,
		inventory:  deps.Inventory,
		unitOfWork: unit,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:   idGen,
		events:  deps.Events,
		metrics: metrics,
		logger:  logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (OrderView, error) {
	customerID := strings.TrimSpace(cmd.CustomerID)
	if customerID == "" {
		return OrderView{}, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}
	if len(cmd.Items) == 0 {
		return OrderView{}, fmt.Errorf("%w: order must contain at least one item", ErrOrderInvalidInput)
	}
	items := make([]OrderItemInput, 0, len(cmd.Items))
	for i, item := range cmd.Items {
		productID := strings.TrimSpace(item.ProductID)
		if productID == "" {
			return OrderView{}, fmt.Errorf("%w: items[%d]: product id is required", ErrOrderInvalidInput, i)
		}
		if item.Quantity <= 0 {
			return OrderView{}, fmt.Errorf("%w: items[%d]: quantity must be greater than zero", ErrOrderInvalidInput, i)
		}
		items = append(items, OrderItemInput{ProductID: productID, Quantity: item.Quantity})
	}

	now := s.now()
	order := domain.Order{
		ID:                s.nextOrderID(),
		CustomerID:        customerID,
		OrderDate:         now,
		Status:            string(domain.OrderStatusPending),
		ShippingAddressID: normaliseOptionalID(cmd.ShippingAddressID),
		BillingAddressID:  normaliseOptionalID(cmd.BillingAddressID),
		UpdatedAt:         now,
	}

	var customer domain.Customer
	products := make(map[string]domain.Product, len(items))

	err := s.runInTx(ctx, func(txCtx context.Context) error {
		found, err := s.customers.FindByID(txCtx, customerID)
		if err != nil {
			return mapRepositoryError(err, ErrCustomerNotFound, nil)
		}
		customer = found

		if err := s.ensureAddresses(txCtx, order.ShippingAddressID, order.BillingAddressID); err != nil {
			return err
		}

		lines := make([]domain.OrderLine, 0, len(items))
		for i, item := range items {
			product, err := s.inventory.CheckAndDecrement(txCtx, item.ProductID, item.Quantity)
			if err != nil {
				return err
			}
			products[product.ID] = product
			lines = append(lines, domain.OrderLine{
				OrderID:   order.ID,
				SeqID:     i + 1,
				ProductID: product.ID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				Subtotal:  domain.LineTotal(product.Price, item.Quantity),
			})
		}
		order.Lines = lines
		order.TotalAmount = domain.SumLines(lines)

		return mapRepositoryError(s.orders.Insert(txCtx, order), nil, ErrOrderConflict)
	})
	if err != nil {
		s.logger(ctx, "order.create.failed", map[string]any{
			"customerId": customerID,
			"lines":      len(items),
			"error":      err,
		})
		return OrderView{}, err
	}

	s.metrics.OrderCreated(ctx, len(order.Lines), order.TotalAmount)
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventCreated,
		OrderID:       order.ID,
		CurrentStatus: order.Status,
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
		Metadata: map[string]any{
			"customerId":  order.CustomerID,
			"lines":       len(order.Lines),
			"totalAmount": order.TotalAmount.StringFixed(2),
		},
	})

	return AssembleOrder(order, customer, products), nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID string) (OrderView, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return OrderView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return OrderView{}, mapRepositoryError(err, ErrOrderNotFound, nil)
	}
	views, err := s.assemble(ctx, []domain.Order{order})
	if err != nil {
		return OrderView{}, err
	}
	return views[0], nil
}

func (s *orderService) ListOrders(ctx context.Context, filter OrderListFilter) (domain.CursorPage[OrderView], error) {
	filter.CustomerID = strings.TrimSpace(filter.CustomerID)
	if status := strings.TrimSpace(filter.Status); status != "" {
		filter.Status = normaliseStatus(status)
	}

	page, err := s.orders.List(ctx, filter)
	if err != nil {
		return domain.CursorPage[OrderView]{}, mapRepositoryError(err, nil, nil)
	}
	views, err := s.assemble(ctx, page.Items)
	if err != nil {
		return domain.CursorPage[OrderView]{}, err
	}
	return domain.CursorPage[OrderView]{Items: views, NextPageToken: page.NextPageToken}, nil
}

func (s *orderService) ListOrdersByCustomer(ctx context.Context, customerID string) ([]OrderView, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", ErrOrderInvalidInput)
	}

	ok, err := s.customers.Exists(ctx, customerID)
	if err != nil {
		return nil, mapRepositoryError(err, ErrCustomerNotFound, nil)
	}
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", ErrCustomerNotFound, customerID)
	}

	page, err := s.orders.List(ctx, OrderListFilter{CustomerID: customerID})
	if err != nil {
		return nil, mapRepositoryError(err, nil, nil)
	}
	return s.assemble(ctx, page.Items)
}

func (s *orderService) UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (OrderView, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return OrderView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var order domain.Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, nil)
		}

		shipping := normaliseOptionalID(cmd.ShippingAddressID)
		billing := normaliseOptionalID(cmd.BillingAddressID)
		if err := s.ensureAddresses(txCtx, shipping, billing); err != nil {
			return err
		}
		// A present but blank id clears the reference.
		if cmd.ShippingAddressID != nil {
			current.ShippingAddressID = shipping
		}
		if cmd.BillingAddressID != nil {
			current.BillingAddressID = billing
		}
		current.UpdatedAt = now

		if err := s.orders.UpdateHeader(txCtx, current); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, ErrOrderConflict)
		}
		order = current
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventUpdated,
		OrderID:       order.ID,
		CurrentStatus: order.Status,
		ActorID:       cmd.ActorID,
		OccurredAt:    now,
		Metadata:      map[string]any{"change": "addresses"},
	})
	return s.assembleOne(ctx, order)
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateOrderStatusCommand) (OrderView, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return OrderView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	target := normaliseStatus(cmd.Status)
	if target == "" {
		return OrderView{}, fmt.Errorf("%w: status is required", ErrOrderInvalidTransition)
	}
	// CANCELLED carries a stock restore, so only CancelOrder may enter it.
	if target == string(domain.OrderStatusCancelled) {
		return OrderView{}, fmt.Errorf("%w: use the cancel operation to cancel order %s", ErrOrderInvalidTransition, orderID)
	}

	now := s.now()
	var (
		order      domain.Order
		prevStatus string
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, nil)
		}
		if current.Status == string(domain.OrderStatusCancelled) {
			return fmt.Errorf("%w: order %s is %s", ErrOrderInvalidTransition, current.ID, current.Status)
		}
		prevStatus = current.Status
		if err := s.orders.TransitionStatus(txCtx, current.ID, prevStatus, target, now); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, ErrOrderConflict)
		}
		current.Status = target
		current.UpdatedAt = now
		order = current
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventStatusChanged,
		OrderID:        order.ID,
		PreviousStatus: prevStatus,
		CurrentStatus:  order.Status,
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
	})
	return s.assembleOne(ctx, order)
}

func (s *orderService) CancelOrder(ctx context.Context, cmd CancelOrderCommand) (OrderView, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return OrderView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	now := s.now()
	var order domain.Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, nil)
		}
		if current.Status != string(domain.OrderStatusPending) {
			return fmt.Errorf("%w: order %s is %s, only %s orders can be cancelled",
				ErrOrderInvalidTransition, current.ID, current.Status, domain.OrderStatusPending)
		}

		// The guarded transition runs before any stock moves. A concurrent cancel that committed
		// first leaves no PENDING row to match, so stock is restored exactly once.
		err = s.orders.TransitionStatus(txCtx, current.ID,
			string(domain.OrderStatusPending), string(domain.OrderStatusCancelled), now)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, ErrOrderInvalidTransition)
		}

		for _, line := range current.Lines {
			if _, err := s.inventory.Increment(txCtx, line.ProductID, line.Quantity); err != nil {
				return err
			}
		}

		current.Status = string(domain.OrderStatusCancelled)
		current.UpdatedAt = now
		order = current
		return nil
	})
	if err != nil {
		return OrderView{}, err
	}

	s.metrics.OrderCancelled(ctx)
	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventCancelled,
		OrderID:        order.ID,
		PreviousStatus: string(domain.OrderStatusPending),
		CurrentStatus:  order.Status,
		ActorID:        cmd.ActorID,
		OccurredAt:     now,
		Metadata:       map[string]any{"restoredLines": len(order.Lines)},
	})
	return s.assembleOne(ctx, order)
}

func (s *orderService) DeleteOrder(ctx context.Context, cmd DeleteOrderCommand) error {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}

	var status string
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, nil)
		}
		status = current.Status
		return mapRepositoryError(s.orders.Delete(txCtx, orderID), ErrOrderNotFound, ErrOrderConflict)
	})
	if err != nil {
		return err
	}

	s.publishEvent(ctx, OrderEvent{
		Type:           orderEventDeleted,
		OrderID:        orderID,
		PreviousStatus: status,
		ActorID:        cmd.ActorID,
		OccurredAt:     s.now(),
	})
	return nil
}

func (s *orderService) AddOrderItem(ctx context.Context, cmd AddOrderItemCommand) (OrderLineView, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	productID := strings.TrimSpace(cmd.ProductID)
	switch {
	case orderID == "":
		return OrderLineView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	case productID == "":
		return OrderLineView{}, fmt.Errorf("%w: product id is required", ErrOrderInvalidInput)
	case cmd.Quantity <= 0:
		return OrderLineView{}, fmt.Errorf("%w: quantity must be greater than zero", ErrOrderInvalidInput)
	}

	now := s.now()
	var (
		line    domain.OrderLine
		product domain.Product
		order   domain.Order
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, nil)
		}
		product, err = s.products.FindByID(txCtx, productID)
		if err != nil {
			return mapRepositoryError(err, ErrProductNotFound, nil)
		}
		seq, err := s.orders.NextLineSeq(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, nil, nil)
		}

		line = domain.OrderLine{
			OrderID:   orderID,
			SeqID:     seq,
			ProductID: product.ID,
			Quantity:  cmd.Quantity,
			UnitPrice: product.Price,
			Subtotal:  domain.LineTotal(product.Price, cmd.Quantity),
			Status:    normaliseLineStatus(cmd.Status),
		}
		if err := s.orders.InsertLine(txCtx, line); err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, ErrOrderConflict)
		}

		current.Lines = append(current.Lines, line)
		order, err = s.saveTotal(txCtx, current, now)
		return err
	})
	if err != nil {
		return OrderLineView{}, err
	}

	s.publishItemChange(ctx, order, "item.added", line.SeqID, cmd.ActorID, now)
	return AssembleLine(line, product), nil
}

func (s *orderService) UpdateOrderItem(ctx context.Context, cmd UpdateOrderItemCommand) (OrderLineView, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	switch {
	case orderID == "":
		return OrderLineView{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	case cmd.SeqID <= 0:
		return OrderLineView{}, fmt.Errorf("%w: item sequence must be greater than zero", ErrOrderInvalidInput)
	case cmd.Quantity != nil && *cmd.Quantity <= 0:
		return OrderLineView{}, fmt.Errorf("%w: quantity must be greater than zero", ErrOrderInvalidInput)
	}

	now := s.now()
	var (
		line    domain.OrderLine
		product domain.Product
		order   domain.Order
	)
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, nil)
		}
		line, err = s.orders.FindLine(txCtx, current.ID, cmd.SeqID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderItemNotFound, nil)
		}

		product, err = s.products.FindByID(txCtx, line.ProductID)
		if err != nil {
			return mapRepositoryError(err, ErrProductNotFound, nil)
		}
		if cmd.Quantity != nil {
			line.Quantity = *cmd.Quantity
			line.Subtotal = domain.LineTotal(line.UnitPrice, line.Quantity)
		}
		if cmd.Status != nil {
			line.Status = normaliseLineStatus(cmd.Status)
		}
		if err := s.orders.UpdateLine(txCtx, line); err != nil {
			return mapRepositoryError(err, ErrOrderItemNotFound, ErrOrderConflict)
		}

		if idx := lineIndex(current.Lines, line.SeqID); idx >= 0 {
			current.Lines[idx] = line
		}
		order, err = s.saveTotal(txCtx, current, now)
		return err
	})
	if err != nil {
		return OrderLineView{}, err
	}

	s.publishItemChange(ctx, order, "item.updated", line.SeqID, cmd.ActorID, now)
	return AssembleLine(line, product), nil
}

func (s *orderService) DeleteOrderItem(ctx context.Context, cmd DeleteOrderItemCommand) error {
	orderID := strings.TrimSpace(cmd.OrderID)
	switch {
	case orderID == "":
		return fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	case cmd.SeqID <= 0:
		return fmt.Errorf("%w: item sequence must be greater than zero", ErrOrderInvalidInput)
	}

	now := s.now()
	var order domain.Order
	err := s.runInTx(ctx, func(txCtx context.Context) error {
		current, err := s.orders.FindByID(txCtx, orderID)
		if err != nil {
			return mapRepositoryError(err, ErrOrderNotFound, nil)
		}
		idx := lineIndex(current.Lines, cmd.SeqID)
		if idx < 0 {
			return fmt.Errorf("%w: order %s has no item %d", ErrOrderItemNotFound, orderID, cmd.SeqID)
		}
		if err := s.orders.DeleteLine(txCtx, orderID, cmd.SeqID); err != nil {
			return mapRepositoryError(err, ErrOrderItemNotFound, nil)
		}

		current.Lines = append(current.Lines[:idx:idx], current.Lines[idx+1:]...)
		order, err = s.saveTotal(txCtx, current, now)
		return err
	})
	if err != nil {
		return err
	}

	s.publishItemChange(ctx, order, "item.deleted", cmd.SeqID, cmd.ActorID, now)
	return nil
}

// saveTotal recomputes the total from order.Lines and persists the header.
func (s *orderService) saveTotal(ctx context.Context, order domain.Order, now time.Time) (domain.Order, error) {
	order.TotalAmount = domain.SumLines(order.Lines)
	order.UpdatedAt = now
	if err := s.orders.UpdateHeader(ctx, order); err != nil {
		return domain.Order{}, mapRepositoryError(err, ErrOrderNotFound, ErrOrderConflict)
	}
	return order, nil
}

func (s *orderService) ensureAddresses(ctx context.Context, ids ...*string) error {
	for _, id := range ids {
		if id == nil {
			continue
		}
		ok, err := s.addresses.Exists(ctx, *id)
		if err != nil {
			return mapRepositoryError(err, ErrAddressNotFound, nil)
		}
		if !ok {
			return fmt.Errorf("%w: address %s", ErrAddressNotFound, *id)
		}
	}
	return nil
}

func (s *orderService) assembleOne(ctx context.Context, order domain.Order) (OrderView, error) {
	views, err := s.assemble(ctx, []domain.Order{order})
	if err != nil {
		return OrderView{}, err
	}
	return views[0], nil
}

// assemble resolves customers and products once per batch and joins them onto each order.
func (s *orderService) assemble(ctx context.Context, orders []domain.Order) ([]OrderView, error) {
	views := make([]OrderView, 0, len(orders))
	if len(orders) == 0 {
		return views, nil
	}

	customers := make(map[string]domain.Customer)
	productIDs := make([]string, 0)
	seen := make(map[string]struct{})
	for _, order := range orders {
		if _, ok := customers[order.CustomerID]; !ok {
			customer, err := s.customers.FindByID(ctx, order.CustomerID)
			if err != nil {
				return nil, mapRepositoryError(err, ErrCustomerNotFound, nil)
			}
			customers[order.CustomerID] = customer
		}
		for _, line := range order.Lines {
			if _, ok := seen[line.ProductID]; ok {
				continue
			}
			seen[line.ProductID] = struct{}{}
			productIDs = append(productIDs, line.ProductID)
		}
	}

	products := map[string]domain.Product{}
	if len(productIDs) > 0 {
		found, err := s.products.FindByIDs(ctx, productIDs)
		if err != nil {
			return nil, mapRepositoryError(err, nil, nil)
		}
		products = found
	}

	for _, order := range orders {
		views = append(views, AssembleOrder(order, customers[order.CustomerID], products))
	}
	return views, nil
}

func (s *orderService) publishItemChange(ctx context.Context, order domain.Order, change string, seqID int, actor string, now time.Time) {
	s.publishEvent(ctx, OrderEvent{
		Type:          orderEventUpdated,
		OrderID:       order.ID,
		CurrentStatus: order.Status,
		ActorID:       actor,
		OccurredAt:    now,
		Metadata: map[string]any{
			"change":      change,
			"seqId":       seqID,
			"totalAmount": order.TotalAmount.StringFixed(2),
		},
	})
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	if s.unitOfWork == nil {
		return fn(ctx)
	}
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) now() time.Time {
	return s.clock()
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + s.newID()
}

// publishEvent is best effort: the order is already committed.
func (s *orderService) publishEvent(ctx context.Context, event OrderEvent) {
	if s.events == nil {
		return
	}
	if event.Metadata != nil {
		event.Metadata = maps.Clone(event.Metadata)
	}
	if err := s.events.PublishOrderEvent(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":    event.Type,
			"orderId": event.OrderID,
			"status":  event.CurrentStatus,
			"error":   err,
		})
	}
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

type noopOrderMetrics struct{}

func (noopOrderMetrics) OrderCreated(context.Context, int, decimal.Decimal) {}
func (noopOrderMetrics) OrderCancelled(context.Context)                     {}
func (noopOrderMetrics) InsufficientStock(context.Context, string)          {}

func normaliseStatus(status string) string {
	return statusCaser.String(strings.TrimSpace(status))
}

func normaliseLineStatus(status *string) string {
	if status == nil {
		return ""
	}
	return normaliseStatus(*status)
}

// normaliseOptionalID trims id and maps blank to nil.
func normaliseOptionalID(id *string) *string {
	if id == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*id)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func lineIndex(lines []domain.OrderLine, seqID int) int {
	for i, line := range lines {
		if line.SeqID == seqID {
			return i
		}
	}
	return -1
}
