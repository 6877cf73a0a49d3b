package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/auth"
	"github.com/orderdesk/api/internal/platform/httpx"
	"github.com/orderdesk/api/internal/platform/pagination"
	"github.com/orderdesk/api/internal/services"
)

const (
	defaultOrderPageSize = 20
	maxOrderPageSize     = 100
	defaultOrderBodySize = 64 * 1024
)

type orderItemRequest struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	CustomerID        string             `json:"customerId"`
	ShippingAddressID *string            `json:"shippingAddressId"`
	BillingAddressID  *string            `json:"billingAddressId"`
	Items             []orderItemRequest `json:"items"`
}

type updateOrderRequest struct {
	ShippingAddressID *string `json:"shippingAddressId"`
	BillingAddressID  *string `json:"billingAddressId"`
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

type addOrderItemRequest struct {
	ProductID string  `json:"productId"`
	Quantity  int     `json:"quantity"`
	Status    *string `json:"status"`
}

type updateOrderItemRequest struct {
	Quantity *int    `json:"quantity"`
	Status   *string `json:"status"`
}

type orderPayload struct {
	OrderID           string             `json:"orderId"`
	CustomerID        string             `json:"customerId"`
	CustomerName      string             `json:"customerName"`
	OrderDate         string             `json:"orderDate"`
	Status            string             `json:"status"`
	ShippingAddressID *string            `json:"shippingAddressId"`
	BillingAddressID  *string            `json:"billingAddressId"`
	TotalAmount       string             `json:"totalAmount"`
	Items             []orderItemPayload `json:"items"`
	UpdatedAt         string             `json:"updatedAt,omitempty"`
}

type orderItemPayload struct {
	OrderID     string `json:"orderId"`
	SeqID       int    `json:"seqId"`
	ProductID   string `json:"productId"`
	ProductName string `json:"productName"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unitPrice"`
	Subtotal    string `json:"subtotal"`
	Status      string `json:"status,omitempty"`
}

type orderListResponse struct {
	Items         []orderPayload `json:"items"`
	NextPageToken string         `json:"next_page_token,omitempty"`
}

// OrderHandlers exposes the order lifecycle over HTTP.
type OrderHandlers struct {
	orders            services.OrderService
	maxBodyBytes      int64
	createMiddlewares []func(http.Handler) http.Handler
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithOrderBodyLimit caps request bodies accepted by the order endpoints.
func WithOrderBodyLimit(limit int64) OrderHandlersOption {
	return func(h *OrderHandlers) {
		if limit > 0 {
			h.maxBodyBytes = limit
		}
	}
}

// WithCreateOrderMiddlewares wraps only POST /orders, e.g. with idempotency replay.
func WithCreateOrderMiddlewares(mw ...func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		for _, m := range mw {
			if m != nil {
				h.createMiddlewares = append(h.createMiddlewares, m)
			}
		}
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		orders:       orders,
		maxBodyBytes: defaultOrderBodySize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.createMiddlewares...).Post("/", h.createOrder)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}", h.updateOrder)
	r.Delete("/{orderID}", h.deleteOrder)
	r.Patch("/{orderID}/status", h.updateOrderStatus)
	r.Post("/{orderID}/cancel", h.cancelOrder)
	r.Post("/{orderID}/items", h.addOrderItem)
	r.Put("/{orderID}/items/{seqID}", h.updateOrderItem)
	r.Delete("/{orderID}/items/{seqID}", h.deleteOrderItem)
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if apiErr := httpx.DecodeJSON(r, h.maxBodyBytes, &req); apiErr != nil {
		writeDecodeError(ctx, w, apiErr)
		return
	}

	items := make([]services.OrderItemInput, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, services.OrderItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	order, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		CustomerID:        req.CustomerID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		Items:             items,
		ActorID:           actorID(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+order.ID)
	httpx.WriteJSON(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	params, err := pagination.FromRequest(r, pagination.Options{
		DefaultPageSize: defaultOrderPageSize,
		MaxPageSize:     maxOrderPageSize,
		AllowUnpaged:    true,
	})
	if err != nil {
		writeInvalidRequest(ctx, w, err.Error())
		return
	}

	query := r.URL.Query()
	page, err := h.orders.ListOrders(ctx, services.OrderListFilter{
		CustomerID: strings.TrimSpace(query.Get("customer_id")),
		Status:     strings.TrimSpace(query.Get("status")),
		Pagination: domain.Pagination{
			PageSize:  params.PageSize,
			PageToken: params.PageToken,
		},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, orderListResponse{
		Items:         buildOrderPayloads(page.Items),
		NextPageToken: strings.TrimSpace(page.NextPageToken),
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) updateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateOrderRequest
	if apiErr := httpx.DecodeJSON(r, h.maxBodyBytes, &req); apiErr != nil {
		writeDecodeError(ctx, w, apiErr)
		return
	}

	order, err := h.orders.UpdateOrder(ctx, services.UpdateOrderCommand{
		OrderID:           orderID,
		ShippingAddressID: req.ShippingAddressID,
		BillingAddressID:  req.BillingAddressID,
		ActorID:           actorID(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req updateOrderStatusRequest
	if apiErr := httpx.DecodeJSON(r, h.maxBodyBytes, &req); apiErr != nil {
		writeDecodeError(ctx, w, apiErr)
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateOrderStatusCommand{
		OrderID: orderID,
		Status:  req.Status,
		ActorID: actorID(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	order, err := h.orders.CancelOrder(ctx, services.CancelOrderCommand{OrderID: orderID, ActorID: actorID(r)})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrder(ctx, services.DeleteOrderCommand{OrderID: orderID, ActorID: actorID(r)}); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandlers) addOrderItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}

	var req addOrderItemRequest
	if apiErr := httpx.DecodeJSON(r, h.maxBodyBytes, &req); apiErr != nil {
		writeDecodeError(ctx, w, apiErr)
		return
	}

	line, err := h.orders.AddOrderItem(ctx, services.AddOrderItemCommand{
		OrderID:   orderID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
		Status:    req.Status,
		ActorID:   actorID(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	w.Header().Set("Location", strings.TrimSuffix(r.URL.Path, "/")+"/"+strconv.Itoa(line.SeqID))
	httpx.WriteJSON(w, http.StatusCreated, buildOrderItemPayload(line))
}

func (h *OrderHandlers) updateOrderItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	seqID, ok := seqIDParam(w, r)
	if !ok {
		return
	}

	var req updateOrderItemRequest
	if apiErr := httpx.DecodeJSON(r, h.maxBodyBytes, &req); apiErr != nil {
		writeDecodeError(ctx, w, apiErr)
		return
	}

	line, err := h.orders.UpdateOrderItem(ctx, services.UpdateOrderItemCommand{
		OrderID:  orderID,
		SeqID:    seqID,
		Quantity: req.Quantity,
		Status:   req.Status,
		ActorID:  actorID(r),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderItemPayload(line))
}

func (h *OrderHandlers) deleteOrderItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	orderID, ok := orderIDParam(w, r)
	if !ok {
		return
	}
	seqID, ok := seqIDParam(w, r)
	if !ok {
		return
	}

	if err := h.orders.DeleteOrderItem(ctx, services.DeleteOrderItemCommand{OrderID: orderID, SeqID: seqID, ActorID: actorID(r)}); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func orderIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		writeInvalidRequest(r.Context(), w, "order id is required")
		return "", false
	}
	return orderID, true
}

func seqIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	seqID, err := strconv.Atoi(strings.TrimSpace(chi.URLParam(r, "seqID")))
	if err != nil || seqID <= 0 {
		writeInvalidRequest(r.Context(), w, "item sequence must be a positive integer")
		return 0, false
	}
	return seqID, true
}

// actorID is the authenticated subject, or empty for anonymous requests.
func actorID(r *http.Request) string {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok || identity == nil {
		return ""
	}
	return identity.UID
}

func buildOrderPayloads(orders []services.OrderView) []orderPayload {
	out := make([]orderPayload, 0, len(orders))
	for _, order := range orders {
		out = append(out, buildOrderPayload(order))
	}
	return out
}

func buildOrderPayload(order services.OrderView) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, buildOrderItemPayload(item))
	}
	return orderPayload{
		OrderID:           order.ID,
		CustomerID:        order.CustomerID,
		CustomerName:      order.CustomerName,
		OrderDate:         formatTime(order.OrderDate),
		Status:            order.Status,
		ShippingAddressID: order.ShippingAddressID,
		BillingAddressID:  order.BillingAddressID,
		TotalAmount:       order.TotalAmount.StringFixed(2),
		Items:             items,
		UpdatedAt:         formatTime(order.UpdatedAt),
	}
}

func buildOrderItemPayload(line services.OrderLineView) orderItemPayload {
	return orderItemPayload{
		OrderID:     line.OrderID,
		SeqID:       line.SeqID,
		ProductID:   line.ProductID,
		ProductName: line.ProductName,
		Quantity:    line.Quantity,
		UnitPrice:   line.UnitPrice.StringFixed(2),
		Subtotal:    line.Subtotal.StringFixed(2),
		Status:      line.Status,
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
