package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/orderdesk/api/internal/platform/httpx"
	"github.com/orderdesk/api/internal/repositories"
	"github.com/orderdesk/api/internal/services"
)

// writeServiceError translates service sentinels into the JSON error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	httpx.WriteError(ctx, w, serviceError(err))
}

func serviceError(err error) httpx.Error {
	switch {
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrInventoryInvalidInput),
		errors.Is(err, services.ErrAuthInvalidInput):
		return httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest)
	case errors.Is(err, services.ErrOrderNotFound):
		return httpx.NewError("order_not_found", "order not found", http.StatusNotFound)
	case errors.Is(err, services.ErrOrderItemNotFound):
		return httpx.NewError("order_item_not_found", "order item not found", http.StatusNotFound)
	case errors.Is(err, services.ErrCustomerNotFound):
		return httpx.NewError("customer_not_found", "customer not found", http.StatusNotFound)
	case errors.Is(err, services.ErrAddressNotFound):
		return httpx.NewError("address_not_found", "address not found", http.StatusNotFound)
	case errors.Is(err, services.ErrProductNotFound):
		return httpx.NewError("product_not_found", "product not found", http.StatusNotFound)
	case errors.Is(err, services.ErrInsufficientStock):
		apiErr := httpx.NewError("insufficient_stock", "insufficient stock for requested quantity", http.StatusConflict)
		if invErr, ok := repositories.AsInventoryError(err); ok {
			apiErr = apiErr.WithDetails(map[string]any{
				"productId": invErr.ProductID,
				"available": invErr.Available,
				"requested": invErr.Requested,
			})
		}
		return apiErr
	case errors.Is(err, services.ErrOrderInvalidTransition):
		return httpx.NewError("invalid_transition", err.Error(), http.StatusConflict)
	case errors.Is(err, services.ErrOrderConflict):
		return httpx.NewError("order_conflict", "order conflicts with existing data", http.StatusConflict)
	case errors.Is(err, services.ErrUsernameTaken):
		return httpx.NewError("username_taken", "username already taken", http.StatusConflict)
	case errors.Is(err, services.ErrInvalidCredentials):
		return httpx.NewError("unauthenticated", "invalid username or password", http.StatusUnauthorized)
	case errors.Is(err, services.ErrUnavailable):
		return httpx.NewError("service_unavailable", "backing store unavailable", http.StatusServiceUnavailable)
	default:
		return httpx.NewError("internal_error", "failed to process request", http.StatusInternalServerError)
	}
}

func writeDecodeError(ctx context.Context, w http.ResponseWriter, apiErr *httpx.Error) {
	httpx.WriteError(ctx, w, *apiErr)
}

func writeInvalidRequest(ctx context.Context, w http.ResponseWriter, message string) {
	httpx.WriteError(ctx, w, httpx.NewError("invalid_request", message, http.StatusBadRequest))
}
