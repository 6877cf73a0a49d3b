package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/orderdesk/api/internal/domain"
	"github.com/orderdesk/api/internal/platform/httpx"
	"github.com/orderdesk/api/internal/services"
)

type customerPayload struct {
	CustomerID string `json:"customerId"`
	FirstName  string `json:"firstName"`
	LastName   string `json:"lastName"`
	Email      string `json:"email"`
	Phone      string `json:"phone,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
}

type addressPayload struct {
	AddressID     string `json:"addressId"`
	CustomerID    string `json:"customerId"`
	StreetAddress string `json:"streetAddress"`
	City          string `json:"city"`
	State         string `json:"state,omitempty"`
	PostalCode    string `json:"postalCode,omitempty"`
	Phone         string `json:"phone,omitempty"`
	Email         string `json:"email,omitempty"`
}

type productPayload struct {
	ProductID     string `json:"productId"`
	Name          string `json:"name"`
	Color         string `json:"color,omitempty"`
	Size          string `json:"size,omitempty"`
	Price         string `json:"price"`
	StockQuantity int    `json:"stockQuantity"`
}

// ReferenceHandlers serves the read-only /data browse endpoints.
type ReferenceHandlers struct {
	reference services.ReferenceService
	orders    services.OrderService
}

// NewReferenceHandlers constructs the /data handlers. orders backs the per-customer order listing.
func NewReferenceHandlers(reference services.ReferenceService, orders services.OrderService) *ReferenceHandlers {
	return &ReferenceHandlers{reference: reference, orders: orders}
}

// Routes registers the /data endpoints.
func (h *ReferenceHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/customers", h.listCustomers)
	r.Get("/customers/{customerID}", h.getCustomer)
	r.Get("/customers/{customerID}/addresses", h.listCustomerAddresses)
	r.Get("/customers/{customerID}/orders", h.listCustomerOrders)
	r.Get("/products", h.listProducts)
	r.Get("/products/{productID}", h.getProduct)
	r.Get("/contacts", h.listContacts)
}

func (h *ReferenceHandlers) listCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := h.reference.ListCustomers(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	out := make([]customerPayload, 0, len(customers))
	for _, c := range customers {
		out = append(out, buildCustomerPayload(c))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ReferenceHandlers) getCustomer(w http.ResponseWriter, r *http.Request) {
	customer, err := h.reference.GetCustomer(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildCustomerPayload(customer))
}

func (h *ReferenceHandlers) listCustomerAddresses(w http.ResponseWriter, r *http.Request) {
	addresses, err := h.reference.ListCustomerAddresses(r.Context(), chi.URLParam(r, "customerID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildAddressPayloads(addresses))
}

func (h *ReferenceHandlers) listCustomerOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	customerID := strings.TrimSpace(chi.URLParam(r, "customerID"))
	if customerID == "" {
		writeInvalidRequest(ctx, w, "customer id is required")
		return
	}
	orders, err := h.orders.ListOrdersByCustomer(ctx, customerID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderPayloads(orders))
}

func (h *ReferenceHandlers) listProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.reference.ListProducts(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	out := make([]productPayload, 0, len(products))
	for _, p := range products {
		out = append(out, buildProductPayload(p))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

func (h *ReferenceHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	product, err := h.reference.GetProduct(r.Context(), chi.URLParam(r, "productID"))
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildProductPayload(product))
}

func (h *ReferenceHandlers) listContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.reference.ListContacts(r.Context())
	if err != nil {
		writeServiceError(r.Context(), w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildAddressPayloads(contacts))
}

func buildCustomerPayload(c domain.Customer) customerPayload {
	return customerPayload{
		CustomerID: c.ID,
		FirstName:  c.FirstName,
		LastName:   c.LastName,
		Email:      c.Email,
		Phone:      c.Phone,
		CreatedAt:  formatTime(c.CreatedAt),
	}
}

func buildAddressPayloads(addresses []domain.Address) []addressPayload {
	out := make([]addressPayload, 0, len(addresses))
	for _, a := range addresses {
		out = append(out, addressPayload{
			AddressID:     a.ID,
			CustomerID:    a.CustomerID,
			StreetAddress: a.StreetAddress,
			City:          a.City,
			State:         a.State,
			PostalCode:    a.PostalCode,
			Phone:         a.Phone,
			Email:         a.Email,
		})
	}
	return out
}

func buildProductPayload(p domain.Product) productPayload {
	return productPayload{
		ProductID:     p.ID,
		Name:          p.Name,
		Color:         p.Color,
		Size:          p.Size,
		Price:         p.Price.StringFixed(2),
		StockQuantity: p.StockQuantity,
	}
}
