package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orderdesk/api/internal/platform/httpx"
	"github.com/orderdesk/api/internal/services"
)

const maxAuthBodySize = 4 * 1024

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type authResponse struct {
	Token     string `json:"token"`
	Username  string `json:"username"`
	Role      string `json:"role"`
	ExpiresAt string `json:"expiresAt,omitempty"`
}

// AuthHandlers exposes account registration and login.
type AuthHandlers struct {
	auth         services.AuthService
	loginLimiter rateLimiter
}

// AuthHandlersOption customises AuthHandlers.
type AuthHandlersOption func(*AuthHandlers)

// WithLoginRateLimit caps login attempts per username within window. A zero limit disables throttling.
func WithLoginRateLimit(limit int, window time.Duration, clock func() time.Time) AuthHandlersOption {
	return func(h *AuthHandlers) {
		h.loginLimiter = newSimpleRateLimiter(limit, window, clock)
	}
}

// NewAuthHandlers constructs the /auth handlers.
func NewAuthHandlers(auth services.AuthService, opts ...AuthHandlersOption) *AuthHandlers {
	h := &AuthHandlers{auth: auth}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /auth endpoints.
func (h *AuthHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Post("/register", h.register)
	r.Post("/login", h.login)
}

func (h *AuthHandlers) register(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req credentialsRequest
	if apiErr := httpx.DecodeJSON(r, maxAuthBodySize, &req); apiErr != nil {
		writeDecodeError(ctx, w, apiErr)
		return
	}

	result, err := h.auth.Register(ctx, services.RegisterCommand{Username: req.Username, Password: req.Password})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, buildAuthResponse(result))
}

func (h *AuthHandlers) login(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req credentialsRequest
	if apiErr := httpx.DecodeJSON(r, maxAuthBodySize, &req); apiErr != nil {
		writeDecodeError(ctx, w, apiErr)
		return
	}

	if h.loginLimiter != nil && !h.loginLimiter.Allow(strings.ToLower(strings.TrimSpace(req.Username))) {
		w.Header().Set("Retry-After", "60")
		httpx.WriteError(ctx, w, httpx.NewError("rate_limited", "too many login attempts", http.StatusTooManyRequests))
		return
	}

	result, err := h.auth.Login(ctx, services.LoginCommand{Username: req.Username, Password: req.Password})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildAuthResponse(result))
}

func buildAuthResponse(result services.AuthResult) authResponse {
	return authResponse{
		Token:     result.Token,
		Username:  result.Username,
		Role:      result.Role,
		ExpiresAt: formatTime(result.ExpiresAt),
	}
}
