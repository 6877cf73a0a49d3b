package handlers

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/orderdesk/api/internal/services"
)

func newAuthRouter(svc services.AuthService) chi.Router {
	router := chi.NewRouter()
	router.Route("/api/v1/auth", NewAuthHandlers(svc).Routes)
	return router
}

func TestAuthHandlersRegister(t *testing.T) {
	var captured services.RegisterCommand
	svc := &stubAuthService{
		registerFn: func(_ context.Context, cmd services.RegisterCommand) (services.AuthResult, error) {
			captured = cmd
			if cmd.Username == "taken" {
				return services.AuthResult{}, fmt.Errorf("%w: taken", services.ErrUsernameTaken)
			}
			if len(cmd.Password) < 6 {
				return services.AuthResult{}, fmt.Errorf("%w: password too short", services.ErrAuthInvalidInput)
			}
			return services.AuthResult{Token: "jwt", Username: cmd.Username, Role: "USER", ExpiresAt: orderTime.Add(time.Hour)}, nil
		},
	}
	router := newAuthRouter(svc)

	rr := serve(router, http.MethodPost, "/api/v1/auth/register", `{"username":"alice","password":"secret1"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	body := decodeObject(t, rr)
	if body["token"] != "jwt" || body["username"] != "alice" || body["role"] != "USER" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["expiresAt"] != "2026-03-03T10:30:00Z" {
		t.Fatalf("unexpected expiry %v", body["expiresAt"])
	}
	if captured.Password != "secret1" {
		t.Fatal("expected password passed through")
	}

	rr = serve(router, http.MethodPost, "/api/v1/auth/register", `{"username":"taken","password":"secret1"}`)
	assertErrorCode(t, rr, http.StatusConflict, "username_taken")

	rr = serve(router, http.MethodPost, "/api/v1/auth/register", `{"username":"bob","password":"123"}`)
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")

	rr = serve(router, http.MethodPost, "/api/v1/auth/register", `not json`)
	assertErrorCode(t, rr, http.StatusBadRequest, "invalid_request")
}

func TestAuthHandlersLogin(t *testing.T) {
	svc := &stubAuthService{
		loginFn: func(_ context.Context, cmd services.LoginCommand) (services.AuthResult, error) {
			if cmd.Password != "secret1" {
				return services.AuthResult{}, services.ErrInvalidCredentials
			}
			return services.AuthResult{Token: "jwt", Username: cmd.Username, Role: "USER"}, nil
		},
	}
	router := newAuthRouter(svc)

	rr := serve(router, http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"secret1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if decodeObject(t, rr)["token"] != "jwt" {
		t.Fatal("expected token in response")
	}

	rr = serve(router, http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"nope"}`)
	assertErrorCode(t, rr, http.StatusUnauthorized, "unauthenticated")
}

func TestAuthHandlersLoginRateLimit(t *testing.T) {
	var calls int
	svc := &stubAuthService{
		loginFn: func(context.Context, services.LoginCommand) (services.AuthResult, error) {
			calls++
			return services.AuthResult{}, services.ErrInvalidCredentials
		},
	}
	now := orderTime
	router := chi.NewRouter()
	router.Route("/api/v1/auth", NewAuthHandlers(svc, WithLoginRateLimit(2, time.Minute, func() time.Time { return now })).Routes)

	for i := 0; i < 2; i++ {
		rr := serve(router, http.MethodPost, "/api/v1/auth/login", `{"username":"Alice","password":"x"}`)
		assertErrorCode(t, rr, http.StatusUnauthorized, "unauthenticated")
	}
	rr := serve(router, http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"x"}`)
	assertErrorCode(t, rr, http.StatusTooManyRequests, "rate_limited")
	if calls != 2 {
		t.Fatalf("expected throttled attempt to skip the service, got %d calls", calls)
	}

	rr = serve(router, http.MethodPost, "/api/v1/auth/login", `{"username":"bob","password":"x"}`)
	assertErrorCode(t, rr, http.StatusUnauthorized, "unauthenticated")

	now = now.Add(2 * time.Minute)
	rr = serve(router, http.MethodPost, "/api/v1/auth/login", `{"username":"alice","password":"x"}`)
	assertErrorCode(t, rr, http.StatusUnauthorized, "unauthenticated")
}
