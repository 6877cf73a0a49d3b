package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/orderdesk/api/internal/platform/auth"
)

var fixedTime = time.Date(2026, time.March, 3, 9, 30, 0, 0, time.UTC)

const createOrderBody = `{"customerId":"cus_001","items":[{"productId":"prd_001","quantity":2}]}`

func newCreateOrderRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func createdHandler(calls *int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Location", "/api/v1/orders/ord_1")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"orderId":"ord_1","status":"PENDING"}`))
	})
}

func TestMiddleware_RequiresKeyByDefault(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(createdHandler(&calls))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCreateOrderRequest("", createOrderBody))

	if calls != 0 {
		t.Fatal("handler should not be invoked when header is missing")
	}
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_OptionalKeyPassesThrough(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithOptionalKey())(createdHandler(&calls))

	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newCreateOrderRequest("", createOrderBody))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
		if rr.Header().Get(replayHeaderName) != "" {
			t.Fatal("unkeyed requests must never be replayed")
		}
	}
	if calls != 2 {
		t.Fatalf("expected both unkeyed requests to reach the handler, got %d", calls)
	}
}

func TestMiddleware_ReplaysCreatedOrder(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(createdHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newCreateOrderRequest("order-key-1", createOrderBody))
	if first.Code != http.StatusCreated {
		t.Fatalf("unexpected first response status: %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newCreateOrderRequest("order-key-1", createOrderBody))

	if calls != 1 {
		t.Fatalf("expected a single order to be created, got %d handler calls", calls)
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed status 201, got %d", second.Code)
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay header to be present")
	}
	if got := second.Header().Get("Location"); got != "/api/v1/orders/ord_1" {
		t.Fatalf("expected replayed location header, got %q", got)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("expected response body %s, got %s", first.Body.String(), second.Body.String())
	}
}

func TestMiddleware_IgnoresSafeMethods(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithMethods(http.MethodPost))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/v1/orders", nil))
	if rr.Code != http.StatusOK || calls != 1 {
		t.Fatalf("expected GET to bypass idempotency, got %d calls=%d", rr.Code, calls)
	}
}

func TestMiddleware_DifferentBodySameKeyConflicts(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(createdHandler(&calls))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCreateOrderRequest("same-key", createOrderBody))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected first request success, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, newCreateOrderRequest("same-key", `{"customerId":"cus_002","items":[]}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected conflict status, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_KeysAreScopedPerRequester(t *testing.T) {
	var calls int
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(createdHandler(&calls))

	for _, uid := range []string{"usr_a", "usr_b"} {
		req := newCreateOrderRequest("shared-key", createOrderBody)
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid}))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Code != http.StatusCreated || rr.Header().Get(replayHeaderName) != "" {
			t.Fatalf("requester %s: expected fresh 201, got %d replay=%q", uid, rr.Code, rr.Header().Get(replayHeaderName))
		}
	}
	if calls != 2 {
		t.Fatalf("expected each requester to reach the handler, got %d", calls)
	}
}

func TestMiddleware_PendingReservationReturnsConflict(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked when reservation pending")
	}))

	req := newCreateOrderRequest("pending-key", createOrderBody)
	body, err := readAndReplayBody(req)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	identity := extractRequester(req.Context())
	if _, err := store.Reserve(req.Context(), scopedKey("pending-key", identity), requestFingerprint(req, body, identity), fixedTime, time.Hour); err != nil {
		t.Fatalf("failed to seed reservation: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for pending reservation, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddleware_ServerErrorsAreNotRemembered(t *testing.T) {
	store := NewMemoryStore()
	var calls int
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCreateOrderRequest("retry-key", createOrderBody))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 from handler, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, newCreateOrderRequest("retry-key", createOrderBody))
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected retry to reach the handler, got %d", rr.Code)
	}
	if calls != 2 {
		t.Fatalf("expected two handler calls, got %d", calls)
	}
}

func TestMiddleware_SaveFailureReleasesReservation(t *testing.T) {
	store := &stubStore{saveErr: errors.New("save failed")}
	var calls int
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(createdHandler(&calls))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCreateOrderRequest("fail-key", createOrderBody))

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 response, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_store_error")
	if !store.released {
		t.Fatal("expected reservation to be released on failure")
	}
}

func TestMiddleware_UnavailableStoreReturns503(t *testing.T) {
	store := &stubStore{reserveErr: ErrStoreUnavailable}
	var calls int
	handler := Middleware(store)(createdHandler(&calls))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCreateOrderRequest("key", createOrderBody))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_unavailable")
	if calls != 0 {
		t.Fatal("handler should not run without a reservation")
	}
}

func TestMemoryStoreCleanupExpired(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "old", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if _, err := store.Reserve(ctx, "fresh", "fp", fixedTime.Add(time.Hour), time.Hour); err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	removed, err := store.CleanupExpired(ctx, fixedTime.Add(time.Hour), 10)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected one expired record removed, got %d", removed)
	}

	res, err := store.Reserve(ctx, "fresh", "fp", fixedTime.Add(time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if res.State != ReservationStatePending {
		t.Fatalf("expected fresh reservation to survive cleanup, got state %d", res.State)
	}
}

type stubStore struct {
	reserveErr error
	saveErr    error
	released   bool
}

func (s *stubStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	if s.reserveErr != nil {
		return Reservation{}, s.reserveErr
	}
	return Reservation{State: ReservationStateNew}, nil
}

func (s *stubStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	return s.saveErr
}

func (s *stubStore) Release(context.Context, string, string) error {
	s.released = true
	return nil
}

func (s *stubStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

func assertErrorResponse(t *testing.T, payload []byte, expected string) {
	t.Helper()

	var body struct {
		Error  string `json:"error"`
		Status int    `json:"status"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.Error != expected {
		t.Fatalf("expected error code %s, got %s", expected, body.Error)
	}
	if body.Status == 0 {
		t.Fatal("expected status in error payload")
	}
}
