package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/orderdesk/api/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	ctx = requestctx.WithTrace(ctx, requestctx.TraceInfo{TraceID: "abc123"})

	rr := httptest.NewRecorder()
	WriteError(ctx, rr, NewError("insufficient_stock", "not enough\nstock", http.StatusConflict).
		WithDetails(map[string]any{"productId": "prd_003", "status": 999}))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "insufficient_stock" || body["message"] != "not enough stock" {
		t.Fatalf("unexpected body %v", body)
	}
	if body["status"] != float64(http.StatusConflict) {
		t.Fatalf("details must not override status, got %v", body["status"])
	}
	if body["request_id"] != "req-1" || body["trace_id"] != "abc123" || body["productId"] != "prd_003" {
		t.Fatalf("unexpected envelope %v", body)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Status string `json:"status"`
	}

	cases := []struct {
		name   string
		body   string
		limit  int64
		status int
	}{
		{name: "valid", body: `{"status":"shipped"}`, limit: 1024},
		{name: "empty", body: "", limit: 1024, status: http.StatusBadRequest},
		{name: "malformed", body: `{"status":`, limit: 1024, status: http.StatusBadRequest},
		{name: "unknown field", body: `{"state":"x"}`, limit: 1024, status: http.StatusBadRequest},
		{name: "trailing data", body: `{"status":"a"}{"status":"b"}`, limit: 1024, status: http.StatusBadRequest},
		{name: "too large", body: `{"status":"` + strings.Repeat("x", 64) + `"}`, limit: 16, status: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPatch, "/api/v1/orders/ord_1/status", strings.NewReader(tc.body))
			var dst payload
			errResp := DecodeJSON(req, tc.limit, &dst)
			if tc.status == 0 {
				if errResp != nil {
					t.Fatalf("unexpected error %v", errResp)
				}
				if dst.Status != "shipped" {
					t.Fatalf("unexpected decoded value %q", dst.Status)
				}
				return
			}
			if errResp == nil {
				t.Fatalf("expected status %d, got nil", tc.status)
			}
			if errResp.Status != tc.status {
				t.Fatalf("expected status %d, got %d (%s)", tc.status, errResp.Status, errResp.Message)
			}
		})
	}
}
