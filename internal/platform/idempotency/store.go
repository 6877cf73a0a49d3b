package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"
)

// DefaultTTL bounds how long a create-order response stays replayable.
const DefaultTTL = 24 * time.Hour

var (
	// ErrFingerprintMismatch means the key was first used for a different create-order request.
	ErrFingerprintMismatch = errors.New("idempotency: key reserved for different request fingerprint")
	// ErrStoreUnavailable means the store could not be reached. Only networked stores such as
	// RedisStore report it; the middleware answers 503 so the client retries with the same key.
	ErrStoreUnavailable = errors.New("idempotency: store unavailable")
)

// Status is the stored state of a key.
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
)

// ReservationState tells the middleware what to do with an incoming request.
type ReservationState int

const (
	// ReservationStateNew lets the request run the handler.
	ReservationStateNew ReservationState = iota
	// ReservationStateCompleted replays Record instead of running the handler.
	ReservationStateCompleted
	// ReservationStatePending rejects the request while the first one is still in flight.
	ReservationStatePending
)

// Reservation is the result of Store.Reserve.
type Reservation struct {
	State  ReservationState
	Record Record
}

// Record is what a store keeps per key. Fingerprint identifies the request that claimed the key,
// so a retry carrying another body is refused rather than served someone else's order.
type Record struct {
	Key             string              `json:"key"`
	Fingerprint     string              `json:"fingerprint"`
	Status          Status              `json:"status"`
	ResponseStatus  int                 `json:"responseStatus,omitempty"`
	ResponseHeaders map[string][]string `json:"responseHeaders,omitempty"`
	ResponseBody    []byte              `json:"responseBody,omitempty"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	ExpiresAt       time.Time           `json:"expiresAt"`
}

// Response is the handler output captured for replay.
type Response struct {
	Status  int
	Headers http.Header
	Body    []byte
}

// Store is implemented by MemoryStore and RedisStore.
type Store interface {
	Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error)
	SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error
	Release(ctx context.Context, key, fingerprint string) error
	CleanupExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

// recordID derives the storage id from the scoped key alone. The fingerprint stays out of the id
// so a reused key lands on the existing record and the mismatch is detected.
func recordID(key string) string {
	return digest([]byte(strings.TrimSpace(key)))
}

func digest(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Headers that describe the original connection rather than the order payload.
var unreplayableHeaders = map[string]struct{}{
	"Connection":          {},
	"Content-Length":      {},
	"Date":                {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailers":            {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

// replayableHeaders copies the response headers worth storing.
func replayableHeaders(header http.Header) map[string][]string {
	var out map[string][]string
	for name, values := range header {
		canonical := http.CanonicalHeaderKey(name)
		if _, skip := unreplayableHeaders[canonical]; skip {
			continue
		}
		if out == nil {
			out = make(map[string][]string, len(header))
		}
		out[canonical] = append([]string(nil), values...)
	}
	return out
}
