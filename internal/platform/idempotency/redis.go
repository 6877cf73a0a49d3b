package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker/v2"
)

const (
	defaultRedisPrefix     = "idem:"
	defaultBreakerTimeout  = 30 * time.Second
	defaultBreakerFailures = 5
	defaultBreakerHalfOpen = 1
	maxReserveAttempts     = 3
)

// RedisStore keeps idempotency records in redis. Expiry is delegated to key TTLs.
type RedisStore struct {
	client  redis.UniversalClient
	prefix  string
	breaker *gobreaker.CircuitBreaker[Reservation]
	writes  *gobreaker.CircuitBreaker[struct{}]
}

// RedisOption customises the redis store.
type RedisOption func(*redisOptions)

type redisOptions struct {
	prefix   string
	failures uint32
	timeout  time.Duration
}

// WithKeyPrefix namespaces record keys.
func WithKeyPrefix(prefix string) RedisOption {
	return func(o *redisOptions) {
		if prefix = strings.TrimSpace(prefix); prefix != "" {
			o.prefix = prefix
		}
	}
}

// WithBreaker tunes how many consecutive failures open the breaker and how long it stays open.
func WithBreaker(consecutiveFailures uint32, openTimeout time.Duration) RedisOption {
	return func(o *redisOptions) {
		if consecutiveFailures > 0 {
			o.failures = consecutiveFailures
		}
		if openTimeout > 0 {
			o.timeout = openTimeout
		}
	}
}

// NewRedisStore wraps client. All store calls pass through a circuit breaker so a redis outage
// fails fast instead of stalling every mutating request.
func NewRedisStore(client redis.UniversalClient, opts ...RedisOption) (*RedisStore, error) {
	if client == nil {
		return nil, errors.New("idempotency: redis client is required")
	}
	o := redisOptions{
		prefix:   defaultRedisPrefix,
		failures: defaultBreakerFailures,
		timeout:  defaultBreakerTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	settings := func(name string) gobreaker.Settings {
		return gobreaker.Settings{
			Name:        name,
			MaxRequests: defaultBreakerHalfOpen,
			Timeout:     o.timeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= o.failures
			},
			// fingerprint conflicts are answers, not outages
			IsSuccessful: func(err error) bool {
				return err == nil || errors.Is(err, ErrFingerprintMismatch)
			},
		}
	}

	return &RedisStore{
		client:  client,
		prefix:  o.prefix,
		breaker: gobreaker.NewCircuitBreaker[Reservation](settings("idempotency-redis-read")),
		writes:  gobreaker.NewCircuitBreaker[struct{}](settings("idempotency-redis-write")),
	}, nil
}

// Reserve implements the Store interface.
func (s *RedisStore) Reserve(ctx context.Context, key, fingerprint string, now time.Time, ttl time.Duration) (Reservation, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	id := s.redisKey(key)

	reservation, err := s.breaker.Execute(func() (Reservation, error) {
		record := Record{
			Key:         key,
			Fingerprint: fingerprint,
			Status:      StatusPending,
			CreatedAt:   now,
			UpdatedAt:   now,
			ExpiresAt:   now.Add(ttl),
		}
		payload, err := json.Marshal(record)
		if err != nil {
			return Reservation{}, fmt.Errorf("idempotency: encode record: %w", err)
		}

		// The key can expire between SETNX and GET, so retry a bounded number of times.
		for attempt := 0; attempt < maxReserveAttempts; attempt++ {
			created, err := s.client.SetNX(ctx, id, payload, ttl).Result()
			if err != nil {
				return Reservation{}, fmt.Errorf("redis setnx failed: %w", err)
			}
			if created {
				return Reservation{State: ReservationStateNew, Record: record}, nil
			}

			existing, err := s.load(ctx, id)
			if errors.Is(err, redis.Nil) {
				continue
			}
			if err != nil {
				return Reservation{}, err
			}
			if existing.Fingerprint != fingerprint {
				return Reservation{}, ErrFingerprintMismatch
			}
			if existing.Status == StatusCompleted {
				return Reservation{State: ReservationStateCompleted, Record: existing}, nil
			}
			return Reservation{State: ReservationStatePending, Record: existing}, nil
		}
		return Reservation{}, fmt.Errorf("idempotency: key %s kept expiring during reservation", key)
	})
	return reservation, s.translate(err)
}

// SaveResponse implements the Store interface.
func (s *RedisStore) SaveResponse(ctx context.Context, key, fingerprint string, resp Response, now time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	now = now.UTC()
	id := s.redisKey(key)

	_, err := s.writes.Execute(func() (struct{}, error) {
		return struct{}{}, s.client.Watch(ctx, func(tx *redis.Tx) error {
			record, err := s.loadWith(ctx, tx, id)
			switch {
			case errors.Is(err, redis.Nil):
				record = Record{Key: key, Fingerprint: fingerprint, CreatedAt: now}
			case err != nil:
				return err
			case record.Fingerprint != fingerprint:
				return ErrFingerprintMismatch
			}

			record.Status = StatusCompleted
			record.ResponseStatus = resp.Status
			record.ResponseHeaders = replayableHeaders(resp.Headers)
			record.ResponseBody = nil
			if len(resp.Body) > 0 {
				record.ResponseBody = append([]byte(nil), resp.Body...)
			}
			record.UpdatedAt = now
			record.ExpiresAt = now.Add(ttl)

			payload, err := json.Marshal(record)
			if err != nil {
				return fmt.Errorf("idempotency: encode record: %w", err)
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, id, payload, ttl)
				return nil
			})
			return err
		}, id)
	})
	return s.translate(err)
}

// Release implements the Store interface. Only a reservation with a matching fingerprint is removed.
func (s *RedisStore) Release(ctx context.Context, key, fingerprint string) error {
	id := s.redisKey(key)
	_, err := s.writes.Execute(func() (struct{}, error) {
		return struct{}{}, s.client.Watch(ctx, func(tx *redis.Tx) error {
			record, err := s.loadWith(ctx, tx, id)
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			if record.Fingerprint != fingerprint {
				return nil
			}
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, id)
				return nil
			})
			return err
		}, id)
	})
	return s.translate(err)
}

// CleanupExpired implements the Store interface. Redis evicts expired keys on its own.
func (s *RedisStore) CleanupExpired(context.Context, time.Time, int) (int, error) {
	return 0, nil
}

// Ping reports redis reachability for readiness probes.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) redisKey(key string) string {
	return s.prefix + recordID(key)
}

func (s *RedisStore) load(ctx context.Context, id string) (Record, error) {
	return decodeRecord(s.client.Get(ctx, id).Bytes())
}

func (s *RedisStore) loadWith(ctx context.Context, tx *redis.Tx, id string) (Record, error) {
	return decodeRecord(tx.Get(ctx, id).Bytes())
}

func decodeRecord(data []byte, err error) (Record, error) {
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Record{}, redis.Nil
		}
		return Record{}, fmt.Errorf("redis get failed: %w", err)
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return Record{}, fmt.Errorf("idempotency: decode record: %w", err)
	}
	return record, nil
}

func (s *RedisStore) translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrFingerprintMismatch):
		return ErrFingerprintMismatch
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	default:
		return err
	}
}
