package middleware

import (
	"context"
	"net/http"
	"strconv"
	"sync"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
)

// RateLimitKeyPrefix is the key prefix for fixed-window counters.
const RateLimitKeyPrefix = "ratelimit:"

var rateLimitExceeded = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "rate_limit_exceeded_total",
		Help: "Requests rejected by a fixed-window rate limiter",
	},
	[]string{"limiter"},
)

// Store keeps fixed-window counters. Incr creates the window on first use and
// returns the new count together with the moment the window resets.
type Store interface {
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
	Decr(ctx context.Context, key string) error
}

// RedisStore shares counters between instances.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	n, err := s.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if n == 1 {
		if err := s.client.PExpire(ctx, key, window).Err(); err != nil {
			return 0, time.Time{}, err
		}
		return n, time.Now().Add(window), nil
	}
	ttl, err := s.client.PTTL(ctx, key).Result()
	if err != nil {
		return 0, time.Time{}, err
	}
	if ttl < 0 {
		// Counter lost its expiry; start the window over.
		_ = s.client.PExpire(ctx, key, window).Err()
		ttl = window
	}
	return n, time.Now().Add(ttl), nil
}

func (s *RedisStore) Decr(ctx context.Context, key string) error {
	return s.client.Decr(ctx, key).Err()
}

type windowCounter struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps counters in process. Expired windows are dropped by Sweep.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string]*windowCounter), now: time.Now}
}

func (s *MemoryStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	c, ok := s.counters[key]
	if !ok || !now.Before(c.resetAt) {
		c = &windowCounter{resetAt: now.Add(window)}
		s.counters[key] = c
	}
	c.count++
	return c.count, c.resetAt, nil
}

func (s *MemoryStore) Decr(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.counters[key]; ok && c.count > 0 {
		c.count--
	}
	return nil
}

// Sweep drops expired windows. It matches the janitor task signature.
func (s *MemoryStore) Sweep(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for key, c := range s.counters {
		if !now.Before(c.resetAt) {
			delete(s.counters, key)
		}
	}
	return nil
}

// Len reports the number of live windows.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.counters)
}

type RateLimitOptions struct {
	Name    string
	Window  time.Duration
	Max     int
	Message string
	// SkipSuccessful refunds requests that end with a status below 400, so
	// only failures count against the client.
	SkipSuccessful bool
}

// RateLimit applies a fixed-window limit keyed by client IP. Store errors
// let the request through.
func RateLimit(store Store, opts RateLimitOptions, logger *zap.Logger) func(http.Handler) http.Handler {
	if opts.Message == "" {
		opts.Message = "too many requests, please try again later"
	}
	limit := strconv.Itoa(opts.Max)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			key := RateLimitKeyPrefix + opts.Name + ":" + ClientIPFrom(r)

			count, resetAt, err := store.Incr(ctx, key, opts.Window)
			if err != nil {
				logger.Warn("rate limit store unavailable, allowing request",
					zap.String("limiter", opts.Name), zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			remaining := int64(opts.Max) - count
			if remaining < 0 {
				remaining = 0
			}
			h := w.Header()
			h.Set("X-RateLimit-Limit", limit)
			h.Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

			if count > int64(opts.Max) {
				retry := int(time.Until(resetAt).Round(time.Second) / time.Second)
				if retry < 1 {
					retry = 1
				}
				h.Set("Retry-After", strconv.Itoa(retry))
				rateLimitExceeded.WithLabelValues(opts.Name).Inc()
				logger.Warn("rate limit exceeded",
					zap.String("limiter", opts.Name),
					zap.String("ip", ClientIPFrom(r)),
					zap.String("path", r.URL.Path))
				httpx.Error(w, r, http.StatusTooManyRequests, opts.Message)
				return
			}

			if !opts.SkipSuccessful {
				next.ServeHTTP(w, r)
				return
			}
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			if status := ww.Status(); status == 0 || status < http.StatusBadRequest {
				if err := store.Decr(context.WithoutCancel(ctx), key); err != nil {
					logger.Warn("rate limit refund failed", zap.String("limiter", opts.Name), zap.Error(err))
				}
			}
		})
	}
}
