package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/AnshRaj112/usedgoods-backend/internal/httpx"
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

// BurstLimiter is a token bucket per key, used on upload routes so a single
// account cannot flood the image store.
type BurstLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	every   time.Duration
	burst   int
	ttl     time.Duration
	now     func() time.Time
}

func NewBurstLimiter(every time.Duration, burst int, ttl time.Duration) *BurstLimiter {
	return &BurstLimiter{
		entries: make(map[string]*limiterEntry),
		every:   every,
		burst:   burst,
		ttl:     ttl,
		now:     time.Now,
	}
}

func (b *BurstLimiter) Allow(key string) bool {
	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(rate.Every(b.every), b.burst)}
		b.entries[key] = e
	}
	e.lastUse = b.now()
	b.mu.Unlock()
	return e.limiter.Allow()
}

// Sweep forgets keys idle for longer than the ttl.
func (b *BurstLimiter) Sweep(context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	now := b.now()
	for key, e := range b.entries {
		if now.Sub(e.lastUse) > b.ttl {
			delete(b.entries, key)
		}
	}
	return nil
}

// Middleware keys by the authenticated user, or the client IP when anonymous.
func (b *BurstLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := "ip:" + ClientIPFrom(r)
		if u := UserFromContext(r.Context()); u != nil {
			key = "user:" + u.ID
		}
		if !b.Allow(key) {
			httpx.Error(w, r, http.StatusTooManyRequests, "too many uploads, please slow down")
			return
		}
		next.ServeHTTP(w, r)
	})
}
