// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
)

const keyPrefix = "localmart:rl:"

// allowFunc is the shape shared by the Redis limiter and the in-process
// fallback.
type allowFunc func(ctx context.Context, key string, limit redis_rate.Limit) (*redis_rate.Result, error)

// RateLimiter enforces a GCRA budget per client in Redis. When Redis is
// unreachable each API process falls back to its own token buckets, so
// limits loosen by the number of replicas instead of disappearing.
type RateLimiter struct {
	scope    string
	limit    redis_rate.Limit
	key      func(*http.Request) string
	skip     func(*http.Request) bool
	redis    allowFunc
	fallback *localBuckets
}

func newRateLimiter(rdb redis.UniversalClient, scope string, limit redis_rate.Limit, key func(*http.Request) string) *RateLimiter {
	rl := &RateLimiter{
		scope:    scope,
		limit:    limit,
		key:      key,
		fallback: &localBuckets{entries: map[string]*bucket{}},
	}
	if rdb != nil {
		rl.redis = redis_rate.NewLimiter(rdb).Allow
	}
	return rl
}

// GlobalLimit is the per-client budget for the whole API. Health probes
// are exempt.
func GlobalLimit(rdb redis.UniversalClient, cfg config.RateLimitConfig) *RateLimiter {
	rl := newRateLimiter(rdb, "global", redis_rate.Limit{
		Rate:   cfg.Requests,
		Burst:  cfg.Burst,
		Period: cfg.Window,
	}, clientKey)
	rl.skip = isProbe
	return rl
}

// AuthLimit is the tighter per-IP, per-route budget for login, signup,
// refresh and magic-link routes.
func AuthLimit(rdb redis.UniversalClient, cfg config.RateLimitConfig) *RateLimiter {
	return newRateLimiter(rdb, "auth", redis_rate.Limit{
		Rate:   cfg.AuthRequests,
		Burst:  cfg.AuthBurst,
		Period: time.Minute,
	}, func(r *http.Request) string {
		return "ip:" + ClientIP(r) + ":" + routeKey(r.URL.Path)
	})
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.limit.Rate <= 0 || (rl.skip != nil && rl.skip(r)) {
			next.ServeHTTP(w, r)
			return
		}

		key := keyPrefix + rl.scope + ":" + rl.key(r)
		res := rl.allow(r.Context(), key)

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(rl.limit.Rate))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(max(res.Remaining, 0)))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))

		if res.Allowed > 0 {
			next.ServeHTTP(w, r)
			return
		}

		retry := max(int(res.RetryAfter.Seconds()), 1)
		h.Set("Retry-After", strconv.Itoa(retry))
		core.JSON(w, http.StatusTooManyRequests, core.ErrorResponse{
			Detail: fmt.Sprintf("Too many requests. Try again in %d seconds.", retry),
			Code:   "RATE_LIMITED",
		})
	})
}

func (rl *RateLimiter) allow(ctx context.Context, key string) *redis_rate.Result {
	if rl.redis != nil {
		res, err := rl.redis(ctx, key, rl.limit)
		if err == nil {
			return res
		}
		slog.WarnContext(ctx, "rate limiter falling back to local buckets",
			"scope", rl.scope,
			"error", err,
		)
	}
	return rl.fallback.allow(key, rl.limit, time.Now())
}

// clientKey buckets by IP. The global limiter runs ahead of Authenticator,
// so there is no verified user to key on yet.
func clientKey(r *http.Request) string {
	return "ip:" + ClientIP(r)
}

// ClientIP trusts the last X-Forwarded-For hop, which is the address our
// own load balancer saw.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// routeKey collapses ids so /stores/<uuid>/items shares one budget.
func routeKey(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	for i, p := range parts {
		if uuid.Validate(p) == nil {
			parts[i] = "{id}"
		}
	}
	return "/" + strings.Join(parts, "/")
}

func isProbe(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/livez", "/readyz":
		return true
	}
	return false
}

type bucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

// localBuckets is the in-process fallback. Idle buckets are swept on
// access instead of by a background goroutine.
type localBuckets struct {
	mu        sync.Mutex
	entries   map[string]*bucket
	lastSweep time.Time
}

const bucketIdle = 10 * time.Minute

func (l *localBuckets) allow(key string, limit redis_rate.Limit, now time.Time) *redis_rate.Result {
	perSec := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSec)

	l.mu.Lock()
	if now.Sub(l.lastSweep) > bucketIdle {
		for k, b := range l.entries {
			if now.Sub(b.seen) > bucketIdle {
				delete(l.entries, k)
			}
		}
		l.lastSweep = now
	}
	b, ok := l.entries[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(perSec), max(limit.Burst, 1))}
		l.entries[key] = b
	}
	b.seen = now
	l.mu.Unlock()

	res := &redis_rate.Result{Limit: limit, ResetAfter: interval, RetryAfter: -1}
	if b.limiter.AllowN(now, 1) {
		res.Allowed = 1
	} else {
		res.RetryAfter = interval
	}
	res.Remaining = int(b.limiter.TokensAt(now))
	return res
}
