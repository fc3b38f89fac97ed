// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/localmart/localmart/internal/core"
)

// SessionRevoker ends every session of a user.
type SessionRevoker interface {
	LogoutAll(ctx context.Context, userID string) error
}

type HandlerConfig struct {
	Orders     OrderStats
	Sessions   SessionRevoker
	DBStats    func() sql.DBStats
	RedisStats func() *redis.PoolStats
	DBPing     func(ctx context.Context) error
	RedisPing  func(ctx context.Context) error
}

// Handler serves /admin. Any of the stats and ping funcs may be nil.
type Handler struct {
	orders     OrderStats
	sessions   SessionRevoker
	dbStats    func() sql.DBStats
	redisStats func() *redis.PoolStats
	dbPing     func(ctx context.Context) error
	redisPing  func(ctx context.Context) error
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		orders:     cfg.Orders,
		sessions:   cfg.Sessions,
		dbStats:    cfg.DBStats,
		redisStats: cfg.RedisStats,
		dbPing:     cfg.DBPing,
		redisPing:  cfg.RedisPing,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.Stats)
		r.Post("/users/{userID}/sessions/revoke", h.RevokeSessions)
	})
}

// Stats reports order totals next to pool and runtime health. The order
// query and both pings run concurrently; only the query can fail the
// request.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	var (
		resp   StatsResponse
		counts []StatusCount
	)

	g, ctx := errgroup.WithContext(r.Context())
	g.Go(func() error {
		var err error
		counts, err = h.orders.CountByStatus(ctx)
		return err
	})
	g.Go(func() error {
		resp.Database.Healthy = ping(ctx, h.dbPing)
		return nil
	})
	g.Go(func() error {
		resp.Redis.Healthy = ping(ctx, h.redisPing)
		return nil
	})
	if err := g.Wait(); err != nil {
		core.InternalServerError(w, err)
		return
	}

	resp.Orders = summarize(counts)
	resp.Database.Stats = h.databaseStats()
	resp.Redis.Stats = h.cacheStats()
	resp.Runtime = runtimeStats()
	core.OK(w, resp)
}

func summarize(counts []StatusCount) OrderSummary {
	s := OrderSummary{ByStatus: make(map[string]int64, len(counts))}
	for _, c := range counts {
		s.ByStatus[c.Status] = c.Count
		s.Total += c.Count
		s.Revenue += c.Revenue
	}
	return s
}

func runtimeStats() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		MemAlloc:     mem.Alloc,
		NumGC:        mem.NumGC,
	}
}

func (h *Handler) RevokeSessions(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.sessions.LogoutAll(r.Context(), userID); err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.NoContent(w)
}

func ping(ctx context.Context, fn func(context.Context) error) bool {
	if fn == nil {
		return false
	}
	return fn(ctx) == nil
}

func (h *Handler) databaseStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
	}
}

func (h *Handler) cacheStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
	}
}
