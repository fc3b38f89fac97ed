// AngelaMos | 2026
// admin_test.go

package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/middleware"
)

type tokenVerifier struct{}

func (tokenVerifier) VerifyAccessToken(_ context.Context, token string) (*middleware.AccessTokenClaims, error) {
	claims := &middleware.AccessTokenClaims{UserID: token, Roles: []string{}}
	if token == "admin" {
		claims.Roles = []string{"admin"}
	}
	return claims, nil
}

type fakeStats []StatusCount

func (f fakeStats) CountByStatus(context.Context) ([]StatusCount, error) {
	return f, nil
}

type revoker struct{ users []string }

func (r *revoker) LogoutAll(_ context.Context, userID string) error {
	r.users = append(r.users, userID)
	return nil
}

func newRouter(h *Handler) chi.Router {
	r := chi.NewRouter()
	h.RegisterRoutes(r, middleware.Authenticator(tokenVerifier{}), middleware.RequireGlobalAdmin)
	return r
}

func get(r chi.Router, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestStats(t *testing.T) {
	h := NewHandler(HandlerConfig{
		Orders: fakeStats{
			{Status: "delivered", Count: 3, Revenue: 42.5},
			{Status: "pending", Count: 2, Revenue: 10},
		},
		DBStats:    func() sql.DBStats { return sql.DBStats{OpenConnections: 4, InUse: 1} },
		RedisStats: func() *redis.PoolStats { return &redis.PoolStats{TotalConns: 2} },
		DBPing:     func(context.Context) error { return nil },
		RedisPing:  func(context.Context) error { return errors.New("down") },
	})
	r := newRouter(h)

	rec := get(r, "/admin/stats", "alice")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = get(r, "/admin/stats", "admin")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(5), resp.Orders.Total)
	assert.Equal(t, int64(3), resp.Orders.ByStatus["delivered"])
	assert.InDelta(t, 52.5, resp.Orders.Revenue, 0.001)
	assert.True(t, resp.Database.Healthy)
	require.NotNil(t, resp.Database.Stats)
	assert.Equal(t, 4, resp.Database.Stats.OpenConnections)
	assert.False(t, resp.Redis.Healthy)
	assert.Equal(t, uint32(2), resp.Redis.Stats.TotalConns)
}

func TestRevokeSessions(t *testing.T) {
	rv := &revoker{}
	r := newRouter(NewHandler(HandlerConfig{Orders: fakeStats{}, Sessions: rv}))

	req := httptest.NewRequest(http.MethodPost, "/admin/users/u1/sessions/revoke", nil)
	req.Header.Set("Authorization", "Bearer admin")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []string{"u1"}, rv.users)
}

func TestCountByStatus(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close() //nolint:errcheck

	mock.ExpectQuery(regexp.QuoteMeta("FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count", "revenue"}).
			AddRow("cancelled", 1, 0.0).
			AddRow("delivered", 4, 99.5))

	counts, err := NewRepository(core.WrapDB(sqlDB).DB).CountByStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []StatusCount{
		{Status: "cancelled", Count: 1, Revenue: 0},
		{Status: "delivered", Count: 4, Revenue: 99.5},
	}, counts)
	require.NoError(t, mock.ExpectationsWereMet())
}
