// AngelaMos | 2026
// access_test.go

package access

import (
	"context"
	"io"
	"log/slog"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/rules"
	"github.com/localmart/localmart/internal/schema"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func finalState(t *testing.T) *schema.State {
	t.Helper()
	st, err := schema.Final()
	require.NoError(t, err)
	return st
}

func marketplace(t *testing.T, st *schema.State) *rules.MemoryResolver {
	t.Helper()
	m := st.MemoryResolver()

	seed := []struct {
		collection string
		rec        rules.Record
	}{
		{"users", rules.Record{"id": "admin", "roles": []string{"admin"}}},
		{"users", rules.Record{"id": "alice", "roles": []string{}}},
		{"users", rules.Record{"id": "owner", "roles": []string{"vendor"}}},
		{"stores", rules.Record{"id": "s1"}},
		{"stores", rules.Record{"id": "s2"}},
		{"store_items", rules.Record{"id": "i1", "store": "s1"}},
		{"store_items", rules.Record{"id": "i2", "store": "s2"}},
		{"orders", rules.Record{"id": "o1", "user": "alice"}},
		{"orders", rules.Record{"id": "o2", "user": "admin"}},
		{"order_items", rules.Record{"id": "oi1", "order": "o1", "store_item": "i1"}},
		{"order_items", rules.Record{"id": "oi2", "order": "o2", "store_item": "i2"}},
		{"store_roles", rules.Record{"id": "r1", "user": "owner", "store": "s1", "role": "admin"}},
	}
	for _, s := range seed {
		require.NoError(t, m.Insert(s.collection, s.rec))
	}
	return m
}

func TestScopeDecisions(t *testing.T) {
	ctx := context.Background()
	st := finalState(t)
	m := marketplace(t, st)
	authz := NewAuthorizer(st, m, discard())

	o1, err := m.Find(ctx, "orders", "o1")
	require.NoError(t, err)

	tests := []struct {
		name   string
		caller Caller
		view   bool
	}{
		{"owner of the order", Caller{ID: "alice"}, true},
		{"store admin of an item's store", Caller{ID: "owner", Roles: []string{"vendor"}}, true},
		{"global admin", Caller{ID: "admin", Roles: []string{"admin"}}, true},
		{"anonymous", Caller{}, false},
		{"unrelated user", Caller{ID: "mallory"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scope := authz.Scope(tt.caller)

			ok, err := scope.Allow(ctx, "orders", schema.OpView, o1, Input{Method: "GET"})
			require.NoError(t, err)
			assert.Equal(t, tt.view, ok)

			err = scope.View(ctx, "orders", o1)
			if tt.view {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, core.ErrNotFound)
			}
		})
	}
}

func TestRequireForbids(t *testing.T) {
	ctx := context.Background()
	st := finalState(t)
	m := marketplace(t, st)
	scope := NewAuthorizer(st, m, discard()).Scope(Caller{ID: "alice"})

	item, err := m.Find(ctx, "store_items", "i1")
	require.NoError(t, err)

	err = scope.Require(ctx, "store_items", schema.OpUpdate, item, Input{Method: "PATCH"})
	assert.ErrorIs(t, err, core.ErrForbidden)

	owner := NewAuthorizer(st, m, discard()).Scope(Caller{ID: "owner"})
	assert.NoError(t, owner.Require(ctx, "store_items", schema.OpUpdate, item, Input{Method: "PATCH"}))

	other, err := m.Find(ctx, "store_items", "i2")
	require.NoError(t, err)
	assert.ErrorIs(t, owner.Require(ctx, "store_items", schema.OpDelete, other, Input{}), core.ErrForbidden)

	_, err = scope.Allow(ctx, "nope", schema.OpList, nil, Input{})
	assert.ErrorIs(t, err, schema.ErrUnknownCollection)
}

func TestFilterKeepsVisibleOrders(t *testing.T) {
	ctx := context.Background()
	st := finalState(t)
	m := marketplace(t, st)
	authz := NewAuthorizer(st, m, discard())

	all, err := m.Scan(ctx, "orders")
	require.NoError(t, err)

	visible, err := authz.Scope(Caller{ID: "alice"}).Filter(ctx, "orders", all)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, "o1", visible[0].ID())

	visible, err = authz.Scope(Caller{ID: "admin", Roles: []string{"admin"}}).Filter(ctx, "orders", all)
	require.NoError(t, err)
	assert.Len(t, visible, 2)
}

func TestAdminChecks(t *testing.T) {
	ctx := context.Background()
	st := finalState(t)
	m := marketplace(t, st)
	authz := NewAuthorizer(st, m, discard())

	ok, err := authz.Scope(Caller{ID: "admin", Roles: []string{"admin"}}).IsGlobalAdmin(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = authz.Scope(Caller{ID: "owner", Roles: []string{"vendor"}}).IsGlobalAdmin(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	owner := authz.Scope(Caller{ID: "owner"})
	ok, err = owner.IsStoreAdmin(ctx, "s1")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = owner.IsStoreAdmin(ctx, "s2")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSQLResolver(t *testing.T) {
	ctx := context.Background()
	st := finalState(t)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close() //nolint:errcheck

	db := core.WrapDB(sqlDB)
	r := NewSQLResolver(db.DB, st)

	target, ok := r.Relation("store_items", "store")
	assert.True(t, ok)
	assert.Equal(t, "stores", target)
	_, ok = r.Relation("store_items", "name")
	assert.False(t, ok)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash", "roles"}).
			AddRow("u1", "a@example.com", "secret", "{admin,vendor}"))

	rec, err := r.Find(ctx, "users", "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", rec.ID())
	assert.Equal(t, []string{"admin", "vendor"}, rec["roles"])
	assert.NotContains(t, rec, "password_hash")

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM users WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err = r.Find(ctx, "users", "missing")
	assert.ErrorIs(t, err, rules.ErrRecordNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM order_items WHERE order_id = $1")).
		WithArgs("o1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "order_id", "store_item_id", "quantity"}).
			AddRow("oi1", "o1", "i1", 2).
			AddRow("oi2", "o1", "i2", 1))

	items, err := r.Via(ctx, "order_items", "order", "o1")
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "i1", items[0]["store_item"])
	assert.Equal(t, "o1", items[1]["order"])

	_, err = r.Via(ctx, "order_items", "quantity", "o1")
	assert.ErrorIs(t, err, schema.ErrUnknownField)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLResolverDrivesStoreAdminRule(t *testing.T) {
	ctx := context.Background()
	st := finalState(t)

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close() //nolint:errcheck

	authz := NewAuthorizer(st, NewSQLResolver(core.WrapDB(sqlDB).DB, st), discard())

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM store_roles")).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "store_id", "role"}).
			AddRow("r1", "owner", "s1", "admin").
			AddRow("r2", "staff", "s1", "staff"))

	item := rules.Record{"id": "i1", "store": "s1"}
	ok, err := authz.Scope(Caller{ID: "owner"}).Allow(ctx, "store_items", schema.OpCreate, item, Input{Method: "POST"})
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, mock.ExpectationsWereMet())
}
