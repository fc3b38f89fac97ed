// AngelaMos | 2026
// rules_test.go

package rules

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marketFixture(t *testing.T) *MemoryResolver {
	t.Helper()

	m := NewMemoryResolver()
	m.DefineRelation("orders", "user", "users")
	m.DefineRelation("order_items", "order", "orders")
	m.DefineRelation("order_items", "store_item", "store_items")
	m.DefineRelation("store_items", "store", "stores")
	m.DefineRelation("store_roles", "user", "users")
	m.DefineRelation("store_roles", "store", "stores")
	m.DefineUnique("store_roles", "user", "store")

	seed := []struct {
		collection string
		rec        Record
	}{
		{"users", Record{"id": "u_admin", "roles": []string{"admin"}}},
		{"users", Record{"id": "u_alice", "roles": []string{}}},
		{"users", Record{"id": "u_owner", "roles": []string{"vendor"}}},
		{"users", Record{"id": "u_staff"}},
		{"stores", Record{"id": "s_1", "name": "Corner Deli"}},
		{"stores", Record{"id": "s_2", "name": "Bakery"}},
		{"store_items", Record{"id": "i_1", "store": "s_1", "price": 3.5}},
		{"store_items", Record{"id": "i_2", "store": "s_2", "price": 2.0}},
		{"orders", Record{"id": "o_1", "user": "u_alice", "status": "pending"}},
		{"orders", Record{"id": "o_2", "user": "u_alice", "status": "pending"}},
		{"order_items", Record{"id": "oi_1", "order": "o_1", "store_item": "i_1"}},
		{"order_items", Record{"id": "oi_2", "order": "o_2", "store_item": "i_1"}},
		{"order_items", Record{"id": "oi_3", "order": "o_2", "store_item": "i_2"}},
		{"store_roles", Record{"id": "r_1", "user": "u_owner", "store": "s_1", "role": "admin"}},
		{"store_roles", Record{"id": "r_2", "user": "u_staff", "store": "s_1", "role": "staff"}},
	}
	for _, s := range seed {
		require.NoError(t, m.Insert(s.collection, s.rec))
	}
	return m
}

func user(t *testing.T, m *MemoryResolver, id string) Record {
	t.Helper()
	rec, err := m.Find(context.Background(), "users", id)
	require.NoError(t, err)
	return rec
}

func TestParseErrors(t *testing.T) {
	bad := []string{
		"id =",
		"= 'x'",
		"(id = 'x'",
		"id = 'x')",
		"id = 'unterminated",
		"id 'x'",
		"@request.unknown = 1",
		"@collection.store_roles = 1",
		"@bogus.id = 1",
		"a..b = 1",
		"id = 'x' &&",
		"id # 'x'",
	}

	for _, src := range bad {
		t.Run(src, func(t *testing.T) {
			_, err := Parse(src)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSyntax)
		})
	}
}

func TestParseAcceptsHistoricalForms(t *testing.T) {
	good := []string{
		`@request.auth.roles ?= "admin" || @request.auth.id = id`,
		"@request.auth.roles.admin = true",
		"@request.auth.role ?= 'admin' || @request.body.order.user.id = @request.auth.id",
		"@request.auth.roles ?~ 'admin' || (\n  @collection.store_roles.user.id = @request.auth.id &&\n  @collection.store_roles.store.id = order_items_via_order.store_item.store.id\n)",
		"@request.method = 'GET' && @request.query.page > 0",
		"price >= -1.5 && name !~ 'x%' && created ?!= null",
		"@collection.store_roles:mine.user.id = @request.auth.id",
	}

	for _, src := range good {
		t.Run(src, func(t *testing.T) {
			expr, err := Parse(src)
			require.NoError(t, err)
			assert.Equal(t, src, expr.Source())
		})
	}
}

func TestCollectionsListed(t *testing.T) {
	expr, err := Parse(StoreAdminVia("store.id") + " || @collection.feature_flags.enabled = true")
	require.NoError(t, err)
	assert.Equal(t, []string{"store_roles", "feature_flags"}, expr.Collections())
}

func TestAnyOfVersusAllOf(t *testing.T) {
	ctx := context.Background()
	env := Env{Auth: Record{"id": "u", "roles": []string{"admin", "vendor"}}}

	tests := []struct {
		src  string
		want bool
	}{
		{"@request.auth.roles ?= 'admin'", true},
		{"@request.auth.roles = 'admin'", false},
		{"@request.auth.roles ?~ 'ADM'", true},
		{"@request.auth.roles ?!= 'admin'", true},
		{"@request.auth.roles != 'delivery'", true},
		{"@request.auth.roles ?= 'delivery'", false},
		{"@request.auth.roles ~ '%e%'", false},
		{"@request.auth.roles ~ '%n%'", true},
	}

	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			expr, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := expr.Eval(ctx, env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMissingValuesAndLiterals(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name string
		src  string
		env  Env
		want bool
	}{
		{"anonymous id is empty", "@request.auth.id = ''", Env{}, true},
		{"anonymous is not authenticated", Authenticated(), Env{}, false},
		{"authenticated", Authenticated(), Env{Auth: Record{"id": "u"}}, true},
		{"null equals empty", "@request.auth.nickname = null", Env{Auth: Record{"id": "u"}}, true},
		{"missing singular role field", "@request.auth.role ?= 'admin'", Env{Auth: Record{"id": "u", "roles": []string{"admin"}}}, false},
		{"select is not a relation", "@request.auth.roles.admin = true", Env{Auth: Record{"id": "u", "roles": []string{"admin"}}}, false},
		{"numeric comparison", "price > 10", Env{Record: Record{"price": 9.5}}, false},
		{"numeric equality", "quantity = 2", Env{Record: Record{"quantity": 2.0}}, true},
		{"bool literal", "enabled = true", Env{Record: Record{"enabled": true}}, true},
		{"string ordering", "name < 'b'", Env{Record: Record{"name": "apple"}}, true},
		{"method", "@request.method = 'PATCH'", Env{Method: "patch"}, true},
		{"query", "@request.query.index = 'products'", Env{Query: map[string]string{"index": "products"}}, true},
		{"no record means no values", "id != 'x'", Env{}, false},
		{"wildcard anchors", "name ~ 'corner%'", Env{Record: Record{"name": "Corner Deli"}}, true},
		{"wildcard no match", "name ~ '%bakery'", Env{Record: Record{"name": "Corner Deli"}}, false},
		{"nested json", "@request.body.address.city = 'Queens'", Env{Body: map[string]any{"address": map[string]any{"city": "Queens"}}}, true},
		{"precedence", "id = 'a' || id = 'b' && id = 'c'", Env{Record: Record{"id": "a"}}, true},
		{"parens", "(id = 'a' || id = 'b') && id = 'c'", Env{Record: Record{"id": "a"}}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			expr, err := Parse(tt.src)
			require.NoError(t, err)
			got, err := expr.Eval(ctx, tt.env)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRelationsAndBackRelations(t *testing.T) {
	ctx := context.Background()
	m := marketFixture(t)
	alice := user(t, m, "u_alice")

	o1, err := m.Find(ctx, "orders", "o_1")
	require.NoError(t, err)

	owned, err := Parse(OwnedBy("user.id"))
	require.NoError(t, err)
	ok, err := owned.Eval(ctx, Env{Collection: "orders", Record: o1, Auth: alice, Resolver: m})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = owned.Eval(ctx, Env{Collection: "orders", Record: o1, Auth: user(t, m, "u_owner"), Resolver: m})
	require.NoError(t, err)
	assert.False(t, ok)

	stores, err := Parse("order_items_via_order.store_item.store.id ?= 's_2'")
	require.NoError(t, err)

	o2, err := m.Find(ctx, "orders", "o_2")
	require.NoError(t, err)
	ok, err = stores.Eval(ctx, Env{Collection: "orders", Record: o2, Resolver: m})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = stores.Eval(ctx, Env{Collection: "orders", Record: o1, Resolver: m})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreAdminBindsOneRow(t *testing.T) {
	ctx := context.Background()
	m := marketFixture(t)

	item, err := m.Find(ctx, "store_items", "i_1")
	require.NoError(t, err)
	other, err := m.Find(ctx, "store_items", "i_2")
	require.NoError(t, err)

	rule := Expression(AnyOf(GlobalAdmin(), StoreAdminVia("store.id")))

	tests := []struct {
		name   string
		caller string
		record Record
		want   bool
	}{
		{"store admin on own store", "u_owner", item, true},
		{"store admin on other store", "u_owner", other, false},
		{"staff role is not admin", "u_staff", item, false},
		{"customer", "u_alice", item, false},
		{"global admin", "u_admin", other, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ok, err := Allow(ctx, rule, Env{
				Collection: "store_items",
				Record:     tt.record,
				Auth:       user(t, m, tt.caller),
				Resolver:   Cached(m),
			})
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}

func TestStoreAdminOverBackRelationIsAllOf(t *testing.T) {
	ctx := context.Background()
	m := marketFixture(t)
	owner := user(t, m, "u_owner")

	rule := Expression(StoreAdminVia("order_items_via_order.store_item.store.id"))

	o1, err := m.Find(ctx, "orders", "o_1")
	require.NoError(t, err)
	ok, err := Allow(ctx, rule, Env{Collection: "orders", Record: o1, Auth: owner, Resolver: m})
	require.NoError(t, err)
	assert.True(t, ok, "every item of o_1 is from the owner's store")

	o2, err := m.Find(ctx, "orders", "o_2")
	require.NoError(t, err)
	ok, err = Allow(ctx, rule, Env{Collection: "orders", Record: o2, Auth: owner, Resolver: m})
	require.NoError(t, err)
	assert.False(t, ok, "o_2 mixes stores")
}

func TestBodyRelationResolution(t *testing.T) {
	ctx := context.Background()
	m := marketFixture(t)

	rule := Expression("@request.body.order.user.id = @request.auth.id")
	body := map[string]any{"order": "o_1", "store_item": "i_1", "quantity": 1}

	ok, err := Allow(ctx, rule, Env{Collection: "order_items", Body: body, Auth: user(t, m, "u_alice"), Resolver: m})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Allow(ctx, rule, Env{Collection: "order_items", Body: map[string]any{"order": "missing"}, Auth: user(t, m, "u_alice"), Resolver: m})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEmptyCollectionBinding(t *testing.T) {
	ctx := context.Background()
	m := NewMemoryResolver()

	rule := Expression(AnyOf(StoreAdminVia("id"), "name = 'open'"))
	ok, err := Allow(ctx, rule, Env{Collection: "stores", Record: Record{"id": "s", "name": "open"}, Auth: Record{"id": "u"}, Resolver: m})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Allow(ctx, Expression(StoreAdminVia("id")), Env{Collection: "stores", Record: Record{"id": "s"}, Auth: Record{"id": "u"}, Resolver: m})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRuleStates(t *testing.T) {
	ctx := context.Background()

	ok, err := Allow(ctx, Locked(), Env{Auth: Record{"id": "u", "roles": []string{"admin"}}})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Allow(ctx, Public(), Env{})
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, Locked().IsLocked())
	assert.True(t, Public().IsPublic())
	assert.Equal(t, "<locked>", Locked().String())
	assert.NoError(t, Expression(Self()).Validate())
	assert.ErrorIs(t, Expression("id =").Validate(), ErrSyntax)

	_, err = Allow(ctx, Expression("(("), Env{})
	assert.ErrorIs(t, err, ErrSyntax)
}

func TestAnyOfParenthesizes(t *testing.T) {
	got := AnyOf(GlobalAdmin(), "a = 1 && b = 2", StoreAdminVia("id"), "")
	assert.Equal(t,
		"@request.auth.roles ?~ 'admin' || (a = 1 && b = 2) || "+StoreAdminVia("id"),
		got,
	)

	_, err := Parse(got)
	require.NoError(t, err)
}

func TestMemoryResolverUniqueIndex(t *testing.T) {
	m := marketFixture(t)

	err := m.Insert("store_roles", Record{"id": "r_dup", "user": "u_owner", "store": "s_1", "role": "staff"})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	err = m.Insert("store_roles", Record{"id": "r_3", "user": "u_owner", "store": "s_2", "role": "admin"})
	assert.NoError(t, err)

	err = m.Insert("stores", Record{"id": "s_1"})
	assert.ErrorIs(t, err, ErrUniqueViolation)

	_, err = m.Find(context.Background(), "stores", "nope")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
