// AngelaMos | 2026
// order_test.go

package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/localmart/localmart/internal/access"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/delivery"
	"github.com/localmart/localmart/internal/middleware"
	"github.com/localmart/localmart/internal/payment"
	"github.com/localmart/localmart/internal/pricing"
	"github.com/localmart/localmart/internal/rules"
	"github.com/localmart/localmart/internal/schema"
	"github.com/localmart/localmart/internal/store"
)

type statusWrite struct {
	orderID string
	status  string
	details map[string]any
}

type memRepo struct {
	mu        sync.Mutex
	orders    map[string]*Order
	lines     []Line
	created   []LineItem
	writes    []statusWrite
	customers map[string]*Customer
}

func (m *memRepo) Create(_ context.Context, o *Order, items []LineItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o.CreatedAt = time.Now()
	cp := *o
	m.orders[o.ID] = &cp
	m.created = append(m.created, items...)
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, fmt.Errorf("get order: %w", core.ErrNotFound)
	}
	cp := *o
	return &cp, nil
}

func (m *memRepo) List(_ context.Context, f ListFilter) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if f.UserID != "" && o.UserID != f.UserID {
			continue
		}
		if f.StoreID != "" && !m.hasStore(o.ID, f.StoreID) {
			continue
		}
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	out = out[min(f.Offset, len(out)):]
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (m *memRepo) hasStore(orderID, storeID string) bool {
	for _, l := range m.lines {
		if l.OrderID == orderID && l.StoreID == storeID {
			return true
		}
	}
	return false
}

func (m *memRepo) Lines(_ context.Context, orderIDs []string) ([]Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	want := map[string]bool{}
	for _, id := range orderIDs {
		want[id] = true
	}
	var out []Line
	for _, l := range m.lines {
		if want[l.OrderID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *memRepo) record(id, status string, details types.JSONText) error {
	o, ok := m.orders[id]
	if !ok {
		return fmt.Errorf("update order status: %w", core.ErrNotFound)
	}
	o.Status = status
	var d map[string]any
	if err := details.Unmarshal(&d); err != nil {
		return err
	}
	m.writes = append(m.writes, statusWrite{orderID: id, status: status, details: d})
	return nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id, status string, details types.JSONText) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.record(id, status, details)
}

func (m *memRepo) SetPaymentStatus(_ context.Context, intentID, status string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if o.StripePaymentIntentID == intentID {
			o.PaymentStatus = status
			return o.ID, nil
		}
	}
	return "", fmt.Errorf("set payment status: %w", core.ErrNotFound)
}

func (m *memRepo) SetDispatch(_ context.Context, id, deliveryID, trackingURL string, details types.JSONText) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.record(id, StatusConfirmed, details); err != nil {
		return err
	}
	m.orders[id].UberDeliveryID = deliveryID
	m.orders[id].UberTrackingURL = trackingURL
	return nil
}

func (m *memRepo) ListDispatched(_ context.Context) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UberDeliveryID != "" && o.Status != StatusDelivered && o.Status != StatusCancelled {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) Customer(_ context.Context, userID string) (*Customer, error) {
	c, ok := m.customers[userID]
	if !ok {
		return nil, fmt.Errorf("get customer: %w", core.ErrNotFound)
	}
	return c, nil
}

type catalog struct{}

func (catalog) Get(_ context.Context, id string) (*store.Store, error) {
	switch id {
	case "s1":
		return &store.Store{ID: "s1", Name: "Corner Bodega", Street1: "1 Main St", City: "New York", State: "NY", Zip: "10003"}, nil
	case "s2":
		return &store.Store{ID: "s2", Name: "Far Deli", Street1: "2 Elm St"}, nil
	}
	return nil, fmt.Errorf("get store: %w", core.ErrNotFound)
}

func (catalog) ItemsByIDs(_ context.Context, ids []string) (map[string]store.Item, error) {
	all := map[string]store.Item{
		"i1": {ID: "i1", StoreID: "s1", Name: "Coffee", Price: 4.5},
		"i2": {ID: "i2", StoreID: "s2", Name: "Bagel", Price: 2},
	}
	out := map[string]store.Item{}
	for _, id := range ids {
		if it, ok := all[id]; ok {
			out[id] = it
		}
	}
	return out, nil
}

type fakePayments struct {
	amount float64
	cardID string
	err    error
}

func (p *fakePayments) Authorize(_ context.Context, _, cardID string, amount float64) (*payment.Charge, error) {
	p.amount, p.cardID = amount, cardID
	if p.err != nil {
		return nil, p.err
	}
	return &payment.Charge{IntentID: "pi_1", ClientSecret: "pi_1_secret", CardID: cardID}, nil
}

type fakeCourier struct {
	mu       sync.Mutex
	created  []delivery.DeliveryRequest
	statuses map[string]string
	err      error
}

func (c *fakeCourier) CreateDelivery(_ context.Context, req delivery.DeliveryRequest) (*delivery.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.created = append(c.created, req)
	return &delivery.Delivery{ID: "del_1", Status: delivery.CourierPending, TrackingURL: "https://track/del_1"}, nil
}

func (c *fakeCourier) Status(_ context.Context, id string) (*delivery.Delivery, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.statuses[id]
	if !ok {
		return nil, delivery.ErrUpstream
	}
	return &delivery.Delivery{ID: id, Status: s}, nil
}

// tokenVerifier treats the bearer token as the user id; "admin" is a
// global admin.
type tokenVerifier struct{}

func (tokenVerifier) VerifyAccessToken(_ context.Context, token string) (*middleware.AccessTokenClaims, error) {
	claims := &middleware.AccessTokenClaims{UserID: token, Roles: []string{}}
	if token == "admin" {
		claims.Roles = []string{"admin"}
	}
	return claims, nil
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	repo     *memRepo
	payments *fakePayments
	courier  *fakeCourier
	service  *Service
	authz    *access.Authorizer
	router   chi.Router
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	st, err := schema.Final()
	require.NoError(t, err)
	resolver := st.MemoryResolver()
	for _, s := range []struct {
		collection string
		rec        rules.Record
	}{
		{"stores", rules.Record{"id": "s1"}},
		{"stores", rules.Record{"id": "s2"}},
		{"store_items", rules.Record{"id": "i1", "store": "s1"}},
		{"store_items", rules.Record{"id": "i2", "store": "s2"}},
		{"orders", rules.Record{"id": "o1", "user": "alice"}},
		{"orders", rules.Record{"id": "o2", "user": "bob"}},
		{"order_items", rules.Record{"id": "oi1", "order": "o1", "store_item": "i1"}},
		{"order_items", rules.Record{"id": "oi2", "order": "o2", "store_item": "i2"}},
		{"store_roles", rules.Record{"id": "r1", "user": "owner", "store": "s1", "role": "admin"}},
	} {
		require.NoError(t, resolver.Insert(s.collection, s.rec))
	}

	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	repo := &memRepo{
		orders: map[string]*Order{
			"o1": {
				ID: "o1", UserID: "alice", Status: StatusPending, PaymentStatus: payment.StatusPending,
				Subtotal: 9, Total: 15.8, DeliveryAddress: types.JSONText(`{"city":"New York"}`),
				StripePaymentIntentID: "pi_o1", CreatedAt: base,
			},
			"o2": {
				ID: "o2", UserID: "bob", Status: StatusPending, PaymentStatus: payment.StatusPending,
				Subtotal: 2, Total: 8.2, CreatedAt: base.Add(time.Hour),
			},
		},
		lines: []Line{
			{ID: "oi1", OrderID: "o1", StoreItemID: "i1", Name: "Coffee", Quantity: 2, PriceAtTime: 4.5, StoreID: "s1", StoreName: "Corner Bodega"},
			{ID: "oi2", OrderID: "o2", StoreItemID: "i2", Name: "Bagel", Quantity: 1, PriceAtTime: 2, StoreID: "s2", StoreName: "Far Deli"},
		},
		customers: map[string]*Customer{
			"alice": {FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "+15550100"},
		},
	}

	f := &fixture{
		repo:     repo,
		payments: &fakePayments{},
		courier:  &fakeCourier{statuses: map[string]string{}},
		authz:    access.NewAuthorizer(st, resolver, discard()),
		router:   chi.NewRouter(),
	}
	f.service = NewService(ServiceConfig{
		Repo:       repo,
		Catalog:    catalog{},
		Payments:   f.payments,
		Courier:    f.courier,
		Calculator: pricing.Calculator{TaxRate: 0.1, DeliveryFee: 5},
		Logger:     discard(),
	})
	f.service.now = func() time.Time { return base }

	authenticator := middleware.Authenticator(tokenVerifier{})
	h := NewHandler(f.service, f.authz)
	h.RegisterRoutes(f.router, authenticator)
	f.router.With(authenticator).Get("/user/orders", h.UserOrders)
	f.router.Get("/stores/{storeID}/orders", h.StoreOrders)
	return f
}

func (f *fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func detail(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body core.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to string
		want     bool
	}{
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusPickedUp, false},
		{StatusConfirmed, StatusPickedUp, true},
		{StatusConfirmed, StatusCancelled, true},
		{StatusPickedUp, StatusDelivered, true},
		{StatusPickedUp, StatusCancelled, false},
		{StatusDelivered, StatusCancelled, false},
		{StatusCancelled, StatusPending, false},
		{StatusPending, StatusPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, CanTransition(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestAdvances(t *testing.T) {
	assert.True(t, Advances(StatusPending, StatusPickedUp))
	assert.True(t, Advances(StatusPickedUp, StatusCancelled))
	assert.True(t, Advances(StatusConfirmed, StatusDelivered))
	assert.False(t, Advances(StatusPickedUp, StatusConfirmed))
	assert.False(t, Advances(StatusConfirmed, StatusConfirmed))
	assert.False(t, Advances(StatusDelivered, StatusCancelled))
}

func TestFormatGroupsByStore(t *testing.T) {
	orders := []Order{{ID: "o1", DeliveryAddress: types.JSONText(`{"city":"NYC"}`)}, {ID: "o2"}}
	lines := []Line{
		{ID: "a", OrderID: "o1", StoreID: "s2", StoreName: "Deli", Name: "Bagel", Quantity: 1, PriceAtTime: 2},
		{ID: "b", OrderID: "o1", StoreID: "s1", StoreName: "Bodega", Name: "Coffee", Quantity: 2, PriceAtTime: 4.5},
		{ID: "c", OrderID: "o1", StoreID: "s2", StoreName: "Deli", Name: "Lox", Quantity: 1, PriceAtTime: 9},
	}

	views := Format(orders, lines)
	require.Len(t, views, 2)

	first := views[0]
	require.Len(t, first.Stores, 2)
	assert.Equal(t, "s2", first.Stores[0].Store.ID)
	assert.Len(t, first.Stores[0].Items, 2)
	assert.Equal(t, "s1", first.Stores[1].Store.ID)
	assert.JSONEq(t, `{"city":"NYC"}`, string(first.DeliveryAddress))

	assert.Empty(t, views[1].Stores)
	assert.Equal(t, "null", string(views[1].DeliveryAddress))

	raw, err := json.Marshal(views[1])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"stores":[]`)
}

func TestEnrichAddress(t *testing.T) {
	lat := 40.7
	in := map[string]any{"street_address": []any{"9 Elm St"}, "customer_phone": "+1999"}
	out := enrichAddress(in, &Customer{FirstName: "Ada", LastName: "Lovelace", PhoneNumber: "+1555", Latitude: &lat})

	assert.Equal(t, "Ada Lovelace", out["customer_name"])
	assert.Equal(t, "+1999", out["customer_phone"])
	assert.Equal(t, 40.7, out["latitude"])
	assert.NotContains(t, out, "longitude")
	assert.NotContains(t, in, "customer_name")

	assert.Equal(t, in, enrichAddress(in, nil))
}

func TestCreate(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/orders", "alice", `{
		"payment_method_id": "card_1",
		"items": [{"store_item_id": "i1", "quantity": 2}],
		"delivery_address": {"street_address": ["9 Elm St"], "city": "New York"},
		"customer_notes": "ring twice"
	}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp CreateOrderResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusPending, resp.Status)
	assert.Equal(t, "pi_1_secret", resp.ClientSecret)
	assert.Equal(t, "Order created successfully", resp.Message)

	assert.Equal(t, 14.9, f.payments.amount)
	assert.Equal(t, "card_1", f.payments.cardID)

	o, err := f.repo.GetByID(context.Background(), resp.OrderID)
	require.NoError(t, err)
	assert.Equal(t, "alice", o.UserID)
	assert.Equal(t, 9.0, o.Subtotal)
	assert.Equal(t, 0.9, o.Tax)
	assert.Equal(t, 5.0, o.DeliveryFee)
	assert.Equal(t, 14.9, o.Total)
	assert.Equal(t, "pi_1", o.StripePaymentIntentID)
	require.NotNil(t, o.PaymentMethodID)
	assert.Equal(t, "card_1", *o.PaymentMethodID)

	var addr map[string]any
	require.NoError(t, o.DeliveryAddress.Unmarshal(&addr))
	assert.Equal(t, "Ada Lovelace", addr["customer_name"])
	assert.Equal(t, "+15550100", addr["customer_phone"])
	assert.Equal(t, "New York", addr["city"])

	require.Len(t, f.repo.created, 1)
	assert.Equal(t, 4.5, f.repo.created[0].PriceAtTime)
	assert.Equal(t, 9.0, f.repo.created[0].TotalPrice)
}

func TestCreateRejects(t *testing.T) {
	f := newFixture(t)
	valid := `{"payment_method_id":"card_1","items":[{"store_item_id":"%s","quantity":%d}],"delivery_address":{"city":"NYC"}}`

	tests := []struct {
		name   string
		token  string
		body   string
		payErr error
		status int
		detail string
	}{
		{"anonymous", "", fmt.Sprintf(valid, "i1", 1), nil, http.StatusUnauthorized, ""},
		{"no items", "alice", `{"payment_method_id":"card_1","items":[],"delivery_address":{"a":1}}`, nil, http.StatusBadRequest, ""},
		{"zero quantity", "alice", fmt.Sprintf(valid, "i1", 0), nil, http.StatusBadRequest, ""},
		{"unknown item", "alice", fmt.Sprintf(valid, "nope", 1), nil, http.StatusBadRequest, "Unknown store item"},
		{"foreign card", "alice", fmt.Sprintf(valid, "i1", 1), payment.ErrInvalidPaymentMethod, http.StatusBadRequest, "Invalid payment method"},
		{"no customer", "alice", fmt.Sprintf(valid, "i1", 1), payment.ErrNoCustomer, http.StatusBadRequest, "No Stripe customer found"},
		{
			"declined", "alice", fmt.Sprintf(valid, "i1", 1),
			&payment.ProcessorError{Message: "Your card was declined.", Err: errors.New("card_declined")},
			http.StatusBadRequest, "Your card was declined.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f.payments.err = tt.payErr
			before := len(f.repo.orders)

			rec := f.do(http.MethodPost, "/orders", tt.token, tt.body)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.detail != "" {
				assert.Equal(t, tt.detail, detail(t, rec))
			}
			assert.Len(t, f.repo.orders, before)
		})
	}
}

func TestListAndView(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/orders", "alice", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Admin access required", detail(t, rec))

	rec = f.do(http.MethodGet, "/orders", "admin", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var all []View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	require.Len(t, all, 2)
	assert.Equal(t, "o2", all[0].ID)

	rec = f.do(http.MethodGet, "/user/orders", "alice", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var mine []View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &mine))
	require.Len(t, mine, 1)
	assert.Equal(t, "Corner Bodega", mine[0].Stores[0].Store.Name)

	rec = f.do(http.MethodGet, "/stores/s2/orders", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var storeOrders []View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &storeOrders))
	require.Len(t, storeOrders, 1)
	assert.Equal(t, "o2", storeOrders[0].ID)

	for token, want := range map[string]int{
		"alice":    http.StatusOK,
		"owner":    http.StatusOK,
		"admin":    http.StatusOK,
		"bob":      http.StatusNotFound,
		"stranger": http.StatusNotFound,
	} {
		assert.Equal(t, want, f.do(http.MethodGet, "/orders/o1", token, "").Code, token)
	}

	rec = f.do(http.MethodGet, "/orders/missing", "admin", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Order not found", detail(t, rec))
}

func TestListPages(t *testing.T) {
	f := newFixture(t)

	page := func(query string) []string {
		t.Helper()
		rec := f.do(http.MethodGet, "/orders"+query, "admin", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var views []View
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &views))
		ids := make([]string, 0, len(views))
		for _, v := range views {
			ids = append(ids, v.ID)
		}
		return ids
	}

	assert.Equal(t, []string{"o2"}, page("?page_size=1"))
	assert.Equal(t, []string{"o1"}, page("?page=2&page_size=1"))
	assert.Empty(t, page("?page=3&page_size=1"))
	assert.Equal(t, []string{"o2", "o1"}, page("?page=zero&page_size=-4"))
}

func TestListParamsNormalize(t *testing.T) {
	p := ListParams{Page: 0, PageSize: 5000}
	p.Normalize()
	assert.Equal(t, ListParams{Page: 1, PageSize: maxPageSize}, p)
	assert.Equal(t, 0, p.Offset())

	p = ListParams{Page: 3, PageSize: 20}
	p.Normalize()
	assert.Equal(t, 40, p.Offset())
}

func TestRepositoryListPages(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close() //nolint:errcheck

	repo := NewRepository(core.WrapDB(sqlDB).DB)
	mock.ExpectQuery(`WHERE 1 = 1 AND user_id = \$1 ORDER BY created_at DESC LIMIT \$2 OFFSET \$3`).
		WithArgs("alice", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id"}).AddRow("o9", "alice"))

	orders, err := repo.List(context.Background(), ListFilter{UserID: "alice", Limit: 10, Offset: 20})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, "o9", orders[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateStatus(t *testing.T) {
	f := newFixture(t)
	patch := func(token, body string) *httptest.ResponseRecorder {
		return f.do(http.MethodPatch, "/orders/o1/status", token, body)
	}

	rec := patch("owner", `{}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Status is required", detail(t, rec))

	rec = patch("owner", `{"status":"shipped"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid status. Must be one of: pending, confirmed, picked_up, delivered, cancelled", detail(t, rec))

	rec = patch("stranger", `{"status":"confirmed"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = patch("owner", `{"status":"delivered"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = patch("owner", `{"status":"confirmed"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp StatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, StatusResponse{OrderID: "o1", Status: "confirmed", Message: "Order status updated successfully"}, resp)

	require.Len(t, f.repo.writes, 1)
	assert.Equal(t, SourceAPI, f.repo.writes[0].details["source"])
	assert.Equal(t, "owner", f.repo.writes[0].details["user_id"])

	assert.Equal(t, http.StatusConflict, patch("owner", `{"status":"confirmed"}`).Code)
	assert.Equal(t, http.StatusNotFound,
		f.do(http.MethodPatch, "/orders/missing/status", "admin", `{"status":"confirmed"}`).Code)
}

func TestDispatch(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/orders/o1/dispatch", "alice", "")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Not authorized to dispatch this order", detail(t, rec))

	rec = f.do(http.MethodPost, "/orders/o1/dispatch", "owner", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp DispatchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, DispatchResponse{
		OrderID:     "o1",
		Status:      StatusConfirmed,
		DeliveryID:  "del_1",
		TrackingURL: "https://track/del_1",
	}, resp)

	require.Len(t, f.courier.created, 1)
	req := f.courier.created[0]
	assert.Equal(t, "o1", req.ExternalID)
	assert.Equal(t, []string{"1 Main St"}, req.Pickup.StreetAddress)
	assert.Equal(t, map[string]any{"city": "New York"}, req.Dropoff)
	assert.Equal(t, int64(900), req.ManifestCents)
	assert.Equal(t, []delivery.ManifestItem{{Name: "Coffee", Quantity: 2, Price: 450}}, req.Items)
	assert.Equal(t, time.Date(2026, 10, 1, 12, 15, 0, 0, time.UTC), req.Window.PickupReady)

	require.Len(t, f.repo.writes, 1)
	assert.Equal(t, SourceDispatch, f.repo.writes[0].details["source"])
	assert.Equal(t, "del_1", f.repo.writes[0].details["delivery_id"])

	rec = f.do(http.MethodPost, "/orders/o1/dispatch", "admin", "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "Order already dispatched", detail(t, rec))

	f.courier.err = delivery.ErrUpstream
	rec = f.do(http.MethodPost, "/orders/o2/dispatch", "admin", "")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Failed to create delivery", detail(t, rec))
}

func TestDispatchWithoutCourier(t *testing.T) {
	f := newFixture(t)
	f.service.courier = nil

	rec := f.do(http.MethodPost, "/orders/o1/dispatch", "admin", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NoError(t, f.service.PollDeliveries(context.Background()))
}

func TestPollDeliveries(t *testing.T) {
	f := newFixture(t)
	add := func(id, status, deliveryID string) {
		f.repo.orders[id] = &Order{ID: id, UserID: "alice", Status: status, UberDeliveryID: deliveryID}
	}
	add("p1", StatusConfirmed, "d_pickup_complete")
	add("p2", StatusPickedUp, "d_delivered")
	add("p3", StatusConfirmed, "d_pending")
	add("p4", StatusPickedUp, "d_stale")
	add("p5", StatusConfirmed, "d_unreachable")
	add("p6", StatusDelivered, "d_done")

	f.courier.statuses = map[string]string{
		"d_pickup_complete": delivery.CourierPickupComplete,
		"d_delivered":       delivery.CourierDelivered,
		"d_pending":         delivery.CourierPending,
		"d_stale":           delivery.CourierPickup,
		"d_done":            delivery.CourierCanceled,
	}

	require.NoError(t, f.service.PollDeliveries(context.Background()))

	status := func(id string) string {
		o, err := f.repo.GetByID(context.Background(), id)
		require.NoError(t, err)
		return o.Status
	}
	assert.Equal(t, StatusPickedUp, status("p1"))
	assert.Equal(t, StatusDelivered, status("p2"))
	assert.Equal(t, StatusConfirmed, status("p3"))
	assert.Equal(t, StatusPickedUp, status("p4"))
	assert.Equal(t, StatusConfirmed, status("p5"))
	assert.Equal(t, StatusDelivered, status("p6"))

	require.Len(t, f.repo.writes, 2)
	for _, w := range f.repo.writes {
		assert.Equal(t, SourceCourier, w.details["source"])
	}
}

func TestSetPaymentStatus(t *testing.T) {
	f := newFixture(t)

	id, err := f.service.SetPaymentStatus(context.Background(), "pi_o1", payment.StatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, "o1", id)
	assert.Equal(t, payment.StatusSucceeded, f.repo.orders["o1"].PaymentStatus)

	_, err = f.service.SetPaymentStatus(context.Background(), "pi_unknown", payment.StatusFailed)
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRepositoryCreate(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close() //nolint:errcheck

	repo := NewRepository(core.WrapDB(sqlDB).DB)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO orders")).
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_items")).
		WithArgs("li1", "o1", "i1", 2, 4.5, 9.0).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO order_status_updates")).
		WithArgs(sqlmock.AnyArg(), "o1", StatusPending, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	o := &Order{ID: "o1", UserID: "alice", Status: StatusPending, PaymentStatus: payment.StatusPending,
		DeliveryAddress: types.JSONText(`{}`)}
	items := []LineItem{{ID: "li1", StoreItemID: "i1", Quantity: 2, PriceAtTime: 4.5, TotalPrice: 9}}
	require.NoError(t, repo.Create(context.Background(), o, items))
	assert.Equal(t, now, o.CreatedAt)
	assert.Equal(t, "o1", items[0].OrderID)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryUpdateStatusRollsBack(t *testing.T) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer sqlDB.Close() //nolint:errcheck

	repo := NewRepository(core.WrapDB(sqlDB).DB)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE orders SET status")).
		WithArgs("missing", StatusConfirmed).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err = repo.UpdateStatus(context.Background(), "missing", StatusConfirmed, nil)
	assert.ErrorIs(t, err, core.ErrNotFound)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE stripe_payment_intent_id = $1")).
		WithArgs("pi_1", payment.StatusSucceeded).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("o1"))

	id, err := repo.SetPaymentStatus(context.Background(), "pi_1", payment.StatusSucceeded)
	require.NoError(t, err)
	assert.Equal(t, "o1", id)

	require.NoError(t, mock.ExpectationsWereMet())
}
