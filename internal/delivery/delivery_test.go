// AngelaMos | 2026
// delivery_test.go

package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/store"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type uberStub struct {
	tokens   int
	lastBody []byte
}

func (u *uberStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	mux.HandleFunc("/oauth/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.Form.Get("grant_type"))
		assert.Equal(t, "cid", r.Form.Get("client_id"))
		assert.Equal(t, "eats.deliveries", r.Form.Get("scope"))
		u.tokens++
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"tok","token_type":"bearer","expires_in":3600}`)
	})

	mux.HandleFunc("/v1/customers/cust/delivery_quotes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		u.lastBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"fee":799,"currency":"usd","dropoff_eta":"2026-10-19T18:30:00Z"}`)
	})

	mux.HandleFunc("/v1/customers/cust/deliveries", func(w http.ResponseWriter, r *http.Request) {
		u.lastBody, _ = io.ReadAll(r.Body)
		fmt.Fprint(w, `{"id":"del_1","status":"pending","tracking_url":"https://track/del_1"}`)
	})

	mux.HandleFunc("/v1/customers/cust/deliveries/del_1", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"id":"del_1","status":"pickup_complete","tracking_url":"https://track/del_1"}`)
	})

	mux.HandleFunc("/v1/customers/cust/deliveries/broken", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"code":"internal"}`, http.StatusInternalServerError)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newClient(t *testing.T, srv *httptest.Server) *Client {
	t.Helper()
	c, err := New(config.UberConfig{
		CustomerID:   "cust",
		ClientID:     "cid",
		ClientSecret: "secret",
		BaseURL:      srv.URL + "/v1",
		AuthURL:      srv.URL + "/oauth/token",
	}, discard())
	require.NoError(t, err)
	return c
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(config.UberConfig{ClientID: "x"}, discard())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestQuote(t *testing.T) {
	stub := &uberStub{}
	c := newClient(t, stub.server(t))

	now := time.Date(2026, 10, 19, 16, 0, 0, 0, time.UTC)
	q, err := c.Quote(context.Background(), QuoteRequest{
		Pickup:        Address{StreetAddress: []string{"1 Main St"}, City: "New York", State: "NY", ZipCode: "10003", Country: "US"},
		Dropoff:       map[string]any{"street_address": []string{"9 Elm St"}},
		Window:        WindowFrom(now),
		ManifestCents: 450,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(799), q.Fee)
	assert.Equal(t, "usd", q.Currency)
	assert.Equal(t, "2026-10-19T18:30:00Z", q.DropoffETA)

	body := gjson.ParseBytes(stub.lastBody)
	assert.Equal(t, "2026-10-19T16:15:00Z", body.Get("pickup_ready_dt").String())
	assert.Equal(t, "2026-10-19T17:15:00Z", body.Get("pickup_deadline_dt").String())
	assert.Equal(t, "2026-10-19T16:45:00Z", body.Get("dropoff_ready_dt").String())
	assert.Equal(t, "2026-10-19T17:45:00Z", body.Get("dropoff_deadline_dt").String())
	assert.Equal(t, int64(450), body.Get("manifest_total_value").Int())

	pickup := body.Get("pickup_address")
	assert.Equal(t, gjson.String, pickup.Type)
	assert.Equal(t, "10003", gjson.Get(pickup.String(), "zip_code").String())
}

func TestDeliveryLifecycle(t *testing.T) {
	stub := &uberStub{}
	c := newClient(t, stub.server(t))
	ctx := context.Background()

	d, err := c.CreateDelivery(ctx, DeliveryRequest{
		Pickup:        Address{StreetAddress: []string{"1 Main St"}},
		Dropoff:       map[string]any{"city": "New York"},
		Window:        WindowFrom(time.Now()),
		ManifestCents: 1200,
		Items:         []ManifestItem{{Name: "Coffee", Quantity: 2}},
		ExternalID:    "order-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "del_1", d.ID)
	assert.Equal(t, "https://track/del_1", d.TrackingURL)
	assert.Equal(t, "Coffee", gjson.GetBytes(stub.lastBody, "manifest_items.0.name").String())
	assert.Equal(t, "order-1", gjson.GetBytes(stub.lastBody, "external_id").String())

	d, err = c.Status(ctx, "del_1")
	require.NoError(t, err)
	assert.Equal(t, CourierPickupComplete, d.Status)

	_, err = c.Status(ctx, "broken")
	assert.ErrorIs(t, err, ErrUpstream)

	assert.Equal(t, 1, stub.tokens)
}

func TestOrderStatus(t *testing.T) {
	tests := []struct {
		courier string
		want    string
		ok      bool
	}{
		{CourierPending, "", false},
		{CourierPickup, "confirmed", true},
		{CourierPickupComplete, "picked_up", true},
		{CourierDropoff, "picked_up", true},
		{CourierDelivered, "delivered", true},
		{CourierCanceled, "cancelled", true},
		{CourierReturned, "cancelled", true},
		{"mystery", "", false},
	}
	for _, tt := range tests {
		got, ok := OrderStatus(tt.courier)
		assert.Equal(t, tt.want, got, tt.courier)
		assert.Equal(t, tt.ok, ok, tt.courier)
	}
}

type fakeQuoter struct {
	req QuoteRequest
	err error
}

func (q *fakeQuoter) Quote(_ context.Context, req QuoteRequest) (*Quote, error) {
	q.req = req
	if q.err != nil {
		return nil, q.err
	}
	return &Quote{Fee: 599, Currency: "usd", DropoffETA: "soon"}, nil
}

type catalog struct{}

func (catalog) Get(_ context.Context, id string) (*store.Store, error) {
	if id != "s1" {
		return nil, core.ErrNotFound
	}
	return &store.Store{ID: "s1", Street1: "1 Main St", City: "New York", State: "NY", Zip: "10003"}, nil
}

func (catalog) ItemsByIDs(_ context.Context, ids []string) (map[string]store.Item, error) {
	out := map[string]store.Item{}
	for _, id := range ids {
		switch id {
		case "i1":
			out[id] = store.Item{ID: "i1", StoreID: "s1", Price: 4.5}
		case "i2":
			out[id] = store.Item{ID: "i2", StoreID: "s2", Price: 1}
		}
	}
	return out, nil
}

func TestQuoteHandler(t *testing.T) {
	quoter := &fakeQuoter{}
	h := NewHandler(quoter, catalog{})
	h.now = func() time.Time { return time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC) }

	r := chi.NewRouter()
	h.RegisterRoutes(r)

	post := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/delivery/quote", strings.NewReader(body))
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	rec := post(`{"store_id":"s1","item_id":"i1","delivery_address":{"city":"NYC"}}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var got Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, Quote{Fee: 599, Currency: "usd", DropoffETA: "soon"}, got)
	assert.Equal(t, int64(450), quoter.req.ManifestCents)
	assert.Equal(t, []string{"1 Main St"}, quoter.req.Pickup.StreetAddress)
	assert.Equal(t, time.Date(2026, 10, 19, 12, 15, 0, 0, time.UTC), quoter.req.Window.PickupReady)

	assert.Equal(t, http.StatusNotFound, post(`{"store_id":"s9","item_id":"i1","delivery_address":{"a":1}}`).Code)
	assert.Equal(t, http.StatusNotFound, post(`{"store_id":"s1","item_id":"i2","delivery_address":{"a":1}}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"store_id":"s1"}`).Code)

	quoter.err = ErrUpstream
	assert.Equal(t, http.StatusBadGateway, post(`{"store_id":"s1","item_id":"i1","delivery_address":{"a":1}}`).Code)

	unconfigured := chi.NewRouter()
	NewHandler(nil, catalog{}).RegisterRoutes(unconfigured)
	req := httptest.NewRequest(http.MethodPost, "/delivery/quote",
		strings.NewReader(`{"store_id":"s1","item_id":"i1","delivery_address":{"a":1}}`))
	rec = httptest.NewRecorder()
	unconfigured.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
