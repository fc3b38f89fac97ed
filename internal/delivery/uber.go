// AngelaMos | 2026
// uber.go

package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
)

const (
	defaultBaseURL = "https://api.uber.com/v1"
	defaultAuthURL = "https://auth.uber.com/oauth/v2/token"
	scope          = "eats.deliveries"
	placeholderTel = "+15555555555"
)

var (
	ErrNotConfigured = errors.New("courier is not configured")
	ErrUpstream      = errors.New("courier request failed")
)

// Courier statuses reported by Uber Direct.
const (
	CourierPending        = "pending"
	CourierPickup         = "pickup"
	CourierPickupComplete = "pickup_complete"
	CourierDropoff        = "dropoff"
	CourierDelivered      = "delivered"
	CourierCanceled       = "canceled"
	CourierReturned       = "returned"
)

// Address is the courier's structured address. It is sent as a JSON string
// inside the request body.
type Address struct {
	StreetAddress []string `json:"street_address"`
	City          string   `json:"city"`
	State         string   `json:"state"`
	ZipCode       string   `json:"zip_code"`
	Country       string   `json:"country"`
}

type Window struct {
	PickupReady     time.Time
	PickupDeadline  time.Time
	DropoffReady    time.Time
	DropoffDeadline time.Time
}

// WindowFrom starts pickup 15 minutes after now for an hour; dropoff opens
// 30 minutes after pickup and also lasts an hour.
func WindowFrom(now time.Time) Window {
	pickup := now.Add(15 * time.Minute)
	dropoff := pickup.Add(30 * time.Minute)
	return Window{
		PickupReady:     pickup,
		PickupDeadline:  pickup.Add(time.Hour),
		DropoffReady:    dropoff,
		DropoffDeadline: dropoff.Add(time.Hour),
	}
}

type ManifestItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
	Price    int64  `json:"price,omitempty"`
}

type QuoteRequest struct {
	Pickup        Address
	Dropoff       any
	Window        Window
	ManifestCents int64
}

type Quote struct {
	Fee        int64  `json:"fee"`
	Currency   string `json:"currency"`
	DropoffETA string `json:"estimated_delivery_time"`
}

type DeliveryRequest struct {
	Pickup        Address
	Dropoff       any
	Window        Window
	ManifestCents int64
	Items         []ManifestItem
	ExternalID    string
}

type Delivery struct {
	ID          string
	Status      string
	TrackingURL string
}

// Client talks to Uber Direct with a client-credentials token.
type Client struct {
	http       *http.Client
	baseURL    string
	customerID string
	logger     *slog.Logger
}

func New(cfg config.UberConfig, logger *slog.Logger) (*Client, error) {
	if !cfg.Enabled() {
		return nil, ErrNotConfigured
	}

	authURL := cfg.AuthURL
	if authURL == "" {
		authURL = defaultAuthURL
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	creds := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     authURL,
		Scopes:       []string{scope},
		AuthStyle:    oauth2.AuthStyleInParams,
	}

	base := &http.Client{Timeout: 10 * time.Second}
	ctx := context.WithValue(context.Background(), oauth2.HTTPClient, base)

	httpClient := creds.Client(ctx)
	httpClient.Timeout = 10 * time.Second

	return &Client{
		http:       httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		customerID: cfg.CustomerID,
		logger:     logger,
	}, nil
}

func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*Quote, error) {
	body, err := c.payload(req.Pickup, req.Dropoff, req.Window, req.ManifestCents, nil, "")
	if err != nil {
		return nil, err
	}

	res, err := c.do(ctx, http.MethodPost, "/delivery_quotes", body)
	if err != nil {
		return nil, err
	}

	return &Quote{
		Fee:        res.Get("fee").Int(),
		Currency:   res.Get("currency").String(),
		DropoffETA: res.Get("dropoff_eta").String(),
	}, nil
}

func (c *Client) CreateDelivery(ctx context.Context, req DeliveryRequest) (*Delivery, error) {
	body, err := c.payload(req.Pickup, req.Dropoff, req.Window, req.ManifestCents, req.Items, req.ExternalID)
	if err != nil {
		return nil, err
	}

	res, err := c.do(ctx, http.MethodPost, "/deliveries", body)
	if err != nil {
		return nil, err
	}
	return parseDelivery(res), nil
}

func (c *Client) Status(ctx context.Context, deliveryID string) (*Delivery, error) {
	res, err := c.do(ctx, http.MethodGet, "/deliveries/"+deliveryID, nil)
	if err != nil {
		return nil, err
	}
	return parseDelivery(res), nil
}

func parseDelivery(res gjson.Result) *Delivery {
	return &Delivery{
		ID:          res.Get("id").String(),
		Status:      res.Get("status").String(),
		TrackingURL: res.Get("tracking_url").String(),
	}
}

func (c *Client) payload(
	pickup Address,
	dropoff any,
	w Window,
	manifestCents int64,
	items []ManifestItem,
	externalID string,
) ([]byte, error) {
	pickupJSON, err := json.Marshal(pickup)
	if err != nil {
		return nil, fmt.Errorf("encode pickup address: %w", err)
	}
	dropoffJSON, err := json.Marshal(dropoff)
	if err != nil {
		return nil, fmt.Errorf("encode dropoff address: %w", err)
	}

	body := map[string]any{
		"pickup_address":       string(pickupJSON),
		"dropoff_address":      string(dropoffJSON),
		"pickup_ready_dt":      w.PickupReady.UTC().Format(time.RFC3339),
		"pickup_deadline_dt":   w.PickupDeadline.UTC().Format(time.RFC3339),
		"dropoff_ready_dt":     w.DropoffReady.UTC().Format(time.RFC3339),
		"dropoff_deadline_dt":  w.DropoffDeadline.UTC().Format(time.RFC3339),
		"manifest_total_value": manifestCents,
		"pickup_phone_number":  placeholderTel,
		"dropoff_phone_number": placeholderTel,
	}
	if items != nil {
		body["manifest_items"] = items
	}
	if externalID != "" {
		body["external_id"] = externalID
	}
	return json.Marshal(body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (gjson.Result, error) {
	ctx, span := core.StartSpan(ctx, "delivery.uber")
	defer span.End()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}

	url := c.baseURL + "/customers/" + c.customerID + path
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("build courier request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		core.SetSpanError(ctx, err)
		return gjson.Result{}, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("%w: read body: %w", ErrUpstream, err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.ErrorContext(ctx, "courier api error",
			"status", resp.StatusCode,
			"path", path,
			"body", string(raw),
		)
		return gjson.Result{}, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	return gjson.ParseBytes(raw), nil
}

// OrderStatus maps a courier status onto the order lifecycle. ok is false
// when the courier status does not move the order.
func OrderStatus(courierStatus string) (string, bool) {
	switch courierStatus {
	case CourierPickup:
		return "confirmed", true
	case CourierPickupComplete, CourierDropoff:
		return "picked_up", true
	case CourierDelivered:
		return "delivered", true
	case CourierCanceled, CourierReturned:
		return "cancelled", true
	}
	return "", false
}
