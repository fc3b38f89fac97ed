// AngelaMos | 2026
// geocode.go

package geocode

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
)

var (
	ErrNotConfigured = errors.New("geocoding api key not configured")
	ErrNoResult      = errors.New("address could not be geocoded")
)

// Address is a postal address in the form the geocoder expects.
type Address struct {
	Street  string
	City    string
	State   string
	Zip     string
	Country string
}

// Complete reports whether the address has every part required to geocode.
func (a Address) Complete() bool {
	return strings.TrimSpace(a.Street) != "" &&
		strings.TrimSpace(a.City) != "" &&
		strings.TrimSpace(a.State) != "" &&
		strings.TrimSpace(a.Zip) != ""
}

func (a Address) String() string {
	country := a.Country
	if country == "" {
		country = "USA"
	}
	return fmt.Sprintf("%s, %s, %s %s, %s", a.Street, a.City, a.State, a.Zip, country)
}

// Client resolves addresses through the Google Geocoding API. Requests are
// spaced at least 200ms apart across all callers.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	logger  *slog.Logger
}

func New(cfg config.GoogleConfig, logger *slog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if cfg.MapsAPIKey == "" {
		logger.Warn("no google maps api key, geocoding disabled")
	}

	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: cfg.GeocodeURL,
		apiKey:  cfg.MapsAPIKey,
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		logger:  logger,
	}
}

// Geocode returns the first match for addr as a lon/lat point.
func (c *Client) Geocode(ctx context.Context, addr Address) (orb.Point, error) {
	if c.apiKey == "" {
		return orb.Point{}, ErrNotConfigured
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return orb.Point{}, fmt.Errorf("geocode: %w", err)
	}

	q := url.Values{}
	q.Set("address", addr.String())
	q.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return orb.Point{}, fmt.Errorf("geocode: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		core.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return orb.Point{}, fmt.Errorf("geocode: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return orb.Point{}, fmt.Errorf("geocode: read body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		core.GeocodeRequestsTotal.WithLabelValues("error").Inc()
		return orb.Point{}, fmt.Errorf("geocode: status %d: %w", resp.StatusCode, core.ErrUnavailable)
	}

	status := gjson.GetBytes(body, "status").String()
	location := gjson.GetBytes(body, "results.0.geometry.location")
	if status != "OK" || !location.Exists() {
		core.GeocodeRequestsTotal.WithLabelValues("miss").Inc()
		c.logger.WarnContext(ctx, "no geocoding result", "status", status)
		return orb.Point{}, ErrNoResult
	}

	core.GeocodeRequestsTotal.WithLabelValues("ok").Inc()
	return orb.Point{location.Get("lng").Float(), location.Get("lat").Float()}, nil
}
