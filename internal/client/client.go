// AngelaMos | 2026
// client.go

package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

const (
	apiPrefix       = "/api/v0"
	defaultImageURL = "https://picsum.photos/seed/%s/400/300"
	maxBody         = 8 << 20
)

// APIError is any non-2xx response. The message is the server's detail
// when it sent one.
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("API Error: %d", e.Status)
}

// StatusOf reports the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

type Client struct {
	http      *http.Client
	baseURL   string
	searchURL string
	imageURL  string
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithSearchURL(u string) Option {
	return func(c *Client) { c.searchURL = strings.TrimRight(u, "/") }
}

// WithImageURL sets the printf pattern that turns an item id into an image
// URL.
func WithImageURL(pattern string) Option {
	return func(c *Client) { c.imageURL = pattern }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		http:     &http.Client{Timeout: 15 * time.Second},
		baseURL:  strings.TrimRight(baseURL, "/"),
		imageURL: defaultImageURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.searchURL == "" {
		c.searchURL = c.baseURL
	}
	return c
}

func (c *Client) api(path string) string {
	return c.baseURL + apiPrefix + path
}

// do sends one request. A nil body sends none; a nil out discards the
// response.
func (c *Client) do(ctx context.Context, method, url, token string, body, out any) error {
	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL.Path, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Status: resp.StatusCode,
			Detail: gjson.GetBytes(raw, "detail").String(),
		}
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) get(ctx context.Context, path, token string, out any) error {
	return c.do(ctx, http.MethodGet, c.api(path), token, nil, out)
}

func (c *Client) send(ctx context.Context, method, path, token string, body, out any) error {
	return c.do(ctx, method, c.api(path), token, body, out)
}
