// AngelaMos | 2026
// search.go

package search

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
)

// Hit is one product document as returned by the index. Fields beyond the
// common ones are kept in Attributes verbatim.
type Hit struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Price       float64         `json:"price"`
	Quantity    int             `json:"quantity"`
	Rating      float64         `json:"rating"`
	ImageURL    string          `json:"imageUrl"`
	Tags        []string        `json:"tags"`
	Attributes  json.RawMessage `json:"attributes,omitempty"`
}

type Client struct {
	http    *http.Client
	baseURL string
	index   string
}

func NewClient(cfg config.SearchConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	index := cfg.Index
	if index == "" {
		index = "products"
	}
	return &Client{
		http:    &http.Client{Timeout: timeout},
		baseURL: strings.TrimRight(cfg.URL, "/"),
		index:   index,
	}
}

// Search queries the product index and returns its hits in rank order.
func (c *Client) Search(ctx context.Context, query string) ([]Hit, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("index", c.index)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/search?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("search: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search: %w: %w", core.ErrUnavailable, err)
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("search: read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search: status %d: %w", resp.StatusCode, core.ErrUnavailable)
	}

	return ParseHits(body), nil
}

// ParseHits reads the "hits" array of a search response. Malformed entries
// are skipped.
func ParseHits(body []byte) []Hit {
	hits := []Hit{}
	gjson.GetBytes(body, "hits").ForEach(func(_, v gjson.Result) bool {
		h := Hit{
			ID:          v.Get("id").String(),
			Name:        v.Get("name").String(),
			Description: v.Get("description").String(),
			Price:       v.Get("price").Float(),
			Quantity:    int(v.Get("quantity").Int()),
			Rating:      v.Get("rating").Float(),
			ImageURL:    v.Get("imageUrl").String(),
		}
		if !v.IsObject() || h.ID == "" {
			return true
		}
		for _, tag := range v.Get("tags").Array() {
			h.Tags = append(h.Tags, tag.String())
		}
		if attrs := v.Get("attributes"); attrs.IsObject() {
			h.Attributes = json.RawMessage(attrs.Raw)
		}
		hits = append(hits, h)
		return true
	})
	return hits
}
