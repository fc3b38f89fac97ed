// AngelaMos | 2026
// payment.go

package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/localmart/localmart/internal/delivery"
	"github.com/localmart/localmart/internal/featureflag"
	"github.com/localmart/localmart/internal/payment"
	"github.com/localmart/localmart/internal/search"
)

// Cards lists saved cards. A 404 means none are saved yet.
func (c *Client) Cards(ctx context.Context, token string) ([]payment.Card, error) {
	var out []payment.Card
	err := c.get(ctx, "/payment/cards", token, &out)
	if StatusOf(err) == http.StatusNotFound {
		return []payment.Card{}, nil
	}
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SaveCard attaches a processor payment method id to the account.
func (c *Client) SaveCard(ctx context.Context, token, paymentMethodID string) error {
	return c.send(ctx, http.MethodPost, "/payment/cards", token,
		payment.SaveCardRequest{PaymentMethodID: paymentMethodID}, nil)
}

func (c *Client) DeleteCard(ctx context.Context, token, cardID string) error {
	return c.send(ctx, http.MethodDelete, "/payment/cards/"+url.PathEscape(cardID), token, nil, nil)
}

func (c *Client) SetupIntent(ctx context.Context, token string) (string, error) {
	var out payment.SetupIntentResponse
	if err := c.send(ctx, http.MethodPost, "/payment/setup-intent", token, nil, &out); err != nil {
		return "", err
	}
	return out.ClientSecret, nil
}

func (c *Client) DeliveryQuote(ctx context.Context, req delivery.QuoteInput) (*delivery.Quote, error) {
	var out delivery.Quote
	if err := c.send(ctx, http.MethodPost, "/delivery/quote", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) FeatureFlags(ctx context.Context) ([]featureflag.Flag, error) {
	var out []featureflag.Flag
	if err := c.get(ctx, "/feature-flags", "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchProducts queries the product index on the search service directly.
func (c *Client) SearchProducts(ctx context.Context, query string) ([]search.Hit, error) {
	q := url.Values{}
	q.Set("query", query)
	q.Set("index", "products")

	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, c.searchURL+"/api/search?"+q.Encode(), "", nil, &raw); err != nil {
		return nil, err
	}
	return search.ParseHits(raw), nil
}
