// AngelaMos | 2026
// orders.go

package client

import (
	"context"
	"net/http"
	"net/url"

	"github.com/localmart/localmart/internal/order"
)

func (c *Client) UserOrders(ctx context.Context, token string) ([]order.View, error) {
	var out []order.View
	if err := c.get(ctx, "/user/orders", token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) AdminOrders(ctx context.Context, token string) ([]order.View, error) {
	var out []order.View
	if err := c.get(ctx, "/orders", token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Order(ctx context.Context, token, id string) (*order.View, error) {
	var out order.View
	if err := c.get(ctx, "/orders/"+url.PathEscape(id), token, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(
	ctx context.Context,
	token string,
	req order.CreateOrderRequest,
) (*order.CreateOrderResponse, error) {
	var out order.CreateOrderResponse
	if err := c.send(ctx, http.MethodPost, "/orders", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateOrderStatus(ctx context.Context, token, id, status string) (*order.StatusResponse, error) {
	var out order.StatusResponse
	err := c.send(ctx, http.MethodPatch, "/orders/"+url.PathEscape(id)+"/status", token,
		order.UpdateStatusRequest{Status: status}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DispatchOrder(ctx context.Context, token, id string) (*order.DispatchResponse, error) {
	var out order.DispatchResponse
	err := c.send(ctx, http.MethodPost, "/orders/"+url.PathEscape(id)+"/dispatch", token, nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}
