// AngelaMos | 2026
// stores.go

package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/localmart/localmart/internal/order"
	"github.com/localmart/localmart/internal/store"
)

const storeFanout = 8

// Item is a store item with a display image.
type Item struct {
	store.Item
	ImageURL string `json:"imageUrl"`
}

type StoreWithItems struct {
	store.Store
	Items []Item `json:"items"`
}

func (c *Client) Stores(ctx context.Context) ([]store.Store, error) {
	var out []store.Store
	if err := c.get(ctx, "/stores", "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StoresNear lists stores sorted by distance from the point.
func (c *Client) StoresNear(ctx context.Context, lat, lng float64) ([]store.Store, error) {
	near := strconv.FormatFloat(lat, 'f', -1, 64) + "," + strconv.FormatFloat(lng, 'f', -1, 64)
	var out []store.Store
	if err := c.get(ctx, "/stores?near="+url.QueryEscape(near), "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) Store(ctx context.Context, id string) (*store.Store, error) {
	var out store.Store
	if err := c.get(ctx, storePath(id), "", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) StoreItems(ctx context.Context, storeID string) ([]store.Item, error) {
	var out []store.Item
	if err := c.get(ctx, storePath(storeID)+"/items", "", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StoreWithItems fetches the store and its items concurrently.
func (c *Client) StoreWithItems(ctx context.Context, id string) (*StoreWithItems, error) {
	var (
		st    *store.Store
		items []store.Item
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		st, err = c.Store(ctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		items, err = c.StoreItems(ctx, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &StoreWithItems{Store: *st, Items: c.withImages(items)}, nil
}

// AllStoresWithItems lists every store and loads each one's items in
// parallel. Any failure fails the whole call.
func (c *Client) AllStoresWithItems(ctx context.Context) ([]StoreWithItems, error) {
	stores, err := c.Stores(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]StoreWithItems, len(stores))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(storeFanout)
	for i := range stores {
		g.Go(func() error {
			items, err := c.StoreItems(ctx, stores[i].ID)
			if err != nil {
				return fmt.Errorf("store %s items: %w", stores[i].ID, err)
			}
			out[i] = StoreWithItems{Store: stores[i], Items: c.withImages(items)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ImageURL(itemID string) string {
	return fmt.Sprintf(c.imageURL, itemID)
}

func (c *Client) withImages(items []store.Item) []Item {
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = Item{Item: it, ImageURL: c.ImageURL(it.ID)}
	}
	return out
}

func (c *Client) CreateItem(ctx context.Context, token, storeID string, req store.ItemRequest) (*store.Item, error) {
	var out store.Item
	if err := c.send(ctx, http.MethodPost, storePath(storeID)+"/items", token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateItem(
	ctx context.Context,
	token, storeID, itemID string,
	req store.ItemRequest,
) (*store.Item, error) {
	var out store.Item
	path := storePath(storeID) + "/items/" + url.PathEscape(itemID)
	if err := c.send(ctx, http.MethodPatch, path, token, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteItem(ctx context.Context, token, storeID, itemID string) error {
	path := storePath(storeID) + "/items/" + url.PathEscape(itemID)
	return c.send(ctx, http.MethodDelete, path, token, nil, nil)
}

func (c *Client) StoreOrders(ctx context.Context, token, storeID string) ([]order.View, error) {
	var out []order.View
	if err := c.get(ctx, storePath(storeID)+"/orders", token, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// StoreRoles returns the caller's roles in the store.
func (c *Client) StoreRoles(ctx context.Context, token, storeID string) ([]string, error) {
	var out store.RolesResponse
	if err := c.get(ctx, storePath(storeID)+"/roles", token, &out); err != nil {
		return nil, err
	}
	return out.Roles, nil
}

func (c *Client) GeocodeStore(ctx context.Context, token, storeID string) (*store.GeocodeResponse, error) {
	var out store.GeocodeResponse
	if err := c.send(ctx, http.MethodPost, storePath(storeID)+"/geocode", token, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func storePath(id string) string {
	return "/stores/" + url.PathEscape(id)
}
