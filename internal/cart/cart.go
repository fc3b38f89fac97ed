// AngelaMos | 2026
// cart.go

package cart

import (
	"fmt"
	"slices"

	"github.com/localmart/localmart/internal/order"
	"github.com/localmart/localmart/internal/pricing"
)

const storageKey = "cart"

// Item is one line in the cart, keyed by store item id.
type Item struct {
	ID        string  `json:"id"`
	StoreID   string  `json:"store_id"`
	StoreName string  `json:"store_name"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	ImageURL  string  `json:"imageUrl,omitempty"`
}

// Storage is where the cart is kept between runs.
type Storage interface {
	Get(key string, out any) (bool, error)
	Set(key string, v any) error
}

// Cart keeps lines in the order they were first added.
type Cart struct {
	Items []Item `json:"items"`
}

func Load(s Storage) (*Cart, error) {
	c := &Cart{}
	if _, err := s.Get(storageKey, c); err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if c.Items == nil {
		c.Items = []Item{}
	}
	return c, nil
}

func (c *Cart) Save(s Storage) error {
	if err := s.Set(storageKey, c); err != nil {
		return fmt.Errorf("save cart: %w", err)
	}
	return nil
}

func (c *Cart) index(id string) int {
	return slices.IndexFunc(c.Items, func(it Item) bool { return it.ID == id })
}

// Add appends item, or adds its quantity to the existing line. A
// non-positive quantity counts as one.
func (c *Cart) Add(item Item) {
	if item.Quantity <= 0 {
		item.Quantity = 1
	}
	if i := c.index(item.ID); i >= 0 {
		c.Items[i].Quantity += item.Quantity
		return
	}
	c.Items = append(c.Items, item)
}

// Update sets a line's quantity. Zero or less removes it. It reports
// whether the line existed.
func (c *Cart) Update(id string, quantity int) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		c.Items = slices.Delete(c.Items, i, i+1)
		return true
	}
	c.Items[i].Quantity = quantity
	return true
}

func (c *Cart) Remove(id string) bool {
	return c.Update(id, 0)
}

func (c *Cart) Clear() {
	c.Items = []Item{}
}

func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c *Cart) ItemCount() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) TotalPrice() float64 {
	return pricing.Subtotal(c.lines())
}

// Summary prices the cart with tax and the delivery fee.
func (c *Cart) Summary(calc pricing.Calculator) pricing.Summary {
	return calc.Lines(c.lines())
}

// StoreIDs lists the distinct stores in first-seen order.
func (c *Cart) StoreIDs() []string {
	var ids []string
	for _, it := range c.Items {
		if !slices.Contains(ids, it.StoreID) {
			ids = append(ids, it.StoreID)
		}
	}
	return ids
}

// MixedStores reports items from more than one store. Checkout still
// proceeds; callers only warn.
func (c *Cart) MixedStores() bool {
	return len(c.StoreIDs()) > 1
}

// OrderItems is the cart as order create input.
func (c *Cart) OrderItems() []order.ItemInput {
	out := make([]order.ItemInput, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, order.ItemInput{StoreItemID: it.ID, Quantity: it.Quantity})
	}
	return out
}

func (c *Cart) lines() []pricing.Line {
	out := make([]pricing.Line, 0, len(c.Items))
	for _, it := range c.Items {
		out = append(out, pricing.Line{Price: it.Price, Quantity: it.Quantity})
	}
	return out
}
