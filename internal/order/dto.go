// AngelaMos | 2026
// dto.go

package order

import (
	"encoding/json"
	"time"
)

type ItemInput struct {
	StoreItemID string `json:"store_item_id" validate:"required"`
	Quantity    int    `json:"quantity"      validate:"gt=0,lte=100"`
}

// CreateOrderRequest carries what the customer chose. Prices and totals are
// computed server-side from the catalog.
type CreateOrderRequest struct {
	PaymentMethodID        string         `json:"payment_method_id"        validate:"required"`
	Items                  []ItemInput    `json:"items"                    validate:"required,min=1,dive"`
	DeliveryAddress        map[string]any `json:"delivery_address"         validate:"required"`
	CustomerNotes          string         `json:"customer_notes"           validate:"max=1000"`
	ScheduledDeliveryStart *time.Time     `json:"scheduled_delivery_start"`
	ScheduledDeliveryEnd   *time.Time     `json:"scheduled_delivery_end"   validate:"omitempty,gtfield=ScheduledDeliveryStart"`
}

type CreateOrderResponse struct {
	OrderID      string `json:"order_id"`
	Status       string `json:"status"`
	ClientSecret string `json:"payment_intent_client_secret"`
	Message      string `json:"message"`
}

// ListParams pages order lists. Out-of-range values are clamped.
type ListParams struct {
	Page     int
	PageSize int
}

func (p *ListParams) Normalize() {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.PageSize < 1 {
		p.PageSize = defaultPageSize
	}
	if p.PageSize > maxPageSize {
		p.PageSize = maxPageSize
	}
}

func (p ListParams) Offset() int {
	return (p.Page - 1) * p.PageSize
}

type UpdateStatusRequest struct {
	Status string `json:"status"`
}

type StatusResponse struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

type DispatchResponse struct {
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	DeliveryID  string `json:"delivery_id"`
	TrackingURL string `json:"tracking_url"`
}

// View is an order as listed to customers and admins, with its items
// grouped by store.
type View struct {
	ID                     string          `json:"id"`
	Created                time.Time       `json:"created"`
	Status                 string          `json:"status"`
	PaymentStatus          string          `json:"payment_status"`
	Subtotal               float64         `json:"subtotal_amount"`
	DeliveryFee            float64         `json:"delivery_fee"`
	TotalAmount            float64         `json:"total_amount"`
	TaxAmount              float64         `json:"tax_amount"`
	DeliveryAddress        json.RawMessage `json:"delivery_address"`
	ScheduledDeliveryStart *time.Time      `json:"scheduled_delivery_start"`
	ScheduledDeliveryEnd   *time.Time      `json:"scheduled_delivery_end"`
	TrackingURL            string          `json:"tracking_url,omitempty"`
	Stores                 []StoreGroup    `json:"stores"`
}

type StoreGroup struct {
	Store StoreRef   `json:"store"`
	Items []ItemView `json:"items"`
}

type StoreRef struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type ItemView struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Format groups each order's lines by store, keeping the order in which
// stores first appear.
func Format(orders []Order, lines []Line) []View {
	byOrder := make(map[string][]Line, len(orders))
	for _, l := range lines {
		byOrder[l.OrderID] = append(byOrder[l.OrderID], l)
	}

	views := make([]View, 0, len(orders))
	for i := range orders {
		views = append(views, format(&orders[i], byOrder[orders[i].ID]))
	}
	return views
}

func format(o *Order, lines []Line) View {
	groups := []StoreGroup{}
	index := map[string]int{}
	for _, l := range lines {
		i, ok := index[l.StoreID]
		if !ok {
			i = len(groups)
			index[l.StoreID] = i
			groups = append(groups, StoreGroup{
				Store: StoreRef{
					ID:        l.StoreID,
					Name:      l.StoreName,
					Latitude:  l.StoreLatitude,
					Longitude: l.StoreLongitude,
				},
				Items: []ItemView{},
			})
		}
		groups[i].Items = append(groups[i].Items, ItemView{
			ID:       l.ID,
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    l.PriceAtTime,
		})
	}

	addr := json.RawMessage(o.DeliveryAddress)
	if len(addr) == 0 {
		addr = json.RawMessage("null")
	}

	return View{
		ID:                     o.ID,
		Created:                o.CreatedAt,
		Status:                 o.Status,
		PaymentStatus:          o.PaymentStatus,
		Subtotal:               o.Subtotal,
		DeliveryFee:            o.DeliveryFee,
		TotalAmount:            o.Total,
		TaxAmount:              o.Tax,
		DeliveryAddress:        addr,
		ScheduledDeliveryStart: o.ScheduledDeliveryStart,
		ScheduledDeliveryEnd:   o.ScheduledDeliveryEnd,
		TrackingURL:            o.UberTrackingURL,
		Stores:                 groups,
	}
}
