// AngelaMos | 2026
// entity.go

package order

import (
	"slices"
	"time"

	"github.com/jmoiron/sqlx/types"

	"github.com/localmart/localmart/internal/rules"
)

const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusPickedUp  = "picked_up"
	StatusDelivered = "delivered"
	StatusCancelled = "cancelled"
)

var Statuses = []string{StatusPending, StatusConfirmed, StatusPickedUp, StatusDelivered, StatusCancelled}

var transitions = map[string][]string{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusPickedUp, StatusCancelled},
	StatusPickedUp:  {StatusDelivered},
}

// CanTransition reports whether an order may move from one status to
// another. Delivered and cancelled are terminal.
func CanTransition(from, to string) bool {
	return slices.Contains(transitions[from], to)
}

var progress = map[string]int{
	StatusPending:   0,
	StatusConfirmed: 1,
	StatusPickedUp:  2,
	StatusDelivered: 3,
}

// Advances reports whether a courier-reported status moves the order
// forward. Couriers may skip steps, so this is looser than CanTransition.
func Advances(from, to string) bool {
	if from == StatusDelivered || from == StatusCancelled || from == to {
		return false
	}
	if to == StatusCancelled {
		return true
	}
	next, ok := progress[to]
	return ok && next > progress[from]
}

func ValidStatus(s string) bool {
	return slices.Contains(Statuses, s)
}

type Order struct {
	ID                     string         `db:"id"`
	UserID                 string         `db:"user_id"`
	Status                 string         `db:"status"`
	PaymentStatus          string         `db:"payment_status"`
	PaymentMethodID        *string        `db:"payment_method_id"`
	StripePaymentIntentID  string         `db:"stripe_payment_intent_id"`
	Subtotal               float64        `db:"subtotal_amount"`
	Tax                    float64        `db:"tax_amount"`
	DeliveryFee            float64        `db:"delivery_fee"`
	Total                  float64        `db:"total_amount"`
	DeliveryAddress        types.JSONText `db:"delivery_address"`
	CustomerNotes          string         `db:"customer_notes"`
	ScheduledDeliveryStart *time.Time     `db:"scheduled_delivery_start"`
	ScheduledDeliveryEnd   *time.Time     `db:"scheduled_delivery_end"`
	UberDeliveryID         string         `db:"uber_delivery_id"`
	UberTrackingURL        string         `db:"uber_tracking_url"`
	CreatedAt              time.Time      `db:"created_at"`
	UpdatedAt              time.Time      `db:"updated_at"`
}

// Record is the order as the orders rules see it.
func (o *Order) Record() rules.Record {
	return rules.Record{
		"id":             o.ID,
		"user":           o.UserID,
		"status":         o.Status,
		"payment_status": o.PaymentStatus,
	}
}

type LineItem struct {
	ID          string  `db:"id"`
	OrderID     string  `db:"order_id"`
	StoreItemID string  `db:"store_item_id"`
	Quantity    int     `db:"quantity"`
	PriceAtTime float64 `db:"price_at_time"`
	TotalPrice  float64 `db:"total_price"`
}

// Line is an order item joined with its store item and store.
type Line struct {
	ID             string   `db:"id"`
	OrderID        string   `db:"order_id"`
	StoreItemID    string   `db:"store_item_id"`
	Name           string   `db:"name"`
	Quantity       int      `db:"quantity"`
	PriceAtTime    float64  `db:"price_at_time"`
	StoreID        string   `db:"store_id"`
	StoreName      string   `db:"store_name"`
	StoreLatitude  *float64 `db:"store_latitude"`
	StoreLongitude *float64 `db:"store_longitude"`
}

type StatusUpdate struct {
	ID        string         `db:"id"`
	OrderID   string         `db:"order_id"`
	Status    string         `db:"status"`
	Timestamp time.Time      `db:"timestamp"`
	Details   types.JSONText `db:"details"`
}

// Customer is the slice of the ordering user the delivery address needs.
type Customer struct {
	FirstName   string   `db:"first_name"`
	LastName    string   `db:"last_name"`
	PhoneNumber string   `db:"phone_number"`
	Latitude    *float64 `db:"latitude"`
	Longitude   *float64 `db:"longitude"`
}
