// AngelaMos | 2026
// entity.go

package payment

import (
	"time"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusSucceeded  = "succeeded"
	StatusFailed     = "failed"
	StatusRefunded   = "refunded"
)

type Card struct {
	ID                    string    `db:"id"                       json:"id"`
	UserID                string    `db:"user_id"                  json:"user"`
	StripePaymentMethodID string    `db:"stripe_payment_method_id" json:"stripe_payment_method_id"`
	Last4                 string    `db:"last4"                    json:"last4"`
	Brand                 string    `db:"brand"                    json:"brand"`
	ExpMonth              int       `db:"exp_month"                json:"exp_month"`
	ExpYear               int       `db:"exp_year"                 json:"exp_year"`
	IsDefault             bool      `db:"is_default"               json:"is_default"`
	CreatedAt             time.Time `db:"created_at"               json:"created"`
	UpdatedAt             time.Time `db:"updated_at"               json:"updated"`
}

// CardDetails is what the processor reports about an attached method.
type CardDetails struct {
	Last4    string
	Brand    string
	ExpMonth int
	ExpYear  int
}

// Intent is a created payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
}

// Charge is the result of authorizing an order total against a saved card.
type Charge struct {
	IntentID     string
	ClientSecret string
	CardID       string
}

type ChargeRequest struct {
	CustomerID      string
	PaymentMethodID string
	AmountCents     int64
	Currency        string
	UserID          string
}
