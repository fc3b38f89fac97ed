// AngelaMos | 2026
// pricing.go

package pricing

import (
	"fmt"
	"math"
	"time"

	"github.com/localmart/localmart/internal/config"
)

const (
	DefaultTaxRate     = 0.08875
	DefaultDeliveryFee = 5.99

	// SameDayCutoffHour is the local hour from which orders ship tomorrow.
	SameDayCutoffHour = 15
)

type Summary struct {
	Subtotal    float64 `json:"subtotal_amount"`
	Tax         float64 `json:"tax_amount"`
	DeliveryFee float64 `json:"delivery_fee"`
	Total       float64 `json:"total_amount"`
}

type Line struct {
	Price    float64
	Quantity int
}

// Calculator prices orders with a configured tax rate and delivery fee.
type Calculator struct {
	TaxRate     float64
	DeliveryFee float64
}

func NewCalculator(cfg config.PricingConfig) Calculator {
	c := Calculator{TaxRate: cfg.TaxRate, DeliveryFee: cfg.DeliveryFee}
	if c.TaxRate == 0 {
		c.TaxRate = DefaultTaxRate
	}
	if c.DeliveryFee == 0 {
		c.DeliveryFee = DefaultDeliveryFee
	}
	return c
}

func (c Calculator) Totals(subtotal float64) Summary {
	return totals(subtotal, c.TaxRate, c.DeliveryFee)
}

func (c Calculator) Lines(lines []Line) Summary {
	return c.Totals(Subtotal(lines))
}

// Totals prices subtotal at the default tax rate. Tax is rounded to cents
// before it is added.
func Totals(subtotal, fee float64) Summary {
	return totals(subtotal, DefaultTaxRate, fee)
}

func totals(subtotal, rate, fee float64) Summary {
	subtotal = RoundCents(subtotal)
	tax := RoundCents(subtotal * rate)
	return Summary{
		Subtotal:    subtotal,
		Tax:         tax,
		DeliveryFee: fee,
		Total:       RoundCents(subtotal + tax + fee),
	}
}

func Subtotal(lines []Line) float64 {
	var sum float64
	for _, l := range lines {
		sum += l.Price * float64(l.Quantity)
	}
	return RoundCents(sum)
}

func RoundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// Cents converts a dollar amount to the integer minor units payment
// processors expect.
func Cents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// DeliveryDate is today before the cutoff hour and tomorrow from it on,
// at midnight in now's location.
func DeliveryDate(now time.Time) time.Time {
	day := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if now.Hour() >= SameDayCutoffHour {
		day = day.AddDate(0, 0, 1)
	}
	return day
}

type Slot struct {
	ID    string    `json:"id"`
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

var slotHours = [][2]int{{16, 17}, {17, 18}, {18, 19}}

// Slots returns the fixed one-hour delivery windows on date.
func Slots(date time.Time) []Slot {
	out := make([]Slot, 0, len(slotHours))
	for _, h := range slotHours {
		start := time.Date(date.Year(), date.Month(), date.Day(), h[0], 0, 0, 0, date.Location())
		out = append(out, Slot{
			ID:    fmt.Sprintf("%02d00-%02d00", h[0], h[1]),
			Label: fmt.Sprintf("%s - %s", start.Format("3:04 PM"), start.Add(time.Hour).Format("3:04 PM")),
			Start: start,
			End:   start.Add(time.Hour),
		})
	}
	return out
}

// FindSlot looks a window up by its id, such as "1700-1800".
func FindSlot(date time.Time, id string) (Slot, bool) {
	for _, s := range Slots(date) {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}
