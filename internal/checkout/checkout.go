// AngelaMos | 2026
// checkout.go

package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/localmart/localmart/internal/cart"
	"github.com/localmart/localmart/internal/order"
	"github.com/localmart/localmart/internal/payment"
	"github.com/localmart/localmart/internal/pricing"
	"github.com/localmart/localmart/internal/user"
)

type Step int

const (
	StepCart Step = iota
	StepPayment
	StepSlot
	StepSubmit
	StepDone
)

func (s Step) String() string {
	switch s {
	case StepCart:
		return "cart"
	case StepPayment:
		return "payment"
	case StepSlot:
		return "slot"
	case StepSubmit:
		return "submit"
	case StepDone:
		return "done"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

var (
	ErrEmptyCart         = errors.New("cart is empty")
	ErrNoCards           = errors.New("no saved cards, add one first")
	ErrUnknownCard       = errors.New("unknown card")
	ErrUnknownSlot       = errors.New("unknown delivery slot")
	ErrIncompleteAddress = errors.New("complete your delivery address in your profile")
	ErrOutOfOrder        = errors.New("checkout step out of order")
)

// API is what checkout needs from the server.
type API interface {
	Cards(ctx context.Context, token string) ([]payment.Card, error)
	Profile(ctx context.Context, token string) (*user.ProfileResponse, error)
	CreateOrder(ctx context.Context, token string, req order.CreateOrderRequest) (*order.CreateOrderResponse, error)
}

// Flow walks cart, payment method, slot and submit in that order. The cart
// is cleared and saved only after the order is accepted.
type Flow struct {
	api     API
	token   string
	cart    *cart.Cart
	storage cart.Storage
	now     func() time.Time

	step  Step
	cards []payment.Card
	card  payment.Card
	slot  pricing.Slot
	Notes string
}

func New(api API, token string, c *cart.Cart, storage cart.Storage) *Flow {
	return &Flow{api: api, token: token, cart: c, storage: storage, now: time.Now}
}

func (f *Flow) Step() Step {
	return f.step
}

// Start checks the cart and loads the saved cards. It returns the cards so
// the caller can offer a choice.
func (f *Flow) Start(ctx context.Context) ([]payment.Card, error) {
	if f.step != StepCart {
		return nil, ErrOutOfOrder
	}
	if f.cart.IsEmpty() {
		return nil, ErrEmptyCart
	}

	cards, err := f.api.Cards(ctx, f.token)
	if err != nil {
		return nil, fmt.Errorf("load cards: %w", err)
	}
	if len(cards) == 0 {
		return nil, ErrNoCards
	}

	f.cards = cards
	f.step = StepPayment
	return cards, nil
}

// ChooseCard selects a saved card by id. An empty id picks the default
// card, or the first when none is marked.
func (f *Flow) ChooseCard(id string) (payment.Card, error) {
	if f.step != StepPayment {
		return payment.Card{}, ErrOutOfOrder
	}

	for _, c := range f.cards {
		if (id == "" && c.IsDefault) || (id != "" && c.ID == id) {
			f.card = c
			f.step = StepSlot
			return c, nil
		}
	}
	if id == "" {
		f.card = f.cards[0]
		f.step = StepSlot
		return f.card, nil
	}
	return payment.Card{}, fmt.Errorf("%s: %w", id, ErrUnknownCard)
}

// Slots lists the windows offered for the current delivery date.
func (f *Flow) Slots() []pricing.Slot {
	return pricing.Slots(pricing.DeliveryDate(f.now()))
}

// ChooseSlot picks a window such as "1600-1700". Empty takes the first.
func (f *Flow) ChooseSlot(id string) (pricing.Slot, error) {
	if f.step != StepSlot {
		return pricing.Slot{}, ErrOutOfOrder
	}

	slots := f.Slots()
	if id == "" {
		f.slot = slots[0]
		f.step = StepSubmit
		return f.slot, nil
	}
	slot, ok := pricing.FindSlot(pricing.DeliveryDate(f.now()), id)
	if !ok {
		return pricing.Slot{}, fmt.Errorf("%s: %w", id, ErrUnknownSlot)
	}
	f.slot = slot
	f.step = StepSubmit
	return slot, nil
}

// Submit places the order. On failure the cart is left untouched and the
// flow stays at the submit step so it can be retried.
func (f *Flow) Submit(ctx context.Context) (*order.CreateOrderResponse, error) {
	if f.step != StepSubmit {
		return nil, ErrOutOfOrder
	}

	profile, err := f.api.Profile(ctx, f.token)
	if err != nil {
		return nil, fmt.Errorf("load profile: %w", err)
	}
	address, err := DeliveryAddress(profile)
	if err != nil {
		return nil, err
	}

	start, end := f.slot.Start.UTC(), f.slot.End.UTC()
	resp, err := f.api.CreateOrder(ctx, f.token, order.CreateOrderRequest{
		PaymentMethodID:        f.card.ID,
		Items:                  f.cart.OrderItems(),
		DeliveryAddress:        address,
		CustomerNotes:          f.Notes,
		ScheduledDeliveryStart: &start,
		ScheduledDeliveryEnd:   &end,
	})
	if err != nil {
		return nil, err
	}

	f.cart.Clear()
	if err := f.cart.Save(f.storage); err != nil {
		return resp, err
	}
	f.step = StepDone
	return resp, nil
}

// DeliveryAddress builds the order address from the profile. Street, city,
// state and zip are required.
func DeliveryAddress(p *user.ProfileResponse) (map[string]any, error) {
	if p.Street1 == "" || p.City == "" || p.State == "" || p.Zip == "" {
		return nil, ErrIncompleteAddress
	}
	street := []string{p.Street1}
	if p.Street2 != "" {
		street = append(street, p.Street2)
	}
	return map[string]any{
		"street_address": street,
		"city":           p.City,
		"state":          p.State,
		"zip_code":       p.Zip,
		"country":        "US",
	}, nil
}
