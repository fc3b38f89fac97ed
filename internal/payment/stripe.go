// AngelaMos | 2026
// stripe.go

package payment

import (
	"context"
	"errors"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
	"github.com/stripe/stripe-go/v81/webhook"

	"github.com/localmart/localmart/internal/config"
	"github.com/localmart/localmart/internal/core"
)

// ProcessorError is a failure reported by the payment processor. Message is
// safe to show to the customer.
type ProcessorError struct {
	Message string
	Err     error
}

func (e *ProcessorError) Error() string {
	return e.Message
}

func (e *ProcessorError) Unwrap() []error {
	return []error{core.ErrPaymentFailed, e.Err}
}

type Processor interface {
	CreateCustomer(ctx context.Context, email, name, userID string) (string, error)
	AttachPaymentMethod(ctx context.Context, paymentMethodID, customerID string) (*CardDetails, error)
	DetachPaymentMethod(ctx context.Context, paymentMethodID string) error
	CreateSetupIntent(ctx context.Context, userID string) (string, error)
	Charge(ctx context.Context, req ChargeRequest) (*Intent, error)
}

type StripeProcessor struct {
	api      *client.API
	currency string
}

func NewStripeProcessor(cfg config.StripeConfig) *StripeProcessor {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)

	currency := cfg.Currency
	if currency == "" {
		currency = string(stripe.CurrencyUSD)
	}
	return &StripeProcessor{api: api, currency: currency}
}

func (p *StripeProcessor) CreateCustomer(
	ctx context.Context,
	email, name, userID string,
) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Name:  stripe.String(name),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	cust, err := p.api.Customers.New(params)
	if err != nil {
		return "", wrapStripe("create customer", err)
	}
	return cust.ID, nil
}

// AttachPaymentMethod attaches the method to the customer and reads back
// its card details.
func (p *StripeProcessor) AttachPaymentMethod(
	ctx context.Context,
	paymentMethodID, customerID string,
) (*CardDetails, error) {
	attach := &stripe.PaymentMethodAttachParams{Customer: stripe.String(customerID)}
	attach.Context = ctx
	if _, err := p.api.PaymentMethods.Attach(paymentMethodID, attach); err != nil {
		return nil, wrapStripe("attach payment method", err)
	}

	get := &stripe.PaymentMethodParams{}
	get.Context = ctx
	pm, err := p.api.PaymentMethods.Get(paymentMethodID, get)
	if err != nil {
		return nil, wrapStripe("retrieve payment method", err)
	}
	if pm.Card == nil {
		return nil, &ProcessorError{Message: "payment method is not a card"}
	}

	return &CardDetails{
		Last4:    pm.Card.Last4,
		Brand:    string(pm.Card.Brand),
		ExpMonth: int(pm.Card.ExpMonth),
		ExpYear:  int(pm.Card.ExpYear),
	}, nil
}

func (p *StripeProcessor) DetachPaymentMethod(ctx context.Context, paymentMethodID string) error {
	params := &stripe.PaymentMethodDetachParams{}
	params.Context = ctx
	if _, err := p.api.PaymentMethods.Detach(paymentMethodID, params); err != nil {
		return wrapStripe("detach payment method", err)
	}
	return nil
}

func (p *StripeProcessor) CreateSetupIntent(ctx context.Context, userID string) (string, error) {
	params := &stripe.SetupIntentParams{
		Usage: stripe.String("off_session"),
	}
	params.Context = ctx
	params.AddMetadata("user_id", userID)

	si, err := p.api.SetupIntents.New(params)
	if err != nil {
		return "", wrapStripe("create setup intent", err)
	}
	return si.ClientSecret, nil
}

// Charge creates and confirms an off-session payment intent.
func (p *StripeProcessor) Charge(ctx context.Context, req ChargeRequest) (*Intent, error) {
	currency := req.Currency
	if currency == "" {
		currency = p.currency
	}

	params := &stripe.PaymentIntentParams{
		Amount:        stripe.Int64(req.AmountCents),
		Currency:      stripe.String(currency),
		Customer:      stripe.String(req.CustomerID),
		PaymentMethod: stripe.String(req.PaymentMethodID),
		OffSession:    stripe.Bool(true),
		Confirm:       stripe.Bool(true),
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)

	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return nil, wrapStripe("create payment intent", err)
	}
	return &Intent{ID: pi.ID, ClientSecret: pi.ClientSecret, Status: string(pi.Status)}, nil
}

func wrapStripe(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		msg := se.Msg
		if msg == "" {
			msg = se.Error()
		}
		return &ProcessorError{Message: msg, Err: fmt.Errorf("%s: %w", op, err)}
	}
	return fmt.Errorf("%s: %w", op, err)
}

// VerifyWebhook checks the Stripe-Signature header and returns the event
// type and the raw data.object.
func VerifyWebhook(payload []byte, header, secret string) (string, []byte, error) {
	event, err := webhook.ConstructEventWithOptions(payload, header, secret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return "", nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}
	return string(event.Type), event.Data.Raw, nil
}
