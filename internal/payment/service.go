// AngelaMos | 2026
// service.go

package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/tidwall/gjson"

	"github.com/localmart/localmart/internal/auth"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/pricing"
)

var (
	ErrCardNotFound         = errors.New("card not found")
	ErrInvalidPaymentMethod = errors.New("invalid payment method")
	ErrNoCustomer           = errors.New("no stripe customer found")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrInvalidPayload       = errors.New("invalid webhook payload")
)

const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

type Accounts interface {
	GetByID(ctx context.Context, id string) (*auth.UserInfo, error)
}

// OrderPayments records the processor's verdict on an order's payment
// intent. It returns the affected order id.
type OrderPayments interface {
	SetPaymentStatus(ctx context.Context, intentID, status string) (string, error)
}

type Service struct {
	repo          Repository
	processor     Processor
	accounts      Accounts
	orders        OrderPayments
	webhookSecret string
	logger        *slog.Logger
}

type ServiceConfig struct {
	Repo          Repository
	Processor     Processor
	Accounts      Accounts
	WebhookSecret string
	Logger        *slog.Logger
}

func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:          cfg.Repo,
		processor:     cfg.Processor,
		accounts:      cfg.Accounts,
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

// SetOrders wires the order side of the webhook. Orders depend on payments
// for charging, so this is set after both services exist.
func (s *Service) SetOrders(orders OrderPayments) {
	s.orders = orders
}

func (s *Service) ListCards(ctx context.Context, userID string) ([]Card, error) {
	cards, err := s.repo.ListCards(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cards == nil {
		cards = []Card{}
	}
	return cards, nil
}

// SaveCard attaches a processor payment method to the user's customer,
// creating the customer on first use, and stores it as the default card.
func (s *Service) SaveCard(ctx context.Context, userID, paymentMethodID string) (*Card, error) {
	customerID, err := s.customer(ctx, userID)
	if err != nil {
		return nil, err
	}

	details, err := s.processor.AttachPaymentMethod(ctx, paymentMethodID, customerID)
	if err != nil {
		return nil, err
	}

	card := &Card{
		ID:                    uuid.New().String(),
		UserID:                userID,
		StripePaymentMethodID: paymentMethodID,
		Last4:                 details.Last4,
		Brand:                 details.Brand,
		ExpMonth:              details.ExpMonth,
		ExpYear:               details.ExpYear,
	}
	if err := s.repo.SaveDefaultCard(ctx, card); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "payment method saved",
		"user_id", userID,
		"card_id", card.ID,
		"brand", card.Brand,
	)
	return card, nil
}

func (s *Service) customer(ctx context.Context, userID string) (string, error) {
	id, err := s.repo.CustomerFor(ctx, userID)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return "", err
	}

	user, err := s.accounts.GetByID(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load customer account: %w", err)
	}

	name := strings.TrimSpace(user.FirstName + " " + user.LastName)
	id, err = s.processor.CreateCustomer(ctx, user.Email, name, userID)
	if err != nil {
		return "", err
	}
	if err := s.repo.SaveCustomer(ctx, userID, id); err != nil {
		return "", err
	}
	return id, nil
}

// DeleteCard detaches and removes a card. Cards owned by someone else are
// reported as missing.
func (s *Service) DeleteCard(ctx context.Context, userID, cardID string) error {
	card, err := s.repo.GetCard(ctx, cardID)
	if errors.Is(err, core.ErrNotFound) {
		return ErrCardNotFound
	}
	if err != nil {
		return err
	}
	if card.UserID != userID {
		return ErrCardNotFound
	}

	if err := s.processor.DetachPaymentMethod(ctx, card.StripePaymentMethodID); err != nil {
		return err
	}
	return s.repo.DeleteCard(ctx, cardID)
}

func (s *Service) SetupIntent(ctx context.Context, userID string) (string, error) {
	return s.processor.CreateSetupIntent(ctx, userID)
}

// Authorize charges amount to one of the user's saved cards.
func (s *Service) Authorize(ctx context.Context, userID, cardID string, amount float64) (*Charge, error) {
	card, err := s.repo.GetCard(ctx, cardID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrInvalidPaymentMethod
	}
	if err != nil {
		return nil, err
	}
	if card.UserID != userID {
		return nil, ErrInvalidPaymentMethod
	}

	customerID, err := s.repo.CustomerFor(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, ErrNoCustomer
	}
	if err != nil {
		return nil, err
	}

	intent, err := s.processor.Charge(ctx, ChargeRequest{
		CustomerID:      customerID,
		PaymentMethodID: card.StripePaymentMethodID,
		AmountCents:     pricing.Cents(amount),
		UserID:          userID,
	})
	if err != nil {
		return nil, err
	}

	return &Charge{IntentID: intent.ID, ClientSecret: intent.ClientSecret, CardID: card.ID}, nil
}

// HandleWebhook applies a processor event. The signature is verified when a
// webhook secret is configured; otherwise the payload is trusted as-is.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	eventType, object, err := s.parseEvent(payload, signature)
	if err != nil {
		core.PaymentWebhookEventsTotal.WithLabelValues("unknown", "rejected").Inc()
		return err
	}

	var status string
	switch eventType {
	case EventIntentSucceeded:
		status = StatusSucceeded
	case EventIntentFailed:
		status = StatusFailed
	default:
		core.PaymentWebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		return nil
	}

	intentID := gjson.GetBytes(object, "id").String()
	s.logger.InfoContext(ctx, "processing payment webhook",
		"event", eventType,
		"payment_intent_id", intentID,
	)

	if s.orders == nil || intentID == "" {
		core.PaymentWebhookEventsTotal.WithLabelValues(eventType, "ignored").Inc()
		return nil
	}

	orderID, err := s.orders.SetPaymentStatus(ctx, intentID, status)
	switch {
	case errors.Is(err, core.ErrNotFound):
		s.logger.WarnContext(ctx, "no order for payment intent", "payment_intent_id", intentID)
		core.PaymentWebhookEventsTotal.WithLabelValues(eventType, "unmatched").Inc()
		return nil
	case err != nil:
		s.logger.ErrorContext(ctx, "update order payment status",
			"payment_intent_id", intentID,
			"error", err,
		)
		core.PaymentWebhookEventsTotal.WithLabelValues(eventType, "error").Inc()
		// A non-2xx answer makes the processor redeliver the event.
		return fmt.Errorf("set payment status for %s: %w", intentID, err)
	}

	s.logger.InfoContext(ctx, "order payment status updated",
		"order_id", orderID,
		"payment_status", status,
	)
	core.PaymentWebhookEventsTotal.WithLabelValues(eventType, "applied").Inc()
	return nil
}

func (s *Service) parseEvent(payload []byte, signature string) (string, []byte, error) {
	if s.webhookSecret != "" {
		return VerifyWebhook(payload, signature, s.webhookSecret)
	}

	if !gjson.ValidBytes(payload) {
		return "", nil, ErrInvalidPayload
	}
	event := gjson.ParseBytes(payload)
	return event.Get("type").String(), []byte(event.Get("data.object").Raw), nil
}
