// AngelaMos | 2026
// service.go

package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"golang.org/x/sync/errgroup"

	"github.com/localmart/localmart/internal/access"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/delivery"
	"github.com/localmart/localmart/internal/payment"
	"github.com/localmart/localmart/internal/pricing"
	"github.com/localmart/localmart/internal/schema"
	"github.com/localmart/localmart/internal/store"
)

var (
	ErrUnknownItem         = fmt.Errorf("%w: unknown store item", core.ErrInvalidInput)
	ErrStatusRequired      = fmt.Errorf("%w: status is required", core.ErrInvalidInput)
	ErrInvalidStatus       = fmt.Errorf("%w: invalid status", core.ErrInvalidInput)
	ErrInvalidTransition   = fmt.Errorf("%w: invalid status transition", core.ErrConflict)
	ErrAlreadyDispatched   = fmt.Errorf("%w: order already dispatched", core.ErrConflict)
	ErrEmptyOrder          = fmt.Errorf("%w: order has no items", core.ErrInvalidInput)
	ErrDeliveryUnavailable = fmt.Errorf("%w: delivery is not configured", core.ErrUnavailable)
)

const (
	SourceCheckout = "checkout"
	SourceAPI      = "api"
	SourceDispatch = "dispatch"
	SourceCourier  = "courier"

	defaultPageSize = 50
	maxPageSize     = 100
	pollParallel    = 4
)

type Catalog interface {
	Get(ctx context.Context, id string) (*store.Store, error)
	ItemsByIDs(ctx context.Context, ids []string) (map[string]store.Item, error)
}

type Payments interface {
	Authorize(ctx context.Context, userID, cardID string, amount float64) (*payment.Charge, error)
}

type Courier interface {
	CreateDelivery(ctx context.Context, req delivery.DeliveryRequest) (*delivery.Delivery, error)
	Status(ctx context.Context, deliveryID string) (*delivery.Delivery, error)
}

type Service struct {
	repo     Repository
	catalog  Catalog
	payments Payments
	courier  Courier
	calc     pricing.Calculator
	now      func() time.Time
	logger   *slog.Logger
}

type ServiceConfig struct {
	Repo       Repository
	Catalog    Catalog
	Payments   Payments
	Courier    Courier
	Calculator pricing.Calculator
	Logger     *slog.Logger
}

// NewService builds the order service. Courier may be nil, in which case
// dispatch is unavailable and polling is a no-op.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:     cfg.Repo,
		catalog:  cfg.Catalog,
		payments: cfg.Payments,
		courier:  cfg.Courier,
		calc:     cfg.Calculator,
		now:      time.Now,
		logger:   logger,
	}
}

// Create prices the cart from the catalog, charges the card and stores the
// order with its items.
func (s *Service) Create(
	ctx context.Context,
	scope *access.Scope,
	req CreateOrderRequest,
) (*Order, *payment.Charge, error) {
	ctx, span := core.StartSpan(ctx, "order.create")
	defer span.End()

	caller := scope.Caller()
	if err := scope.Require(ctx, "orders", schema.OpCreate, nil, access.Input{
		Method: http.MethodPost,
		Body:   map[string]any{"user": caller.ID},
	}); err != nil {
		return nil, nil, err
	}

	ids := make([]string, 0, len(req.Items))
	for _, in := range req.Items {
		ids = append(ids, in.StoreItemID)
	}
	catalog, err := s.catalog.ItemsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, err
	}

	lines := make([]pricing.Line, 0, len(req.Items))
	items := make([]LineItem, 0, len(req.Items))
	for _, in := range req.Items {
		item, ok := catalog[in.StoreItemID]
		if !ok {
			return nil, nil, fmt.Errorf("%w %s", ErrUnknownItem, in.StoreItemID)
		}
		lines = append(lines, pricing.Line{Price: item.Price, Quantity: in.Quantity})
		items = append(items, LineItem{
			ID:          uuid.New().String(),
			StoreItemID: item.ID,
			Quantity:    in.Quantity,
			PriceAtTime: item.Price,
			TotalPrice:  pricing.RoundCents(item.Price * float64(in.Quantity)),
		})
	}
	summary := s.calc.Lines(lines)

	customer, err := s.repo.Customer(ctx, caller.ID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, nil, err
	}
	address, err := json.Marshal(enrichAddress(req.DeliveryAddress, customer))
	if err != nil {
		return nil, nil, fmt.Errorf("encode delivery address: %w", err)
	}

	charge, err := s.payments.Authorize(ctx, caller.ID, req.PaymentMethodID, summary.Total)
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, nil, err
	}

	o := &Order{
		ID:                     uuid.New().String(),
		UserID:                 caller.ID,
		Status:                 StatusPending,
		PaymentStatus:          payment.StatusPending,
		PaymentMethodID:        &charge.CardID,
		StripePaymentIntentID:  charge.IntentID,
		Subtotal:               summary.Subtotal,
		Tax:                    summary.Tax,
		DeliveryFee:            summary.DeliveryFee,
		Total:                  summary.Total,
		DeliveryAddress:        types.JSONText(address),
		CustomerNotes:          req.CustomerNotes,
		ScheduledDeliveryStart: req.ScheduledDeliveryStart,
		ScheduledDeliveryEnd:   req.ScheduledDeliveryEnd,
	}
	if err := s.repo.Create(ctx, o, items); err != nil {
		s.logger.Error("order not stored after charge",
			"payment_intent_id", charge.IntentID,
			"user_id", caller.ID,
			"error", err,
		)
		return nil, nil, err
	}

	core.OrdersCreatedTotal.Inc()
	core.OrderStatusChangesTotal.WithLabelValues(StatusPending, SourceCheckout).Inc()
	s.logger.Info("order created",
		"order_id", o.ID,
		"user_id", caller.ID,
		"total", o.Total,
		"items", len(items),
	)

	return o, charge, nil
}

// enrichAddress copies the submitted address and fills in the customer's
// name, phone and coordinates where the client left them out.
func enrichAddress(in map[string]any, c *Customer) map[string]any {
	out := make(map[string]any, len(in)+4)
	for k, v := range in {
		out[k] = v
	}
	if c == nil {
		return out
	}

	setDefault := func(key string, v any) {
		if cur, ok := out[key]; !ok || cur == nil || cur == "" {
			out[key] = v
		}
	}
	setDefault("customer_name", strings.TrimSpace(c.FirstName+" "+c.LastName))
	setDefault("customer_phone", c.PhoneNumber)
	if c.Latitude != nil {
		setDefault("latitude", *c.Latitude)
	}
	if c.Longitude != nil {
		setDefault("longitude", *c.Longitude)
	}
	return out
}

func (s *Service) Get(ctx context.Context, scope *access.Scope, id string) (*View, error) {
	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scope.View(ctx, "orders", o.Record()); err != nil {
		return nil, err
	}

	views, err := s.views(ctx, []Order{*o})
	if err != nil {
		return nil, err
	}
	return &views[0], nil
}

func (s *Service) ListAll(ctx context.Context, scope *access.Scope, page ListParams) ([]View, error) {
	ok, err := scope.IsGlobalAdmin(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("list all orders: %w", core.ErrForbidden)
	}
	return s.list(ctx, ListFilter{}, page)
}

func (s *Service) ListForUser(ctx context.Context, userID string, page ListParams) ([]View, error) {
	return s.list(ctx, ListFilter{UserID: userID}, page)
}

// ListForStore lists orders containing the store's items. Callers check
// store admin rights first.
func (s *Service) ListForStore(ctx context.Context, storeID string, page ListParams) ([]View, error) {
	return s.list(ctx, ListFilter{StoreID: storeID}, page)
}

func (s *Service) list(ctx context.Context, f ListFilter, page ListParams) ([]View, error) {
	page.Normalize()
	f.Limit, f.Offset = page.PageSize, page.Offset()
	orders, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, err
	}
	return s.views(ctx, orders)
}

func (s *Service) views(ctx context.Context, orders []Order) ([]View, error) {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ID)
	}
	lines, err := s.repo.Lines(ctx, ids)
	if err != nil {
		return nil, err
	}
	return Format(orders, lines), nil
}

func (s *Service) UpdateStatus(ctx context.Context, scope *access.Scope, id, status string) (*Order, error) {
	if status == "" {
		return nil, ErrStatusRequired
	}
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := scope.Require(ctx, "orders", schema.OpUpdate, o.Record(), access.Input{
		Method: http.MethodPatch,
		Body:   map[string]any{"status": status},
	}); err != nil {
		return nil, err
	}
	if !CanTransition(o.Status, status) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, status)
	}

	details := statusDetails(map[string]any{"source": SourceAPI, "user_id": scope.Caller().ID})
	if err := s.repo.UpdateStatus(ctx, o.ID, status, details); err != nil {
		return nil, err
	}

	core.OrderStatusChangesTotal.WithLabelValues(status, SourceAPI).Inc()
	s.logger.Info("order status updated",
		"order_id", o.ID,
		"from", o.Status,
		"to", status,
		"user_id", scope.Caller().ID,
	)

	o.Status = status
	return o, nil
}

// Dispatch hands the order to the courier. The caller must administer
// every store the order buys from.
func (s *Service) Dispatch(ctx context.Context, scope *access.Scope, id string) (*Order, error) {
	if s.courier == nil {
		return nil, ErrDeliveryUnavailable
	}

	ctx, span := core.StartSpan(ctx, "order.dispatch")
	defer span.End()

	o, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	lines, err := s.repo.Lines(ctx, []string{o.ID})
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}

	var storeIDs []string
	seen := map[string]bool{}
	for _, l := range lines {
		if !seen[l.StoreID] {
			seen[l.StoreID] = true
			storeIDs = append(storeIDs, l.StoreID)
		}
	}
	for _, storeID := range storeIDs {
		ok, err := scope.IsStoreAdmin(ctx, storeID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("dispatch order %s: %w", o.ID, core.ErrForbidden)
		}
	}

	if o.UberDeliveryID != "" {
		return nil, ErrAlreadyDispatched
	}
	if o.Status != StatusPending && o.Status != StatusConfirmed {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidTransition, o.Status, StatusConfirmed)
	}

	pickup, err := s.catalog.Get(ctx, storeIDs[0])
	if err != nil {
		return nil, err
	}

	var dropoff map[string]any
	if len(o.DeliveryAddress) > 0 {
		if err := o.DeliveryAddress.Unmarshal(&dropoff); err != nil {
			return nil, fmt.Errorf("decode delivery address: %w", err)
		}
	}

	manifest := make([]delivery.ManifestItem, 0, len(lines))
	for _, l := range lines {
		manifest = append(manifest, delivery.ManifestItem{
			Name:     l.Name,
			Quantity: l.Quantity,
			Price:    pricing.Cents(l.PriceAtTime),
		})
	}

	d, err := s.courier.CreateDelivery(ctx, delivery.DeliveryRequest{
		Pickup:        delivery.StoreAddress(pickup),
		Dropoff:       dropoff,
		Window:        delivery.WindowFrom(s.now().UTC()),
		ManifestCents: pricing.Cents(o.Subtotal),
		Items:         manifest,
		ExternalID:    o.ID,
	})
	if err != nil {
		core.SetSpanError(ctx, err)
		return nil, err
	}

	details := statusDetails(map[string]any{
		"source":      SourceDispatch,
		"user_id":     scope.Caller().ID,
		"delivery_id": d.ID,
	})
	if err := s.repo.SetDispatch(ctx, o.ID, d.ID, d.TrackingURL, details); err != nil {
		return nil, err
	}

	core.OrderStatusChangesTotal.WithLabelValues(StatusConfirmed, SourceDispatch).Inc()
	s.logger.Info("order dispatched", "order_id", o.ID, "delivery_id", d.ID)

	o.Status = StatusConfirmed
	o.UberDeliveryID = d.ID
	o.UberTrackingURL = d.TrackingURL
	return o, nil
}

// SetPaymentStatus records a processor verdict against the order holding
// the intent.
func (s *Service) SetPaymentStatus(ctx context.Context, intentID, status string) (string, error) {
	return s.repo.SetPaymentStatus(ctx, intentID, status)
}

// PollDeliveries asks the courier about every dispatched, unfinished order
// and moves each one forward to match.
func (s *Service) PollDeliveries(ctx context.Context) error {
	if s.courier == nil {
		return nil
	}

	orders, err := s.repo.ListDispatched(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(pollParallel)
	for i := range orders {
		o := orders[i]
		g.Go(func() error {
			s.poll(ctx, &o)
			return nil
		})
	}
	return g.Wait()
}

func (s *Service) poll(ctx context.Context, o *Order) {
	d, err := s.courier.Status(ctx, o.UberDeliveryID)
	if err != nil {
		core.DeliveryPollsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("courier status failed",
			"order_id", o.ID,
			"delivery_id", o.UberDeliveryID,
			"error", err,
		)
		return
	}

	status, ok := delivery.OrderStatus(d.Status)
	if !ok || !Advances(o.Status, status) {
		core.DeliveryPollsTotal.WithLabelValues("unchanged").Inc()
		return
	}

	details := statusDetails(map[string]any{
		"source":         SourceCourier,
		"delivery_id":    d.ID,
		"courier_status": d.Status,
	})
	if err := s.repo.UpdateStatus(ctx, o.ID, status, details); err != nil {
		core.DeliveryPollsTotal.WithLabelValues("error").Inc()
		s.logger.Error("apply courier status",
			"order_id", o.ID,
			"status", status,
			"error", err,
		)
		return
	}

	core.DeliveryPollsTotal.WithLabelValues("updated").Inc()
	core.OrderStatusChangesTotal.WithLabelValues(status, SourceCourier).Inc()
	s.logger.Info("order status from courier",
		"order_id", o.ID,
		"from", o.Status,
		"to", status,
		"courier_status", d.Status,
	)
}

func statusDetails(v map[string]any) types.JSONText {
	raw, err := json.Marshal(v)
	if err != nil {
		return types.JSONText("{}")
	}
	return types.JSONText(raw)
}
