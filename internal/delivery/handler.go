// AngelaMos | 2026
// handler.go

package delivery

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/pricing"
	"github.com/localmart/localmart/internal/store"
)

type Quoter interface {
	Quote(ctx context.Context, req QuoteRequest) (*Quote, error)
}

type Catalog interface {
	Get(ctx context.Context, id string) (*store.Store, error)
	ItemsByIDs(ctx context.Context, ids []string) (map[string]store.Item, error)
}

type QuoteInput struct {
	StoreID         string         `json:"store_id"         validate:"required"`
	ItemID          string         `json:"item_id"          validate:"required"`
	DeliveryAddress map[string]any `json:"delivery_address" validate:"required"`
}

type Handler struct {
	quoter    Quoter
	catalog   Catalog
	now       func() time.Time
	validator *validator.Validate
}

// NewHandler serves delivery quotes. quoter may be nil when the courier is
// not configured.
func NewHandler(quoter Quoter, catalog Catalog) *Handler {
	return &Handler{
		quoter:    quoter,
		catalog:   catalog,
		now:       time.Now,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/delivery/quote", h.Quote)
}

func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	var in QuoteInput
	if err := core.DecodeJSON(r, &in); err != nil {
		core.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(in); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	if h.quoter == nil {
		core.JSONError(w, core.NewAppError(ErrNotConfigured,
			"Delivery quotes are unavailable", http.StatusServiceUnavailable, "UNAVAILABLE"))
		return
	}

	st, err := h.catalog.Get(r.Context(), in.StoreID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "Store")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	items, err := h.catalog.ItemsByIDs(r.Context(), []string{in.ItemID})
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	item, ok := items[in.ItemID]
	if !ok || item.StoreID != st.ID {
		core.NotFound(w, "Item")
		return
	}

	quote, err := h.quoter.Quote(r.Context(), QuoteRequest{
		Pickup:        StoreAddress(st),
		Dropoff:       in.DeliveryAddress,
		Window:        WindowFrom(h.now().UTC()),
		ManifestCents: pricing.Cents(item.Price),
	})
	if err != nil {
		core.JSONError(w, core.UpstreamError(err, "Failed to get delivery quote"))
		return
	}

	core.OK(w, quote)
}

// StoreAddress is the pickup address of a store.
func StoreAddress(st *store.Store) Address {
	return Address{
		StreetAddress: []string{st.Street1},
		City:          st.City,
		State:         st.State,
		ZipCode:       st.Zip,
		Country:       "US",
	}
}
