// AngelaMos | 2026
// handler.go

package order

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/localmart/localmart/internal/access"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/delivery"
	"github.com/localmart/localmart/internal/middleware"
	"github.com/localmart/localmart/internal/payment"
)

const (
	msgAdminRequired = "Admin access required"
	msgUpdateOrder   = "Not authorized to update this order"
	msgDispatch      = "Not authorized to dispatch this order"
)

var msgInvalidStatus = "Invalid status. Must be one of: " + strings.Join(Statuses, ", ")

type Handler struct {
	service   *Service
	authz     *access.Authorizer
	validator *validator.Validate
}

func NewHandler(service *Service, authz *access.Authorizer) *Handler {
	return &Handler{
		service:   service,
		authz:     authz,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (h *Handler) RegisterRoutes(r chi.Router, authenticator func(http.Handler) http.Handler) {
	r.Route("/orders", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/", h.ListAll)
		r.Post("/", h.Create)
		r.Get("/{orderID}", h.Get)
		r.Patch("/{orderID}/status", h.UpdateStatus)
		r.Post("/{orderID}/dispatch", h.Dispatch)
	})
}

func (h *Handler) scope(r *http.Request) *access.Scope {
	return h.authz.Scope(middleware.GetCaller(r.Context()))
}

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}

	o, charge, err := h.service.Create(r.Context(), h.scope(r), req)
	if err != nil {
		fail(w, err, "Authentication required")
		return
	}

	core.Created(w, CreateOrderResponse{
		OrderID:      o.ID,
		Status:       o.Status,
		ClientSecret: charge.ClientSecret,
		Message:      "Order created successfully",
	})
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.service.Get(r.Context(), h.scope(r), chi.URLParam(r, "orderID"))
	if err != nil {
		fail(w, err, "")
		return
	}
	core.OK(w, view)
}

func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListAll(r.Context(), h.scope(r), listParams(r))
	if err != nil {
		fail(w, err, msgAdminRequired)
		return
	}
	core.OK(w, views)
}

// UserOrders lists the caller's own orders, newest first.
func (h *Handler) UserOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListForUser(r.Context(), middleware.GetUserID(r.Context()), listParams(r))
	if err != nil {
		fail(w, err, "")
		return
	}
	core.OK(w, views)
}

// StoreOrders lists orders containing a store's items. It is mounted behind
// the store admin guard.
func (h *Handler) StoreOrders(w http.ResponseWriter, r *http.Request) {
	views, err := h.service.ListForStore(r.Context(), chi.URLParam(r, "storeID"), listParams(r))
	if err != nil {
		fail(w, err, "")
		return
	}
	core.OK(w, views)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateStatusRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "Invalid request body")
		return
	}

	o, err := h.service.UpdateStatus(r.Context(), h.scope(r), chi.URLParam(r, "orderID"), req.Status)
	if err != nil {
		fail(w, err, msgUpdateOrder)
		return
	}

	core.OK(w, StatusResponse{
		OrderID: o.ID,
		Status:  o.Status,
		Message: "Order status updated successfully",
	})
}

func (h *Handler) Dispatch(w http.ResponseWriter, r *http.Request) {
	o, err := h.service.Dispatch(r.Context(), h.scope(r), chi.URLParam(r, "orderID"))
	if err != nil {
		fail(w, err, msgDispatch)
		return
	}

	core.OK(w, DispatchResponse{
		OrderID:     o.ID,
		Status:      o.Status,
		DeliveryID:  o.UberDeliveryID,
		TrackingURL: o.UberTrackingURL,
	})
}

func fail(w http.ResponseWriter, err error, forbidden string) {
	var pe *payment.ProcessorError
	switch {
	case errors.As(err, &pe):
		core.BadRequest(w, pe.Message)
	case errors.Is(err, payment.ErrInvalidPaymentMethod):
		core.BadRequest(w, "Invalid payment method")
	case errors.Is(err, payment.ErrNoCustomer):
		core.BadRequest(w, "No Stripe customer found")
	case errors.Is(err, ErrUnknownItem):
		core.BadRequest(w, "Unknown store item")
	case errors.Is(err, ErrStatusRequired):
		core.BadRequest(w, "Status is required")
	case errors.Is(err, ErrInvalidStatus):
		core.BadRequest(w, msgInvalidStatus)
	case errors.Is(err, ErrEmptyOrder):
		core.BadRequest(w, "Order has no items")
	case errors.Is(err, ErrInvalidTransition):
		core.JSONError(w, core.NewAppError(err, "Invalid status transition", http.StatusConflict, "CONFLICT"))
	case errors.Is(err, ErrAlreadyDispatched):
		core.JSONError(w, core.NewAppError(err, "Order already dispatched", http.StatusConflict, "CONFLICT"))
	case errors.Is(err, ErrDeliveryUnavailable):
		core.JSONError(w, core.NewAppError(err,
			"Delivery is unavailable", http.StatusServiceUnavailable, "UNAVAILABLE"))
	case errors.Is(err, delivery.ErrUpstream):
		core.JSONError(w, core.UpstreamError(err, "Failed to create delivery"))
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "Order")
	case errors.Is(err, core.ErrForbidden):
		if forbidden == "" {
			forbidden = "Not authorized"
		}
		core.Forbidden(w, forbidden)
	default:
		core.InternalServerError(w, err)
	}
}

// listParams reads ?page and ?page_size; bad values fall back to defaults.
func listParams(r *http.Request) ListParams {
	return ListParams{
		Page:     parseIntQuery(r, "page", 1),
		PageSize: parseIntQuery(r, "page_size", defaultPageSize),
	}
}

func parseIntQuery(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}
