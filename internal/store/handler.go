// AngelaMos | 2026
// handler.go

package store

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb"

	"github.com/localmart/localmart/internal/access"
	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/middleware"
)

const (
	msgManageItems = "Not authorized to manage store items"
	msgManageStore = "Not authorized to manage this store"
)

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

// RegisterRoutes mounts /stores. orders lists a store's orders and is
// served by the order feature once the store admin check has passed.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	orders http.HandlerFunc,
) {
	r.Route("/stores", func(r chi.Router) {
		r.Get("/", h.List)
		r.Get("/{storeID}", h.Get)
		r.Get("/{storeID}/items", h.ListItems)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)

			r.Post("/{storeID}/items", h.CreateItem)
			r.Patch("/{storeID}/items/{itemID}", h.UpdateItem)
			r.Delete("/{storeID}/items/{itemID}", h.DeleteItem)
			r.Get("/{storeID}/roles", h.Roles)
			r.Post("/{storeID}/roles", h.AssignRole)
			r.Post("/{storeID}/geocode", h.Geocode)
			if orders != nil {
				r.Get("/{storeID}/orders", h.RequireStoreAdmin(orders))
			}
		})
	})
}

func (h *Handler) scope(r *http.Request) *access.Scope {
	return h.authz.Scope(middleware.GetCaller(r.Context()))
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	var near *orb.Point
	if raw := r.URL.Query().Get("near"); raw != "" {
		p, ok := parseNear(raw)
		if !ok {
			core.BadRequest(w, "near must be latitude,longitude")
			return
		}
		near = &p
	}

	stores, err := h.service.List(r.Context(), near)
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, stores)
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Get(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		h.fail(w, err, "")
		return
	}
	core.OK(w, st)
}

func (h *Handler) ListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.Items(r.Context(), chi.URLParam(r, "storeID"))
	if err != nil {
		h.fail(w, err, "")
		return
	}
	core.OK(w, items)
}

func (h *Handler) CreateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.CreateItem(r.Context(), h.scope(r), chi.URLParam(r, "storeID"), req)
	if err != nil {
		h.fail(w, err, msgManageItems)
		return
	}
	core.Created(w, item)
}

func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	var req ItemRequest
	if !h.decode(w, r, &req) {
		return
	}

	item, err := h.service.UpdateItem(r.Context(), h.scope(r),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "itemID"), req)
	if err != nil {
		h.fail(w, err, msgManageItems)
		return
	}
	core.OK(w, item)
}

func (h *Handler) DeleteItem(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteItem(r.Context(), h.scope(r),
		chi.URLParam(r, "storeID"), chi.URLParam(r, "itemID"))
	if err != nil {
		h.fail(w, err, msgManageItems)
		return
	}
	core.OK(w, DeleteResponse{Success: true})
}

func (h *Handler) Roles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.Roles(r.Context(), h.scope(r), chi.URLParam(r, "storeID"))
	if err != nil {
		h.fail(w, err, "")
		return
	}
	core.OK(w, RolesResponse{Roles: roles})
}

func (h *Handler) AssignRole(w http.ResponseWriter, r *http.Request) {
	var req AssignRoleRequest
	if !h.decode(w, r, &req) {
		return
	}

	role, err := h.service.AssignRole(r.Context(), h.scope(r), chi.URLParam(r, "storeID"), req)
	if err != nil {
		h.fail(w, err, "Admin access required")
		return
	}
	core.Created(w, map[string]string{
		"id":    role.ID,
		"user":  role.UserID,
		"store": role.StoreID,
		"role":  role.Role,
	})
}

func (h *Handler) Geocode(w http.ResponseWriter, r *http.Request) {
	st, err := h.service.Geocode(r.Context(), h.scope(r), chi.URLParam(r, "storeID"))
	if err != nil {
		h.fail(w, err, msgManageStore)
		return
	}
	core.OK(w, GeocodeResponse{
		ID:        st.ID,
		Name:      st.Name,
		Latitude:  st.Latitude,
		Longitude: st.Longitude,
		Message:   "Store coordinates updated successfully",
	})
}

// RequireStoreAdmin guards next with the store admin check for the
// {storeID} route parameter.
func (h *Handler) RequireStoreAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.service.RequireStoreAdmin(r.Context(), h.scope(r), chi.URLParam(r, "storeID"))
		if err != nil {
			h.fail(w, err, msgManageStore)
			return
		}
		next(w, r)
	}
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(r, dst); err != nil {
		core.BadRequest(w, "Invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func (h *Handler) fail(w http.ResponseWriter, err error, forbidden string) {
	switch {
	case errors.Is(err, ErrItemNotInStore):
		core.JSONError(w, core.NewAppError(err, "Item not found in store", http.StatusNotFound, "NOT_FOUND"))
	case errors.Is(err, ErrAddressIncomplete):
		core.BadRequest(w, "Store address is incomplete. Please update the store address first.")
	case errors.Is(err, ErrGeocodeUnavailable):
		core.BadRequest(w, "Could not geocode the store address. Please check the address and try again.")
	case errors.Is(err, core.ErrForbidden):
		core.Forbidden(w, forbidden)
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "store")
	case errors.Is(err, core.ErrDuplicateKey):
		core.JSONError(w, core.DuplicateError("store role"))
	case errors.Is(err, core.ErrInvalidInput):
		core.BadRequest(w, "invalid reference")
	default:
		core.InternalServerError(w, err)
	}
}

// parseNear reads "lat,lng".
func parseNear(raw string) (orb.Point, bool) {
	latRaw, lngRaw, ok := strings.Cut(raw, ",")
	if !ok {
		return orb.Point{}, false
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil || lat < -90 || lat > 90 {
		return orb.Point{}, false
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil || lng < -180 || lng > 180 {
		return orb.Point{}, false
	}
	return orb.Point{lng, lat}, true
}
