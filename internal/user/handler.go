// AngelaMos | 2026
// handler.go

package user

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/middleware"
)

type Handler struct {
	service   *Service
	validator *validator.Validate
}

func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// RegisterRoutes mounts /user. orders serves the caller's order history and
// lives with the order feature.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	orders http.HandlerFunc,
) {
	r.Route("/user", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/profile", h.GetProfile)
		r.Patch("/profile", h.UpdateProfile)
		if orders != nil {
			r.Get("/orders", orders)
		}
	})
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	u, err := h.service.GetProfile(r.Context(), middleware.GetUserID(r.Context()))
	h.respond(w, u, err)
}

// UpdateProfile applies a partial update. A complete address is geocoded
// again, so the response carries the new coordinates.
func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req UpdateProfileRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "Invalid request body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return
	}
	u, err := h.service.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), req)
	h.respond(w, u, err)
}

func (h *Handler) respond(w http.ResponseWriter, u *User, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		core.NotFound(w, "user")
	case err != nil:
		core.JSONError(w, err)
	default:
		core.OK(w, ToProfileResponse(u))
	}
}
