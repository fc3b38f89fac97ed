// AngelaMos | 2026
// handler.go

package featureflag

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/localmart/localmart/internal/core"
)

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type setFlagRequest struct {
	Enabled *bool `json:"enabled"`
}

func (h *Handler) RegisterRoutes(r chi.Router, adminOnly func(http.Handler) http.Handler) {
	r.Route("/feature-flags", func(r chi.Router) {
		r.Get("/", h.List)
		r.With(adminOnly).Patch("/{name}", h.Set)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	flags, err := h.service.List(r.Context())
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	if flags == nil {
		flags = []Flag{}
	}
	core.OK(w, flags)
}

func (h *Handler) Set(w http.ResponseWriter, r *http.Request) {
	var req setFlagRequest
	if err := core.DecodeJSON(r, &req); err != nil || req.Enabled == nil {
		core.BadRequest(w, "enabled is required")
		return
	}

	flag, err := h.service.Set(r.Context(), chi.URLParam(r, "name"), *req.Enabled)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.NotFound(w, "feature flag")
			return
		}
		core.InternalServerError(w, err)
		return
	}

	core.OK(w, flag)
}
