// AngelaMos | 2026
// handler.go

package payment

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/localmart/localmart/internal/core"
	"github.com/localmart/localmart/internal/middleware"
)

const maxWebhookBytes = 64 << 10

type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

type SaveCardRequest struct {
	PaymentMethodID string `json:"payment_method_id"`
}

type StatusResponse struct {
	Status string `json:"status"`
}

type SetupIntentResponse struct {
	ClientSecret string `json:"client_secret"`
}

// RegisterRoutes mounts /payment and the processor webhook.
func (h *Handler) RegisterRoutes(r chi.Router, authenticator func(http.Handler) http.Handler) {
	r.Route("/payment", func(r chi.Router) {
		r.Use(authenticator)

		r.Get("/cards", h.ListCards)
		r.Post("/cards", h.SaveCard)
		r.Delete("/cards/{cardID}", h.DeleteCard)
		r.Post("/setup-intent", h.SetupIntent)
	})

	r.Post("/webhooks/stripe", h.Webhook)
}

func (h *Handler) ListCards(w http.ResponseWriter, r *http.Request) {
	cards, err := h.service.ListCards(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, cards)
}

func (h *Handler) SaveCard(w http.ResponseWriter, r *http.Request) {
	var req SaveCardRequest
	if err := core.DecodeJSON(r, &req); err != nil {
		core.BadRequest(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.PaymentMethodID) == "" {
		core.BadRequest(w, "Payment method ID is required")
		return
	}

	if _, err := h.service.SaveCard(r.Context(), middleware.GetUserID(r.Context()), req.PaymentMethodID); err != nil {
		var pe *ProcessorError
		if errors.As(err, &pe) {
			core.BadRequest(w, pe.Message)
			return
		}
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, StatusResponse{Status: "success"})
}

func (h *Handler) DeleteCard(w http.ResponseWriter, r *http.Request) {
	err := h.service.DeleteCard(r.Context(), middleware.GetUserID(r.Context()), chi.URLParam(r, "cardID"))
	if err != nil {
		var pe *ProcessorError
		switch {
		case errors.Is(err, ErrCardNotFound):
			core.NotFound(w, "Card")
		case errors.As(err, &pe):
			core.BadRequest(w, pe.Message)
		default:
			core.InternalServerError(w, err)
		}
		return
	}
	core.OK(w, StatusResponse{Status: "success"})
}

func (h *Handler) SetupIntent(w http.ResponseWriter, r *http.Request) {
	secret, err := h.service.SetupIntent(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		var pe *ProcessorError
		if errors.As(err, &pe) {
			core.BadRequest(w, pe.Message)
			return
		}
		core.InternalServerError(w, err)
		return
	}
	core.OK(w, SetupIntentResponse{ClientSecret: secret})
}

func (h *Handler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		core.BadRequest(w, "Invalid payload")
		return
	}

	err = h.service.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature"))
	switch {
	case errors.Is(err, ErrInvalidSignature):
		core.BadRequest(w, "Invalid signature")
	case errors.Is(err, ErrInvalidPayload):
		core.BadRequest(w, "Invalid JSON payload")
	case err != nil:
		core.InternalServerError(w, err)
	default:
		core.OK(w, StatusResponse{Status: "success"})
	}
}
