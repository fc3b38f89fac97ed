// AngelaMos | 2026
// handler.go

package auth

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

// RegisterRoutes mounts /auth. limiter guards the credential endpoints and
// may be nil.
func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator func(http.Handler) http.Handler,
	limiter func(http.Handler) http.Handler,
) {
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			if limiter != nil {
				r.Use(limiter)
			}
			r.Post("/login", h.Login)
			r.Post("/signup", h.Signup)
			r.Post("/magic-link", h.RequestMagicLink)
			r.Post("/magic-link/verify", h.VerifyMagicLink)
		})
		r.Post("/refresh", h.Refresh)

		r.Group(func(r chi.Router) {
			r.Use(authenticator)
			r.Post("/logout", h.Logout)
			r.Post("/logout-all", h.LogoutAll)
			r.Get("/sessions", h.ListSessions)
			r.Delete("/sessions/{sessionID}", h.RevokeSession)
			r.Post("/change-password", h.ChangePassword)
		})
	})
}

var errTokenReuse = core.NewAppError(
	core.ErrTokenRevoked,
	"security alert: token reuse detected, all sessions revoked",
	http.StatusUnauthorized,
	"TOKEN_REUSE_DETECTED",
)

// writeError renders service errors. Anything unrecognised falls through
// to core.JSONError.
func writeError(w http.ResponseWriter, err error) {
	var rendered error
	switch {
	case errors.Is(err, ErrInvalidCredentials):
		rendered = core.UnauthorizedError("Invalid email or password")
	case errors.Is(err, ErrEmailExists):
		rendered = core.DuplicateError("email")
	case errors.Is(err, ErrMagicLinkInvalid):
		rendered = core.UnauthorizedError("Login link is invalid or has expired")
	case errors.Is(err, ErrTokenReuse):
		rendered = errTokenReuse
	case errors.Is(err, core.ErrTokenExpired):
		rendered = core.TokenExpiredError()
	case errors.Is(err, core.ErrTokenRevoked):
		rendered = core.TokenRevokedError()
	case errors.Is(err, core.ErrTokenInvalid):
		rendered = core.TokenInvalidError()
	case errors.Is(err, core.ErrNotFound):
		rendered = core.NotFoundError("session")
	case errors.Is(err, core.ErrForbidden):
		rendered = core.ForbiddenError("session belongs to another user")
	default:
		rendered = err
	}
	core.JSONError(w, rendered)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := core.DecodeJSON(r, dst); err != nil {
		core.BadRequest(w, "invalid request body")
		return false
	}
	if err := h.validator.Struct(dst); err != nil {
		core.BadRequest(w, core.FormatValidationError(err))
		return false
	}
	return true
}

func clientMeta(r *http.Request) ClientMeta {
	return ClientMeta{UserAgent: r.UserAgent(), IPAddress: middleware.ClientIP(r)}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Login(r.Context(), req, clientMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Signup(r.Context(), req, clientMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	core.Created(w, resp)
}

func (h *Handler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.Refresh(r.Context(), req.RefreshToken, clientMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) RequestMagicLink(w http.ResponseWriter, r *http.Request) {
	var req MagicLinkRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.RequestMagicLink(r.Context(), req.Email); err != nil {
		writeError(w, err)
		return
	}
	core.JSON(w, http.StatusAccepted, MagicLinkResponse{
		Message: "If the account exists, a login link has been sent",
	})
}

func (h *Handler) VerifyMagicLink(w http.ResponseWriter, r *http.Request) {
	var req MagicLinkVerifyRequest
	if !h.decode(w, r, &req) {
		return
	}
	resp, err := h.service.VerifyMagicLink(r.Context(), req.Token, clientMeta(r))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, resp)
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	var req RefreshRequest
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.service.Logout(r.Context(), req.RefreshToken, middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

func (h *Handler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	if err := h.service.LogoutAll(r.Context(), middleware.GetUserID(r.Context())); err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.service.Sessions(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeError(w, err)
		return
	}
	core.OK(w, SessionsResponse{Sessions: sessions})
}

func (h *Handler) RevokeSession(w http.ResponseWriter, r *http.Request) {
	err := h.service.RevokeSession(r.Context(),
		middleware.GetUserID(r.Context()),
		chi.URLParam(r, "sessionID"),
	)
	if err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}

func (h *Handler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !h.decode(w, r, &req) {
		return
	}
	err := h.service.ChangePassword(r.Context(),
		middleware.GetUserID(r.Context()),
		req.CurrentPassword,
		req.NewPassword,
	)
	if errors.Is(err, ErrInvalidCredentials) {
		core.JSONError(w, core.UnauthorizedError("current password is incorrect"))
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	core.NoContent(w)
}
