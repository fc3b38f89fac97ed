// AngelaMos | 2026
// response.go

package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrorResponse is the body of every non-2xx reply. Clients surface Detail
// to the user as-is.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Code   string `json:"code,omitempty"`
}

type PaginatedResponse struct {
	Items      any `json:"items"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalItems int `json:"total_items"`
	TotalPages int `json:"total_pages"`
}

func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

func JSONError(w http.ResponseWriter, err error) {
	if appErr, ok := AsAppError(err); ok {
		JSON(w, appErr.StatusCode, ErrorResponse{
			Detail: appErr.Message,
			Code:   appErr.Code,
		})
		return
	}

	switch {
	case errors.Is(err, ErrNotFound):
		JSON(w, http.StatusNotFound, ErrorResponse{
			Detail: "not found",
			Code:   "NOT_FOUND",
		})
	case errors.Is(err, ErrDuplicateKey):
		JSON(w, http.StatusConflict, ErrorResponse{
			Detail: "resource already exists",
			Code:   "DUPLICATE",
		})
	case errors.Is(err, ErrForbidden):
		JSON(w, http.StatusForbidden, ErrorResponse{
			Detail: "insufficient permissions",
			Code:   "FORBIDDEN",
		})
	case errors.Is(err, ErrUnauthorized):
		JSON(w, http.StatusUnauthorized, ErrorResponse{
			Detail: "authentication required",
			Code:   "UNAUTHORIZED",
		})
	case errors.Is(err, ErrInvalidInput):
		JSON(w, http.StatusBadRequest, ErrorResponse{
			Detail: "invalid request",
			Code:   "BAD_REQUEST",
		})
	case errors.Is(err, ErrConflict):
		JSON(w, http.StatusConflict, ErrorResponse{
			Detail: "conflicting state",
			Code:   "CONFLICT",
		})
	case errors.Is(err, ErrUnavailable):
		JSON(w, http.StatusServiceUnavailable, ErrorResponse{
			Detail: "service unavailable",
			Code:   "UNAVAILABLE",
		})
	default:
		InternalServerError(w, err)
	}
}

func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, data)
}

func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, data)
}

func NoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

func Paginated(
	w http.ResponseWriter,
	items any,
	page, pageSize, total int,
) {
	totalPages := 0
	if pageSize > 0 {
		totalPages = (total + pageSize - 1) / pageSize
	}

	OK(w, PaginatedResponse{
		Items:      items,
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	})
}

func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{
		Detail: message,
		Code:   "BAD_REQUEST",
	})
}

func NotFound(w http.ResponseWriter, resource string) {
	JSONError(w, NotFoundError(resource))
}

func Forbidden(w http.ResponseWriter, message string) {
	JSONError(w, ForbiddenError(message))
}

func Unauthorized(w http.ResponseWriter, message string) {
	JSONError(w, UnauthorizedError(message))
}

func InternalServerError(w http.ResponseWriter, err error) {
	slog.Error("internal server error", "error", err)
	JSON(w, http.StatusInternalServerError, ErrorResponse{
		Detail: "internal server error",
		Code:   "INTERNAL_ERROR",
	})
}

func FormatValidationError(err error) string {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return "invalid request"
	}

	msgs := make([]string, 0, len(validationErrs))
	for _, fe := range validationErrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "email":
			msgs = append(msgs, fmt.Sprintf("%s must be a valid email", field))
		case "min":
			msgs = append(msgs, fmt.Sprintf("%s must be at least %s", field, fe.Param()))
		case "max":
			msgs = append(msgs, fmt.Sprintf("%s must be at most %s", field, fe.Param()))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("%s must be one of: %s", field, fe.Param()))
		case "eqfield":
			msgs = append(msgs, fmt.Sprintf("%s must match %s", field, strings.ToLower(fe.Param())))
		default:
			msgs = append(msgs, fmt.Sprintf("%s is invalid", field))
		}
	}

	return strings.Join(msgs, "; ")
}

// DecodeJSON reads a request body into dst, rejecting trailing garbage.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", ErrInvalidInput)
	}
	return nil
}
