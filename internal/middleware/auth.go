// AngelaMos | 2026
// auth.go

package middleware

import (
	"context"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/localmart/localmart/internal/access"
	"github.com/localmart/localmart/internal/core"
)

const claimsKey contextKey = "access_claims"

type TokenVerifier interface {
	VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error)
}

// AccessTokenClaims is the verified identity attached to a request.
type AccessTokenClaims struct {
	UserID       string
	Roles        []string
	TokenVersion int
}

func claimsFrom(ctx context.Context) *AccessTokenClaims {
	c, _ := ctx.Value(claimsKey).(*AccessTokenClaims)
	return c
}

// Authenticator rejects requests without a valid bearer token.
func Authenticator(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := ExtractToken(r)
			if token == "" {
				core.JSONError(w, core.UnauthorizedError("missing authorization token"))
				return
			}

			claims, err := verifier.VerifyAccessToken(r.Context(), token)
			if err != nil {
				core.JSONError(w, tokenError(err))
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenError(err error) error {
	switch {
	case core.IsAppError(err):
		return err
	case errors.Is(err, core.ErrTokenExpired):
		return core.TokenExpiredError()
	case errors.Is(err, core.ErrTokenRevoked):
		return core.TokenRevokedError()
	}
	return core.TokenInvalidError()
}

// gate runs after Authenticator and admits callers allowed returns true
// for, answering 401 for anonymous callers and 403 otherwise.
func gate(denied string, allowed func(ctx context.Context) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch {
			case !IsAuthenticated(r.Context()):
				core.JSONError(w, core.UnauthorizedError("authentication required"))
			case !allowed(r.Context()):
				core.JSONError(w, core.ForbiddenError(denied))
			default:
				next.ServeHTTP(w, r)
			}
		})
	}
}

// RequireRole admits callers holding at least one of roles.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return gate("insufficient permissions", func(ctx context.Context) bool {
		held := GetUserRoles(ctx)
		return slices.ContainsFunc(roles, func(role string) bool {
			return slices.Contains(held, role)
		})
	})
}

// RequireGlobalAdmin gates platform-wide admin routes.
var RequireGlobalAdmin = gate("Admin access required", IsAdmin)

// ExtractToken returns the bearer token or "".
func ExtractToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func GetUserID(ctx context.Context) string {
	if c := claimsFrom(ctx); c != nil {
		return c.UserID
	}
	return ""
}

func GetUserRoles(ctx context.Context) []string {
	if c := claimsFrom(ctx); c != nil {
		return c.Roles
	}
	return nil
}

// GetCaller returns the identity rules are evaluated for; anonymous when
// the request carries no valid token.
func GetCaller(ctx context.Context) access.Caller {
	return access.Caller{ID: GetUserID(ctx), Roles: GetUserRoles(ctx)}
}

func IsAuthenticated(ctx context.Context) bool {
	return GetUserID(ctx) != ""
}

// IsAdmin mirrors the global admin rule: any role containing "admin".
func IsAdmin(ctx context.Context) bool {
	return slices.ContainsFunc(GetUserRoles(ctx), func(role string) bool {
		return strings.Contains(strings.ToLower(role), "admin")
	})
}
