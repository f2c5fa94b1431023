package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/auth"
	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/service"
)

type contextKey string

const (
	ContextKeyUser  contextKey = "user"
	ContextKeyScope contextKey = "scope"
)

// UserResolver turns a bearer token into the current authorization view.
type UserResolver interface {
	ResolveUser(ctx context.Context, token string) (*authz.User, error)
}

// Auth validates the bearer token and loads the user into the request context.
func Auth(resolver UserResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				writeError(w, http.StatusUnauthorized, "AUTH", "missing token")
				return
			}

			user, err := resolver.ResolveUser(r.Context(), strings.TrimSpace(parts[1]))
			switch {
			case err == nil:
			case errors.Is(err, auth.ErrInvalidToken):
				writeError(w, http.StatusUnauthorized, "AUTH", "invalid token")
				return
			case errors.Is(err, service.ErrAccountDisabled):
				writeError(w, http.StatusForbidden, "FORBIDDEN", "account disabled")
				return
			default:
				log.Error().Err(err).Msg("auth: resolve user failed")
				writeError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

// WithUser stores the user in ctx.
func WithUser(ctx context.Context, u *authz.User) context.Context {
	return context.WithValue(ctx, ContextKeyUser, u)
}

// CurrentUser returns the authenticated user or nil.
func CurrentUser(ctx context.Context) *authz.User {
	val, _ := ctx.Value(ContextKeyUser).(*authz.User)
	return val
}

// GetSubject returns the user id as a string, empty when unauthenticated.
func GetSubject(ctx context.Context) string {
	u := CurrentUser(ctx)
	if u == nil {
		return ""
	}
	return strconv.FormatInt(u.ID, 10)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"data": nil,
		"error": map[string]any{
			"code":    code,
			"message": message,
		},
	})
}
