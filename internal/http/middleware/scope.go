package middleware

import (
	"context"
	"net/http"

	"github.com/bidhub/procurement/internal/authz"
)

// Scope resolves the organization filter of the current user once per request
// and hands it to the access log. It must run after Auth.
func Scope(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u := CurrentUser(r.Context())
		filter := authz.ResolveOrganizationFilter(u)
		recordActor(r.Context(), u, filter)
		ctx := context.WithValue(r.Context(), ContextKeyScope, filter)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetScope returns the resolved filter, falling back to resolving it from the
// context user when Scope did not run.
func GetScope(ctx context.Context) authz.OrganizationFilter {
	if f, ok := ctx.Value(ContextKeyScope).(authz.OrganizationFilter); ok {
		return f
	}
	return authz.ResolveOrganizationFilter(CurrentUser(ctx))
}
