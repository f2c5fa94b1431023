package middleware

import (
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/dashboard"
	"github.com/bidhub/procurement/internal/metrics"
)

// Require lets the request through only when check accepts the current user.
// rule names the check in logs and in the denial counter.
func Require(rule string, check func(*authz.User) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := CurrentUser(r.Context())
			if user == nil {
				writeError(w, http.StatusUnauthorized, "AUTH", "missing token")
				return
			}
			if !check(user) {
				Deny(w, r, rule)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Deny writes the 403 envelope and records the denial.
func Deny(w http.ResponseWriter, r *http.Request, rule string) {
	metrics.AuthzDenials.WithLabelValues(rule).Inc()
	event := log.Warn().Str("rule", rule).Str("path", r.URL.Path)
	if user := CurrentUser(r.Context()); user != nil {
		event = event.Int64("user_id", user.ID)
	}
	event.Msg("authorization denied")
	writeError(w, http.StatusForbidden, "FORBIDDEN", "access denied")
}

// RequireDashboardRole gates the dashboard on the user's platform roles.
func RequireDashboardRole(next http.Handler) http.Handler {
	return Require("dashboard_role", func(u *authz.User) bool {
		return dashboard.HasValidRole(dashboard.RecordsFor(u))
	})(next)
}

// RequireBidViewer gates bid listings.
func RequireBidViewer(next http.Handler) http.Handler {
	return Require("view_bids", authz.CanViewBids)(next)
}

// RequireSchoolManager gates school-level listings.
func RequireSchoolManager(next http.Handler) http.Handler {
	return Require("manage_school", authz.CanManageSchool)(next)
}
