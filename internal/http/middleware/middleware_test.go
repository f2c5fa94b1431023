package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/require"

	"github.com/bidhub/procurement/internal/auth"
	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/service"
)

type stubResolver struct {
	users map[string]*authz.User
	err   error
}

func (s stubResolver) ResolveUser(ctx context.Context, token string) (*authz.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Error.Code
}

func i64(v int64) *int64 { return &v }

func TestAuthMiddleware(t *testing.T) {
	viewer := &authz.User{ID: 9, Roles: []authz.RoleAssignment{{Type: authz.RoleViewer}}}
	resolver := stubResolver{users: map[string]*authz.User{"good": viewer}}

	var seen *authz.User
	h := Auth(resolver)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CurrentUser(r.Context())
		require.Equal(t, "9", GetSubject(r.Context()))
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
		code   string
	}{
		{"missing", "", http.StatusUnauthorized, "AUTH"},
		{"wrong scheme", "Basic good", http.StatusUnauthorized, "AUTH"},
		{"unknown token", "Bearer bad", http.StatusUnauthorized, "AUTH"},
		{"ok", "Bearer good", http.StatusNoContent, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			require.Equal(t, tc.status, rec.Code)
			if tc.code != "" {
				require.Equal(t, tc.code, errorCode(t, rec))
			}
		})
	}
	require.Same(t, viewer, seen)
}

func TestAuthMiddlewareMapsResolverErrors(t *testing.T) {
	cases := map[error]int{
		service.ErrAccountDisabled: http.StatusForbidden,
		errors.New("db down"):      http.StatusInternalServerError,
	}
	for err, status := range cases {
		h := Auth(stubResolver{err: err})(http.HandlerFunc(okHandler))
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer x")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		require.Equal(t, status, rec.Code)
	}
}

func serveAs(h http.Handler, u *authz.User) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	if u != nil {
		req = req.WithContext(WithUser(req.Context(), u))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireDashboardRole(t *testing.T) {
	h := RequireDashboardRole(http.HandlerFunc(okHandler))

	require.Equal(t, http.StatusUnauthorized, serveAs(h, nil).Code)

	coop := &authz.User{ID: 1, Roles: []authz.RoleAssignment{{Type: authz.RoleCoopAdmin}}}
	rec := serveAs(h, coop)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", errorCode(t, rec))

	district := &authz.User{ID: 2, Roles: []authz.RoleAssignment{{Type: authz.RoleDistrictAdmin}}}
	require.Equal(t, http.StatusNoContent, serveAs(h, district).Code)
}

func TestRequireBidViewer(t *testing.T) {
	h := RequireBidViewer(http.HandlerFunc(okHandler))

	none := &authz.User{ID: 1}
	require.Equal(t, http.StatusForbidden, serveAs(h, none).Code)

	viewer := &authz.User{ID: 2, Roles: []authz.RoleAssignment{{Type: authz.RoleViewer, Permissions: []authz.Permission{authz.PermViewBids}}}}
	require.Equal(t, http.StatusNoContent, serveAs(h, viewer).Code)
}

func TestScopeMiddleware(t *testing.T) {
	var got authz.OrganizationFilter
	h := Scope(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = GetScope(r.Context())
	}))

	serveAs(h, &authz.User{ID: 1, CooperativeID: i64(10), DistrictID: i64(5)})
	require.Equal(t, int64(10), *got.CooperativeID)
	require.Nil(t, got.DistrictID)

	serveAs(h, &authz.User{ID: 2})
	require.True(t, got.IsEmpty())
}

func TestRecover(t *testing.T) {
	h := Recover(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := serveAs(h, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "INTERNAL", errorCode(t, rec))
}

func TestOriginMatcher(t *testing.T) {
	m := newOriginMatcher([]string{"https://app.bidhub.org", "*.coop.org", " "})

	require.True(t, m.allows("https://app.bidhub.org"))
	require.True(t, m.allows("https://north.coop.org"))
	require.False(t, m.allows("https://coop.org"))
	require.False(t, m.allows("https://evilcoop.org"))
	require.False(t, m.allows("https://other.example"))
	require.False(t, m.allows(""))
}

func TestCORSPreflight(t *testing.T) {
	h := CORS([]string{"https://app.bidhub.org"})(http.HandlerFunc(okHandler))
	req := httptest.NewRequest(http.MethodOptions, "/bids", nil)
	req.Header.Set("Origin", "https://app.bidhub.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "https://app.bidhub.org", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "PATCH")
}

func TestIPRateLimit(t *testing.T) {
	h := IPRateLimit(NewRateLimiter("test", 0.0001, 1))(http.HandlerFunc(okHandler))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusNoContent, first.Code)

	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusTooManyRequests, second.Code)
	require.Equal(t, "RATE_LIMIT", errorCode(t, second))
}

func TestOrganizationKey(t *testing.T) {
	key, ok := OrganizationKey(authz.OrganizationFilter{CooperativeID: i64(10), DistrictID: i64(5)})
	require.True(t, ok)
	require.Equal(t, "cooperative:10", key)

	key, ok = OrganizationKey(authz.OrganizationFilter{DistrictID: i64(5)})
	require.True(t, ok)
	require.Equal(t, "district:5", key)

	_, ok = OrganizationKey(authz.OrganizationFilter{})
	require.False(t, ok)
}

func TestOrganizationRateLimitSharesBucket(t *testing.T) {
	h := Scope(OrganizationRateLimit(NewRateLimiter("org", 0.0001, 1))(http.HandlerFunc(okHandler)))

	require.Equal(t, http.StatusNoContent, serveAs(h, &authz.User{ID: 1, CooperativeID: i64(10)}).Code)
	// A second user of the same cooperative draws from the same bucket.
	rec := serveAs(h, &authz.User{ID: 2, CooperativeID: i64(10)})
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	require.Equal(t, "RATE_LIMIT", errorCode(t, rec))

	require.Equal(t, http.StatusNoContent, serveAs(h, &authz.User{ID: 3, CooperativeID: i64(11)}).Code)
	require.Equal(t, http.StatusNoContent, serveAs(h, &authz.User{ID: 4}).Code)
	require.Equal(t, http.StatusNoContent, serveAs(h, &authz.User{ID: 4}).Code)
}

func TestUserRateLimitIsPerUser(t *testing.T) {
	h := UserRateLimit(NewRateLimiter("user", 0.0001, 1))(http.HandlerFunc(okHandler))

	require.Equal(t, http.StatusNoContent, serveAs(h, &authz.User{ID: 1}).Code)
	require.Equal(t, http.StatusTooManyRequests, serveAs(h, &authz.User{ID: 1}).Code)
	require.Equal(t, http.StatusNoContent, serveAs(h, &authz.User{ID: 2}).Code)
	require.Equal(t, http.StatusNoContent, serveAs(h, nil).Code)
}

func TestLoggingIncludesActor(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	authenticate := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := &authz.User{ID: 42, DistrictID: i64(5)}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
	h := Logging(authenticate(Scope(http.HandlerFunc(okHandler))))
	serveAs(h, nil)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "http_request", line["message"])
	require.Equal(t, float64(42), line["user_id"])
	require.Equal(t, float64(5), line["district_id"])
	require.NotContains(t, line, "cooperative_id")
	require.Equal(t, float64(http.StatusNoContent), line["status"])

	buf.Reset()
	serveAs(Logging(http.HandlerFunc(okHandler)), nil)
	line = nil
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.NotContains(t, line, "user_id")
}
