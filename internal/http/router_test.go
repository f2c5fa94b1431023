package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bidhub/procurement/internal/apperr"
	"github.com/bidhub/procurement/internal/auth"
	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/bid"
	"github.com/bidhub/procurement/internal/config"
	"github.com/bidhub/procurement/internal/dashboard"
	"github.com/bidhub/procurement/internal/service"
)

type stubAuth struct {
	users map[string]*authz.User
}

func (s *stubAuth) Login(ctx context.Context, email, password string) (*service.LoginResult, error) {
	if password != "secret-pass" {
		return nil, service.ErrInvalidCredentials
	}
	return &service.LoginResult{AccessToken: "access", RefreshToken: "refresh", RefreshExpiry: time.Now().Add(time.Hour)}, nil
}

func (s *stubAuth) Refresh(ctx context.Context, rawToken string) (*service.LoginResult, error) {
	if rawToken != "refresh" {
		return nil, service.ErrRefreshInvalid
	}
	return &service.LoginResult{AccessToken: "access2", RefreshToken: "refresh2", RefreshExpiry: time.Now().Add(time.Hour)}, nil
}

func (s *stubAuth) Logout(ctx context.Context, rawToken string) error {
	return nil
}

func (s *stubAuth) ResolveUser(ctx context.Context, token string) (*authz.User, error) {
	if u, ok := s.users[token]; ok {
		return u, nil
	}
	return nil, auth.ErrInvalidToken
}

type stubBids struct {
	bids       map[int64]bid.Bid
	pageParams *bid.PageParams
	scope      *bid.ScopeFilter
	created    *bid.CreateInput
	deleted    []int64
	districtID int64
}

func (s *stubBids) CreateBid(ctx context.Context, in bid.CreateInput) (*bid.Bid, error) {
	b, err := bid.New(in, time.Now())
	if err != nil {
		return nil, err
	}
	s.created = &in
	b.ID = 100
	return b, nil
}

func (s *stubBids) GetBidByID(ctx context.Context, id int64) (*bid.Bid, error) {
	b, ok := s.bids[id]
	if !ok {
		return nil, apperr.NotFound("Bid")
	}
	return &b, nil
}

func (s *stubBids) GetBidDetailsByID(ctx context.Context, id int64) (*bid.Details, error) {
	b, err := s.GetBidByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return bid.NewDetails(b), nil
}

func (s *stubBids) UpdateBid(ctx context.Context, id int64, in bid.UpdateInput) (*bid.Bid, error) {
	b, err := s.GetBidByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := b.Apply(in, time.Now()); err != nil {
		return nil, err
	}
	s.bids[id] = *b
	return b, nil
}

func (s *stubBids) DeleteBid(ctx context.Context, id int64) error {
	if _, ok := s.bids[id]; !ok {
		return apperr.NotFound("Bid")
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func (s *stubBids) FindByScope(ctx context.Context, f bid.ScopeFilter) ([]bid.Bid, error) {
	s.scope = &f
	return []bid.Bid{}, nil
}

func (s *stubBids) FindByBidManager(ctx context.Context, userID int64) ([]bid.Bid, error) {
	return []bid.Bid{}, nil
}

func (s *stubBids) FindByDistrictID(ctx context.Context, districtID int64) ([]bid.Bid, error) {
	s.districtID = districtID
	return []bid.Bid{}, nil
}

func (s *stubBids) FindByCooperativeID(ctx context.Context, cooperativeID int64) ([]bid.Bid, error) {
	return nil, errors.New("connection reset")
}

func (s *stubBids) FindPaginated(ctx context.Context, p bid.PageParams) (*bid.Page, error) {
	s.pageParams = &p
	return &bid.Page{Bids: []bid.Bid{}, Page: p.Page, Limit: p.Limit}, nil
}

type stubDashboard struct{}

func (stubDashboard) GetDashboardMetrics(ctx context.Context, user *authz.User) (*dashboard.Metrics, error) {
	n := 8
	return &dashboard.Metrics{ActiveBids: 5, MemberDistricts: &n, ActiveBidsChange: "+2 from last month"}, nil
}

func i64(v int64) *int64 { return &v }

func role(t authz.RoleType, perms ...authz.Permission) authz.RoleAssignment {
	return authz.RoleAssignment{Type: t, Scope: authz.Scope{Type: authz.ScopePlatform}, Permissions: perms}
}

var (
	coopAdmin = &authz.User{
		ID: 1, CooperativeID: i64(10),
		Roles: []authz.RoleAssignment{role(authz.RoleCoopAdmin, authz.PermViewAll, authz.PermEditAll)},
	}
	districtAdmin = &authz.User{
		ID: 2, DistrictID: i64(5),
		Roles: []authz.RoleAssignment{role(authz.RoleDistrictAdmin, authz.PermEditDistrict, authz.PermViewBids)},
	}
	viewer = &authz.User{
		ID: 3, DistrictID: i64(5),
		Roles: []authz.RoleAssignment{role(authz.RoleViewer, authz.PermViewBids)},
	}
	nobody   = &authz.User{ID: 4}
	bidAdmin = &authz.User{
		ID: 5,
		BidRoles: []authz.RoleAssignment{{
			Type:  authz.RoleBidAdministrator,
			Scope: authz.Scope{Type: authz.ScopeBid, ID: i64(7)},
		}},
		ManagedBids: []authz.ManagedBidRef{{ID: 7, Code: "BID-7"}},
	}
)

func newTestRouter(bids *stubBids) http.Handler {
	cfg := &config.Config{
		PaginationMaxLimit: 50,
		RateLimitPublic:    config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitAuth:      config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		RateLimitOrg:       config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
	}
	return NewRouter(cfg, Deps{
		Auth: &stubAuth{users: map[string]*authz.User{
			"coop": coopAdmin, "district": districtAdmin, "viewer": viewer, "nobody": nobody, "bidadmin": bidAdmin,
		}},
		Bids:      bids,
		Dashboard: stubDashboard{},
		ReadyChecks: []ReadyCheck{
			{Name: "db", Check: func(ctx context.Context) error { return nil }},
		},
	})
}

func newStubBids() *stubBids {
	note := "annual"
	return &stubBids{bids: map[int64]bid.Bid{
		7:  {ID: 7, Code: "BID-7", Name: "Milk", Note: &note, Status: bid.StatusOpened, CooperativeID: i64(10), CreatedAt: time.Now()},
		9:  {ID: 9, Code: "BID-9", Name: "Buses", Status: bid.StatusOpened, CooperativeID: i64(99), CreatedAt: time.Now()},
		11: {ID: 11, Code: "BID-11", Name: "Paper", Status: bid.StatusDraft, DistrictID: i64(5), CreatedAt: time.Now()},
	}}
}

func do(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error *struct {
		Code    string         `json:"code"`
		Message string         `json:"message"`
		Details map[string]any `json:"details"`
	} `json:"error"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHealthAndReady(t *testing.T) {
	h := newTestRouter(newStubBids())
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health", "", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/ready", "", "").Code)

	cfg := &config.Config{
		PaginationMaxLimit: 10,
		RateLimitPublic:    config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		RateLimitAuth:      config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
		RateLimitOrg:       config.RateLimitConfig{RequestsPerSecond: 100, Burst: 100},
	}
	failing := NewRouter(cfg, Deps{
		Auth: &stubAuth{},
		ReadyChecks: []ReadyCheck{
			{Name: "redis", Check: func(ctx context.Context) error { return errors.New("dial tcp: refused") }},
		},
	})
	rec := do(t, failing, http.MethodGet, "/ready", "", "")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "dial tcp: refused", decode(t, rec).Error.Details["redis"])
}

func TestLoginAndRefresh(t *testing.T) {
	h := newTestRouter(newStubBids())

	rec := do(t, h, http.MethodPost, "/auth/login", "", `{"email":"a@b.org","password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, http.MethodPost, "/auth/login", "", `{"email":"nope","password":"secret-pass"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "email", decode(t, rec).Error.Details["field"])

	rec = do(t, h, http.MethodPost, "/auth/login", "", `{"email":"a@b.org","password":"`+strings.Repeat("x", 257)+`"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "password", decode(t, rec).Error.Details["field"])

	rec = do(t, h, http.MethodPost, "/auth/login", "", `{"email":"a@b.org","password":"secret-pass"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Header().Get("Set-Cookie"), refreshCookie+"=refresh")

	rec = do(t, h, http.MethodPost, "/auth/refresh", "", `{"refreshToken":"refresh"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(decode(t, rec).Data), "access2")

	rec = do(t, h, http.MethodPost, "/auth/refresh", "", `{"refreshToken":"stale"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestPrivateRoutesRequireToken(t *testing.T) {
	h := newTestRouter(newStubBids())
	rec := do(t, h, http.MethodGet, "/me", "", "")
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, "AUTH", decode(t, rec).Error.Code)
}

func TestMe(t *testing.T) {
	h := newTestRouter(newStubBids())
	rec := do(t, h, http.MethodGet, "/me", "coop", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var me struct {
		ID              int64    `json:"id"`
		RoleNames       []string `json:"roleNames"`
		PermissionNames []string `json:"permissionNames"`
		IsAdmin         bool     `json:"isAdmin"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &me))
	require.Equal(t, int64(1), me.ID)
	require.Equal(t, []string{"Coop Admin"}, me.RoleNames)
	require.Equal(t, []string{"view_all", "edit_all"}, me.PermissionNames)
	require.True(t, me.IsAdmin)
}

func TestDashboardGate(t *testing.T) {
	h := newTestRouter(newStubBids())

	rec := do(t, h, http.MethodGet, "/dashboard/metrics", "coop", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", decode(t, rec).Error.Code)

	rec = do(t, h, http.MethodGet, "/dashboard/metrics", "district", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{
		"active_bids": 5,
		"pending_approvals": 0,
		"member_districts": 8,
		"active_bids_change": "+2 from last month",
		"pending_approvals_change": "",
		"vendors_or_districts_change": ""
	}`, string(decode(t, rec).Data))
}

func TestListBidsScopesAndClamps(t *testing.T) {
	bids := newStubBids()
	h := newTestRouter(bids)

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/bids", "nobody", "").Code)
	require.Nil(t, bids.pageParams)

	rec := do(t, h, http.MethodGet, "/bids?page=2&limit=500&search=milk&userId=3&status=Opened", "coop", "")
	require.Equal(t, http.StatusOK, rec.Code)
	p := bids.pageParams
	require.Equal(t, 2, p.Page)
	require.Equal(t, 50, p.Limit)
	require.Equal(t, "milk", p.Search)
	require.Equal(t, int64(3), *p.UserID)
	require.Equal(t, bid.StatusOpened, *p.Status)
	require.Equal(t, int64(10), *p.CooperativeID)
	require.Nil(t, p.DistrictID)
}

func TestListBidsRejectsUnknownStatus(t *testing.T) {
	h := newTestRouter(newStubBids())
	rec := do(t, h, http.MethodGet, "/bids?status=Closed", "viewer", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	env := decode(t, rec)
	require.Equal(t, "VALIDATION", env.Error.Code)
	require.Equal(t, "status", env.Error.Details["field"])
	require.Len(t, env.Error.Details["allowed"], len(bid.Statuses))
}

func TestCreateBid(t *testing.T) {
	bids := newStubBids()
	h := newTestRouter(bids)

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/bids", "viewer", `{"name":"x"}`).Code)

	rec := do(t, h, http.MethodPost, "/bids", "coop", `{"name":"   "}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "name is required and cannot be empty", decode(t, rec).Error.Message)

	rec = do(t, h, http.MethodPost, "/bids", "coop", `{"name":"Buses"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Equal(t, int64(10), *bids.created.CooperativeID)
	require.Equal(t, int64(1), *bids.created.UserID)
}

func TestGetBid(t *testing.T) {
	h := newTestRouter(newStubBids())

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/bids/7", "viewer", "").Code)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/bids/99", "coop", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/bids/abc", "coop", "").Code)

	rec := do(t, h, http.MethodGet, "/bids/7", "bidadmin", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var details struct {
		Approvals bid.Approvals `json:"approvals"`
	}
	require.NoError(t, json.Unmarshal(decode(t, rec).Data, &details))
	require.Equal(t, "Pending Approval", details.Approvals.TermsAndConditions)
}

func TestUpdateBidPermissions(t *testing.T) {
	h := newTestRouter(newStubBids())

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPatch, "/bids/7", "viewer", `{"status":"Awarded"}`).Code)

	rec := do(t, h, http.MethodPatch, "/bids/7", "bidadmin", `{"status":"Awarded"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(decode(t, rec).Data), `"status":"Awarded"`)

	rec = do(t, h, http.MethodPatch, "/bids/7", "coop", `{"status":"Closed"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteBid(t *testing.T) {
	bids := newStubBids()
	h := newTestRouter(bids)

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodDelete, "/bids/7", "viewer", "").Code)
	require.Equal(t, http.StatusNoContent, do(t, h, http.MethodDelete, "/bids/7", "coop", "").Code)
	require.Equal(t, []int64{7}, bids.deleted)
	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodDelete, "/bids/8", "coop", "").Code)
}

func TestManagedBids(t *testing.T) {
	h := newTestRouter(newStubBids())
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/bids/managed/3", "viewer", "").Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/bids/managed/1", "viewer", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/bids/managed/3", "coop", "").Code)
}

func TestOrganizationRoutes(t *testing.T) {
	bids := newStubBids()
	h := newTestRouter(bids)

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/cooperatives/11/bids", "coop", "").Code)
	rec := do(t, h, http.MethodGet, "/cooperatives/10/bids", "coop", "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	require.Equal(t, "internal error", decode(t, rec).Error.Message)

	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/districts/5/bids", "district", "").Code)
	require.Equal(t, int64(5), bids.districtID)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/districts/6/bids", "district", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/districts/5/bids", "viewer", "").Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/districts/5/bids", "nobody", "").Code)

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/schools/3/bids", "viewer", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/schools/3/bids", "district", "").Code)
	require.Equal(t, int64(3), *bids.scope.SchoolID)
	require.Equal(t, int64(5), *bids.scope.DistrictID)
}

func TestBidRoutesStayInsideOrganization(t *testing.T) {
	bids := newStubBids()
	h := newTestRouter(bids)

	rec := do(t, h, http.MethodGet, "/bids/9", "coop", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "FORBIDDEN", decode(t, rec).Error.Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPatch, "/bids/9", "coop", `{"name":"renamed"}`).Code)
	require.Equal(t, "Buses", bids.bids[9].Name)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodDelete, "/bids/9", "coop", "").Code)
	require.Empty(t, bids.deleted)

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodGet, "/bids/11", "coop", "").Code)
	require.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/bids/11", "district", "").Code)
}

func TestCreateBidRejectsForeignOrganization(t *testing.T) {
	bids := newStubBids()
	h := newTestRouter(bids)

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/bids", "district", `{"name":"Buses","cooperativeId":99}`).Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPost, "/bids", "district", `{"name":"Buses","districtId":6}`).Code)
	require.Nil(t, bids.created)

	require.Equal(t, http.StatusCreated, do(t, h, http.MethodPost, "/bids", "district", `{"name":"Buses","districtId":5}`).Code)
	require.Equal(t, int64(5), *bids.created.DistrictID)
}

func TestUpdateBidCannotMoveOrganization(t *testing.T) {
	bids := newStubBids()
	h := newTestRouter(bids)

	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPatch, "/bids/7", "bidadmin", `{"cooperativeId":99}`).Code)
	require.Equal(t, http.StatusForbidden, do(t, h, http.MethodPatch, "/bids/7", "coop", `{"cooperativeId":99}`).Code)
	require.Equal(t, int64(10), *bids.bids[7].CooperativeID)

	rec := do(t, h, http.MethodPatch, "/bids/7", "coop", `{"districtId":5,"note":null}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, string(decode(t, rec).Data), `"note":null`)
	require.Equal(t, int64(5), *bids.bids[7].DistrictID)
	require.Equal(t, int64(10), *bids.bids[7].CooperativeID)
}
