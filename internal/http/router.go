package http

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/bid"
	"github.com/bidhub/procurement/internal/config"
	"github.com/bidhub/procurement/internal/dashboard"
	httpmiddleware "github.com/bidhub/procurement/internal/http/middleware"
	"github.com/bidhub/procurement/internal/service"
)

// AuthAPI is the session surface the handlers need.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*service.LoginResult, error)
	Refresh(ctx context.Context, rawToken string) (*service.LoginResult, error)
	Logout(ctx context.Context, rawToken string) error
	ResolveUser(ctx context.Context, token string) (*authz.User, error)
}

// BidService is the bid surface the handlers need.
type BidService interface {
	CreateBid(ctx context.Context, in bid.CreateInput) (*bid.Bid, error)
	GetBidByID(ctx context.Context, id int64) (*bid.Bid, error)
	GetBidDetailsByID(ctx context.Context, id int64) (*bid.Details, error)
	UpdateBid(ctx context.Context, id int64, in bid.UpdateInput) (*bid.Bid, error)
	DeleteBid(ctx context.Context, id int64) error
	FindByScope(ctx context.Context, f bid.ScopeFilter) ([]bid.Bid, error)
	FindByBidManager(ctx context.Context, userID int64) ([]bid.Bid, error)
	FindByDistrictID(ctx context.Context, districtID int64) ([]bid.Bid, error)
	FindByCooperativeID(ctx context.Context, cooperativeID int64) ([]bid.Bid, error)
	FindPaginated(ctx context.Context, p bid.PageParams) (*bid.Page, error)
}

// DashboardService computes the dashboard summary.
type DashboardService interface {
	GetDashboardMetrics(ctx context.Context, user *authz.User) (*dashboard.Metrics, error)
}

// ReadyCheck is one dependency probed by /ready.
type ReadyCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps are the collaborators injected into the router.
type Deps struct {
	Auth        AuthAPI
	Bids        BidService
	Dashboard   DashboardService
	ReadyChecks []ReadyCheck
}

type Handler struct {
	cfg           *config.Config
	auth          AuthAPI
	bids          BidService
	dashboard     DashboardService
	readyChecks   []ReadyCheck
	publicLimiter *httpmiddleware.RateLimiter
	authLimiter   *httpmiddleware.RateLimiter
	orgLimiter    *httpmiddleware.RateLimiter
	devCookies    bool
}

// NewRouter wires middleware and routes.
func NewRouter(cfg *config.Config, deps Deps) http.Handler {
	devCookies := false
	for _, origin := range cfg.AllowOrigins {
		if strings.Contains(origin, "localhost") {
			devCookies = true
			break
		}
	}

	h := &Handler{
		cfg:           cfg,
		auth:          deps.Auth,
		bids:          deps.Bids,
		dashboard:     deps.Dashboard,
		readyChecks:   deps.ReadyChecks,
		publicLimiter: httpmiddleware.NewRateLimiter("public", cfg.RateLimitPublic.RequestsPerSecond, cfg.RateLimitPublic.Burst),
		authLimiter:   httpmiddleware.NewRateLimiter("user", cfg.RateLimitAuth.RequestsPerSecond, cfg.RateLimitAuth.Burst),
		orgLimiter:    httpmiddleware.NewRateLimiter("organization", cfg.RateLimitOrg.RequestsPerSecond, cfg.RateLimitOrg.Burst),
		devCookies:    devCookies,
	}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(httpmiddleware.Logging)
	r.Use(httpmiddleware.Recover)
	if cfg.MetricsEnabled {
		r.Use(httpmiddleware.Metrics)
	}
	r.Use(httpmiddleware.CORS(cfg.AllowOrigins))

	r.Group(func(public chi.Router) {
		public.Use(httpmiddleware.IPRateLimit(h.publicLimiter))

		public.Get("/health", h.Health)
		public.Get("/ready", h.Ready)
		if cfg.MetricsEnabled {
			public.Method(http.MethodGet, "/metrics", promhttp.Handler())
		}

		public.Route("/auth", func(auth chi.Router) {
			auth.Post("/login", h.Login)
			auth.Post("/refresh", h.Refresh)
			auth.Post("/logout", h.Logout)
		})
	})

	r.Group(func(private chi.Router) {
		private.Use(httpmiddleware.Auth(deps.Auth))
		private.Use(httpmiddleware.UserRateLimit(h.authLimiter))
		private.Use(httpmiddleware.Scope)
		private.Use(httpmiddleware.OrganizationRateLimit(h.orgLimiter))

		private.Get("/me", h.Me)
		private.With(httpmiddleware.RequireDashboardRole).Get("/dashboard/metrics", h.DashboardMetrics)

		private.Route("/bids", func(b chi.Router) {
			b.With(httpmiddleware.RequireBidViewer).Get("/", h.ListBids)
			b.Post("/", h.CreateBid)
			b.Get("/managed/{userId}", h.ListManagedBids)
			b.Get("/{id}", h.GetBid)
			b.Patch("/{id}", h.UpdateBid)
			b.Delete("/{id}", h.DeleteBid)
		})

		private.Get("/cooperatives/{id}/bids", h.ListCooperativeBids)
		private.Get("/districts/{id}/bids", h.ListDistrictBids)
		private.With(httpmiddleware.RequireSchoolManager).Get("/schools/{id}/bids", h.ListSchoolBids)
	})

	return r
}

// Health is a liveness probe.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready probes every dependency and reports each failure.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	failures := map[string]string{}
	for _, c := range h.readyChecks {
		if err := c.Check(ctx); err != nil {
			failures[c.Name] = err.Error()
		}
	}
	if len(failures) > 0 {
		WriteError(w, http.StatusServiceUnavailable, "INTERNAL", "dependencies unavailable", failures)
		return
	}

	WriteJSON(w, http.StatusOK, map[string]bool{"ready": true})
}
