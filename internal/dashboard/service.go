package dashboard

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/metrics"
)

const (
	monthWindow = 30 * 24 * time.Hour
	weekWindow  = 7 * 24 * time.Hour
)

// BidCounter counts active bids.
type BidCounter interface {
	CountActive(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	CountActiveByOrganization(ctx context.Context, f authz.OrganizationFilter) (int, error)
	CountActiveSinceByOrganization(ctx context.Context, since time.Time, f authz.OrganizationFilter) (int, error)
}

// VendorCounter counts active vendors and pending approvals.
type VendorCounter interface {
	CountActive(ctx context.Context) (int, error)
	CountActiveSince(ctx context.Context, since time.Time) (int, error)
	CountActiveByOrganization(ctx context.Context, f authz.OrganizationFilter) (int, error)
	CountActiveSinceByOrganization(ctx context.Context, since time.Time, f authz.OrganizationFilter) (int, error)
	CountPendingApprovals(ctx context.Context) (int, error)
	CountPendingApprovalsSince(ctx context.Context, since time.Time) (int, error)
	CountPendingApprovalsByOrganization(ctx context.Context, f authz.OrganizationFilter) (int, error)
	CountPendingApprovalsSinceByOrganization(ctx context.Context, since time.Time, f authz.OrganizationFilter) (int, error)
}

// DistrictCounter counts member districts of a cooperative.
type DistrictCounter interface {
	CountByCooperativeID(ctx context.Context, cooperativeID int64) (int, error)
	CountByCooperativeIDSince(ctx context.Context, cooperativeID int64, since time.Time) (int, error)
}

// Metrics is the dashboard summary. Exactly one of MemberDistricts and
// ActiveVendors is set, depending on whether the user sits at a cooperative.
type Metrics struct {
	ActiveBids               int    `json:"active_bids"`
	PendingApprovals         int    `json:"pending_approvals"`
	MemberDistricts          *int   `json:"member_districts,omitempty"`
	ActiveVendors            *int   `json:"active_vendors,omitempty"`
	ActiveBidsChange         string `json:"active_bids_change"`
	PendingApprovalsChange   string `json:"pending_approvals_change"`
	VendorsOrDistrictsChange string `json:"vendors_or_districts_change"`
}

// Service aggregates dashboard counts scoped to the user's organization.
type Service struct {
	bids      BidCounter
	vendors   VendorCounter
	districts DistrictCounter
	now       func() time.Time
}

// NewService creates the aggregator.
func NewService(bids BidCounter, vendors VendorCounter, districts DistrictCounter) *Service {
	return &Service{bids: bids, vendors: vendors, districts: districts, now: time.Now}
}

// GetDashboardMetrics fans out the counts and fails as a whole when any of them fails.
func (s *Service) GetDashboardMetrics(ctx context.Context, user *authz.User) (*Metrics, error) {
	start := time.Now()
	now := s.now()
	thirtyDaysAgo := now.Add(-monthWindow)
	sevenDaysAgo := now.Add(-weekWindow)

	filter := authz.ResolveOrganizationFilter(user)
	hasFilter := !filter.IsEmpty()

	var activeBids, pendingApprovals, activeBidsLastMonth, pendingApprovalsLastWeek int

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if hasFilter {
			activeBids, err = s.bids.CountActiveByOrganization(gctx, filter)
		} else {
			activeBids, err = s.bids.CountActive(gctx)
		}
		return err
	})
	g.Go(func() (err error) {
		if hasFilter {
			pendingApprovals, err = s.vendors.CountPendingApprovalsByOrganization(gctx, filter)
		} else {
			pendingApprovals, err = s.vendors.CountPendingApprovals(gctx)
		}
		return err
	})
	g.Go(func() (err error) {
		if hasFilter {
			activeBidsLastMonth, err = s.bids.CountActiveSinceByOrganization(gctx, thirtyDaysAgo, filter)
		} else {
			activeBidsLastMonth, err = s.bids.CountActiveSince(gctx, thirtyDaysAgo)
		}
		return err
	})
	g.Go(func() (err error) {
		if hasFilter {
			pendingApprovalsLastWeek, err = s.vendors.CountPendingApprovalsSinceByOrganization(gctx, sevenDaysAgo, filter)
		} else {
			pendingApprovalsLastWeek, err = s.vendors.CountPendingApprovalsSince(gctx, sevenDaysAgo)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := &Metrics{
		ActiveBids:             activeBids,
		PendingApprovals:       pendingApprovals,
		ActiveBidsChange:       activeBidsChange(activeBidsLastMonth),
		PendingApprovalsChange: pendingApprovalsChange(pendingApprovalsLastWeek),
	}

	scope := "vendors"
	var err error
	if user != nil && user.CooperativeID != nil {
		scope = "cooperative"
		err = s.fillMemberDistricts(ctx, *user.CooperativeID, thirtyDaysAgo, out)
	} else {
		err = s.fillActiveVendors(ctx, filter, thirtyDaysAgo, out)
	}
	if err != nil {
		return nil, err
	}

	metrics.DashboardAggregation.WithLabelValues(scope).Observe(time.Since(start).Seconds())
	return out, nil
}

func (s *Service) fillMemberDistricts(ctx context.Context, cooperativeID int64, since time.Time, out *Metrics) error {
	var total, recent int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		total, err = s.districts.CountByCooperativeID(gctx, cooperativeID)
		return err
	})
	g.Go(func() (err error) {
		recent, err = s.districts.CountByCooperativeIDSince(gctx, cooperativeID, since)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	out.MemberDistricts = &total
	out.VendorsOrDistrictsChange = newThisMonth(recent, "No new districts this month")
	return nil
}

func (s *Service) fillActiveVendors(ctx context.Context, filter authz.OrganizationFilter, since time.Time, out *Metrics) error {
	hasFilter := !filter.IsEmpty()
	var total, recent int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if hasFilter {
			total, err = s.vendors.CountActiveByOrganization(gctx, filter)
		} else {
			total, err = s.vendors.CountActive(gctx)
		}
		return err
	})
	g.Go(func() (err error) {
		if hasFilter {
			recent, err = s.vendors.CountActiveSinceByOrganization(gctx, since, filter)
		} else {
			recent, err = s.vendors.CountActiveSince(gctx, since)
		}
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	out.ActiveVendors = &total
	out.VendorsOrDistrictsChange = newThisMonth(recent, "No new vendors this month")
	return nil
}

func activeBidsChange(n int) string {
	if n > 0 {
		return fmt.Sprintf("+%d from last month", n)
	}
	return "No change from last month"
}

// The minus sign is part of the published wording even though n is a count.
func pendingApprovalsChange(n int) string {
	if n > 0 {
		return fmt.Sprintf("-%d from last week", n)
	}
	return "No change from last week"
}

func newThisMonth(n int, none string) string {
	if n > 0 {
		return fmt.Sprintf("+%d new this month", n)
	}
	return none
}
