package http

import (
	"net/http"
	"strings"

	"github.com/bidhub/procurement/internal/authz"
	"github.com/bidhub/procurement/internal/bid"
	httpmiddleware "github.com/bidhub/procurement/internal/http/middleware"
)

// ListBids pages through bids visible to the user's organization.
func (h *Handler) ListBids(w http.ResponseWriter, r *http.Request) {
	params, err := h.pageParams(r)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	page, err := h.bids.FindPaginated(r.Context(), params)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, page)
}

func (h *Handler) pageParams(r *http.Request) (bid.PageParams, error) {
	var (
		p   bid.PageParams
		err error
	)
	if p.Page, err = queryInt(r, "page", 1); err != nil {
		return p, err
	}
	if p.Limit, err = queryInt(r, "limit", 10); err != nil {
		return p, err
	}
	if p.Limit > h.cfg.PaginationMaxLimit {
		p.Limit = h.cfg.PaginationMaxLimit
	}
	if p.UserID, err = queryInt64(r, "userId"); err != nil {
		return p, err
	}
	if raw := queryString(r, "status"); raw != nil {
		s, err := bid.ParseStatus(*raw)
		if err != nil {
			return p, err
		}
		p.Status = &s
	}
	p.Search = strings.TrimSpace(r.URL.Query().Get("search"))
	p.BidYear = queryString(r, "bidYear")
	p.AwardType = queryString(r, "awardType")

	scope := httpmiddleware.GetScope(r.Context())
	p.CooperativeID = scope.CooperativeID
	p.DistrictID = scope.DistrictID
	return p, nil
}

// CreateBid stores a new bid, defaulting its organization to the creator's.
func (h *Handler) CreateBid(w http.ResponseWriter, r *http.Request) {
	user := httpmiddleware.CurrentUser(r.Context())
	if !authz.HasPermission(user, authz.PermCreateBids) && !authz.IsAdmin(user) {
		httpmiddleware.Deny(w, r, "create_bids")
		return
	}

	var in bid.CreateInput
	if err := decodeJSON(r, &in); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON", nil)
		return
	}
	if in.CooperativeID == nil && in.DistrictID == nil {
		scope := httpmiddleware.GetScope(r.Context())
		in.CooperativeID = scope.CooperativeID
		in.DistrictID = scope.DistrictID
	}
	if !authz.CanAccessOrganization(user, in.CooperativeID, in.DistrictID) {
		httpmiddleware.Deny(w, r, "bid_organization")
		return
	}
	if in.UserID == nil {
		in.UserID = &user.ID
	}

	created, err := h.bids.CreateBid(r.Context(), in)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, created)
}

// GetBid returns the bid details read model.
func (h *Handler) GetBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	user := httpmiddleware.CurrentUser(r.Context())
	if !authz.CanViewBid(user, id) && !authz.IsAdmin(user) {
		httpmiddleware.Deny(w, r, "view_bid")
		return
	}

	details, err := h.bids.GetBidDetailsByID(r.Context(), id)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if !bidInScope(user, &details.Bid) {
		httpmiddleware.Deny(w, r, "bid_organization")
		return
	}
	WriteJSON(w, http.StatusOK, details)
}

// UpdateBid applies a partial update.
func (h *Handler) UpdateBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	user := httpmiddleware.CurrentUser(r.Context())
	if !canEditBid(user, id) {
		httpmiddleware.Deny(w, r, "edit_bid")
		return
	}

	var in bid.UpdateInput
	if err := decodeJSON(r, &in); err != nil {
		WriteError(w, http.StatusBadRequest, "VALIDATION", "invalid JSON", nil)
		return
	}

	current, ok := h.loadBidInScope(w, r, user, id)
	if !ok {
		return
	}
	if in.MovesOrganization() {
		cooperativeID, districtID := in.Organization(current)
		if !authz.CanAccessOrganization(user, cooperativeID, districtID) {
			httpmiddleware.Deny(w, r, "bid_organization")
			return
		}
	}

	updated, err := h.bids.UpdateBid(r.Context(), id, in)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, updated)
}

func canEditBid(u *authz.User, bidID int64) bool {
	if authz.HasPermission(u, authz.PermEditBids) && authz.HasBidAccess(u, bidID) {
		return true
	}
	return authz.IsBidAdminFor(u, bidID) || authz.IsAdmin(u)
}

// bidInScope admits managers of the bid and users whose organization owns it.
func bidInScope(u *authz.User, b *bid.Bid) bool {
	return authz.HasBidAccess(u, b.ID) || authz.CanAccessOrganization(u, b.CooperativeID, b.DistrictID)
}

// loadBidInScope loads a live bid and denies it when it sits outside the user's
// organization. The response is written when ok is false.
func (h *Handler) loadBidInScope(w http.ResponseWriter, r *http.Request, u *authz.User, id int64) (*bid.Bid, bool) {
	b, err := h.bids.GetBidByID(r.Context(), id)
	if err != nil {
		WriteAppError(w, r, err)
		return nil, false
	}
	if !bidInScope(u, b) {
		httpmiddleware.Deny(w, r, "bid_organization")
		return nil, false
	}
	return b, true
}

// DeleteBid soft-deletes a bid.
func (h *Handler) DeleteBid(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	user := httpmiddleware.CurrentUser(r.Context())
	if !authz.HasPermission(user, authz.PermDeleteBids) && !authz.IsAdmin(user) {
		httpmiddleware.Deny(w, r, "delete_bids")
		return
	}
	if _, ok := h.loadBidInScope(w, r, user, id); !ok {
		return
	}

	if err := h.bids.DeleteBid(r.Context(), id); err != nil {
		WriteAppError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListManagedBids lists bids a user owns or manages. Users see their own;
// admins see anyone's.
func (h *Handler) ListManagedBids(w http.ResponseWriter, r *http.Request) {
	userID, err := parseIDParam(r, "userId")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	user := httpmiddleware.CurrentUser(r.Context())
	if user.ID != userID && !authz.IsAdmin(user) {
		httpmiddleware.Deny(w, r, "managed_bids")
		return
	}

	bids, err := h.bids.FindByBidManager(r.Context(), userID)
	writeBidList(w, r, bids, err)
}

// ListCooperativeBids lists a cooperative's bids.
func (h *Handler) ListCooperativeBids(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	if !authz.HasCooperativeAccess(httpmiddleware.CurrentUser(r.Context()), id) {
		httpmiddleware.Deny(w, r, "cooperative_access")
		return
	}

	bids, err := h.bids.FindByCooperativeID(r.Context(), id)
	writeBidList(w, r, bids, err)
}

// ListDistrictBids lists a district's bids for its managers and for bid
// viewers homed in that district.
func (h *Handler) ListDistrictBids(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	user := httpmiddleware.CurrentUser(r.Context())
	homeViewer := authz.CanViewBids(user) && user.DistrictID != nil && *user.DistrictID == id
	if !authz.CanManageDistrict(user, id) && !homeViewer {
		httpmiddleware.Deny(w, r, "district_access")
		return
	}

	bids, err := h.bids.FindByDistrictID(r.Context(), id)
	writeBidList(w, r, bids, err)
}

// ListSchoolBids lists a school's bids within the user's organization.
func (h *Handler) ListSchoolBids(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	scope := httpmiddleware.GetScope(r.Context())
	bids, err := h.bids.FindByScope(r.Context(), bid.ScopeFilter{
		CooperativeID: scope.CooperativeID,
		DistrictID:    scope.DistrictID,
		SchoolID:      &id,
	})
	writeBidList(w, r, bids, err)
}

func writeBidList(w http.ResponseWriter, r *http.Request, bids []bid.Bid, err error) {
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"bids": bids})
}
