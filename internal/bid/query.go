package bid

import (
	"strconv"
	"strings"

	"github.com/bidhub/procurement/internal/authz"
)

// ScopeFilter selects bids by organization. CooperativeID wins over
// DistrictID; SchoolID is ANDed in on its own.
type ScopeFilter struct {
	CooperativeID *int64
	DistrictID    *int64
	SchoolID      *int64
}

// PageParams drives FindPaginated. Page and Limit are clamped by the caller.
type PageParams struct {
	Page          int
	Limit         int
	Search        string
	CooperativeID *int64
	DistrictID    *int64
	UserID        *int64
	BidYear       *string
	Status        *Status
	AwardType     *string
}

// Page is one page of bids plus the totals needed for navigation.
type Page struct {
	Bids       []Bid `json:"bids"`
	Total      int   `json:"total"`
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	TotalPages int   `json:"totalPages"`
}

// offset converts page/limit into a row offset.
func (p PageParams) offset() int {
	if p.Page < 1 {
		return 0
	}
	return (p.Page - 1) * p.Limit
}

// where accumulates AND-ed conditions with positional arguments.
type where struct {
	conds []string
	args  []any
}

func (w *where) arg(v any) string {
	w.args = append(w.args, v)
	return "$" + strconv.Itoa(len(w.args))
}

func (w *where) add(cond string) {
	w.conds = append(w.conds, cond)
}

func (w *where) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	return "WHERE " + strings.Join(w.conds, " AND ")
}

func (w *where) organization(f authz.OrganizationFilter) {
	f = f.Normalize()
	switch {
	case f.CooperativeID != nil:
		w.add("b.cooperative_id = " + w.arg(*f.CooperativeID))
	case f.DistrictID != nil:
		w.add("b.district_id = " + w.arg(*f.DistrictID))
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// search matches id (when numeric), bid name, or manager first/last name.
// The alternatives are wrapped in a single group so later AND-ed filters
// apply to the whole set.
func (w *where) search(term string) {
	term = strings.TrimSpace(term)
	if term == "" {
		return
	}
	var alts []string
	if n, err := strconv.ParseInt(term, 10, 64); err == nil {
		alts = append(alts, "b.id = "+w.arg(n))
	}
	like := w.arg("%" + likeEscaper.Replace(term) + "%")
	alts = append(alts,
		"b.name ILIKE "+like,
		"u.first_name ILIKE "+like,
		"u.last_name ILIKE "+like,
	)
	w.add("(" + strings.Join(alts, " OR ") + ")")
}

func paginatedWhere(p PageParams) *where {
	w := &where{}
	w.add("b.is_deleted = FALSE")
	w.search(p.Search)
	w.organization(authz.OrganizationFilter{CooperativeID: p.CooperativeID, DistrictID: p.DistrictID})
	if p.UserID != nil {
		w.add("b.user_id = " + w.arg(*p.UserID))
	}
	if p.BidYear != nil {
		w.add("b.bid_year = " + w.arg(*p.BidYear))
	}
	if p.Status != nil {
		w.add("b.status = " + w.arg(string(*p.Status)))
	}
	if p.AwardType != nil {
		w.add("b.award_type = " + w.arg(*p.AwardType))
	}
	return w
}

func scopeWhere(f ScopeFilter) *where {
	w := &where{}
	w.add("b.is_deleted = FALSE")
	w.organization(authz.OrganizationFilter{CooperativeID: f.CooperativeID, DistrictID: f.DistrictID})
	if f.SchoolID != nil {
		w.add("b.school_id = " + w.arg(*f.SchoolID))
	}
	return w
}
