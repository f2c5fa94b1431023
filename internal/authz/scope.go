package authz

// OrganizationFilter restricts queries to a cooperative or a district. At most
// one field is set; an empty filter means no organizational restriction.
type OrganizationFilter struct {
	CooperativeID *int64
	DistrictID    *int64
}

// IsEmpty reports whether the filter carries no restriction.
func (f OrganizationFilter) IsEmpty() bool {
	return f.CooperativeID == nil && f.DistrictID == nil
}

// Normalize applies cooperative-over-district precedence to a filter built
// from arbitrary input.
func (f OrganizationFilter) Normalize() OrganizationFilter {
	if f.CooperativeID != nil {
		return OrganizationFilter{CooperativeID: f.CooperativeID}
	}
	return OrganizationFilter{DistrictID: f.DistrictID}
}

// ResolveOrganizationFilter derives the filter from the user's home fields.
// Cooperative wins over district when both are set.
func ResolveOrganizationFilter(u *User) OrganizationFilter {
	if u == nil {
		return OrganizationFilter{}
	}
	if u.CooperativeID != nil {
		id := *u.CooperativeID
		return OrganizationFilter{CooperativeID: &id}
	}
	if u.DistrictID != nil {
		id := *u.DistrictID
		return OrganizationFilter{DistrictID: &id}
	}
	return OrganizationFilter{}
}

// CanAccessOrganization reports whether an entity owned by the given
// cooperative and district falls inside the user's organization. Group and
// super admins reach every organization; everyone else needs a resolved
// filter that matches, so entities with no owner stay out of reach.
func CanAccessOrganization(u *User, cooperativeID, districtID *int64) bool {
	if HasAnyRole(u, RoleGroupAdmin, RoleSuperAdmin) {
		return true
	}
	f := ResolveOrganizationFilter(u)
	switch {
	case f.CooperativeID != nil:
		return cooperativeID != nil && *cooperativeID == *f.CooperativeID
	case f.DistrictID != nil:
		return districtID != nil && *districtID == *f.DistrictID
	}
	return false
}
