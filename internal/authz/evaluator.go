package authz

// The checks below are pure: they read the in-memory User only and never fail.
// A nil user or empty role lists simply yield false.

// HasRole reports whether role appears in the platform or bid roles, in any scope.
func HasRole(u *User, role RoleType) bool {
	for _, r := range u.allRoles() {
		if r.Type == role {
			return true
		}
	}
	return false
}

// HasAnyRole is the disjunction of HasRole over roles. An empty list is false.
func HasAnyRole(u *User, roles ...RoleType) bool {
	for _, role := range roles {
		if HasRole(u, role) {
			return true
		}
	}
	return false
}

// HasPermission reports whether any role carries perm, independent of scope.
func HasPermission(u *User, perm Permission) bool {
	for _, r := range u.allRoles() {
		for _, p := range r.Permissions {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission is the disjunction of HasPermission over perms.
func HasAnyPermission(u *User, perms ...Permission) bool {
	for _, perm := range perms {
		if HasPermission(u, perm) {
			return true
		}
	}
	return false
}

// HasBidAccess reports whether bidID is in the user's managed bids.
func HasBidAccess(u *User, bidID int64) bool {
	if u == nil {
		return false
	}
	for _, b := range u.ManagedBids {
		if b.ID == bidID {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user is a group, district or coop admin.
func IsAdmin(u *User) bool {
	return HasAnyRole(u, RoleGroupAdmin, RoleDistrictAdmin, RoleCoopAdmin)
}

// IsBidAdmin reports whether the user holds Bid Administrator anywhere.
func IsBidAdmin(u *User) bool {
	return HasRole(u, RoleBidAdministrator)
}

// IsBidAdminFor requires Bid Administrator and the bid among the managed bids.
func IsBidAdminFor(u *User, bidID int64) bool {
	return IsBidAdmin(u) && HasBidAccess(u, bidID)
}

// CanViewBids is the scope-agnostic bid visibility check.
func CanViewBids(u *User) bool {
	return HasAnyPermission(u, PermViewBids, PermViewAll) || IsBidAdmin(u)
}

// CanViewBid checks visibility of one bid.
func CanViewBid(u *User, bidID int64) bool {
	if HasAnyPermission(u, PermViewBids, PermViewAll) && HasBidAccess(u, bidID) {
		return true
	}
	return IsBidAdminFor(u, bidID)
}

// CanManageDistrict compares against the user's home district, not the
// scope id of the role that carries the permission. Group admins always pass.
func CanManageDistrict(u *User, districtID int64) bool {
	if HasRole(u, RoleGroupAdmin) {
		return true
	}
	if u == nil || u.DistrictID == nil || *u.DistrictID != districtID {
		return false
	}
	return HasAnyPermission(u, PermManageDistricts, PermEditDistrict, PermEditAll)
}

// CanManageSchool requires a school permission plus a home district, or an admin role.
func CanManageSchool(u *User) bool {
	if HasAnyRole(u, RoleGroupAdmin, RoleDistrictAdmin) {
		return true
	}
	return u != nil && u.DistrictID != nil &&
		HasAnyPermission(u, PermManageSchools, PermEditSchool, PermEditAll)
}

// HasCooperativeAccess matches the home cooperative, or any group admin.
func HasCooperativeAccess(u *User, cooperativeID int64) bool {
	if u != nil && u.CooperativeID != nil && *u.CooperativeID == cooperativeID {
		return true
	}
	return HasRole(u, RoleGroupAdmin)
}

// HasRoleScope reports whether any role is scoped at the given level.
func HasRoleScope(u *User, scope ScopeType) bool {
	for _, r := range u.allRoles() {
		if r.Scope.Type == scope {
			return true
		}
	}
	return false
}

// IsDemoAccount reports the demo flag.
func IsDemoAccount(u *User) bool {
	return u != nil && u.DemoAccount
}

// RoleNames returns the distinct role names, platform roles first.
func RoleNames(u *User) []string {
	seen := make(map[RoleType]struct{})
	names := []string{}
	for _, r := range u.allRoles() {
		if _, ok := seen[r.Type]; ok {
			continue
		}
		seen[r.Type] = struct{}{}
		names = append(names, string(r.Type))
	}
	return names
}

// PermissionNames returns the deduplicated union of permissions across both lists.
func PermissionNames(u *User) []string {
	seen := make(map[Permission]struct{})
	names := []string{}
	for _, r := range u.allRoles() {
		for _, p := range r.Permissions {
			if _, ok := seen[p]; ok {
				continue
			}
			seen[p] = struct{}{}
			names = append(names, string(p))
		}
	}
	return names
}
