package authz

import "time"

// RoleType enumerates platform and bid roles. Both lists share this space.
type RoleType string

const (
	RoleGroupAdmin       RoleType = "Group Admin"
	RoleCoopAdmin        RoleType = "Coop Admin"
	RoleDistrictAdmin    RoleType = "District Admin"
	RoleSchoolAdmin      RoleType = "School Admin"
	RoleViewer           RoleType = "Viewer"
	RoleBidAdministrator RoleType = "Bid Administrator"
	RoleBidViewer        RoleType = "Bid Viewer"
	RoleSuperAdmin       RoleType = "Super Admin"
)

// Valid reports whether r is one of the known role types.
func (r RoleType) Valid() bool {
	switch r {
	case RoleGroupAdmin, RoleCoopAdmin, RoleDistrictAdmin, RoleSchoolAdmin,
		RoleViewer, RoleBidAdministrator, RoleBidViewer, RoleSuperAdmin:
		return true
	}
	return false
}

// ParseRoleType maps a stored role name to its RoleType.
func ParseRoleType(name string) (RoleType, bool) {
	r := RoleType(name)
	return r, r.Valid()
}

// Permission is a name from the closed permission set.
type Permission string

const (
	PermManageUsers     Permission = "manage_users"
	PermManageDistricts Permission = "manage_districts"
	PermManageSchools   Permission = "manage_schools"
	PermViewAll         Permission = "view_all"
	PermEditAll         Permission = "edit_all"
	PermEditDistrict    Permission = "edit_district"
	PermViewDistrict    Permission = "view_district"
	PermEditSchool      Permission = "edit_school"
	PermViewSchool      Permission = "view_school"
	PermCreateBids      Permission = "create_bids"
	PermEditBids        Permission = "edit_bids"
	PermDeleteBids      Permission = "delete_bids"
	PermAwardBids       Permission = "award_bids"
	PermManageBidUsers  Permission = "manage_bid_users"
	PermViewBids        Permission = "view_bids"
)

// Valid reports whether p belongs to the permission set.
func (p Permission) Valid() bool {
	switch p {
	case PermManageUsers, PermManageDistricts, PermManageSchools, PermViewAll,
		PermEditAll, PermEditDistrict, PermViewDistrict, PermEditSchool,
		PermViewSchool, PermCreateBids, PermEditBids, PermDeleteBids,
		PermAwardBids, PermManageBidUsers, PermViewBids:
		return true
	}
	return false
}

// ScopeType is the organizational level a role applies to.
type ScopeType string

const (
	ScopePlatform ScopeType = "platform"
	ScopeCoop     ScopeType = "coop"
	ScopeDistrict ScopeType = "district"
	ScopeSchool   ScopeType = "school"
	ScopeBid      ScopeType = "bid"
)

// Valid reports whether s is a known scope level.
func (s ScopeType) Valid() bool {
	switch s {
	case ScopePlatform, ScopeCoop, ScopeDistrict, ScopeSchool, ScopeBid:
		return true
	}
	return false
}

// Scope narrows a role to one organizational node.
type Scope struct {
	Type ScopeType `json:"type"`
	ID   *int64    `json:"id"`
}

// RoleAssignment is one role held by a user, with its scope and permissions.
type RoleAssignment struct {
	Type        RoleType     `json:"type"`
	Scope       Scope        `json:"scope"`
	Permissions []Permission `json:"permissions"`
}

// ManagedBidRef identifies a bid the user is listed as manager of.
type ManagedBidRef struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

// User is the per-request authorization view of an account. It is rebuilt
// from storage on every request and never persisted in this shape.
type User struct {
	ID            int64            `json:"id"`
	Name          string           `json:"name"`
	Email         string           `json:"email"`
	CooperativeID *int64           `json:"cooperativeId"`
	DistrictID    *int64           `json:"districtId"`
	Roles         []RoleAssignment `json:"roles"`
	BidRoles      []RoleAssignment `json:"bidRoles"`
	ManagedBids   []ManagedBidRef  `json:"managedBids"`
	Status        string           `json:"status"`
	LastLogin     *time.Time       `json:"lastLogin"`
	DemoAccount   bool             `json:"demoAccount"`
}

func (u *User) allRoles() []RoleAssignment {
	if u == nil {
		return nil
	}
	if len(u.BidRoles) == 0 {
		return u.Roles
	}
	all := make([]RoleAssignment, 0, len(u.Roles)+len(u.BidRoles))
	all = append(all, u.Roles...)
	return append(all, u.BidRoles...)
}
