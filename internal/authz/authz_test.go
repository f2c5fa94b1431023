package authz

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func id(v int64) *int64 { return &v }

func districtEditor(home int64) *User {
	return &User{
		ID:         1,
		DistrictID: id(home),
		Roles: []RoleAssignment{{
			Type:        RoleDistrictAdmin,
			Scope:       Scope{Type: ScopeDistrict, ID: id(home)},
			Permissions: []Permission{PermEditDistrict},
		}},
	}
}

func TestHasRoleChecksBothLists(t *testing.T) {
	u := &User{
		Roles:    []RoleAssignment{{Type: RoleViewer}},
		BidRoles: []RoleAssignment{{Type: RoleBidAdministrator, Scope: Scope{Type: ScopeBid, ID: id(9)}}},
	}

	require.True(t, HasRole(u, RoleViewer))
	require.True(t, HasRole(u, RoleBidAdministrator))
	require.False(t, HasRole(u, RoleGroupAdmin))
	require.False(t, HasRole(nil, RoleViewer))
	require.False(t, HasRole(&User{}, RoleViewer))
}

func TestHasAnyRoleIsDisjunction(t *testing.T) {
	users := []*User{
		nil,
		{},
		{Roles: []RoleAssignment{{Type: RoleViewer}}},
		{BidRoles: []RoleAssignment{{Type: RoleBidViewer}}},
		{Roles: []RoleAssignment{{Type: RoleGroupAdmin}, {Type: RoleSchoolAdmin}}},
	}
	pairs := [][2]RoleType{
		{RoleViewer, RoleBidViewer},
		{RoleGroupAdmin, RoleCoopAdmin},
		{RoleSuperAdmin, RoleSchoolAdmin},
	}

	for _, u := range users {
		require.False(t, HasAnyRole(u))
		for _, p := range pairs {
			require.Equal(t, HasRole(u, p[0]) || HasRole(u, p[1]), HasAnyRole(u, p[0], p[1]))
		}
	}
}

func TestPermissionsIgnoreScope(t *testing.T) {
	u := &User{BidRoles: []RoleAssignment{{
		Type:        RoleBidViewer,
		Scope:       Scope{Type: ScopeBid, ID: id(3)},
		Permissions: []Permission{PermViewBids},
	}}}

	require.True(t, HasPermission(u, PermViewBids))
	require.True(t, HasAnyPermission(u, PermEditAll, PermViewBids))
	require.False(t, HasAnyPermission(u))
	require.False(t, HasPermission(nil, PermViewBids))
}

func TestBidAccessRules(t *testing.T) {
	viewer := &User{
		Roles:       []RoleAssignment{{Type: RoleViewer, Permissions: []Permission{PermViewBids}}},
		ManagedBids: []ManagedBidRef{{ID: 42, Code: "BID-42"}},
	}
	bidAdmin := &User{
		BidRoles:    []RoleAssignment{{Type: RoleBidAdministrator, Scope: Scope{Type: ScopeBid, ID: id(7)}}},
		ManagedBids: []ManagedBidRef{{ID: 7}},
	}

	require.True(t, HasBidAccess(viewer, 42))
	require.False(t, HasBidAccess(viewer, 43))
	require.True(t, CanViewBid(viewer, 42))
	require.False(t, CanViewBid(viewer, 43))
	require.True(t, CanViewBids(viewer))

	require.True(t, IsBidAdmin(bidAdmin))
	require.True(t, IsBidAdminFor(bidAdmin, 7))
	require.False(t, IsBidAdminFor(bidAdmin, 8))
	require.True(t, CanViewBid(bidAdmin, 7))
	require.False(t, CanViewBid(bidAdmin, 8))
	require.True(t, CanViewBids(bidAdmin))

	require.False(t, CanViewBids(&User{}))
}

func TestIsAdmin(t *testing.T) {
	require.True(t, IsAdmin(&User{Roles: []RoleAssignment{{Type: RoleCoopAdmin}}}))
	require.False(t, IsAdmin(&User{Roles: []RoleAssignment{{Type: RoleSuperAdmin}}}))
	require.False(t, IsAdmin(nil))
}

func TestCanManageDistrictUsesHomeDistrict(t *testing.T) {
	u := districtEditor(5)
	require.True(t, CanManageDistrict(u, 5))
	require.False(t, CanManageDistrict(u, 6))

	// permission scoped to district 6 does not help when home district is 5
	u.Roles[0].Scope.ID = id(6)
	require.False(t, CanManageDistrict(u, 6))

	groupAdmin := &User{Roles: []RoleAssignment{{Type: RoleGroupAdmin}}}
	require.True(t, CanManageDistrict(groupAdmin, 6))
}

func TestCanManageSchool(t *testing.T) {
	require.True(t, CanManageSchool(&User{Roles: []RoleAssignment{{Type: RoleDistrictAdmin}}}))

	noHome := &User{Roles: []RoleAssignment{{Type: RoleSchoolAdmin, Permissions: []Permission{PermEditSchool}}}}
	require.False(t, CanManageSchool(noHome))

	noHome.DistrictID = id(2)
	require.True(t, CanManageSchool(noHome))
	require.False(t, CanManageSchool(nil))
}

func TestCooperativeAccessAndProjections(t *testing.T) {
	u := &User{
		CooperativeID: id(10),
		DemoAccount:   true,
		Roles: []RoleAssignment{
			{Type: RoleCoopAdmin, Scope: Scope{Type: ScopeCoop, ID: id(10)}, Permissions: []Permission{PermViewAll, PermEditAll}},
			{Type: RoleCoopAdmin, Scope: Scope{Type: ScopeCoop, ID: id(11)}, Permissions: []Permission{PermViewAll}},
		},
		BidRoles: []RoleAssignment{{Type: RoleBidViewer, Scope: Scope{Type: ScopeBid, ID: id(1)}, Permissions: []Permission{PermViewBids}}},
	}

	require.True(t, HasCooperativeAccess(u, 10))
	require.False(t, HasCooperativeAccess(u, 11))
	require.True(t, HasCooperativeAccess(&User{Roles: []RoleAssignment{{Type: RoleGroupAdmin}}}, 11))

	require.Equal(t, []string{"Coop Admin", "Bid Viewer"}, RoleNames(u))
	require.Equal(t, []string{"view_all", "edit_all", "view_bids"}, PermissionNames(u))
	require.True(t, HasRoleScope(u, ScopeBid))
	require.False(t, HasRoleScope(u, ScopeSchool))
	require.True(t, IsDemoAccount(u))
	require.Empty(t, RoleNames(nil))
}

func TestResolveOrganizationFilterPrecedence(t *testing.T) {
	both := ResolveOrganizationFilter(&User{CooperativeID: id(10), DistrictID: id(5)})
	require.NotNil(t, both.CooperativeID)
	require.Equal(t, int64(10), *both.CooperativeID)
	require.Nil(t, both.DistrictID)

	district := ResolveOrganizationFilter(&User{DistrictID: id(5)})
	require.Nil(t, district.CooperativeID)
	require.Equal(t, int64(5), *district.DistrictID)

	require.True(t, ResolveOrganizationFilter(&User{}).IsEmpty())
	require.True(t, ResolveOrganizationFilter(nil).IsEmpty())

	normalized := OrganizationFilter{CooperativeID: id(1), DistrictID: id(2)}.Normalize()
	require.Nil(t, normalized.DistrictID)
}

func TestParseRoleType(t *testing.T) {
	r, ok := ParseRoleType("District Admin")
	require.True(t, ok)
	require.Equal(t, RoleDistrictAdmin, r)

	_, ok = ParseRoleType("Janitor")
	require.False(t, ok)
	require.False(t, Permission("fly").Valid())
	require.True(t, ScopeBid.Valid())
}

func TestCanAccessOrganization(t *testing.T) {
	coopUser := &User{CooperativeID: id(10), DistrictID: id(5)}
	require.True(t, CanAccessOrganization(coopUser, id(10), nil))
	require.True(t, CanAccessOrganization(coopUser, id(10), id(77)))
	require.False(t, CanAccessOrganization(coopUser, id(99), id(5)))
	require.False(t, CanAccessOrganization(coopUser, nil, id(5)))

	district := districtEditor(5)
	require.True(t, CanAccessOrganization(district, nil, id(5)))
	require.True(t, CanAccessOrganization(district, id(99), id(5)))
	require.False(t, CanAccessOrganization(district, nil, id(6)))
	require.False(t, CanAccessOrganization(district, nil, nil))

	require.False(t, CanAccessOrganization(&User{}, nil, nil))
	require.False(t, CanAccessOrganization(nil, id(10), nil))

	for _, role := range []RoleType{RoleGroupAdmin, RoleSuperAdmin} {
		admin := &User{Roles: []RoleAssignment{{Type: role}}}
		require.True(t, CanAccessOrganization(admin, id(99), nil))
		require.True(t, CanAccessOrganization(admin, nil, nil))
	}
}
