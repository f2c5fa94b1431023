package dashboard

import "github.com/bidhub/procurement/internal/authz"

// RoleRecord is a loosely typed role row as the dashboard gate receives it.
// Missing role or name entries are skipped.
type RoleRecord struct {
	Role *RoleInfo `json:"role,omitempty"`
}

type RoleInfo struct {
	Name *string `json:"name,omitempty"`
}

var dashboardRoles = map[string]struct{}{
	string(authz.RoleGroupAdmin):    {},
	string(authz.RoleDistrictAdmin): {},
	string(authz.RoleSchoolAdmin):   {},
	string(authz.RoleViewer):        {},
}

// HasValidRole reports whether any record names a role allowed to open the dashboard.
func HasValidRole(records []RoleRecord) bool {
	for _, r := range records {
		if r.Role == nil || r.Role.Name == nil {
			continue
		}
		if _, ok := dashboardRoles[*r.Role.Name]; ok {
			return true
		}
	}
	return false
}

// RecordsFor projects a user's role assignments into role records.
func RecordsFor(u *authz.User) []RoleRecord {
	if u == nil {
		return nil
	}
	out := make([]RoleRecord, 0, len(u.Roles))
	for _, r := range u.Roles {
		name := string(r.Type)
		out = append(out, RoleRecord{Role: &RoleInfo{Name: &name}})
	}
	return out
}
