package auth

// Admin roles, lowest privilege first.
const (
	RoleViewer     = "viewer"
	RoleFinance    = "finance"
	RoleAdmin      = "admin"
	RoleSuperAdmin = "super_admin"
)

var roleRank = map[string]int{
	RoleViewer:     1,
	RoleFinance:    2,
	RoleAdmin:      3,
	RoleSuperAdmin: 4,
}

// AllAdminRoles returns all valid admin roles.
func AllAdminRoles() []string {
	return []string{RoleViewer, RoleFinance, RoleAdmin, RoleSuperAdmin}
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// RoleAtLeast reports whether role grants at least the privileges of min.
func RoleAtLeast(role, min string) bool {
	have, ok := roleRank[role]
	if !ok {
		return false
	}
	return have >= roleRank[min]
}
