package identity

// managedRoles is the static role hierarchy: which roles a given role may
// hand out or revoke. Anything absent manages nothing.
var managedRoles = map[AccountRole][]AccountRole{
	RoleAdministrator: {RoleAdministrator, RoleTenantAdmin},
	RoleTenantAdmin:   {RoleTenantAdmin},
}

// ManagedRoles returns the set of roles the given role may assign to others.
// The result is a copy; callers may mutate it freely.
func ManagedRoles(role AccountRole) []AccountRole {
	src, ok := managedRoles[role]
	if !ok {
		return []AccountRole{}
	}
	out := make([]AccountRole, len(src))
	copy(out, src)
	return out
}

// SanitizeRoles drops every requested role the principal may not manage.
// This is a safety clamp, not validation: unmanaged roles disappear silently
// and are never escalated into an error.
func SanitizeRoles(principal Principal, requested []AccountRole) []AccountRole {
	if principal == nil {
		return []AccountRole{}
	}

	allowed := map[AccountRole]struct{}{}
	for _, r := range ManagedRoles(principal.Role()) {
		allowed[r] = struct{}{}
	}

	out := make([]AccountRole, 0, len(requested))
	for _, r := range requested {
		if _, ok := allowed[r]; ok {
			out = append(out, r)
		}
	}
	return out
}

// IsValidRole checks the role against the known set.
func IsValidRole(role AccountRole) bool {
	switch role {
	case RoleUser, RoleTenantAdmin, RoleAdministrator:
		return true
	default:
		return false
	}
}

// ParseRole safely parses a string into an AccountRole.
func ParseRole(roleStr string) (AccountRole, bool) {
	role := AccountRole(roleStr)
	return role, IsValidRole(role)
}

// TenantScope is the account-visibility decision for a principal.
// The zero value denies everything, which keeps the fallthrough default-deny.
type TenantScope struct {
	All      bool
	TenantID string
}

// None reports whether the scope denies all access.
func (s TenantScope) None() bool {
	return !s.All && s.TenantID == ""
}

// AccessibleScope computes which accounts a principal may list.
// Administrators see everything, tenant admins see their own tenant, and
// every other role sees nothing at all.
func AccessibleScope(principal Principal) TenantScope {
	if principal == nil {
		return TenantScope{}
	}

	switch principal.Role() {
	case RoleAdministrator:
		return TenantScope{All: true}
	case RoleTenantAdmin:
		if tid := principal.TenantID(); tid != "" {
			return TenantScope{TenantID: tid}
		}
		return TenantScope{}
	default:
		return TenantScope{}
	}
}
