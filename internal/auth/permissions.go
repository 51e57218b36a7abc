package auth

// Role is a closed enumeration of account roles.
type Role string

const (
	RoleUser        Role = "USER"
	RoleTenantAdmin Role = "TENANT_ADMIN"
	RoleSuperAdmin  Role = "SUPER_ADMIN"
)

// Permission is a closed enumeration of capabilities.
type Permission string

const (
	PermProfileRead  Permission = "profile.read"
	PermProfileWrite Permission = "profile.write"
	PermUsersManage  Permission = "tenant.users.manage"
	PermTenantManage Permission = "tenant.settings.manage"
	PermTokensRevoke Permission = "auth.tokens.revoke"
	PermAuditRead    Permission = "audit.read"
)

// AllPermissions is the full permission universe, granted to SUPER_ADMIN.
var AllPermissions = []Permission{
	PermProfileRead,
	PermProfileWrite,
	PermUsersManage,
	PermTenantManage,
	PermTokensRevoke,
	PermAuditRead,
}

// rolePermissions is built once at process start and never mutated, so
// concurrent reads need no synchronization.
var rolePermissions = map[Role][]Permission{
	RoleUser: {
		PermProfileRead,
		PermProfileWrite,
	},
	RoleTenantAdmin: {
		PermProfileRead,
		PermProfileWrite,
		PermUsersManage,
		PermTenantManage,
		PermAuditRead,
	},
	RoleSuperAdmin: AllPermissions,
}

// KnownRole reports whether the role belongs to the closed enumeration.
func KnownRole(r Role) bool {
	_, ok := rolePermissions[r]
	return ok
}

// PermissionsFor resolves the union of permissions granted by the roles.
func PermissionsFor(roles []Role) map[Permission]struct{} {
	set := make(map[Permission]struct{})
	for _, role := range roles {
		for _, p := range rolePermissions[role] {
			set[p] = struct{}{}
		}
	}
	return set
}

// HasPermission reports whether any of the roles grants the permission.
func HasPermission(roles []Role, perm Permission) bool {
	for _, role := range roles {
		for _, p := range rolePermissions[role] {
			if p == perm {
				return true
			}
		}
	}
	return false
}

// HasAnyPermission reports whether any of the permissions is granted.
func HasAnyPermission(roles []Role, perms ...Permission) bool {
	for _, p := range perms {
		if HasPermission(roles, p) {
			return true
		}
	}
	return false
}

// HasAllPermissions reports whether every permission is granted.
func HasAllPermissions(roles []Role, perms ...Permission) bool {
	for _, p := range perms {
		if !HasPermission(roles, p) {
			return false
		}
	}
	return true
}
