package auth

import "slices"

// Permission names a capability on the hub API.
type Permission string

const (
	PermStateRead        Permission = "state:read"
	PermServiceCall      Permission = "service:call"
	PermAutomationManage Permission = "automation:manage"
	PermDeviceManage     Permission = "device:manage"
	PermUserManage       Permission = "user:manage"
	PermSystemAdmin      Permission = "system:admin"
)

// rolePermissions is the whole authorisation model: viewers observe,
// users also act on devices, admins manage everything.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermStateRead,
	},
	RoleUser: {
		PermStateRead,
		PermServiceCall,
	},
	RoleAdmin: {
		PermStateRead,
		PermServiceCall,
		PermAutomationManage,
		PermDeviceManage,
		PermUserManage,
		PermSystemAdmin,
	},
}

// HasPermission reports whether role grants perm. Unknown roles grant
// nothing.
func HasPermission(role Role, perm Permission) bool {
	return slices.Contains(rolePermissions[role], perm)
}

// PermissionsForRole returns a copy of the permissions granted to
// role, nil when the role is unknown.
func PermissionsForRole(role Role) []Permission {
	return slices.Clone(rolePermissions[role])
}
