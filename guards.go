package gatehouse

const (
	// AdminRole passes every permission and ownership check by name.
	AdminRole = "ADMIN"
	// WildcardPermission satisfies every permission check.
	WildcardPermission = "*"
)

// Identity is the verified claim bundle attached to a request after
// [Engine.Authenticate]. Guard predicates operate on it without I/O.
type Identity struct {
	ID          string
	Email       string
	RoleID      string
	RoleName    string
	Permissions []string
}

// IsAdmin reports whether the identity bypasses permission and ownership
// checks: the admin role name or the wildcard permission.
func (id *Identity) IsAdmin() bool {
	if id.RoleName == AdminRole {
		return true
	}
	for _, p := range id.Permissions {
		if p == WildcardPermission {
			return true
		}
	}
	return false
}

// Can reports whether the identity holds the exact permission or an
// admin/wildcard bypass.
func (id *Identity) Can(permission string) bool {
	if id.IsAdmin() {
		return true
	}
	for _, p := range id.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

// CheckPermission is the per-request permission predicate. A nil identity
// means the auth step was skipped or failed upstream and maps to 401; an
// authenticated identity without the permission maps to 403.
func CheckPermission(id *Identity, permission string) error {
	if id == nil {
		return E(CodeUnauthorized, "Authentication required")
	}
	if id.Can(permission) {
		return nil
	}
	return E(CodeForbidden, "Insufficient permissions")
}

// CheckOwnership compares the authenticated identity against a resolved
// resource owner. Admin and wildcard holders bypass; an empty owner id means
// ownership could not be determined and is rejected.
func CheckOwnership(id *Identity, ownerID string) error {
	if id == nil {
		return E(CodeUnauthorized, "Authentication required")
	}
	if id.IsAdmin() {
		return nil
	}
	if ownerID == "" {
		return E(CodeForbidden, "Resource owner could not be determined")
	}
	if id.ID != ownerID {
		return E(CodeForbidden, "Access denied to this resource")
	}
	return nil
}
