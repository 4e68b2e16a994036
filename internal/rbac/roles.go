package rbac

// Role names. Keep these stable; they are part of auth/RBAC contracts.
const (
	RoleAdmin      = "admin"
	RoleSupervisor = "supervisor"
	RoleAgent      = "agent"
)

// IsAdmin reports whether the role bypasses number scoping and may hit
// the manual-trigger endpoints.
func IsAdmin(role string) bool { return role == RoleAdmin }
