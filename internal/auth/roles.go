package auth

type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleAdmin      Role = "admin"
	RoleTrainer    Role = "trainer"
	RoleMember     Role = "member"
)

// AdminRoles may manage plans and read every member's payments.
var AdminRoles = []Role{RoleSuperAdmin, RoleAdmin}

func IsAdmin(r Role) bool {
	for _, a := range AdminRoles {
		if r == a {
			return true
		}
	}
	return false
}

func (r Role) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTrainer, RoleMember:
		return true
	}
	return false
}
