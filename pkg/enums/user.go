package enums

import "fmt"

// UserRole maps to the user_role enum in Postgres.
type UserRole string

const (
	RoleUser          UserRole = "user"
	RoleEmployeeAdmin UserRole = "employee_admin"
)

var validUserRoles = []UserRole{RoleUser, RoleEmployeeAdmin}

// IsValid reports whether the value matches the canonical user_role enum.
func (r UserRole) IsValid() bool {
	for _, candidate := range validUserRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the role carries operator privileges.
func (r UserRole) IsAdmin() bool {
	return r == RoleEmployeeAdmin
}

// ParseUserRole converts raw input into a UserRole.
func ParseUserRole(value string) (UserRole, error) {
	candidate := UserRole(value)
	if !candidate.IsValid() {
		return "", fmt.Errorf("invalid user role %q", value)
	}
	return candidate, nil
}
