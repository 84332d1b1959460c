package enums

// StaffRole is the admin panel role carried in staff access tokens.
type StaffRole string

const (
	StaffRoleStaff     StaffRole = "staff"
	StaffRoleSuperuser StaffRole = "superuser"
)

var validStaffRoles = []StaffRole{
	StaffRoleStaff,
	StaffRoleSuperuser,
}

func (r StaffRole) String() string { return string(r) }

func (r StaffRole) IsValid() bool { return oneOf(r, validStaffRoles) }

func ParseStaffRole(value string) (StaffRole, error) {
	return parseOneOf("staff role", value, validStaffRoles)
}

// StaffRoleFor derives the panel role from account flags. ok is false for
// accounts without panel access.
func StaffRoleFor(isStaff, isSuperuser bool) (StaffRole, bool) {
	switch {
	case isSuperuser:
		return StaffRoleSuperuser, true
	case isStaff:
		return StaffRoleStaff, true
	}
	return "", false
}
