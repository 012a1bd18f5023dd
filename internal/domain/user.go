package domain

import "time"

// Role enumerates account roles.
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superAdmin"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsAdmin is derived from the role; there is no separately stored flag.
func (r Role) IsAdmin() bool {
	return r == RoleAdmin || r == RoleSuperAdmin
}

// User is the account record held by the credential store.
type User struct {
	ID           string
	Username     string
	Nickname     string
	Email        string
	Mobile       string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ProfileChanges carries the optional profile fields a user may edit.
type ProfileChanges struct {
	Email    *string
	Mobile   *string
	Nickname *string
}

// Empty reports whether no field is set.
func (p ProfileChanges) Empty() bool {
	return p.Email == nil && p.Mobile == nil && p.Nickname == nil
}
