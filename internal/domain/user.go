package domain

import "time"

// Role enumerates account roles.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role can triage every ticket.
func (r Role) IsStaff() bool {
	return r == RoleAgent || r == RoleAdmin
}

// User is an account that can submit tickets or, for staff roles, work them.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
