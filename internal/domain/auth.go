package domain

// Identity is the caller as described by a verified bearer token.
// It is trusted for the whole request and never re-read from storage,
// so a role change only applies after the user signs in again.
type Identity struct {
	ID    int64
	Name  string
	Email string
	Role  Role
}

// IsStaff is true for agents and admins.
func (i Identity) IsStaff() bool {
	return i.Role.IsStaff()
}

// IsAdmin is true for admins only.
func (i Identity) IsAdmin() bool {
	return i.Role == RoleAdmin
}

// CanAccess reports whether the caller may read or comment on a resource owned by ownerID.
func (i Identity) CanAccess(ownerID int64) bool {
	return i.IsStaff() || i.ID == ownerID
}
