package domain

type Role string

const (
	RoleUser  Role = "USER"
	RoleAdmin Role = "ADMIN"
)

// Principal is the caller identity resolved once per request. It is passed by
// value and never mutated.
type Principal struct {
	UserID uint64
	Role   Role
}

func (p Principal) IsAdmin() bool { return p.Role == RoleAdmin }

// CanAccess reports whether the principal may read or act on a resource owned
// by ownerID.
func (p Principal) CanAccess(ownerID uint64) bool {
	return p.IsAdmin() || (p.UserID != 0 && p.UserID == ownerID)
}
