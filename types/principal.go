package types

// Role identifies the privilege level of an authenticated principal.
type Role string

// Known roles. Admins see every alert; regular users only their own.
const (
	RoleAdmin Role = "admin"
	RoleUser  Role = "user"
)

// Elevated reports whether the role grants the all-observers channel.
func (r Role) Elevated() bool {
	return r == RoleAdmin
}

// UserStatus mirrors the directory's account state.
type UserStatus string

// User statuses.
const (
	UserActive    UserStatus = "active"
	UserSuspended UserStatus = "suspended"
)

// Principal is the identity the directory service resolves from a
// credential during the fan-out handshake.
type Principal struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Email  string     `json:"email,omitempty"`
	Role   Role       `json:"role"`
	Status UserStatus `json:"status"`
}
