package models

const (
	RolePlayer = "player"
	RoleOwner  = "owner"
)

// Actor is the authenticated caller as resolved by the API layer.
// The services trust it; resolving identity is not their concern.
type Actor struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role"`
}

func (a Actor) IsOwner() bool {
	return a.Role == RoleOwner
}
