package models

const (
	RoleMember  = "member"
	RoleTrainer = "trainer"
)

// Actor is the authenticated caller as resolved by the auth layer.
type Actor struct {
	ID   string
	Role string
}
