package models

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// User is the authenticated caller as reported by the identity provider.
type User struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}
