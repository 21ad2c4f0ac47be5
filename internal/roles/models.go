package roles

import (
	"time"

	"brick/pkg/domain"
)

// Role is an opaque role id. The namespace is flat; DefaultAdmin administers
// every role including itself.
type Role string

const (
	DefaultAdmin Role = "DEFAULT_ADMIN"
	SuperAdmin   Role = "SUPER_ADMIN"
	Manager      Role = "MANAGER"
	Operator     Role = "OPERATOR"
)

var known = map[Role]bool{
	DefaultAdmin: true,
	SuperAdmin:   true,
	Manager:      true,
	Operator:     true,
}

func (r Role) String() string { return string(r) }

// Valid reports whether r is one of the roles the engine checks.
func (r Role) Valid() bool { return known[r] }

// AdminRoleOf returns the role allowed to grant and revoke r.
func AdminRoleOf(Role) Role { return DefaultAdmin }

// Grant records one membership.
type Grant struct {
	Role      Role             `json:"role"`
	Principal domain.Principal `json:"principal"`
	GrantedBy domain.Principal `json:"granted_by"`
	GrantedAt time.Time        `json:"granted_at"`
}

type memberKey struct {
	Role      Role             `json:"role"`
	Principal domain.Principal `json:"principal"`
}
