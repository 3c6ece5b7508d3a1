package domain

import "time"

// Staff roles issued by the authentication authority.
const (
	RoleOwner  = "owner"
	RoleOps    = "ops"
	RoleViewer = "viewer"
)

// StaffRoles lists every role allowed to use chat.
var StaffRoles = []string{RoleOwner, RoleOps, RoleViewer}

// Identity is the verified payload of a token. It is never mutated after
// issuance and is only meaningful until ExpiresAt.
type Identity struct {
	SubjectID string    `json:"sub"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"exp"`
}

// Expired reports whether the identity is past its validity window at now.
func (i Identity) Expired(now time.Time) bool {
	return !i.ExpiresAt.IsZero() && !now.Before(i.ExpiresAt)
}
