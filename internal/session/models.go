package session

import (
	"time"

	"filemanager/internal/claims"
)

// Identity is the user the current session belongs to
type Identity struct {
	Email     string    `json:"email"`
	Roles     []string  `json:"roles"`
	ExpiresAt time.Time `json:"expires_at,omitzero"`
}

// HasRole reports whether the identity carries role
func (i *Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

func identityFrom(c *claims.Claims) *Identity {
	id := &Identity{
		Email: c.Subject,
		Roles: append([]string(nil), c.Roles...),
	}
	if c.HasExpiry() {
		id.ExpiresAt = time.Unix(c.ExpiresAt, 0).UTC()
	}
	return id
}
