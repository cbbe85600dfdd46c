package identity

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// SessionClaims is the JWT payload for an authenticated session. It
// implements Principal so a validated token can flow straight into the
// authorization layer.
type SessionClaims struct {
	jwt.RegisteredClaims
	UID        string         `json:"uid,omitempty"`
	UserRole   string         `json:"role,omitempty"`
	Tenant     string         `json:"tenant,omitempty"`
	Persistent bool           `json:"persistent,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

var _ Principal = (*SessionClaims)(nil)

// ID returns the account identifier, falling back to the subject claim.
func (c *SessionClaims) ID() string {
	if c.UID != "" {
		return c.UID
	}
	return c.RegisteredClaims.Subject
}

// Role returns the account role carried by the session.
func (c *SessionClaims) Role() string {
	return c.UserRole
}

// TenantID returns the tenant the session belongs to, empty for accounts
// without tenant affiliation.
func (c *SessionClaims) TenantID() string {
	return c.Tenant
}

// HasRole reports whether the session carries the given role.
func (c *SessionClaims) HasRole(role string) bool {
	return c.UserRole == role
}

// Expires returns the expiration time, zero when the claim is absent.
func (c *SessionClaims) Expires() time.Time {
	if c.RegisteredClaims.ExpiresAt != nil {
		return c.RegisteredClaims.ExpiresAt.Time
	}
	return time.Time{}
}

// IssuedAt returns the issued-at time, zero when the claim is absent.
func (c *SessionClaims) IssuedAt() time.Time {
	if c.RegisteredClaims.IssuedAt != nil {
		return c.RegisteredClaims.IssuedAt.Time
	}
	return time.Time{}
}
