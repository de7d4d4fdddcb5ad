// internal/pkg/jwt/claims.go
package jwt

import (
	"slices"

	"github.com/golang-jwt/jwt/v5"
)

// Roles understood by the ledger.
const (
	RoleAdmin    = "admin"
	RoleSubAdmin = "sub_admin"
	RoleStudent  = "student"
)

// PurposeAccess marks tokens that may call the API.
const PurposeAccess = "access"

// Claims represents the JWT claims
type Claims struct {
	IdentityID     string   `json:"identity_id"`
	Name           string   `json:"name,omitempty"`
	Roles          []string `json:"roles,omitempty"`
	SessionPurpose string   `json:"session_purpose"`
	jwt.RegisteredClaims
}

// HasRole checks if the claims contain a specific role
func (c *Claims) HasRole(role string) bool {
	return slices.Contains(c.Roles, role)
}

// HasAnyRole checks if the claims contain any of the specified roles
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.HasRole(role) {
			return true
		}
	}
	return false
}

// IsAdmin reports a full admin.
func (c *Claims) IsAdmin() bool {
	return c.HasRole(RoleAdmin)
}

// IsSubAdmin reports a restricted admin whose grants must carry provenance.
func (c *Claims) IsSubAdmin() bool {
	return !c.IsAdmin() && c.HasRole(RoleSubAdmin)
}
