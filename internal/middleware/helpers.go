// internal/middleware/helpers.go
package middleware

import (
	"edu-ledger-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
)

// GetClaims returns the verified token claims set by Auth
func GetClaims(c *gin.Context) (*jwt.Claims, bool) {
	v, exists := c.Get("claims")
	if !exists {
		return nil, false
	}
	claims, ok := v.(*jwt.Claims)
	return claims, ok
}

// GetIdentityID gets the caller's identity from context
func GetIdentityID(c *gin.Context) (string, bool) {
	identityID, exists := c.Get("identity_id")
	if !exists {
		return "", false
	}
	id, ok := identityID.(string)
	return id, ok && id != ""
}

// MustGetIdentityID gets identity ID from context or panics
func MustGetIdentityID(c *gin.Context) string {
	identityID, exists := GetIdentityID(c)
	if !exists {
		panic("identity_id not found in context")
	}
	return identityID
}

// IsSubAdmin checks if the caller is a restricted admin
func IsSubAdmin(c *gin.Context) bool {
	claims, ok := GetClaims(c)
	return ok && claims.IsSubAdmin()
}
