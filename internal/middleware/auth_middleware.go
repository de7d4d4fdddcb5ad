// internal/middleware/auth_middleware.go
package middleware

import (
	"errors"
	"net/http"
	"strings"

	"edu-ledger-service/internal/pkg/jwt"
	"edu-ledger-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
)

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	VerifyAccessToken(token string) (*jwt.Claims, error)
}

type AuthMiddleware struct {
	verifier TokenVerifier
}

func NewAuthMiddleware(verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		verifier: verifier,
	}
}

// Auth is the base authentication middleware that validates JWT tokens
func (m *AuthMiddleware) Auth() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			response.Error(c, http.StatusUnauthorized, "missing authorization token", nil)
			return
		}

		claims, err := m.verifier.VerifyAccessToken(token)
		if err != nil {
			response.Error(c, http.StatusUnauthorized, "invalid or expired token", err)
			return
		}

		c.Set("identity_id", claims.IdentityID)
		c.Set("identity_name", claims.Name)
		c.Set("jti", claims.ID)
		c.Set("roles", claims.Roles)
		c.Set("claims", claims)

		c.Next()
	}
}

// RequireRole middleware that requires user to have at least one of the specified roles
// MUST be used after Auth() middleware
func (m *AuthMiddleware) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := GetClaims(c)
		if !ok {
			response.Error(c, http.StatusForbidden, "no roles found - authentication required", nil)
			return
		}

		if !claims.HasAnyRole(roles...) {
			err := errors.New("user does not have required role")
			response.Error(c, http.StatusForbidden, "insufficient permissions", err, map[string]interface{}{
				"required_roles": roles,
				"user_roles":     claims.Roles,
			})
			return
		}

		c.Next()
	}
}

// AdminOnly returns middlewares for routes open to full admins only
func (m *AuthMiddleware) AdminOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAdmin),
	}
}

// StaffOnly returns middlewares for routes open to admins and sub-admins
func (m *AuthMiddleware) StaffOnly() []gin.HandlerFunc {
	return []gin.HandlerFunc{
		m.Auth(),
		m.RequireRole(jwt.RoleAdmin, jwt.RoleSubAdmin),
	}
}

// extractToken extracts Bearer token from Authorization header
func extractToken(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return parts[1]
		}
	}
	return ""
}
