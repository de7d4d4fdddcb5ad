// internal/middleware/recovery_middleware.go
package middleware

import (
	"fmt"

	xerrors "edu-ledger-service/internal/pkg/errors"
	"edu-ledger-service/internal/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RecoveryMiddleware turns a handler panic into a 500 envelope and logs the
// caller and route with the stack.
func RecoveryMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			identityID, _ := GetIdentityID(c)
			logger.Error("panic recovered",
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("route", c.FullPath()),
				zap.String("identity_id", identityID),
				zap.Stack("stack"),
			)
			response.FromError(c, "internal server error", fmt.Errorf("%w: %v", xerrors.ErrInternal, rec))
		}()
		c.Next()
	}
}
