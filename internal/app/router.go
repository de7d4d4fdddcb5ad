// internal/app/router.go
package app

import (
	entitlementHandler "edu-ledger-service/internal/handlers/entitlement"
	pricingHandler "edu-ledger-service/internal/handlers/pricing"
	voucherHandler "edu-ledger-service/internal/handlers/voucher"
	"edu-ledger-service/internal/middleware"
	"edu-ledger-service/internal/pkg/jwt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Handlers struct {
	EntitlementHandler *entitlementHandler.EntitlementHandler
	VoucherHandler     *voucherHandler.VoucherHandler
	PricingHandler     *pricingHandler.PricingHandler
	AuthMiddleware     *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health Check ====================
	api.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok", "version": "1.0.0"})
	})

	// ==================== Admin: Users & Entitlements ====================
	users := api.Group("/admin/users")
	users.Use(h.AuthMiddleware.StaffOnly()...)
	{
		users.GET("/:id", h.EntitlementHandler.GetUser)
		users.POST("/:id/entitlement", h.EntitlementHandler.GrantEntitlement)
	}

	// ==================== Admin: Gift Codes ====================
	vouchers := api.Group("/admin/vouchers")
	vouchers.Use(h.AuthMiddleware.StaffOnly()...)
	{
		vouchers.POST("", h.VoucherHandler.GenerateCodes)
		vouchers.GET("/:code", h.VoucherHandler.GetCode)
	}

	// ==================== Admin: Pricing ====================
	pricing := api.Group("/admin/pricing")
	pricing.Use(h.AuthMiddleware.AdminOnly()...)
	{
		pricing.GET("/plans", h.PricingHandler.ListPlans)
		pricing.PUT("/plans", h.PricingHandler.UpdatePlans)
		pricing.GET("/cache", h.PricingHandler.GetCache)
	}

	// ==================== Student ====================
	api.POST("/vouchers/redeem",
		h.AuthMiddleware.Auth(),
		h.AuthMiddleware.RequireRole(jwt.RoleStudent),
		h.VoucherHandler.RedeemCode,
	)

	// ==================== Authenticated ====================
	api.GET("/me/entitlement", h.AuthMiddleware.Auth(), h.EntitlementHandler.GetMyEntitlement)

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
