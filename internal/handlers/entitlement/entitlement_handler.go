// internal/handlers/entitlement/entitlement_handler.go
package entitlement

import (
	"net/http"

	"edu-ledger-service/internal/domain/entitlement"
	"edu-ledger-service/internal/middleware"
	"edu-ledger-service/internal/pkg/response"
	service "edu-ledger-service/internal/service/entitlement"

	"github.com/gin-gonic/gin"
)

type EntitlementHandler struct {
	granter *service.Granter
}

func NewEntitlementHandler(granter *service.Granter) *EntitlementHandler {
	return &EntitlementHandler{
		granter: granter,
	}
}

// ========== Admin Endpoints ==========

// GrantEntitlement sets a user's tier, level and expiry and records the grant
func (h *EntitlementHandler) GrantEntitlement(c *gin.Context) {
	userID := c.Param("id")

	var req entitlement.GrantEntitlementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	claims, ok := middleware.GetClaims(c)
	if !ok {
		response.Unauthorized(c, "authentication required")
		return
	}
	admin := &service.Admin{
		ID:       claims.IdentityID,
		Name:     claims.Name,
		SubAdmin: claims.IsSubAdmin(),
	}

	cmd, err := service.ParseGrantRequest(userID, &req, admin)
	if err != nil {
		response.FromError(c, "invalid grant", err)
		return
	}

	user, err := h.granter.Grant(c.Request.Context(), cmd)
	if err != nil {
		response.FromError(c, "failed to grant entitlement", err)
		return
	}

	response.Success(c, http.StatusOK, "entitlement granted", user)
}

// GetUser returns a user's entitlement and grant history
func (h *EntitlementHandler) GetUser(c *gin.Context) {
	user, err := h.granter.GetUser(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.FromError(c, "failed to get user", err)
		return
	}

	response.Success(c, http.StatusOK, "user retrieved", user)
}

// ========== Student Endpoints ==========

// GetMyEntitlement returns the caller's own entitlement and history
func (h *EntitlementHandler) GetMyEntitlement(c *gin.Context) {
	userID := middleware.MustGetIdentityID(c)

	user, err := h.granter.GetUser(c.Request.Context(), userID)
	if err != nil {
		response.FromError(c, "failed to get entitlement", err)
		return
	}

	response.Success(c, http.StatusOK, "entitlement retrieved", user)
}
