// internal/handlers/pricing/pricing_handler.go
package pricing

import (
	"net/http"

	"edu-ledger-service/internal/domain/pricing"
	"edu-ledger-service/internal/pkg/response"
	service "edu-ledger-service/internal/service/pricing"

	"github.com/gin-gonic/gin"
)

type PricingHandler struct {
	pricingService *service.PricingService
}

func NewPricingHandler(pricingService *service.PricingService) *PricingHandler {
	return &PricingHandler{
		pricingService: pricingService,
	}
}

// ListPlans returns the plan table and the cached prices derived from it
func (h *PricingHandler) ListPlans(c *gin.Context) {
	result, err := h.pricingService.ListPlans(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", result)
}

// UpdatePlans saves plan prices and refreshes the price cache
func (h *PricingHandler) UpdatePlans(c *gin.Context) {
	var req pricing.UpdatePlansRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.pricingService.UpdatePlans(c.Request.Context(), &req)
	if err != nil {
		response.FromError(c, "failed to update plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans updated", result)
}

// GetCache returns the price table grants are resolved against
func (h *PricingHandler) GetCache(c *gin.Context) {
	table, err := h.pricingService.Table(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to load pricing table", err)
		return
	}

	response.Success(c, http.StatusOK, "pricing table retrieved", table)
}
