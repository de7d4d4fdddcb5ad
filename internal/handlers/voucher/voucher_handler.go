// internal/handlers/voucher/voucher_handler.go
package voucher

import (
	"net/http"

	"edu-ledger-service/internal/domain/voucher"
	"edu-ledger-service/internal/middleware"
	"edu-ledger-service/internal/pkg/response"
	service "edu-ledger-service/internal/service/voucher"

	"github.com/gin-gonic/gin"
)

type VoucherHandler struct {
	generator  *service.Generator
	redemption *service.RedemptionService
}

func NewVoucherHandler(generator *service.Generator, redemption *service.RedemptionService) *VoucherHandler {
	return &VoucherHandler{
		generator:  generator,
		redemption: redemption,
	}
}

// ========== Admin Endpoints ==========

// GenerateCodes mints a batch of gift codes sharing one reward
func (h *VoucherHandler) GenerateCodes(c *gin.Context) {
	var req voucher.GenerateCodesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	cmd, err := service.ParseGenerateRequest(&req, middleware.MustGetIdentityID(c))
	if err != nil {
		response.FromError(c, "invalid gift code request", err)
		return
	}

	codes, err := h.generator.Generate(c.Request.Context(), cmd)
	if err != nil {
		response.FromError(c, "failed to generate gift codes", err)
		return
	}

	response.Success(c, http.StatusCreated, "gift codes generated", voucher.GenerateCodesResponse{
		Codes: codes,
		Total: len(codes),
	})
}

// GetCode returns a code with its usage for audit
func (h *VoucherHandler) GetCode(c *gin.Context) {
	gc, err := h.redemption.GetCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.FromError(c, "failed to get gift code", err)
		return
	}

	response.Success(c, http.StatusOK, "gift code retrieved", gc)
}

// ========== Student Endpoints ==========

// RedeemCode converts a gift code into credits or a subscription for the caller
func (h *VoucherHandler) RedeemCode(c *gin.Context) {
	var req voucher.RedeemCodeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "invalid request body", err)
		return
	}

	result, err := h.redemption.Redeem(c.Request.Context(), req.Code, middleware.MustGetIdentityID(c))
	if err != nil {
		response.FromError(c, "failed to redeem gift code", err)
		return
	}

	response.Success(c, http.StatusOK, "gift code redeemed", result)
}
