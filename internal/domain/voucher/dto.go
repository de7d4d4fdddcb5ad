// internal/domain/voucher/dto.go
package voucher

import "edu-ledger-service/internal/domain/entitlement"

type GenerateCodesRequest struct {
	Type     string `json:"type" binding:"required"`
	Amount   int64  `json:"amount" binding:"omitempty,min=1"`
	SubTier  string `json:"sub_tier"`
	SubLevel string `json:"sub_level"`
	Count    int    `json:"count" binding:"required,min=1"`
	MaxUses  int    `json:"max_uses" binding:"required,min=1"`
}

type GenerateCodesResponse struct {
	Codes []GiftCode `json:"codes"`
	Total int        `json:"total"`
}

type RedeemCodeRequest struct {
	Code string `json:"code" binding:"required"`
}

type RedemptionResult struct {
	Code          string                   `json:"code"`
	Type          CodeType                 `json:"type"`
	CreditBalance *int64                   `json:"credit_balance,omitempty"`
	Entitlement   *entitlement.Entitlement `json:"entitlement,omitempty"`
	UsesRemaining int                      `json:"uses_remaining"`
}
