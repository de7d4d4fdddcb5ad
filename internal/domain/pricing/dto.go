// internal/domain/pricing/dto.go
package pricing

type PlanInput struct {
	Tier       string  `json:"tier" binding:"required"`
	Name       string  `json:"name"`
	BasicPrice float64 `json:"basic_price" binding:"min=0"`
	UltraPrice float64 `json:"ultra_price" binding:"min=0"`
}

type UpdatePlansRequest struct {
	Plans []PlanInput `json:"plans" binding:"required,min=1,dive"`
}

type PlansResponse struct {
	Plans []Plan `json:"plans"`
	Cache Table  `json:"cache"`
}
