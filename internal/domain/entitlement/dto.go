// internal/domain/entitlement/dto.go
package entitlement

type GrantEntitlementRequest struct {
	Tier           string          `json:"tier" binding:"required"`
	Level          string          `json:"level"`
	Mode           string          `json:"mode" binding:"required,oneof=FREE PAID free paid"`
	Price          *float64        `json:"price" binding:"omitempty,min=0"`
	CustomName     string          `json:"custom_name"`
	CustomDuration *CustomDuration `json:"custom_duration"`
}

type UserResponse struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Credits     int64          `json:"credits"`
	Entitlement Entitlement    `json:"entitlement"`
	Active      bool           `json:"active"`
	History     []HistoryEntry `json:"history"`
}
