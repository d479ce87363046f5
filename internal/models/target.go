package models

import "time"

const (
	TargetDeals      = "deals"
	TargetRevenue    = "revenue"
	TargetUnits      = "units"
	TargetConversion = "conversion"
)

type Target struct {
	ID             int        `json:"id"`
	Name           string     `json:"name"`
	Type           string     `json:"type"`
	TargetValue    float64    `json:"target_value"`
	CurrentValue   float64    `json:"current_value"`
	AssignedTo     *int       `json:"assigned_to"`
	AssignedToName *string    `json:"assigned_to_name,omitempty"`
	Period         string     `json:"period"`
	ContextTab     *string    `json:"context_tab"`
	Description    *string    `json:"description"`
	IsActive       bool       `json:"is_active"`
	CreatedBy      *int       `json:"created_by"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      *time.Time `json:"updated_at"`
	Percentage     float64    `json:"percentage"`
}

type TargetCreate struct {
	Name        string  `json:"name" binding:"required"`
	Type        string  `json:"type" binding:"required,oneof=deals revenue units conversion"`
	TargetValue float64 `json:"target_value" binding:"gt=0"`
	AssignedTo  *int    `json:"assigned_to"`
	Period      string  `json:"period" binding:"required"`
	ContextTab  *string `json:"context_tab"`
	Description *string `json:"description"`
}

type TargetUpdate struct {
	Name        *string  `json:"name"`
	Type        *string  `json:"type" binding:"omitempty,oneof=deals revenue units conversion"`
	TargetValue *float64 `json:"target_value" binding:"omitempty,gt=0"`
	AssignedTo  *int     `json:"assigned_to"`
	Period      *string  `json:"period"`
	ContextTab  *string  `json:"context_tab"`
	Description *string  `json:"description"`
	IsActive    *bool    `json:"is_active"`
}

type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type TargetProgress struct {
	TargetID     int       `json:"target_id"`
	CurrentValue float64   `json:"current_value"`
	TargetValue  float64   `json:"target_value"`
	Percentage   float64   `json:"percentage"`
	Period       string    `json:"period"`
	DateRange    DateRange `json:"date_range"`
}

type TargetRecalcResult struct {
	Updated int      `json:"updated"`
	Errors  []string `json:"errors"`
}
