package models

import "time"

type LeadReport struct {
	ID          string    `json:"id"`
	LeadID      int       `json:"lead_id"`
	Name        string    `json:"name"`
	Description *string   `json:"description"`
	Filename    string    `json:"-"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UploadedBy  string    `json:"uploaded_by"`
}

type DashboardStats struct {
	TotalLeads        int            `json:"total_leads"`
	UpcomingFollowups int            `json:"upcoming_followups"`
	MissedFollowups   int            `json:"missed_followups"`
	AgingAlerts       int            `json:"aging_alerts"`
	LeadsByStatus     map[string]int `json:"leads_by_status"`
	RecentLeads       []Lead         `json:"recent_leads"`
	ValueMetrics      ValueMetrics   `json:"value_metrics"`
	Targets           []Target       `json:"targets"`
}

type ValueMetrics struct {
	TotalApproxValue     float64 `json:"total_approx_value"`
	TotalNegotiatedValue float64 `json:"total_negotiated_value"`
	TotalClosingAmount   float64 `json:"total_closing_amount"`
}
