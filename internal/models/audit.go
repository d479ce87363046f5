package models

import (
	"encoding/json"
	"time"
)

type AuditLog struct {
	ID           int             `json:"id"`
	UserID       *int            `json:"user_id"`
	Username     string          `json:"username"`
	Action       string          `json:"action"`
	ResourceType string          `json:"resource_type"`
	ResourceID   string          `json:"resource_id"`
	Method       string          `json:"method"`
	Path         string          `json:"path"`
	IPAddress    string          `json:"ip_address"`
	UserAgent    string          `json:"user_agent"`
	StatusCode   int             `json:"status_code"`
	Success      bool            `json:"success"`
	Details      json.RawMessage `json:"details"`
	SessionToken string          `json:"-"`
	Description  string          `json:"description"`
	CreatedAt    time.Time       `json:"created_at"`
}

type AuditFilter struct {
	UserID       int
	Action       string
	ResourceType string
	DateFrom     string
	DateTo       string
	Page         int
	Limit        int
}

// ClientActivity is an activity record submitted by the browser.
type ClientActivity struct {
	Action      string         `json:"action" binding:"required"`
	Details     map[string]any `json:"details"`
	Path        string         `json:"path"`
	Resource    string         `json:"resource"`
	Description string         `json:"description"`
}

type SystemInfoRequest struct {
	SystemInfo map[string]any `json:"system_info" binding:"required"`
}

// SecurityEvent is one row of the security audit table.
type SecurityEvent struct {
	Timestamp time.Time       `json:"timestamp"`
	User      string          `json:"user"`
	Event     string          `json:"event"`
	Action    string          `json:"action"`
	IP        string          `json:"ip"`
	Details   json.RawMessage `json:"details"`
	Success   bool            `json:"success"`
}
