package models

import "time"

type LeadSetting struct {
	Type      string    `json:"type"`
	Data      any       `json:"data"`
	UpdatedBy *int      `json:"updated_by"`
	UpdatedAt time.Time `json:"updated_at"`
}

type LeadSettingRequest struct {
	Type string `json:"type" binding:"required"`
	Data any    `json:"data" binding:"required"`
}

const (
	SettingStatusPercentages = "status_percentages"
	SettingPreferences       = "preferences"
)

// Preferences are the tunables stored under the "preferences" lead setting.
type Preferences struct {
	LeadIDPrefix       string `json:"leadIdPrefix"`
	LeadIDStart        int64  `json:"leadIdStart"`
	FollowUpDays       int    `json:"followUpDays"`
	AgingAlertDays     int    `json:"agingAlertDays"`
	EmailNotifications bool   `json:"emailNotifications"`
	DailyDigest        bool   `json:"dailyDigest"`
	DefaultPageSize    int    `json:"defaultPageSize"`
	AutoLeadPercentage bool   `json:"autoLeadPercentage"`
}

func DefaultPreferences() Preferences {
	return Preferences{
		LeadIDPrefix:       "CS",
		LeadIDStart:        1000000001,
		FollowUpDays:       7,
		AgingAlertDays:     30,
		EmailNotifications: true,
		DailyDigest:        true,
		DefaultPageSize:    20,
		AutoLeadPercentage: false,
	}
}
