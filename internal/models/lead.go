package models

import "time"

type Lead struct {
	ID                      int        `json:"id"`
	LeadID                  string     `json:"lead_id"`
	LeadDate                string     `json:"lead_date"`
	LeadSource              *string    `json:"lead_source"`
	LeadType                *string    `json:"lead_type"`
	LeadOwner               *string    `json:"lead_owner"`
	StaffLocation           *string    `json:"staff_location"`
	Designation             *string    `json:"designation"`
	CompanyName             string     `json:"company_name"`
	IndustryType            *string    `json:"industry_type"`
	System                  *string    `json:"system"`
	ProjectAMC              *string    `json:"project_amc"`
	State                   *string    `json:"state"`
	District                *string    `json:"district"`
	City                    *string    `json:"city"`
	PinCode                 *string    `json:"pin_code"`
	FullAddress             *string    `json:"full_address"`
	CompanyWebsite          *string    `json:"company_website"`
	CompanyLinkedinLink     *string    `json:"company_linkedin_link"`
	SubIndustry             *string    `json:"sub_industry"`
	GSTIN                   *string    `json:"gstin"`
	CustomerName            *string    `json:"customer_name"`
	ContactNo               *string    `json:"contact_no"`
	EmailID                 *string    `json:"email_id"`
	LinkedinProfile         *string    `json:"linkedin_profile"`
	DesignationCustomer     *string    `json:"designation_customer"`
	MethodOfCommunication   *string    `json:"method_of_communication"`
	LeadStatus              string     `json:"lead_status"`
	PurposeOfMeeting        *string    `json:"purpose_of_meeting"`
	MeetingOutcome          *string    `json:"meeting_outcome"`
	DiscussionHeld          *string    `json:"discussion_held"`
	Remarks                 *string    `json:"remarks"`
	NextFollowUpDate        *string    `json:"next_follow_up_date"`
	Prospect                *string    `json:"prospect"`
	ApproxValue             *float64   `json:"approx_value"`
	NegotiatedValue         *float64   `json:"negotiated_value"`
	ClosingAmount           *float64   `json:"closing_amount"`
	MarginPercent           *float64   `json:"margin_percent"`
	GrossMarginAmount       *float64   `json:"gross_margin_amount"`
	NetMarginAmount         *float64   `json:"net_margin_amount"`
	ReceivedAmount          *float64   `json:"received_amount"`
	BalanceAmount           *float64   `json:"balance_amount"`
	PaymentTerm             *string    `json:"payment_term"`
	LeadCloserDate          *string    `json:"lead_closer_date"`
	ExpectedLeadCloserMonth *string    `json:"expected_lead_closer_month"`
	LeadAging               int        `json:"lead_aging"`
	LeadPercentage          int        `json:"lead_percentage"`
	CreatedBy               *int       `json:"created_by"`
	AssignedTo              *int       `json:"assigned_to"`
	CreatedAt               time.Time  `json:"created_at"`
	UpdatedAt               *time.Time `json:"updated_at"`

	CreatedByName  *string `json:"created_by_name,omitempty"`
	AssignedToName *string `json:"assigned_to_name,omitempty"`
}

type LeadActivity struct {
	ID              int       `json:"id"`
	LeadID          int       `json:"lead_id"`
	ActivityType    string    `json:"activity_type"`
	Description     string    `json:"description"`
	PerformedBy     *int      `json:"performed_by"`
	PerformedByName *string   `json:"performed_by_name"`
	CreatedAt       time.Time `json:"created_at"`
}

type LeadStatusChange struct {
	ID            int       `json:"id"`
	LeadID        int       `json:"lead_id"`
	OldStatus     *string   `json:"old_status"`
	NewStatus     string    `json:"new_status"`
	Remarks       *string   `json:"remarks"`
	ChangedBy     *int      `json:"changed_by"`
	ChangedByName *string   `json:"changed_by_name"`
	ChangedAt     time.Time `json:"changed_at"`
}

type LeadFieldChange struct {
	ID            int       `json:"id"`
	LeadID        int       `json:"lead_id"`
	FieldName     string    `json:"field_name"`
	OldValue      *string   `json:"old_value"`
	NewValue      *string   `json:"new_value"`
	ChangedBy     *int      `json:"changed_by"`
	ChangedByName *string   `json:"changed_by_name"`
	ChangedAt     time.Time `json:"changed_at"`
}

type LeadDetail struct {
	*Lead
	Activities    []LeadActivity     `json:"activities"`
	StatusHistory []LeadStatusChange `json:"status_history"`
	FieldHistory  []LeadFieldChange  `json:"field_history"`
}

type LeadFilter struct {
	Status string
	Owner  string
	Search string
	Page   int
	Limit  int
	// ScopeUserID > 0 restricts to leads created by or assigned to that user.
	ScopeUserID int
}

type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}

func NewPagination(page, limit, total int) Pagination {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return Pagination{Page: page, Limit: limit, Total: total, Pages: pages}
}

// FollowUp is one row of the daily digest.
type FollowUp struct {
	LeadID       string `json:"lead_id"`
	CompanyName  string `json:"company_name"`
	CustomerName string `json:"customer_name"`
	Status       string `json:"lead_status"`
	AssignedTo   int    `json:"assigned_to"`
}
