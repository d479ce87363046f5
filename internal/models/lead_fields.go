package models

// FieldKind decides how a lead field is parsed and compared.
type FieldKind int

const (
	KindText FieldKind = iota
	KindDate
	KindNumber
	KindInt
)

type LeadField struct {
	Key   string
	Kind  FieldKind
	Label string
}

// Column returns the SQL column name; "system" is quoted.
func (f LeadField) Column() string {
	if f.Key == "system" {
		return `"system"`
	}
	return f.Key
}

// LeadFields lists every client-writable lead field in table order.
// lead_id, lead_aging and the audit columns are maintained by the server.
var LeadFields = []LeadField{
	{"lead_date", KindDate, "Lead Date"},
	{"lead_source", KindText, "Lead Source"},
	{"lead_type", KindText, "Lead Type"},
	{"lead_owner", KindText, "Lead Owner"},
	{"staff_location", KindText, "Staff Location"},
	{"designation", KindText, "Designation"},
	{"company_name", KindText, "Company Name"},
	{"industry_type", KindText, "Industry Type"},
	{"system", KindText, "System"},
	{"project_amc", KindText, "Project/AMC"},
	{"state", KindText, "State"},
	{"district", KindText, "District"},
	{"city", KindText, "City"},
	{"pin_code", KindText, "Pin Code"},
	{"full_address", KindText, "Full Address"},
	{"company_website", KindText, "Company Website"},
	{"company_linkedin_link", KindText, "Company LinkedIn"},
	{"sub_industry", KindText, "Sub Industry"},
	{"gstin", KindText, "GSTIN"},
	{"customer_name", KindText, "Customer Name"},
	{"contact_no", KindText, "Contact No"},
	{"email_id", KindText, "Email"},
	{"linkedin_profile", KindText, "LinkedIn Profile"},
	{"designation_customer", KindText, "Customer Designation"},
	{"method_of_communication", KindText, "Method of Communication"},
	{"lead_status", KindText, "Lead Status"},
	{"purpose_of_meeting", KindText, "Purpose of Meeting"},
	{"meeting_outcome", KindText, "Meeting Outcome"},
	{"discussion_held", KindText, "Discussion Held"},
	{"remarks", KindText, "Remarks"},
	{"next_follow_up_date", KindDate, "Next Follow-up Date"},
	{"prospect", KindText, "Prospect"},
	{"approx_value", KindNumber, "Approx Value"},
	{"negotiated_value", KindNumber, "Negotiated Value"},
	{"closing_amount", KindNumber, "Closing Amount"},
	{"margin_percent", KindNumber, "Margin %"},
	{"gross_margin_amount", KindNumber, "Gross Margin Amount"},
	{"net_margin_amount", KindNumber, "Net Margin Amount"},
	{"received_amount", KindNumber, "Received Amount"},
	{"balance_amount", KindNumber, "Balance Amount"},
	{"payment_term", KindText, "Payment Term"},
	{"lead_closer_date", KindDate, "Lead Closer Date"},
	{"expected_lead_closer_month", KindText, "Expected Closer Month"},
	{"lead_percentage", KindInt, "Lead Percentage"},
	{"assigned_to", KindInt, "Assigned To"},
}

var leadFieldIndex = func() map[string]LeadField {
	m := make(map[string]LeadField, len(LeadFields))
	for _, f := range LeadFields {
		m[f.Key] = f
	}
	return m
}()

func LookupLeadField(key string) (LeadField, bool) {
	f, ok := leadFieldIndex[key]
	return f, ok
}

// RequiredLeadFields must be present and non-empty on create.
var RequiredLeadFields = []string{
	"lead_date", "lead_source", "lead_type", "designation", "company_name",
	"industry_type", "system", "project_amc", "state", "district", "city",
	"pin_code", "full_address", "customer_name", "contact_no", "email_id",
}

// LeadValues holds normalized field values keyed by LeadField.Key.
// Values are string (text/date), float64 (number), int (int) or nil (cleared).
type LeadValues map[string]any
