package domain

// Upstream column names.
const (
	FieldCompanyID = "mv_company_id"
	FieldCompany   = "Relevant Company"
	FieldCompleted = "Survey Completed"
	FieldRegion    = "Region"
	FieldIndustry  = "Industry of Relevant Company"
	FieldFTEs      = "FTEs of Relevant Company"
	FieldOwnership = "Ownership of Former Relevant Company"
	FieldExpertID  = "Expert Id"
	FieldFirstName = "First Name [Extracted]"
	FieldLastName  = "Last Name [Extracted]"
)

const (
	Unknown      = "Unknown"
	CompletedYes = "Yes"
	CompletedNo  = "No"
)

// DefaultFields is the projection requested from the upstream table.
func DefaultFields() []string {
	return []string{
		FieldCompanyID,
		FieldCompany,
		FieldCompleted,
		FieldRegion,
		FieldIndustry,
		FieldFTEs,
		FieldOwnership,
		FieldExpertID,
		FieldFirstName,
		FieldLastName,
	}
}
