package domain

// RawRecord is one upstream row before normalization. Field values keep the
// shape the API returned them in: scalars, lists, or absent.
type RawRecord struct {
	ID          string         `json:"id"`
	CreatedTime string         `json:"createdTime,omitempty"`
	Fields      map[string]any `json:"fields"`
}

// Expert is one (name, id) pair attached to a survey row.
type Expert struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// FlatRecord is the fixed-shape row every aggregate is computed from.
type FlatRecord struct {
	CompanyID       *string  `json:"company_id"`
	CompanyName     string   `json:"company_name"`
	CompanyDisplay  string   `json:"company_display"`
	SurveyCompleted string   `json:"survey_completed"`
	Region          string   `json:"region"`
	Industry        string   `json:"industry"`
	FTEs            string   `json:"ftes"`
	Ownership       string   `json:"ownership"`
	Experts         []Expert `json:"expert_info"`
}

func (r FlatRecord) Completed() bool { return r.SurveyCompleted == CompletedYes }

// CompanySummary is one aggregated row per (company name, company id) among
// completed rows.
type CompanySummary struct {
	CompanyName    string   `json:"company_name"`
	CompanyID      *string  `json:"company_id"`
	Display        string   `json:"display"`
	CompletedCount int      `json:"completed_count"`
	Experts        []Expert `json:"experts"`
	ExpertLinks    string   `json:"expert_links"`
}

// DisplayName renders "name" or "name (id)" when an id is present.
func DisplayName(name string, id *string) string {
	if id == nil || *id == "" {
		return name
	}
	return name + " (" + *id + ")"
}
