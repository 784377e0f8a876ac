package aggregate

import (
	"strings"

	"surveydash/internal/domain"
)

// Normalize flattens raw upstream rows. It never fails: missing or
// oddly-typed fields fall back to sentinels.
func Normalize(records []domain.RawRecord) []domain.FlatRecord {
	out := make([]domain.FlatRecord, 0, len(records))
	for _, r := range records {
		out = append(out, NormalizeRecord(r))
	}
	return out
}

func NormalizeRecord(r domain.RawRecord) domain.FlatRecord {
	f := r.Fields
	if f == nil {
		f = map[string]any{}
	}

	id := optionalString(f, domain.FieldCompanyID)
	name := stringOr(f, domain.FieldCompany, domain.Unknown)

	return domain.FlatRecord{
		CompanyID:       id,
		CompanyName:     name,
		CompanyDisplay:  domain.DisplayName(name, id),
		SurveyCompleted: completedValue(f, domain.FieldCompleted, domain.CompletedNo),
		Region:          stringOr(f, domain.FieldRegion, domain.Unknown),
		Industry:        stringOr(f, domain.FieldIndustry, domain.Unknown),
		FTEs:            stringOr(f, domain.FieldFTEs, domain.Unknown),
		Ownership:       stringOr(f, domain.FieldOwnership, domain.Unknown),
		Experts:         pairExperts(f),
	}
}

// pairExperts zips first names, last names and expert ids positionally,
// stopping at the shortest list.
func pairExperts(f map[string]any) []domain.Expert {
	first := stringList(f, domain.FieldFirstName)
	last := stringList(f, domain.FieldLastName)
	ids := stringList(f, domain.FieldExpertID)

	n := min(len(first), len(last), len(ids))
	if n == 0 {
		return []domain.Expert{}
	}
	out := make([]domain.Expert, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, domain.Expert{
			Name: strings.TrimSpace(first[i] + " " + last[i]),
			ID:   strings.TrimSpace(ids[i]),
		})
	}
	return out
}

// Completed keeps rows whose survey is marked "Yes", preserving order.
func Completed(rows []domain.FlatRecord) []domain.FlatRecord {
	out := make([]domain.FlatRecord, 0, len(rows))
	for _, r := range rows {
		if r.Completed() {
			out = append(out, r)
		}
	}
	return out
}
