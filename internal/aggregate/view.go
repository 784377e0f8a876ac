package aggregate

import (
	"sort"
	"strings"

	"surveydash/internal/domain"
)

const (
	SortName      = "name"
	SortCountDesc = "count_desc"

	DefaultPageSize = 20
)

// View is the dashboard's presentation policy over summaries: search,
// exact-count selection, sort and page window.
type View struct {
	Query      string
	ShowIDs    bool
	Page       int // 1-based
	PageSize   int
	ExactCount int // 0 disables
	Sort       string
}

type Page struct {
	Rows       []domain.CompanySummary `json:"rows"`
	Total      int                     `json:"total"`
	Page       int                     `json:"page"`
	PageSize   int                     `json:"page_size"`
	TotalPages int                     `json:"total_pages"`
}

// Filter applies search, exact-count selection and sort. The input is not
// modified.
func (v View) Filter(in []domain.CompanySummary) []domain.CompanySummary {
	q := strings.ToLower(strings.TrimSpace(v.Query))

	out := make([]domain.CompanySummary, 0, len(in))
	for _, s := range in {
		if v.ExactCount > 0 && s.CompletedCount != v.ExactCount {
			continue
		}
		if q != "" &&
			!strings.Contains(strings.ToLower(s.Display), q) &&
			!strings.Contains(strings.ToLower(s.ExpertLinks), q) {
			continue
		}
		out = append(out, s)
	}

	if v.Sort == SortCountDesc {
		sort.SliceStable(out, func(i, j int) bool {
			return out[i].CompletedCount > out[j].CompletedCount
		})
	}
	return out
}

// Paginate cuts the page window. The page number is clamped into
// [1, TotalPages]; an empty input still has one (empty) page.
func (v View) Paginate(in []domain.CompanySummary) Page {
	size := v.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}
	totalPages := (len(in)-1)/size + 1
	if len(in) == 0 {
		totalPages = 1
	}
	page := v.Page
	if page < 1 {
		page = 1
	}
	if page > totalPages {
		page = totalPages
	}
	start := (page - 1) * size
	end := min(start+size, len(in))

	return Page{
		Rows:       in[start:end],
		Total:      len(in),
		Page:       page,
		PageSize:   size,
		TotalPages: totalPages,
	}
}

// Apply is Filter followed by Paginate.
func (v View) Apply(in []domain.CompanySummary) Page {
	return v.Paginate(v.Filter(in))
}
