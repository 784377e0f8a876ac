package aggregate

import (
	"sort"

	"surveydash/internal/domain"
)

type Options struct {
	ShowIDs           bool
	ExpertURLTemplate string
}

type groupKey struct {
	name  string
	hasID bool
	id    string
}

func keyOf(r domain.FlatRecord) groupKey {
	if r.CompanyID == nil {
		return groupKey{name: r.CompanyName}
	}
	return groupKey{name: r.CompanyName, hasID: true, id: *r.CompanyID}
}

func (k groupKey) less(o groupKey) bool {
	if k.name != o.name {
		return k.name < o.name
	}
	if k.hasID != o.hasID {
		return !k.hasID
	}
	return k.id < o.id
}

// Summarize groups completed rows by (company name, company id). Rows not
// marked completed are ignored. A missing id is its own group value and is
// never merged with an id-bearing group of the same name. Output is ordered
// by name, then id (missing first).
func Summarize(rows []domain.FlatRecord, opts Options) []domain.CompanySummary {
	groups := map[groupKey]*domain.CompanySummary{}
	var keys []groupKey

	for _, r := range rows {
		if !r.Completed() {
			continue
		}
		k := keyOf(r)
		g, ok := groups[k]
		if !ok {
			g = &domain.CompanySummary{
				CompanyName: r.CompanyName,
				Experts:     []domain.Expert{},
			}
			if k.hasID {
				id := k.id
				g.CompanyID = &id
			}
			groups[k] = g
			keys = append(keys, k)
		}
		g.CompletedCount++
		g.Experts = append(g.Experts, r.Experts...)
	}

	sort.SliceStable(keys, func(i, j int) bool { return keys[i].less(keys[j]) })

	out := make([]domain.CompanySummary, 0, len(keys))
	for _, k := range keys {
		g := *groups[k]
		if opts.ShowIDs {
			g.Display = domain.DisplayName(g.CompanyName, g.CompanyID)
		} else {
			g.Display = g.CompanyName
		}
		g.ExpertLinks = FormatExpertLinks(g.Experts, opts.ExpertURLTemplate)
		out = append(out, g)
	}
	return out
}
