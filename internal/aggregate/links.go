package aggregate

import (
	"net/url"
	"strings"

	"surveydash/internal/domain"
)

const DefaultExpertURLTemplate = "https://maven2.dialecticanet.com/experts/view/{id}"

// Link is one rendered expert profile reference.
type Link struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

func ExpertURL(tmpl, id string) string {
	if tmpl == "" {
		tmpl = DefaultExpertURLTemplate
	}
	return strings.ReplaceAll(tmpl, "{id}", url.PathEscape(id))
}

// Links resolves every expert that has an id to a profile link, in order.
// An expert with an id but no name is labelled with the id.
func Links(experts []domain.Expert, tmpl string) []Link {
	out := make([]Link, 0, len(experts))
	for _, e := range experts {
		if e.ID == "" {
			continue
		}
		name := e.Name
		if name == "" {
			name = e.ID
		}
		out = append(out, Link{Name: name, URL: ExpertURL(tmpl, e.ID)})
	}
	return out
}

// FormatExpertLinks renders "[name](url), ..." for every expert that has an
// id. Experts without an id are left out of the text.
func FormatExpertLinks(experts []domain.Expert, tmpl string) string {
	links := Links(experts, tmpl)
	parts := make([]string, 0, len(links))
	for _, l := range links {
		parts = append(parts, "["+linkTextEscaper.Replace(l.Name)+"]("+linkURLEscaper.Replace(l.URL)+")")
	}
	return strings.Join(parts, ", ")
}

var (
	linkTextEscaper = strings.NewReplacer(`\`, `\\`, "[", `\[`, "]", `\]`)
	linkURLEscaper  = strings.NewReplacer("(", "%28", ")", "%29", " ", "%20")
)
