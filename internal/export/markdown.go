package export

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"

	"surveydash/internal/aggregate"
	"surveydash/internal/domain"
)

const MarkdownFileName = "completed_surveys_by_company.md"

var tableTmpl = template.Must(template.New("table").Parse(`<table>
<thead><tr><th>Company</th><th>Completed Count</th><th>Expert Profiles</th></tr></thead>
<tbody>
{{- range .}}
<tr><td>{{.Display}}</td><td>{{.Count}}</td><td>{{range $i, $l := .Links}}{{if $i}}, {{end}}<a href="{{$l.URL}}">{{$l.Name}}</a>{{end}}</td></tr>
{{- end}}
</tbody>
</table>`))

type tableRow struct {
	Display string
	Count   int
	Links   []aggregate.Link
}

// Markdown renders summaries as a GitHub-flavoured table. Each expert is
// linked through urlTemplate.
type Markdown struct {
	conv        *md.Converter
	urlTemplate string
}

func NewMarkdown(urlTemplate string) *Markdown {
	conv := md.NewConverter("", true, nil)
	conv.Use(plugin.GitHubFlavored())
	return &Markdown{conv: conv, urlTemplate: urlTemplate}
}

// HTML renders the intermediate table.
func (m *Markdown) HTML(rows []domain.CompanySummary) (string, error) {
	data := make([]tableRow, 0, len(rows))
	for _, r := range rows {
		data = append(data, tableRow{
			Display: r.Display,
			Count:   r.CompletedCount,
			Links:   aggregate.Links(r.Experts, m.urlTemplate),
		})
	}
	var buf bytes.Buffer
	if err := tableTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render table: %w", err)
	}
	return buf.String(), nil
}

func (m *Markdown) Render(rows []domain.CompanySummary) (string, error) {
	html, err := m.HTML(rows)
	if err != nil {
		return "", err
	}
	out, err := m.conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("convert table: %w", err)
	}
	return strings.TrimSpace(out) + "\n", nil
}
