package httpapi

import (
	"bytes"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"go.uber.org/zap"

	"surveydash/internal/aggregate"
)

//go:embed templates/dashboard.html
var templateFS embed.FS

var dashboardTmpl = template.Must(template.New("dashboard.html").Funcs(template.FuncMap{
	"dict": dict,
}).ParseFS(templateFS, "templates/dashboard.html"))

func dict(kv ...any) (map[string]any, error) {
	if len(kv)%2 != 0 {
		return nil, errors.New("dict: odd number of arguments")
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			return nil, errors.New("dict: keys must be strings")
		}
		m[k] = kv[i+1]
	}
	return m, nil
}

type dashboardRow struct {
	Display string
	Count   int
	Links   []aggregate.Link
}

type dashboardData struct {
	Error     *fetchFailure
	FetchedAt time.Time
	Stats     aggregate.Stats
	View      aggregate.View
	Page      aggregate.Page
	Rows      []dashboardRow
	PageSizes []int

	CSVURL  string
	PrevURL string
	NextURL string
}

type DashboardHandler struct {
	Deps Deps
}

func (h DashboardHandler) Index(w http.ResponseWriter, r *http.Request) {
	cfg := h.Deps.config()
	v, err := parseView(r.URL.Query(), cfg)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	data := dashboardData{View: v, PageSizes: cfg.Dashboard.PageSizes}
	status := http.StatusOK

	snap, err := h.Deps.Pipeline.Snapshot(r.Context())
	if err != nil {
		f := classifyFetchError(err)
		data.Error = &f
		status = f.Status
	} else {
		tmpl := cfg.Dashboard.ExpertURLTemplate
		sums := snap.Summaries(aggregate.Options{ShowIDs: v.ShowIDs, ExpertURLTemplate: tmpl})
		page := v.Apply(sums)

		data.FetchedAt = snap.FetchedAt
		data.Stats = snap.Stats
		data.Page = page
		data.View.Page = page.Page
		data.View.PageSize = page.PageSize
		for _, s := range page.Rows {
			data.Rows = append(data.Rows, dashboardRow{
				Display: s.Display,
				Count:   s.CompletedCount,
				Links:   aggregate.Links(s.Experts, tmpl),
			})
		}
		data.CSVURL = "/api/summary.csv?" + viewQuery(data.View, 1)
		if page.Page > 1 {
			data.PrevURL = "/?" + viewQuery(data.View, page.Page-1)
		}
		if page.Page < page.TotalPages {
			data.NextURL = "/?" + viewQuery(data.View, page.Page+1)
		}
	}

	var buf bytes.Buffer
	if err := dashboardTmpl.Execute(&buf, data); err != nil {
		h.Deps.Log.Error("render dashboard", zap.Error(err))
		WriteError(w, r, http.StatusInternalServerError, "render_failed", "could not render dashboard")
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}
