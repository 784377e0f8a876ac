package httpapi

import (
	"bytes"
	"net/http"
	"time"

	"surveydash/internal/aggregate"
	"surveydash/internal/domain"
	"surveydash/internal/export"
	"surveydash/internal/pipeline"
)

type SummaryHandler struct {
	Deps Deps
}

type summaryResponse struct {
	FetchedAt time.Time `json:"fetched_at"`
	ShowIDs   bool      `json:"show_ids"`
	Query     string    `json:"q,omitempty"`
	aggregate.Page
}

// load resolves the snapshot and the view for one request, writing the
// error response itself when either fails.
func (h SummaryHandler) load(w http.ResponseWriter, r *http.Request) (*pipeline.Snapshot, aggregate.View, bool) {
	cfg := h.Deps.config()
	v, err := parseView(r.URL.Query(), cfg)
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "bad_request", err.Error())
		return nil, v, false
	}
	snap, err := h.Deps.Pipeline.Snapshot(r.Context())
	if err != nil {
		writeFetchError(w, r, err)
		return nil, v, false
	}
	return snap, v, true
}

func (h SummaryHandler) summaries(snap *pipeline.Snapshot, v aggregate.View) []domain.CompanySummary {
	return snap.Summaries(aggregate.Options{
		ShowIDs:           v.ShowIDs,
		ExpertURLTemplate: h.Deps.config().Dashboard.ExpertURLTemplate,
	})
}

func (h SummaryHandler) Summary(w http.ResponseWriter, r *http.Request) {
	snap, v, ok := h.load(w, r)
	if !ok {
		return
	}
	page := v.Apply(h.summaries(snap, v))
	writeJSON(w, summaryResponse{
		FetchedAt: snap.FetchedAt,
		ShowIDs:   v.ShowIDs,
		Query:     v.Query,
		Page:      page,
	})
}

// CSV exports every row that passes the search, ignoring pagination.
func (h SummaryHandler) CSV(w http.ResponseWriter, r *http.Request) {
	snap, v, ok := h.load(w, r)
	if !ok {
		return
	}
	rows := v.Filter(h.summaries(snap, v))

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		WriteError(w, r, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+export.CSVFileName+`"`)
	_, _ = w.Write(buf.Bytes())
}

// Markdown renders the current page as a table.
func (h SummaryHandler) Markdown(w http.ResponseWriter, r *http.Request) {
	snap, v, ok := h.load(w, r)
	if !ok {
		return
	}
	page := v.Apply(h.summaries(snap, v))

	out, err := export.NewMarkdown(h.Deps.config().Dashboard.ExpertURLTemplate).Render(page.Rows)
	if err != nil {
		WriteError(w, r, http.StatusInternalServerError, "export_failed", err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(out))
}

func (h SummaryHandler) Records(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Deps.Pipeline.Snapshot(r.Context())
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	rows := snap.Records
	if b, err := parseBool(r.URL.Query().Get("completed")); err == nil && b {
		rows = snap.Completed
	}
	writeJSON(w, map[string]any{
		"fetched_at": snap.FetchedAt,
		"count":      len(rows),
		"records":    rows,
	})
}

func (h SummaryHandler) Stats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Deps.Pipeline.Snapshot(r.Context())
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"fetched_at": snap.FetchedAt,
		"stats":      snap.Stats,
	})
}

func (h SummaryHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Deps.Pipeline.Refresh(r.Context(), RequestIDFrom(r.Context()))
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, map[string]any{
		"ok":         true,
		"fetched_at": snap.FetchedAt,
		"pages":      snap.Pages,
		"records":    len(snap.Records),
		"completed":  len(snap.Completed),
	})
}
