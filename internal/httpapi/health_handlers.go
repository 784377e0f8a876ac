package httpapi

import (
	"database/sql"
	"net/http"
	"time"

	"surveydash/internal/events"
	"surveydash/internal/pipeline"
	"surveydash/internal/store"
)

type HealthHandler struct {
	DB       *sql.DB
	Pipeline *pipeline.Service
	Hub      *events.Hub
	Version  string
}

func (h HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"ok":      true,
		"version": h.Version,
	}
	if h.Hub != nil {
		out["subscribers"] = h.Hub.Len()
	}
	if h.Pipeline != nil {
		out["fetch"] = h.Pipeline.Status()
		cache := map[string]any{"ttl_seconds": int(h.Pipeline.TTL().Seconds())}
		if snap, exp, ok := h.Pipeline.Cached(); ok {
			cache["fetched_at"] = snap.FetchedAt
			cache["expires_at"] = exp
			cache["records"] = len(snap.Records)
			cache["fresh_for"] = time.Until(exp).Round(time.Second).String()
		}
		out["cache"] = cache
	}
	if h.DB != nil {
		if run, ok, err := store.LastSuccessfulRun(r.Context(), h.DB); err == nil && ok {
			out["last_success"] = map[string]any{
				"finished_at": run.FinishedAt,
				"records":     run.Records,
				"pages":       run.Pages,
				"duration_ms": run.Duration().Milliseconds(),
			}
		}
	}
	writeJSON(w, out)
}
