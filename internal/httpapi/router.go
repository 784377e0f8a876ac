package httpapi

import (
	"net/http"

	"go.uber.org/zap"
)

// NewMux returns the raw mux so main() can still attach /shutdown (needs srv+token).
func NewMux(d Deps) *http.ServeMux {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	mux := http.NewServeMux()

	// Dashboard
	dh := DashboardHandler{Deps: d}
	mux.HandleFunc("/{$}", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: dh.Index,
	}))

	// Summary API
	sh := SummaryHandler{Deps: d}
	mux.HandleFunc("/api/summary", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Summary,
	}))
	mux.HandleFunc("/api/summary.csv", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.CSV,
	}))
	mux.HandleFunc("/api/summary.md", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Markdown,
	}))
	mux.HandleFunc("/api/records", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Records,
	}))
	mux.HandleFunc("/api/stats", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: sh.Stats,
	}))
	mux.HandleFunc("/api/refresh", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: sh.Refresh,
	}))

	rh := RunsHandler{DB: d.DB}
	mux.HandleFunc("/api/runs", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: rh.List,
	}))

	// Config
	ch := ConfigHandler{
		CfgVal:      d.CfgVal,
		UserCfgPath: d.UserCfgPath,
		LoadCfg:     d.LoadCfg,
		Apply:       d.Apply,
		Hub:         d.Hub,
	}
	mux.HandleFunc("/config", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Get,
		http.MethodPut: ch.Put,
	}))
	mux.HandleFunc("/config/path", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Path,
	}))
	mux.HandleFunc("/config/validate", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: ch.Validate,
	}))

	// Secrets (use cfgVal, NOT a snapshot cfg)
	sech := SecretsHandler{CfgVal: d.CfgVal, Apply: d.Apply}
	mux.HandleFunc("/api/secrets/token", methodMux(map[string]http.HandlerFunc{
		http.MethodGet:    sech.TokenStatus,
		http.MethodPost:   sech.SetToken,
		http.MethodDelete: sech.DeleteToken,
	}))

	// SSE events
	eh := EventsHandler{Hub: d.Hub}
	mux.HandleFunc("/events", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: eh.ServeSSE,
	}))

	hh := HealthHandler{DB: d.DB, Pipeline: d.Pipeline, Hub: d.Hub, Version: d.Version}
	mux.HandleFunc("/health", methodMux(map[string]http.HandlerFunc{
		http.MethodGet: hh.Health,
	}))
	mux.Handle("/metrics", d.Metrics.Handler())

	dbh := DBHandler{DB: d.DB}
	mux.HandleFunc("/db/checkpoint", methodMux(map[string]http.HandlerFunc{
		http.MethodPost: dbh.Checkpoint,
	}))

	return mux
}

// Handler wraps mux in the standard middleware chain.
func Handler(mux http.Handler, log *zap.Logger) http.Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return Chain(mux, RequestID, Recover(log), AccessLog(log), Cors)
}
