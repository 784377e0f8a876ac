package httpapi

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
	"go.uber.org/zap/zaptest"

	"surveydash/internal/config"
	"surveydash/internal/domain"
	"surveydash/internal/events"
	"surveydash/internal/metrics"
	"surveydash/internal/pipeline"
	"surveydash/internal/source/airtable"
	"surveydash/internal/source/types"
	"surveydash/internal/store"
)

type fakeFetcher struct {
	calls atomic.Int32
	err   error
	recs  []domain.RawRecord
}

func (f *fakeFetcher) Name() string { return "fake" }

func (f *fakeFetcher) FetchAll(context.Context) (types.FetchResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return types.FetchResult{}, f.err
	}
	return types.FetchResult{Source: "fake", Records: f.recs, Pages: 1, FetchedAt: time.Now().UTC()}, nil
}

func rec(id string, fields map[string]any) domain.RawRecord {
	return domain.RawRecord{ID: id, Fields: fields}
}

func sampleRecords() []domain.RawRecord {
	return []domain.RawRecord{
		rec("r1", map[string]any{
			domain.FieldCompanyID: "42", domain.FieldCompany: "Acme", domain.FieldCompleted: "Yes",
			domain.FieldFirstName: []any{"A"}, domain.FieldLastName: []any{""}, domain.FieldExpertID: []any{"1"},
			domain.FieldRegion: "EMEA", domain.FieldFTEs: "10",
		}),
		rec("r2", map[string]any{
			domain.FieldCompanyID: "42", domain.FieldCompany: "Acme", domain.FieldCompleted: "Yes",
			domain.FieldFirstName: []any{"B"}, domain.FieldLastName: []any{""}, domain.FieldExpertID: []any{""},
			domain.FieldRegion: "EMEA", domain.FieldFTEs: "10.01",
		}),
		rec("r3", map[string]any{
			domain.FieldCompany: "Beta", domain.FieldCompleted: "Yes", domain.FieldRegion: "APAC",
		}),
		rec("r4", map[string]any{
			domain.FieldCompanyID: "7", domain.FieldCompany: "Gamma", domain.FieldCompleted: "No",
		}),
	}
}

func manyRecords(n int) []domain.RawRecord {
	out := make([]domain.RawRecord, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, rec(fmt.Sprintf("r%d", i), map[string]any{
			domain.FieldCompany:   fmt.Sprintf("Co%02d", i),
			domain.FieldCompleted: "Yes",
		}))
	}
	return out
}

type testServer struct {
	t       *testing.T
	handler http.Handler
	fetcher *fakeFetcher
	cfgVal  *atomic.Value
	db      *store.DB
	applied atomic.Int32
}

func newTestServer(t *testing.T, f *fakeFetcher) *testServer {
	t.Helper()
	keyring.MockInit()

	db, err := store.Open(filepath.Join(t.TempDir(), "surveydash.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Default()
	cfg.Source.BaseID = "appTEST"
	cfg.Source.Table = "Sends"
	cfg.Dashboard.ExpertURLTemplate = "https://experts.test/view/{id}"
	cfgVal := &atomic.Value{}
	cfgVal.Store(cfg)

	cfgPath := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, config.SaveAtomic(cfgPath, cfg))

	log := zaptest.NewLogger(t)
	hub := events.NewHub()
	met := metrics.New()
	svc := pipeline.New(pipeline.Deps{
		Fetcher: f, DB: db.Pool, Hub: hub, Metrics: met, Log: log, TTL: time.Hour,
	})

	ts := &testServer{t: t, fetcher: f, cfgVal: cfgVal, db: db}
	mux := NewMux(Deps{
		DB:          db.Pool,
		Hub:         hub,
		Pipeline:    svc,
		Metrics:     met,
		Log:         log,
		CfgVal:      cfgVal,
		UserCfgPath: cfgPath,
		LoadCfg:     func() (config.Config, error) { return config.Load(cfgPath) },
		Apply:       func(config.Config) { ts.applied.Add(1) },
		Version:     "test",
	})
	ts.handler = Handler(mux, log)
	return ts
}

func (ts *testServer) do(method, target string, body []byte) *httptest.ResponseRecorder {
	ts.t.Helper()
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestSummaryJSON(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})

	w := ts.do(http.MethodGet, "/api/summary?show_ids=1", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	got := decode[struct {
		Rows       []domain.CompanySummary `json:"rows"`
		Total      int                     `json:"total"`
		TotalPages int                     `json:"total_pages"`
	}](t, w)
	require.Len(t, got.Rows, 2)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.TotalPages)

	acme := got.Rows[0]
	assert.Equal(t, "Acme (42)", acme.Display)
	assert.Equal(t, 2, acme.CompletedCount)
	assert.Equal(t, "[A](https://experts.test/view/1)", acme.ExpertLinks)
	assert.Equal(t, "Beta", got.Rows[1].Display)
}

func TestSummaryQueryValidation(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})

	for _, q := range []string{"page_size=7", "page=x", "count=-1", "sort=random", "show_ids=maybe"} {
		w := ts.do(http.MethodGet, "/api/summary?"+q, nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		e := decode[APIError](t, w)
		assert.Equal(t, "bad_request", e.Error.Code)
		assert.NotEmpty(t, e.Error.RequestID)
	}
	assert.Zero(t, ts.fetcher.calls.Load(), "bad queries never reach upstream")
}

func TestSummarySearchAndCount(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})

	got := decode[summaryResponse](t, ts.do(http.MethodGet, "/api/summary?q=beta", nil))
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "Beta", got.Rows[0].Display)

	got = decode[summaryResponse](t, ts.do(http.MethodGet, "/api/summary?count=2", nil))
	require.Len(t, got.Rows, 1)
	assert.Equal(t, "Acme", got.Rows[0].Display, "ids hidden by default")
}

func TestUpstreamErrorIs502(t *testing.T) {
	f := &fakeFetcher{err: &airtable.FetchError{StatusCode: 401, Status: "401 Unauthorized", Body: `{"error":"AUTHENTICATION_REQUIRED"}`, Page: 1}}
	ts := newTestServer(t, f)

	w := ts.do(http.MethodGet, "/api/summary", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	e := decode[APIError](t, w)
	assert.Equal(t, "upstream_error", e.Error.Code)
	assert.Equal(t, 401, e.Error.UpstreamStatus)
	assert.Contains(t, e.Error.UpstreamBody, "AUTHENTICATION_REQUIRED")

	w = ts.do(http.MethodGet, "/", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.Find("#error").Length())
	assert.Equal(t, "401", doc.Find("#upstream-status").Text())
	assert.Equal(t, 0, doc.Find("#companies").Length())

	runs, err := store.ListRuns(context.Background(), ts.db.Pool, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 401, runs[0].HTTPStatus)
}

func TestDashboardRendersAndPaginates(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: manyRecords(25)})

	w := ts.do(http.MethodGet, "/?page_size=10&page=2", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")

	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	rows := doc.Find("#companies tbody tr")
	assert.Equal(t, 10, rows.Length())
	assert.Equal(t, "Co10", rows.First().Find(".company").Text())
	assert.Equal(t, "Page 2 of 3 (25 companies)", doc.Find("#page-info").Text())
	assert.Equal(t, "25", doc.Find("#unique-completed b").Text())

	next, ok := doc.Find(`a[rel="next"]`).Attr("href")
	require.True(t, ok)
	assert.Contains(t, next, "page=3")
	assert.Contains(t, next, "page_size=10")
	prev, ok := doc.Find(`a[rel="prev"]`).Attr("href")
	require.True(t, ok)
	assert.Contains(t, prev, "page=1")

	w = ts.do(http.MethodGet, "/?page_size=10&page=99", nil)
	doc, err = goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)
	assert.Equal(t, "Page 3 of 3 (25 companies)", doc.Find("#page-info").Text())
	assert.Equal(t, 0, doc.Find(`a[rel="next"]`).Length())
}

func TestDashboardLinksAndStats(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})

	w := ts.do(http.MethodGet, "/?show_ids=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	doc, err := goquery.NewDocumentFromReader(w.Body)
	require.NoError(t, err)

	first := doc.Find("#companies tbody tr").First()
	assert.Equal(t, "Acme (42)", first.Find(".company").Text())
	links := first.Find(".experts a")
	require.Equal(t, 1, links.Length())
	href, _ := links.Attr("href")
	assert.Equal(t, "https://experts.test/view/1", href)

	assert.Equal(t, "3", doc.Find("#unique-sent b").Text())
	assert.Equal(t, 6, doc.Find("#fte-histogram tr").Length())
	assert.Equal(t, 2, doc.Find("#by-region tr").Length())
}

func TestCSVExport(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: manyRecords(25)})

	w := ts.do(http.MethodGet, "/api/summary.csv?page_size=10&page=2&q=co1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, w.Header().Get("Content-Disposition"), "completed_surveys_by_company.csv")

	recs, err := csv.NewReader(w.Body).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Company", "Completed Count", "Expert Profiles"}, recs[0])
	assert.Len(t, recs, 11, "search applies, pagination does not")
}

func TestMarkdownExport(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})

	w := ts.do(http.MethodGet, "/api/summary.md?show_ids=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Acme (42)")
	assert.Contains(t, body, "[A](https://experts.test/view/1)")
	assert.Contains(t, body, "|")
}

func TestRecordsAndStats(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})

	all := decode[struct {
		Count int `json:"count"`
	}](t, ts.do(http.MethodGet, "/api/records", nil))
	assert.Equal(t, 4, all.Count)

	done := decode[struct {
		Count   int                 `json:"count"`
		Records []domain.FlatRecord `json:"records"`
	}](t, ts.do(http.MethodGet, "/api/records?completed=1", nil))
	assert.Equal(t, 3, done.Count)
	for _, r := range done.Records {
		assert.Equal(t, "Yes", r.SurveyCompleted)
	}

	st := decode[struct {
		Stats struct {
			UniqueSent      int `json:"unique_sent"`
			UniqueCompleted int `json:"unique_completed"`
			MissingFTE      int `json:"missing_fte"`
			FTEHistogram    []struct {
				Label string `json:"label"`
				Count int    `json:"count"`
			} `json:"fte_histogram"`
		} `json:"stats"`
	}](t, ts.do(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, 3, st.Stats.UniqueSent)
	assert.Equal(t, 2, st.Stats.UniqueCompleted)
	assert.Equal(t, 1, st.Stats.MissingFTE)
	require.Len(t, st.Stats.FTEHistogram, 6)
	assert.Equal(t, 1, st.Stats.FTEHistogram[0].Count)
	assert.Equal(t, 1, st.Stats.FTEHistogram[1].Count)

	assert.Equal(t, int32(1), ts.fetcher.calls.Load(), "one cached snapshot serves every endpoint")
}

func TestRefreshAndRuns(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})

	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/summary", nil).Code)
	w := ts.do(http.MethodPost, "/api/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int32(2), ts.fetcher.calls.Load())

	runs := decode[struct {
		Runs []store.FetchRun `json:"runs"`
	}](t, ts.do(http.MethodGet, "/api/runs?limit=5", nil))
	require.Len(t, runs.Runs, 2)
	assert.True(t, runs.Runs[0].OK)
	assert.Equal(t, 4, runs.Runs[0].Records)

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodGet, "/api/runs?limit=0", nil).Code)
}

func TestMethodNotAllowedAndNotFound(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{})

	w := ts.do(http.MethodPost, "/api/summary", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "GET", w.Header().Get("Allow"))

	w = ts.do(http.MethodGet, "/api/refresh", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)

	assert.Equal(t, http.StatusNotFound, ts.do(http.MethodGet, "/nope", nil).Code)
}

func TestConfigEndpoints(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{})

	cur := decode[config.Config](t, ts.do(http.MethodGet, "/config", nil))
	assert.Equal(t, "appTEST", cur.Source.BaseID)

	bad := cur
	bad.Dashboard.ExpertURLTemplate = "https://x.test/view"
	body, _ := json.Marshal(bad)
	w := ts.do(http.MethodPut, "/config", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
	vr := decode[config.Validation](t, w)
	assert.Contains(t, vr.Errors, "dashboard.expert_url_template must contain {id}")

	good := cur
	good.Source.Table = "Other"
	body, _ = json.Marshal(good)
	w = ts.do(http.MethodPut, "/config", body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "Other", ts.cfgVal.Load().(config.Config).Source.Table)
	assert.Equal(t, int32(1), ts.applied.Load())

	w = ts.do(http.MethodPut, "/config", []byte(`{"nope":1}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)

	path := decode[map[string]string](t, ts.do(http.MethodGet, "/config/path", nil))
	assert.True(t, strings.HasSuffix(path["path"], "config.yml"))

	vr = decode[config.Validation](t, ts.do(http.MethodGet, "/config/validate", nil))
	assert.Empty(t, vr.Errors)
}

func TestSecretsToken(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{})
	t.Setenv(config.DefaultTokenEnv, "")

	st := decode[map[string]any](t, ts.do(http.MethodGet, "/api/secrets/token", nil))
	assert.Equal(t, false, st["set"])

	assert.Equal(t, http.StatusBadRequest, ts.do(http.MethodPost, "/api/secrets/token", []byte(`{"token":" "}`)).Code)

	w := ts.do(http.MethodPost, "/api/secrets/token", []byte(`{"token":"patABCDEFGH"}`))
	require.Equal(t, http.StatusNoContent, w.Code)

	st = decode[map[string]any](t, ts.do(http.MethodGet, "/api/secrets/token", nil))
	assert.Equal(t, true, st["set"])
	assert.Equal(t, "patAB********", st["masked"])
	assert.Equal(t, "surveydash:airtable:appTEST", st["account"])

	require.Equal(t, http.StatusNoContent, ts.do(http.MethodDelete, "/api/secrets/token", nil).Code)
	assert.Equal(t, int32(2), ts.applied.Load())
}

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})
	require.Equal(t, http.StatusOK, ts.do(http.MethodGet, "/api/summary", nil).Code)

	h := decode[map[string]any](t, ts.do(http.MethodGet, "/health", nil))
	assert.Equal(t, true, h["ok"])
	assert.Equal(t, "test", h["version"])
	assert.Contains(t, h, "cache")
	assert.Contains(t, h, "last_success")

	w := ts.do(http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `surveydash_fetch_total{outcome="ok"} 1`)
}

func TestCheckpointIsLoopbackOnly(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{})

	w := ts.do(http.MethodPost, "/db/checkpoint", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	r := httptest.NewRequest(http.MethodPost, "/db/checkpoint", nil)
	r.RemoteAddr = "127.0.0.1:5555"
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestRequestIDIsEchoed(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{})
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.Header.Set("X-Request-ID", "abc-123")
	w := httptest.NewRecorder()
	ts.handler.ServeHTTP(w, r)
	assert.Equal(t, "abc-123", w.Header().Get("X-Request-ID"))
}

func TestRecoverWritesEnvelope(t *testing.T) {
	h := Handler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), zaptest.NewLogger(t))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	e := decode[APIError](t, w)
	assert.Equal(t, "internal_error", e.Error.Code)
}

func TestCorsOnlyAllowsLocalOrigins(t *testing.T) {
	ts := newTestServer(t, &fakeFetcher{recs: sampleRecords()})

	tests := []struct {
		name       string
		method     string
		target     string
		origin     string
		wantStatus int
		wantAllow  string
	}{
		{"foreign preflight", http.MethodOptions, "/config", "https://evil.example", http.StatusForbidden, ""},
		{"foreign put", http.MethodPut, "/config", "https://evil.example", http.StatusForbidden, ""},
		{"foreign read", http.MethodGet, "/health", "https://evil.example", http.StatusOK, ""},
		{"lookalike host", http.MethodOptions, "/config", "http://localhost.evil.example", http.StatusForbidden, ""},
		{"localhost preflight", http.MethodOptions, "/config", "http://localhost:5173", http.StatusNoContent, "http://localhost:5173"},
		{"loopback preflight", http.MethodOptions, "/config", "http://127.0.0.1:38471", http.StatusNoContent, "http://127.0.0.1:38471"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(tt.method, tt.target, nil)
			r.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			ts.handler.ServeHTTP(w, r)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantAllow, w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
	assert.Equal(t, int32(0), ts.applied.Load())
}
