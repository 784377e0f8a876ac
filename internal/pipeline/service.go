// Package pipeline owns the fetch, normalize and aggregate cycle and the
// cached snapshot every dashboard request reads from.
package pipeline

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"surveydash/internal/aggregate"
	"surveydash/internal/cache"
	"surveydash/internal/domain"
	"surveydash/internal/events"
	"surveydash/internal/metrics"
	"surveydash/internal/source/airtable"
	"surveydash/internal/source/types"
	"surveydash/internal/store"
)

const (
	snapshotKey = "snapshot"

	// DefaultFetchTimeout bounds a full paginated fetch.
	DefaultFetchTimeout = 5 * time.Minute

	// keepRuns is how many fetch runs survive cleanup.
	keepRuns = 500
)

var ErrNoFetcher = errors.New("no data source configured")

// Snapshot is one successful fetch, normalized and analysed. It is shared
// between requests and must not be mutated.
type Snapshot struct {
	Source    string              `json:"source"`
	FetchedAt time.Time           `json:"fetched_at"`
	Pages     int                 `json:"pages"`
	Records   []domain.FlatRecord `json:"records"`
	Completed []domain.FlatRecord `json:"-"`
	Stats     aggregate.Stats     `json:"stats"`
}

func (s *Snapshot) Summaries(opts aggregate.Options) []domain.CompanySummary {
	return aggregate.Summarize(s.Completed, opts)
}

// Status mirrors the refresh loop for the health endpoint.
type Status struct {
	Running     bool      `json:"running"`
	LastRunAt   time.Time `json:"last_run_at,omitzero"`
	LastOKAt    time.Time `json:"last_ok_at,omitzero"`
	LastError   string    `json:"last_error,omitempty"`
	LastRecords int       `json:"last_records"`
}

type Deps struct {
	Fetcher      types.Fetcher
	DB           *sql.DB // optional run history
	Hub          *events.Hub
	Metrics      *metrics.Metrics
	Log          *zap.Logger
	TTL          time.Duration
	FetchTimeout time.Duration
}

type Service struct {
	mu      sync.RWMutex
	fetcher types.Fetcher

	cache        *cache.TTL[*Snapshot]
	db           *sql.DB
	hub          *events.Hub
	metrics      *metrics.Metrics
	log          *zap.Logger
	fetchTimeout time.Duration

	status atomic.Value // Status
}

func New(d Deps) *Service {
	if d.Log == nil {
		d.Log = zap.NewNop()
	}
	if d.FetchTimeout <= 0 {
		d.FetchTimeout = DefaultFetchTimeout
	}
	s := &Service{
		fetcher:      d.Fetcher,
		cache:        cache.New[*Snapshot](d.TTL),
		db:           d.DB,
		hub:          d.Hub,
		metrics:      d.Metrics,
		log:          d.Log.Named("pipeline"),
		fetchTimeout: d.FetchTimeout,
	}
	s.status.Store(Status{})
	return s
}

// SetFetcher swaps the data source and drops the cached snapshot.
func (s *Service) SetFetcher(f types.Fetcher) {
	s.mu.Lock()
	s.fetcher = f
	s.mu.Unlock()
	s.cache.Invalidate(snapshotKey)
}

// SetTTL changes how long future snapshots are kept.
func (s *Service) SetTTL(ttl time.Duration) { s.cache.SetTTL(ttl) }

func (s *Service) TTL() time.Duration { return s.cache.TTL() }

func (s *Service) currentFetcher() types.Fetcher {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.fetcher
}

// Snapshot returns the cached snapshot, fetching when it is missing or
// stale. Concurrent misses share one fetch.
func (s *Service) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap, hit, err := s.cache.GetOrLoad(ctx, snapshotKey, s.load)
	if err == nil {
		s.metrics.ObserveCache(hit)
	}
	return snap, err
}

// Cached returns the snapshot without fetching.
func (s *Service) Cached() (*Snapshot, time.Time, bool) {
	snap, ok := s.cache.Get(snapshotKey)
	if !ok {
		return nil, time.Time{}, false
	}
	exp, _ := s.cache.Expiry(snapshotKey)
	return snap, exp, true
}

// Refresh drops the cached snapshot and fetches a new one.
func (s *Service) Refresh(ctx context.Context, reqID string) (*Snapshot, error) {
	s.cache.Invalidate(snapshotKey)
	s.hub.Emit(reqID, events.TypeCacheInvalidated, nil)
	return s.Snapshot(ctx)
}

func (s *Service) Status() Status {
	st, _ := s.status.Load().(Status)
	return st
}

func (s *Service) setStatus(fn func(*Status)) {
	st := s.Status()
	fn(&st)
	s.status.Store(st)
}

func (s *Service) load(ctx context.Context) (*Snapshot, error) {
	f := s.currentFetcher()
	if f == nil {
		return nil, ErrNoFetcher
	}

	// The fetch is shared by every waiting request, so one caller going
	// away must not cancel it.
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchTimeout)
	defer cancel()

	started := time.Now().UTC()
	s.setStatus(func(st *Status) {
		st.Running = true
		st.LastRunAt = started
	})
	s.log.Info("fetch started", zap.String("source", f.Name()))

	res, err := f.FetchAll(fctx)
	finished := time.Now().UTC()

	run := store.FetchRun{
		Source:     f.Name(),
		StartedAt:  started,
		FinishedAt: finished,
	}

	if err != nil {
		outcome := metrics.OutcomeError
		if fe, ok := airtable.AsFetchError(err); ok {
			outcome = metrics.OutcomeUpstream
			run.HTTPStatus = fe.StatusCode
			run.Pages = fe.Page
		}
		run.Error = err.Error()
		s.recordRun(run)
		s.metrics.ObserveFetch(outcome, run.Pages, finished.Sub(started))
		s.setStatus(func(st *Status) {
			st.Running = false
			st.LastError = err.Error()
		})
		s.log.Error("fetch failed",
			zap.String("source", f.Name()),
			zap.Int("http_status", run.HTTPStatus),
			zap.Duration("took", finished.Sub(started)),
			zap.Error(err),
		)
		s.hub.Emit("", events.TypeFetchFailed, map[string]any{
			"error":       err.Error(),
			"http_status": run.HTTPStatus,
		})
		return nil, err
	}

	snap := Build(res)

	run.OK = true
	run.Pages = res.Pages
	run.Records = len(snap.Records)
	run.Completed = len(snap.Completed)
	s.recordRun(run)
	s.metrics.ObserveFetch(metrics.OutcomeOK, res.Pages, finished.Sub(started))
	s.metrics.SetSnapshotSize(run.Records, run.Completed)
	s.setStatus(func(st *Status) {
		st.Running = false
		st.LastOKAt = finished
		st.LastError = ""
		st.LastRecords = run.Records
	})
	s.log.Info("fetch ok",
		zap.String("source", f.Name()),
		zap.Int("pages", res.Pages),
		zap.Int("records", run.Records),
		zap.Int("completed", run.Completed),
		zap.Duration("took", finished.Sub(started)),
	)
	s.hub.Emit("", events.TypeDataRefreshed, map[string]any{
		"records":    run.Records,
		"completed":  run.Completed,
		"pages":      res.Pages,
		"fetched_at": snap.FetchedAt,
	})
	return snap, nil
}

// Build normalizes a fetch result into a snapshot.
func Build(res types.FetchResult) *Snapshot {
	rows := aggregate.Normalize(res.Records)
	fetchedAt := res.FetchedAt
	if fetchedAt.IsZero() {
		fetchedAt = time.Now().UTC()
	}
	return &Snapshot{
		Source:    res.Source,
		FetchedAt: fetchedAt,
		Pages:     res.Pages,
		Records:   rows,
		Completed: aggregate.Completed(rows),
		Stats:     aggregate.ComputeStats(rows),
	}
}

func (s *Service) recordRun(run store.FetchRun) {
	if s.db == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := store.InsertRun(ctx, s.db, run); err != nil {
		s.log.Warn("record fetch run", zap.Error(err))
		return
	}
	if _, err := store.CleanupOldRuns(ctx, s.db, keepRuns); err != nil {
		s.log.Warn("cleanup fetch runs", zap.Error(err))
	}
}
