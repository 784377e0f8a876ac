package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// FetchRun is one upstream fetch attempt, successful or not.
type FetchRun struct {
	ID         int64     `json:"id"`
	Source     string    `json:"source"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	OK         bool      `json:"ok"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Pages      int       `json:"pages"`
	Records    int       `json:"records"`
	Completed  int       `json:"completed"`
	Error      string    `json:"error,omitempty"`
}

func (r FetchRun) Duration() time.Duration { return r.FinishedAt.Sub(r.StartedAt) }

func InsertRun(ctx context.Context, db *sql.DB, r FetchRun) (int64, error) {
	res, err := db.ExecContext(ctx, `
INSERT INTO fetch_runs(source, started_at, finished_at, ok, http_status, pages, records, completed, error)
VALUES(?,?,?,?,?,?,?,?,?);`,
		r.Source,
		r.StartedAt.UTC().Format(time.RFC3339Nano),
		r.FinishedAt.UTC().Format(time.RFC3339Nano),
		boolToInt(r.OK),
		r.HTTPStatus,
		r.Pages,
		r.Records,
		r.Completed,
		r.Error,
	)
	if err != nil {
		return 0, fmt.Errorf("insert fetch run: %w", err)
	}
	return res.LastInsertId()
}

// ListRuns returns the newest runs first.
func ListRuns(ctx context.Context, db *sql.DB, limit int) ([]FetchRun, error) {
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	rows, err := db.QueryContext(ctx, `
SELECT id, source, started_at, finished_at, ok, http_status, pages, records, completed, error
FROM fetch_runs
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []FetchRun{}
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LastSuccessfulRun reports the most recent ok run, if any.
func LastSuccessfulRun(ctx context.Context, db *sql.DB) (FetchRun, bool, error) {
	row := db.QueryRowContext(ctx, `
SELECT id, source, started_at, finished_at, ok, http_status, pages, records, completed, error
FROM fetch_runs
WHERE ok = 1
ORDER BY id DESC
LIMIT 1;`)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return FetchRun{}, false, nil
	}
	if err != nil {
		return FetchRun{}, false, err
	}
	return r, true, nil
}

// CleanupOldRuns keeps the newest keep rows.
func CleanupOldRuns(ctx context.Context, db *sql.DB, keep int) (deleted int64, err error) {
	res, err := db.ExecContext(ctx, `
DELETE FROM fetch_runs
WHERE id NOT IN (SELECT id FROM fetch_runs ORDER BY id DESC LIMIT ?);`, keep)
	if err != nil {
		return 0, fmt.Errorf("cleanup fetch runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(s scanner) (FetchRun, error) {
	var (
		r                 FetchRun
		started, finished string
		ok                int
	)
	if err := s.Scan(&r.ID, &r.Source, &started, &finished, &ok, &r.HTTPStatus, &r.Pages, &r.Records, &r.Completed, &r.Error); err != nil {
		return FetchRun{}, err
	}
	r.OK = ok != 0
	r.StartedAt, _ = time.Parse(time.RFC3339Nano, started)
	r.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished)
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
