package types

import (
	"context"
	"time"

	"surveydash/internal/domain"
)

type FetchResult struct {
	Source    string
	Records   []domain.RawRecord
	Pages     int
	FetchedAt time.Time
}

type Fetcher interface {
	Name() string
	FetchAll(ctx context.Context) (FetchResult, error)
}
