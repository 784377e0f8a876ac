package pipeline

import (
	"context"
	"time"

	"surveydash/internal/scheduler"
)

// RunRefresher re-fetches on a fixed interval so the cache is warm before
// users ask. A non-positive interval only warms the cache once.
func (s *Service) RunRefresher(ctx context.Context, interval time.Duration) {
	scheduler.Every(ctx, s.log, "refresh", interval, func(ctx context.Context) error {
		_, err := s.Refresh(ctx, "")
		return err
	})
}
