package content

import (
	"context"
	"log/slog"
	"sync"
	"time"

	models "folio/internal/domain/models/content"
	contentRepo "folio/internal/domain/repositories/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/metrics"
)

// Scan names reported to metrics and logs
const (
	scanRelease = "release"
	scanExpire  = "expire"
)

// Scheduler publishes and unpublishes content whose release or expire date has passed. Both
// scans run on one ticker; Start and Stop manage the background goroutine.
type Scheduler struct {
	versions  contentRepo.VersionRepository
	lifecycle contentSvc.LifecycleService
	interval  time.Duration
	now       func() time.Time
	metrics   *metrics.Metrics
	logger    *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewScheduler creates a scheduler. It does nothing until Start is called.
func NewScheduler(
	versions contentRepo.VersionRepository,
	lifecycle contentSvc.LifecycleService,
	interval time.Duration,
	m *metrics.Metrics,
	now func() time.Time,
	logger *slog.Logger,
) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	if now == nil {
		now = time.Now
	}
	return &Scheduler{
		versions:  versions,
		lifecycle: lifecycle,
		interval:  interval,
		now:       now,
		metrics:   m,
		logger:    logger,
		stop:      make(chan struct{}),
	}
}

var _ contentSvc.SchedulerService = (*Scheduler)(nil)

// Start runs both scans every interval until Stop is called or ctx is done
func (s *Scheduler) Start(ctx context.Context) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.tick(ctx)
			}
		}
	}()
	s.logger.Info("content scheduler started", "interval", s.interval)
}

// Stop waits for a running scan to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.wg.Wait()
		s.logger.Info("content scheduler stopped")
	})
}

func (s *Scheduler) tick(ctx context.Context) {
	if _, err := s.ReleaseDue(ctx); err != nil {
		s.logger.Error("release scan failed", "error", err)
	}
	if _, err := s.ExpireDue(ctx); err != nil {
		s.logger.Error("expiration scan failed", "error", err)
	}
}

// ReleaseDue clears the release date of each due node and publishes it
func (s *Scheduler) ReleaseDue(ctx context.Context) (*contentSvc.BatchResult, error) {
	ids, err := s.versions.DueForRelease(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return s.run(ctx, scanRelease, ids, func(id int64) (bool, error) {
		newest, err := s.versions.Newest(ctx, id)
		if err != nil {
			return false, err
		}
		newest.ReleaseDate = time.Time{}
		if err := s.versions.UpdateNewest(ctx, newest); err != nil {
			return false, err
		}
		return s.lifecycle.Publish(ctx, models.SystemActor, id)
	}), nil
}

// ExpireDue clears the expire date of each due node and unpublishes it
func (s *Scheduler) ExpireDue(ctx context.Context) (*contentSvc.BatchResult, error) {
	ids, err := s.versions.DueForExpiration(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return s.run(ctx, scanExpire, ids, func(id int64) (bool, error) {
		if err := s.clearExpireDate(ctx, id); err != nil {
			return false, err
		}
		return s.lifecycle.Unpublish(ctx, models.SystemActor, id)
	}), nil
}

// clearExpireDate resets the date on the published and the newest version so the next publish
// does not carry it forward
func (s *Scheduler) clearExpireDate(ctx context.Context, id int64) error {
	published, err := s.versions.PublishedVersion(ctx, id)
	if err != nil {
		return err
	}
	newest, err := s.versions.Newest(ctx, id)
	if err != nil {
		return err
	}
	for _, v := range []*models.Version{published, newest} {
		if v == nil || v.ExpireDate.IsZero() {
			continue
		}
		v.ExpireDate = time.Time{}
		if err := s.versions.Update(ctx, v); err != nil {
			return err
		}
	}
	return nil
}

// run applies fn to every id. Failures and vetoes are logged and the scan moves on.
func (s *Scheduler) run(ctx context.Context, scan string, ids []int64, fn func(id int64) (bool, error)) *contentSvc.BatchResult {
	result := &contentSvc.BatchResult{}
	for _, id := range ids {
		if ctx.Err() != nil {
			result.Fail(id, ctx.Err())
			continue
		}
		ok, err := fn(id)
		switch {
		case err != nil:
			s.logger.Error("scheduled operation failed", "scan", scan, "node_id", id, "error", err)
			result.Fail(id, err)
		case !ok:
			s.logger.Info("scheduled operation cancelled", "scan", scan, "node_id", id)
		default:
			result.Processed++
		}
	}

	s.metrics.RecordScheduled(scan, result.Processed, result.Failed)
	if len(ids) > 0 {
		s.logger.Info("scheduled scan finished",
			"scan", scan,
			"due", len(ids),
			"processed", result.Processed,
			"failed", result.Failed,
		)
	}
	return result
}
