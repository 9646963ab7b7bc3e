package content

import (
	"log/slog"
	"time"

	"folio/internal/assets"
	"folio/internal/cache"
	"folio/internal/domain/repositories"
	contentRepo "folio/internal/domain/repositories/content"
	contentSvc "folio/internal/domain/services/content"
	"folio/internal/events"
	"folio/internal/metrics"
)

// Repositories groups the stores the content services are built on
type Repositories struct {
	Nodes     contentRepo.NodeRepository
	Versions  contentRepo.VersionRepository
	Snapshots contentRepo.SnapshotRepository
	Audit     contentRepo.AuditRepository
	Tx        repositories.TransactionManager
}

// Options carries the optional collaborators. Zero values disable the feature.
type Options struct {
	Cache             cache.SnapshotCache
	Assets            assets.Store
	Events            *events.Bus
	Metrics           *metrics.Metrics
	SchedulerInterval time.Duration
	// Now stamps versions, snapshots and schedule scans. Nil means time.Now.
	Now               func() time.Time
	Logger            *slog.Logger
}

// Services holds every content service, sharing one lock set and one publication cache
type Services struct {
	Lifecycle   contentSvc.LifecycleService
	Publication contentSvc.PublicationService
	Snapshots   contentSvc.SnapshotService
	Scheduler   *Scheduler
	Events      *events.Bus
}

// SetupServices initializes the content services with proper dependency injection
func SetupServices(repos Repositories, opts Options) *Services {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	bus := opts.Events
	if bus == nil {
		bus = events.NewBus(logger)
	}
	snapshotCache := opts.Cache
	if snapshotCache == nil {
		snapshotCache = cache.NewSnapshotCache(nil, "", 0)
	}

	locks := NewOperationLocks(opts.Metrics)
	publication := NewPublicationService(repos.Nodes, repos.Versions, NewStateCache(), logger)
	snapshots := NewSnapshotService(
		repos.Nodes,
		repos.Versions,
		repos.Snapshots,
		publication,
		snapshotCache,
		locks,
		opts.Metrics,
		opts.Now,
		logger,
	)
	lifecycle := NewLifecycleService(LifecycleDeps{
		Nodes:       repos.Nodes,
		Versions:    repos.Versions,
		Snapshots:   repos.Snapshots,
		Audit:       repos.Audit,
		Tx:          repos.Tx,
		Publication: publication,
		Renderer:    snapshots,
		Cache:       snapshotCache,
		Assets:      opts.Assets,
		Events:      bus,
		Locks:       locks,
		Metrics:     opts.Metrics,
		Now:         opts.Now,
		Logger:      logger,
	})

	return &Services{
		Lifecycle:   lifecycle,
		Publication: publication,
		Snapshots:   snapshots,
		Scheduler:   NewScheduler(repos.Versions, lifecycle, opts.SchedulerInterval, opts.Metrics, opts.Now, logger),
		Events:      bus,
	}
}
