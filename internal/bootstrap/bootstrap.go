package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	goredis "github.com/redis/go-redis/v9"

	"github.com/aimiten/readiness-assistant/internal/config"
	"github.com/aimiten/readiness-assistant/internal/core/domain"
	"github.com/aimiten/readiness-assistant/internal/core/ports"
	"github.com/aimiten/readiness-assistant/internal/core/usecase"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/cache/redis"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/doctype"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/edgefn"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/export/xlsx"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/extractor/spreadsheet"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/queue/nats"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/repository/postgres"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/resilience"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/storage/gcs"
	"github.com/aimiten/readiness-assistant/internal/infrastructure/storage/localfs"
	"github.com/aimiten/readiness-assistant/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	Queue       *nats.Queue
	Sessions    ports.SessionGateway
	Documents   ports.DocumentResolver
	Assessments *usecase.StoreRegistry
	Remediation *usecase.RemediationUseCase
	Exporter    ports.ReviewExporter
	Metrics     *metrics.HTTPServerMetrics

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	closers := make([]func(), 0, 4)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	closers = append(closers, func() { _ = db.Close() })
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		closeAll()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	sessionRepo := postgres.NewSessionRepository(db)
	documentRepo := postgres.NewDocumentRepository(db)
	companyRepo := postgres.NewCompanyRepository(db)
	valuationRepo := postgres.NewValuationRepository(db)
	taskRepo := postgres.NewTaskRepository(db)

	storage, closeStorage, err := newObjectStorage(ctx, cfg)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init object storage: %w", err)
	}
	closers = append(closers, closeStorage)

	httpMetrics := metrics.NewHTTPServerMetrics("readiness-api")

	queueExecutor := resilience.NewExecutor(resilience.EventPublishConfig()).
		WithLogger(logger).
		OnStateChange(httpMetrics.ObserveBreakerState)
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: queueExecutor,
		Logger:             logger,
	})
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init message queue: %w", err)
	}
	closers = append(closers, queue.Close)

	types, err := doctype.Load(cfg.DocumentTypeRulesPath)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("load document type rules: %w", err)
	}

	resolverOpts := []usecase.DocumentResolverOption{
		usecase.WithSpreadsheetExtractor(spreadsheet.NewExtractor(cfg.SpreadsheetMaxRows)),
		usecase.WithValuationCompanyFallback(cfg.ValuationCompanyFallback),
		usecase.WithResolverLogger(logger),
	}
	if cfg.RedisURL != "" {
		rdb, err := redis.NewClient(ctx, cfg.RedisURL)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init content cache: %w", err)
		}
		closers = append(closers, func() { _ = rdb.Close() })
		resolverOpts = append(resolverOpts, usecase.WithContentCache(newContentCache(rdb, cfg)))
	}
	resolver := usecase.NewDocumentResolver(documentRepo, valuationRepo, storage, types, resolverOpts...)

	remoteExecutor := resilience.NewExecutor(resilience.RemoteFunctionsConfig(cfg.RemoteBreakerEnabled, cfg.RemoteBreakerOpenAfter)).
		WithLogger(logger).
		OnStateChange(httpMetrics.ObserveBreakerState)
	remote := edgefn.New(cfg.EdgeFunctionsURL, edgefn.Options{
		APIKey:             cfg.EdgeFunctionsAPIKey,
		ResilienceExecutor: remoteExecutor,
	})
	invoker := usecase.NewAnalysisInvoker(remote, cfg.QuestionsFunction, cfg.AnalysisFunction, httpMetrics)

	gateway := usecase.NewSessionGateway(sessionRepo, companyRepo)
	registry := usecase.NewStoreRegistry(usecase.StoreDeps{
		Gateway:  gateway,
		Resolver: resolver,
		Invoker:  invoker,
		Events:   meteredPublisher{next: queue, metrics: httpMetrics},
		Observer: httpMetrics,
		Logger:   logger,
		IdleTTL:  cfg.AssessmentIdleTTL,
	})

	return &App{
		Config: cfg,
		Logger: logger,

		Queue:       queue,
		Sessions:    gateway,
		Documents:   resolver,
		Assessments: registry,
		Remediation: usecase.NewRemediationUseCase(sessionRepo, taskRepo, logger),
		Exporter:    xlsx.NewExporter(),
		Metrics:     httpMetrics,

		closeFn: closeAll,
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

func newObjectStorage(ctx context.Context, cfg config.Config) (ports.ObjectStorage, func(), error) {
	switch cfg.StorageBackend {
	case "", "localfs":
		s, err := localfs.New(cfg.StoragePath)
		if err != nil {
			return nil, nil, err
		}
		return s, func() {}, nil
	case "gcs":
		s, err := gcs.New(ctx, cfg.GCSBucket)
		if err != nil {
			return nil, nil, err
		}
		return s, func() { _ = s.Close() }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}

func newContentCache(rdb *goredis.Client, cfg config.Config) ports.ContentCache {
	return redis.NewContentCache(rdb, cfg.ContentCacheTTL)
}

// meteredPublisher counts publish outcomes.
type meteredPublisher struct {
	next    ports.EventPublisher
	metrics *metrics.HTTPServerMetrics
}

func (p meteredPublisher) PublishAssessmentCompleted(ctx context.Context, event domain.AssessmentCompletedEvent) error {
	err := p.next.PublishAssessmentCompleted(ctx, event)
	p.metrics.RecordEventPublish(err)
	return err
}
