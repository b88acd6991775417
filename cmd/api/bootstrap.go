package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/school-support/internal/api/http/handlers"
	"github.com/spec-kit/school-support/internal/classifier"
	"github.com/spec-kit/school-support/internal/config"
	"github.com/spec-kit/school-support/internal/events"
	"github.com/spec-kit/school-support/internal/lock"
	"github.com/spec-kit/school-support/internal/observability"
	"github.com/spec-kit/school-support/internal/persistence"
	"github.com/spec-kit/school-support/internal/repository"
	"github.com/spec-kit/school-support/internal/service"
	"github.com/spec-kit/school-support/internal/triage"
	"github.com/spec-kit/school-support/internal/worker"
)

// application holds the wired services shared by every command.
type application struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	store   repository.Store
	redis   *persistence.Redis
	checks  map[string]handlers.Check
	closers []func()

	tickets   *service.TicketService
	assign    *service.AssignmentService
	archive   *service.ArchiveService
	users     *service.UserService
	auth      *service.AuthService
	analytics *service.AnalyticsService
}

func bootstrap(ctx context.Context) (*application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	app := &application{
		cfg:     cfg,
		logger:  logger,
		metrics: observability.NewMetrics(),
		checks:  map[string]handlers.Check{},
	}
	if err := app.openStore(ctx); err != nil {
		app.Close()
		return nil, err
	}

	app.redis = persistence.NewRedis(cfg.Redis, logger)
	app.closers = append(app.closers, app.redis.Close)
	if app.redis.Enabled() {
		app.checks["redis"] = app.redis.Ping
	}

	var locker lock.Locker = lock.NewKeyedMutex()
	if cfg.Lock.Backend == config.LockBackendRedis {
		locker = lock.NewRedisLocker(app.redis.Client, cfg.Lock.KeyNamespace, cfg.Lock.TTL(), cfg.Lock.RetryInterval(), logger)
	}

	client := classifier.New(classifier.Config{
		Endpoint:       cfg.Classifier.Endpoint,
		APIKey:         cfg.Classifier.APIKey,
		Model:          cfg.Classifier.Model,
		MaxAttempts:    cfg.Classifier.MaxAttempts,
		Backoff:        cfg.Classifier.Backoff(),
		RequestTimeout: cfg.Classifier.RequestTimeout(),
	}, logger)
	pipeline := triage.NewPipeline(client, triage.DefaultConfig(), logger, app.metrics)

	dispatcher := events.NewInMemoryDispatcher()
	var publisher service.Publisher
	if app.redis.Enabled() {
		publisher = app.redis.Client
	}
	worker.StartNotificationWorker(service.NewNotificationService(dispatcher, publisher, logger, cfg.Notification))

	ticketCfg := service.DefaultTicketConfig()
	ticketCfg.Location = cfg.App.Location()
	ticketCfg.StoreTimeout = cfg.Store.WriteTimeout()

	app.tickets = service.NewTicketService(ticketCfg, service.TicketDependencies{
		TicketRepo: app.store.Tickets(),
		UserRepo:   app.store.Users(),
		Triage:     pipeline,
		Locker:     locker,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	app.assign = service.NewAssignmentService(ticketCfg, service.AssignmentDependencies{
		TicketRepo: app.store.Tickets(),
		UserRepo:   app.store.Users(),
		Locker:     locker,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	app.archive = service.NewArchiveService(ticketCfg, service.ArchiveDependencies{
		TicketRepo:  app.store.Tickets(),
		ArchiveRepo: app.store.Archives(),
		Locker:      locker,
		Dispatcher:  dispatcher,
		Logger:      logger,
	})
	app.users = service.NewUserService(cfg.Auth, service.UserDependencies{
		UserRepo:   app.store.Users(),
		TicketRepo: app.store.Tickets(),
		Locker:     locker,
		Logger:     logger,
	})
	app.auth = service.NewAuthService(cfg.Auth, app.store.Users())
	app.analytics = service.NewAnalyticsService(app.store.Tickets())
	return app, nil
}

func (a *application) openStore(ctx context.Context) error {
	switch a.cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pg, err := persistence.NewPostgres(ctx, a.cfg.Postgres, a.logger)
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		a.closers = append(a.closers, pg.Close)
		if a.cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.PoolHandle(), a.logger); err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
		}
		a.store = repository.NewPostgresStore(pg.PoolHandle())
		a.checks["postgres"] = pg.Ping
	case config.StoreDriverSQLite:
		db, err := persistence.NewSQLite(a.cfg.SQLite, a.logger)
		if err != nil {
			return fmt.Errorf("open sqlite: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.store = repository.NewGormStore(db.DB)
		a.checks["sqlite"] = func(context.Context) error { return db.Ping() }
	default:
		a.logger.Warn("using in-memory store; data is lost on exit")
		a.store = repository.NewMemoryStore()
	}
	a.logger.Info("store ready", zap.String("driver", a.cfg.Store.Driver))
	return nil
}

// seedAdmin creates the administrator account on an empty store.
func (a *application) seedAdmin(ctx context.Context) error {
	created, err := a.users.EnsureDefaultAdmin(ctx)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		a.logger.Warn("default admin created; change its password at first login",
			zap.String("username", a.cfg.Auth.AdminUsername))
	}
	return nil
}

// Close releases connections in reverse order of acquisition.
func (a *application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	_ = a.logger.Sync()
}
