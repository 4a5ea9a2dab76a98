package cli

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/alexanderramin/sitesync/internal/aggregate"
	"github.com/alexanderramin/sitesync/internal/auth"
	"github.com/alexanderramin/sitesync/internal/changefeed"
	"github.com/alexanderramin/sitesync/internal/config"
	"github.com/alexanderramin/sitesync/internal/db"
	"github.com/alexanderramin/sitesync/internal/kv"
	"github.com/alexanderramin/sitesync/internal/logging"
	"github.com/alexanderramin/sitesync/internal/metrics"
	"github.com/alexanderramin/sitesync/internal/report"
	"github.com/alexanderramin/sitesync/internal/repository"
	"github.com/alexanderramin/sitesync/internal/service"
	"github.com/alexanderramin/sitesync/internal/session"
	"github.com/alexanderramin/sitesync/internal/store"
	"github.com/alexanderramin/sitesync/internal/transport/amqpfeed"
	"github.com/alexanderramin/sitesync/internal/transport/pgnotify"
)

// Wire loads configuration from configPath and builds the App. It is the
// production Builder.
func Wire(ctx context.Context, configPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("building logger: %w", err)
	}
	app, err := WireConfig(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	app.OnClose(func() error {
		_ = logger.Sync()
		return nil
	})
	return app, nil
}

// WireConfig builds the App from an already loaded configuration.
func WireConfig(ctx context.Context, cfg config.Config, logger *zap.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close()
		}
	}()

	database, dialect, err := db.Open(cfg.Backend.Driver, cfg.Backend.DSN)
	if err != nil {
		return nil, err
	}
	app.OnClose(database.Close)

	if err := assemble(ctx, app, database, dialect); err != nil {
		return nil, err
	}
	return app, nil
}

// assemble builds everything above the backend connection. The caller owns
// database.
func assemble(ctx context.Context, app *App, database *sql.DB, dialect db.Dialect) error {
	cfg, logger := app.Config, app.Logger
	app.DB, app.Dialect = database, dialect

	authn, err := auth.NewAuthenticator(cfg.Auth.Secret, auth.WithTTL(cfg.Auth.TokenTTL))
	if err != nil {
		return err
	}
	app.Auth = authn

	kvs, err := openKV(ctx, cfg.KV, app)
	if err != nil {
		return err
	}

	sink := report.Multi{report.LogSink{Logger: logger}, metrics.FailureCounter{}}
	app.Sink = sink

	stores := store.NewStores(kvs, sink)
	if err := stores.Restore(ctx); err != nil {
		logger.Warn("restoring local snapshots", zap.Error(err))
	}
	app.Stores = stores

	policy, err := aggregate.ParseEmptyPhasePolicy(cfg.Session.EmptyPhasePolicy)
	if err != nil {
		return err
	}
	engine := aggregate.NewEngine(stores, aggregate.WithEmptyPhasePolicy(policy), aggregate.WithLogger(logger))
	app.Engine = engine

	transport, err := openTransport(cfg.Feed, logger, app)
	if err != nil {
		return err
	}
	app.Transport = transport

	repos := repository.NewSet(database, dialect)
	app.Repos = repos

	var hydrator *session.Hydrator
	feed := changefeed.NewMultiplexer(transport, stores, engine,
		changefeed.WithProfileLookup(repos.Profiles),
		changefeed.WithResync(func(ctx context.Context) error { return hydrator.Resync(ctx) }),
		changefeed.WithLogger(logger),
		changefeed.WithSink(sink),
	)
	app.OnClose(func() error {
		feed.Deactivate()
		return nil
	})
	app.Feed = feed

	hydrator = session.New(repos, stores, engine, kvs,
		session.WithFeed(feed),
		session.WithSink(sink),
		session.WithLogger(logger),
		session.WithExpiry(cfg.Session.Expiry),
		session.WithConcurrency(cfg.Session.MaxConcurrentFetches),
	)
	app.Session = hydrator

	wireServices(app, service.Deps{
		Repos:   repos,
		Stores:  stores,
		Engine:  engine,
		UoW:     db.NewUnitOfWork(database, dialect),
		Dialect: dialect,
		Sink:    sink,
	})
	return nil
}

func wireServices(app *App, deps service.Deps) {
	obs := service.NewLogUseCaseObserver(app.Logger)
	app.Projects = service.NewProjectService(deps, obs)
	app.Phases = service.NewPhaseService(deps, obs)
	app.Tasks = service.NewTaskService(deps, obs)
	app.Materials = service.NewMaterialService(deps, obs)
	app.Requests = service.NewRequestService(deps, obs)
	app.Templates = service.NewTemplateService(deps, obs)
}

func openKV(ctx context.Context, cfg config.KVConfig, app *App) (kv.Store, error) {
	switch cfg.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "sqlite":
		s, database, err := kv.OpenSQLite(cfg.Path)
		if err != nil {
			return nil, err
		}
		app.OnClose(database.Close)
		return s, nil
	case "redis":
		r, err := kv.NewRedis(ctx, kv.RedisOptions{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		})
		if err != nil {
			return nil, err
		}
		app.OnClose(r.Close)
		return r, nil
	}
	return nil, fmt.Errorf("unknown kv backend %q", cfg.Backend)
}

func openTransport(cfg config.FeedConfig, logger *zap.Logger, app *App) (changefeed.Transport, error) {
	switch cfg.Transport {
	case "hub":
		return changefeed.NewHub(), nil
	case "postgres":
		l := newListener(cfg, logger)
		app.Start = l.Start
		app.OnClose(func() error {
			l.Close()
			return nil
		})
		return l, nil
	case "amqp":
		t, err := amqpfeed.Dial(cfg.AMQPURL, logger)
		if err != nil {
			return nil, err
		}
		app.OnClose(t.Close)
		return t, nil
	}
	return nil, fmt.Errorf("unknown feed transport %q", cfg.Transport)
}

func newListener(cfg config.FeedConfig, logger *zap.Logger) *pgnotify.Listener {
	return pgnotify.New(cfg.PostgresDSN,
		pgnotify.WithBackoff(cfg.ReconnectFloor, cfg.ReconnectCeiling),
		pgnotify.WithLogger(logger),
	)
}
