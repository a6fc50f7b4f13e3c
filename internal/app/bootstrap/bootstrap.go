// Package bootstrap composes the Deckforge application layers from configuration.
package bootstrap

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"deckforge/app/internal/config"
	"deckforge/app/internal/db"
	"deckforge/app/internal/deck"
	apphttp "deckforge/app/internal/http"
	"deckforge/app/internal/library"
	"deckforge/app/internal/llm"
	"deckforge/app/internal/metrics"
	"deckforge/app/internal/retry"
)

// maxConcurrentRuns bounds background generations started over HTTP.
const maxConcurrentRuns = 4

type Dependencies struct {
	Config    config.Config
	Logger    *logrus.Logger
	SentryHub *sentry.Hub
}

// Core holds the components shared by the server and the CLI.
type Core struct {
	Library  library.Service
	Metrics  *metrics.Collector
	Database *gorm.DB
	Cleanup  func() error
}

type Result struct {
	Core
	HTTPServer *apphttp.Server
}

// BuildCore opens the database, applies the schema and wires the presentation library to the
// completion client.
func BuildCore(ctx context.Context, deps Dependencies) (Core, error) {
	gormDB, err := db.Open(db.Options{Path: deps.Config.DBPath, Logger: deps.Logger})
	if err != nil {
		return Core{}, eris.Wrap(err, "opening database")
	}

	closeOnError := func(wrapper error) (Core, error) {
		if closeErr := db.Close(gormDB); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Core{}, wrapper
	}

	if err := library.Migrate(ctx, gormDB, deps.Logger); err != nil {
		return closeOnError(eris.Wrap(err, "running library migrations"))
	}

	repo, err := library.NewRepository(gormDB, deps.Logger)
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating presentation repository"))
	}

	client, err := llm.NewClient(llm.ClientOptions{
		APIKey:  deps.Config.LLMAPIKey,
		BaseURL: deps.Config.LLMEndpoint,
		Timeout: deps.Config.LLMTimeout,
		Logger:  deps.Logger,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating llm client"))
	}

	collector := metrics.NewCollector()

	service, err := library.NewService(library.ServiceOptions{
		Repository:    repo,
		Factory:       NewGeneratorFactory(client, deps.Config, collector, deps.Logger),
		DebugDir:      deps.Config.DebugDir,
		MaxConcurrent: maxConcurrentRuns,
		Logger:        deps.Logger,
		SentryHub:     deps.SentryHub,
	})
	if err != nil {
		return closeOnError(eris.Wrap(err, "creating presentation library"))
	}

	return Core{
		Library:  service,
		Metrics:  collector,
		Database: gormDB,
		Cleanup: func() error {
			return db.Close(gormDB)
		},
	}, nil
}

// Build composes the core and the HTTP transport.
func Build(ctx context.Context, deps Dependencies) (Result, error) {
	core, err := BuildCore(ctx, deps)
	if err != nil {
		return Result{}, err
	}

	httpServer, err := apphttp.NewServer(apphttp.Options{
		Library:   core.Library,
		Database:  core.Database,
		Metrics:   core.Metrics.Handler(),
		Logger:    deps.Logger,
		SentryHub: deps.SentryHub,
		RateLimiter: apphttp.RateLimiterSettings{
			Burst:             deps.Config.RateLimit.Burst,
			RequestsPerSecond: deps.Config.RateLimit.RequestsPerSecond,
			ClientTTL:         deps.Config.RateLimit.ClientTTL,
		},
	})
	if err != nil {
		if closeErr := core.Cleanup(); closeErr != nil && deps.Logger != nil {
			deps.Logger.WithError(closeErr).Error("closing database after bootstrap failure")
		}
		return Result{}, eris.Wrap(err, "initialising http server")
	}

	return Result{Core: core, HTTPServer: httpServer}, nil
}

// NewGeneratorFactory returns a factory building one orchestrator per run from cfg.
func NewGeneratorFactory(completer llm.Completer, cfg config.Config, recorder deck.Recorder, logger *logrus.Logger) library.GeneratorFactory {
	models := deck.ModelsFromList(cfg.LLMModels)
	retryConfig := RetryConfig(cfg.Retry)

	return func(observer deck.Observer, debug deck.DebugSink) (library.Generator, error) {
		var observers deck.MultiObserver
		if logger != nil {
			observers = append(observers, deck.LogObserver{Logger: logger})
		}
		observers = append(observers, observer)

		orchestrator, err := deck.NewOrchestrator(completer, deck.Options{
			Models:              models,
			Retry:               retryConfig,
			ResearchConcurrency: cfg.Research.Concurrency,
			Observer:            observers,
			Debug:               debug,
			Recorder:            recorder,
			Logger:              logger,
		})
		if err != nil {
			return nil, err
		}
		return orchestrator, nil
	}
}

// RetryConfig converts the environment retry settings into an executor policy.
func RetryConfig(cfg config.RetryConfig) retry.Config {
	return retry.Config{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   cfg.BaseDelay,
		Exponential: cfg.Exponential,
	}.Normalize()
}
