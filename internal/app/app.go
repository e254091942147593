// Package app assembles the grunnlag components from configuration. Both
// binaries build on it so the write path, publication and queries are wired
// the same way everywhere.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"grunnlag/internal/grunnlag/aggregate"
	"grunnlag/internal/grunnlag/cache"
	"grunnlag/internal/grunnlag/dispatcher"
	"grunnlag/internal/grunnlag/handler"
	"grunnlag/internal/grunnlag/ingest"
	"grunnlag/internal/grunnlag/metrics"
	"grunnlag/internal/grunnlag/models"
	"grunnlag/internal/grunnlag/outbox"
	"grunnlag/internal/grunnlag/projection"
	"grunnlag/internal/grunnlag/store"
	"grunnlag/internal/platform/config"
	"grunnlag/internal/platform/database"
	"grunnlag/internal/platform/kafka"
	"grunnlag/internal/platform/redis"
	httptransport "grunnlag/internal/transport/http"
	"grunnlag/pkg/domain"
	"grunnlag/pkg/platform/tx"
)

// Ledger is the full ledger surface used across the application.
type Ledger interface {
	Append(ctx context.Context, caseID domain.CaseID, fact models.Fact) (int64, error)
	CurrentEventsFor(ctx context.Context, caseID domain.CaseID) ([]models.FactEvent, error)
	EventsFor(ctx context.Context, caseID domain.CaseID, types ...models.FactType) ([]models.FactEvent, error)
	LatestSequence(ctx context.Context, caseID domain.CaseID) (int64, error)
}

// App holds the wired components. Fields are nil when the feature is not
// configured: Outbox without OUTBOX_ENABLED, Dispatcher with it, Redis
// without REDIS_URL, Ingest without KAFKA_INGEST_TOPIC.
type App struct {
	Config      config.Config
	DB          *sql.DB
	Ledger      Ledger
	Runner      tx.Runner
	Outbox      *outbox.PostgresStore
	Republisher *dispatcher.Republisher
	Dispatcher  *dispatcher.Dispatcher
	Factory     *aggregate.Factory
	Projections *projection.Service
	Ingest      *ingest.Handler
	Metrics     *metrics.Metrics
	Redis       *redis.Client

	producer   *kafka.Producer
	consumer   *kafka.Consumer
	registerer prometheus.Registerer
	logger     *slog.Logger
}

// Open connects to every configured backend and wires the components. The
// dispatcher worker is not started; call RunDispatcher.
func Open(ctx context.Context, cfg config.Config, logger *slog.Logger, reg prometheus.Registerer) (*App, error) {
	a := &App{
		Config:     cfg,
		Metrics:    metrics.New(reg),
		registerer: reg,
		logger:     logger,
	}
	if err := a.open(ctx); err != nil {
		return nil, errors.Join(err, a.Close(ctx))
	}
	return a, nil
}

func (a *App) open(ctx context.Context) error {
	cfg := a.Config
	var err error

	if cfg.Database.Postgres() {
		a.DB, err = database.OpenPostgres(ctx, database.PostgresConfig{
			DSN:             cfg.Database.URL,
			MaxOpenConns:    cfg.Database.MaxOpenConns,
			MaxIdleConns:    cfg.Database.MaxIdleConns,
			ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		})
		if err != nil {
			return err
		}
		a.Ledger = store.NewPostgresLedger(a.DB)
	} else {
		a.DB, err = database.OpenSQLite(ctx, cfg.Database.SQLitePath)
		if err != nil {
			return err
		}
		a.Ledger = store.NewSQLiteLedger(a.DB)
	}
	a.Runner = tx.NewSQLRunner(a.DB, cfg.Database.TxTimeout)

	publisher, err := a.openPublisher(ctx)
	if err != nil {
		return err
	}
	a.Republisher, err = dispatcher.NewRepublisher(a.Ledger, publisher,
		dispatcher.WithRepublisherMetrics(a.Metrics),
		dispatcher.WithRepublisherLogger(a.logger),
	)
	if err != nil {
		return err
	}

	factoryOpts := []aggregate.Option{
		aggregate.WithTxRunner(a.Runner),
		aggregate.WithMetrics(a.Metrics),
		aggregate.WithLogger(a.logger),
	}
	if cfg.Outbox.Enabled {
		a.Outbox = outbox.NewPostgresStore(a.DB)
		factoryOpts = append(factoryOpts, aggregate.WithOutbox(a.Outbox))
	} else {
		a.Dispatcher, err = dispatcher.New(a.Republisher,
			dispatcher.WithQueueLimit(cfg.DispatchQueueLimit),
			dispatcher.WithMetrics(a.Metrics),
			dispatcher.WithLogger(a.logger),
		)
		if err != nil {
			return err
		}
		factoryOpts = append(factoryOpts, aggregate.WithNotifier(a.Dispatcher))
	}
	a.Factory, err = aggregate.NewFactory(a.Ledger, factoryOpts...)
	if err != nil {
		return err
	}
	if err := a.openIngest(); err != nil {
		return err
	}

	projOpts := []projection.Option{
		projection.WithMetrics(a.Metrics),
		projection.WithLogger(a.logger),
	}
	a.Redis, err = redis.New(ctx, cfg.Redis)
	if err != nil {
		return err
	}
	if a.Redis != nil {
		if a.registerer != nil {
			if err := a.registerer.Register(redis.NewPoolCollector(a.Redis)); err != nil {
				return fmt.Errorf("register redis pool collector: %w", err)
			}
		}
		snapshots, err := cache.NewRedisSnapshotCache(a.Redis, cfg.Redis.SnapshotTTL)
		if err != nil {
			return err
		}
		projOpts = append(projOpts, projection.WithSnapshotCache(snapshots))
	}
	a.Projections, err = projection.NewService(a.Ledger, projOpts...)
	return err
}

func (a *App) openPublisher(ctx context.Context) (dispatcher.Publisher, error) {
	k := a.Config.Kafka
	if !k.Enabled() {
		a.logger.WarnContext(ctx, "KAFKA_BROKERS not set, envelopes are logged instead of published")
		return dispatcher.NewLogPublisher(a.logger), nil
	}
	if k.CreateTopic {
		if err := kafka.EnsureTopic(ctx, k.Brokers, k.Topic, k.Partitions, k.Replication); err != nil {
			return nil, err
		}
	}
	producer, err := kafka.NewProducer(kafka.ProducerConfig{Brokers: k.Brokers, Topic: k.Topic})
	if err != nil {
		return nil, err
	}
	a.producer = producer
	return dispatcher.NewKafkaPublisher(producer)
}

func (a *App) openIngest() error {
	k := a.Config.Kafka
	if !k.Ingesting() {
		return nil
	}
	var err error
	a.Ingest, err = ingest.New(a.Factory,
		ingest.WithMetrics(a.Metrics),
		ingest.WithLogger(a.logger),
	)
	if err != nil {
		return err
	}
	a.consumer, err = kafka.NewConsumer(kafka.ConsumerConfig{
		Brokers: k.Brokers,
		Topic:   k.IngestTopic,
		Group:   k.IngestGroup,
	}, a.logger)
	return err
}

// Ingesting reports whether the app consumes inbound fact batches.
func (a *App) Ingesting() bool { return a.consumer != nil }

// RunIngest consumes fact batches until ctx is cancelled. It returns
// immediately when ingestion is not configured.
func (a *App) RunIngest(ctx context.Context) error {
	if a.consumer == nil {
		return nil
	}
	err := a.consumer.Run(ctx, a.Ingest)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// NewRelay builds the outbox relay. It fails when the outbox is disabled.
func (a *App) NewRelay() (*outbox.Relay, error) {
	if a.Outbox == nil {
		return nil, errors.New("outbox is not enabled")
	}
	return outbox.NewRelay(a.Outbox, a.Republisher,
		outbox.WithPollInterval(a.Config.Outbox.PollInterval),
		outbox.WithBatchSize(a.Config.Outbox.BatchSize),
		outbox.WithMaxAttempts(a.Config.Outbox.MaxAttempts),
		outbox.WithMetrics(a.Metrics),
		outbox.WithLogger(a.logger),
	)
}

// RunDispatcher runs the in-process dispatcher worker until it is closed.
// It returns immediately when the outbox handles publication.
func (a *App) RunDispatcher(ctx context.Context) error {
	if a.Dispatcher == nil {
		return nil
	}
	return a.Dispatcher.Run(ctx)
}

// Handler returns the HTTP handler for grunnlag queries.
func (a *App) Handler() *handler.Handler {
	return handler.New(a.Projections, a.Ledger, a.logger)
}

// Checks returns readiness checks for the configured backends.
func (a *App) Checks() map[string]httptransport.Check {
	checks := map[string]httptransport.Check{
		"database": a.DB.PingContext,
	}
	if a.producer != nil {
		checks["kafka"] = a.producer.Ping
	}
	if a.Redis != nil {
		checks["redis"] = a.Redis.Health
	}
	if a.Dispatcher != nil {
		d := a.Dispatcher
		checks["dispatcher"] = func(context.Context) error {
			if s := d.State(); s == dispatcher.StateStopped {
				if err := d.Err(); err != nil {
					return fmt.Errorf("dispatcher %s: %w", s, err)
				}
				return fmt.Errorf("dispatcher %s", s)
			}
			return nil
		}
	}
	return checks
}

// Close drains the dispatcher, which releases the publisher, then closes
// the remaining connections.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Dispatcher != nil {
		errs = append(errs, a.Dispatcher.Close(ctx))
	} else if a.Republisher != nil {
		errs = append(errs, a.Republisher.Close())
	}
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	if a.consumer != nil {
		a.consumer.Close()
	}
	if a.Republisher == nil && a.producer != nil {
		errs = append(errs, a.producer.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	return errors.Join(errs...)
}
