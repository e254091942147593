package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"grunnlag/internal/app"
	"grunnlag/internal/platform/config"
	"grunnlag/internal/platform/httpserver"
	"grunnlag/internal/platform/logger"
	"grunnlag/internal/platform/metrics"
	httptransport "grunnlag/internal/transport/http"
)

var version = "dev"

const drainTimeout = 30 * time.Second

// main wires the grunnlag service: the Kafka ingest consumer as the write
// path, the outbox relay or in-process dispatcher for publication, and the
// HTTP surface for queries, health and metrics.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := metrics.NewRegistry(version)
	a, err := app.Open(ctx, cfg, log, reg)
	if err != nil {
		return fmt.Errorf("open app: %w", err)
	}

	router := httptransport.NewRouter(httptransport.Config{
		Gatherer: reg,
		Checks:   a.Checks(),
		Handlers: []httptransport.Registrar{a.Handler()},
		Logger:   log,
	})
	srv := httpserver.New(cfg.OpsAddr, router)

	log.InfoContext(ctx, "starting grunnlag",
		"version", version,
		"postgres", cfg.Database.Postgres(),
		"outbox", cfg.Outbox.Enabled,
		"kafka", cfg.Kafka.Enabled(),
		"topic", cfg.Kafka.Topic,
		"ingest_topic", cfg.Kafka.IngestTopic,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, log)
	})

	ingestDone := make(chan struct{})
	if a.Ingesting() {
		g.Go(func() error {
			defer close(ingestDone)
			return a.RunIngest(gctx)
		})
	} else {
		close(ingestDone)
		log.InfoContext(ctx, "KAFKA_INGEST_TOPIC not set, serving queries only")
	}

	switch {
	case cfg.Outbox.Enabled:
		relay, err := a.NewRelay()
		if err != nil {
			return err
		}
		g.Go(func() error {
			return relay.Run(gctx)
		})
	case a.Ingesting():
		// The dispatcher stops on Close, not on ctx, and only after the
		// consumer has stopped writing, so every applied batch is published
		// before exit.
		g.Go(func() error {
			return a.RunDispatcher(context.WithoutCancel(gctx))
		})
		g.Go(func() error {
			<-gctx.Done()
			<-ingestDone
			drainCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
			defer cancel()
			return a.Dispatcher.Close(drainCtx)
		})
	}

	runErr := g.Wait()

	closeCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.Close(closeCtx); err != nil {
		log.ErrorContext(closeCtx, "shutdown failed", "error", err)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	log.Info("grunnlag stopped")
	return nil
}
