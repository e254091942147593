package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"grunnlag/internal/app"
	"grunnlag/internal/platform/config"
	"grunnlag/internal/platform/logger"
)

const drainTimeout = 30 * time.Second

// withApp loads configuration, opens the application and runs fn. When the
// in-process dispatcher is used it is drained before returning, so every
// notification raised by fn is published before the process exits.
func withApp(ctx context.Context, fn func(*app.App) error) (err error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log := logger.NewWithWriter(os.Stderr, logLevel, "text")

	a, err := app.Open(ctx, cfg, log, nil)
	if err != nil {
		return fmt.Errorf("opening app: %w", err)
	}

	runErr := make(chan error, 1)
	go func() { runErr <- a.RunDispatcher(context.WithoutCancel(ctx)) }()

	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		closeErr := a.Close(closeCtx)
		if closeErr == nil {
			closeErr = <-runErr
		}
		err = errors.Join(err, closeErr)
	}()

	return fn(a)
}
