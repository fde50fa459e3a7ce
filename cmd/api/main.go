package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/whitecard/whitecard-backend/internal/app"
	"github.com/whitecard/whitecard-backend/internal/di"
)

func main() {
	a, err := di.InitializeApp()
	if err != nil {
		log.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("card api starting", "addr", a.Server.Addr, "env", a.Config.Env)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
		a.Logger.Info("shutdown signal received")
	case err, ok := <-serveErr:
		if ok {
			a.Logger.Error("http server failed", "error", err)
		}
	}
	shutdown(a)
}

// shutdown drains HTTP first, then flushes telemetry, then closes redis and the
// database. Each stage gets its own budget inside the overall timeout.
func shutdown(a *app.App) {
	total, cancel := context.WithTimeout(context.Background(), orDefault(a.ShutdownTimeout, 20*time.Second))
	defer cancel()

	stage := func(name string, budget time.Duration, fn func(context.Context) error) {
		ctx, cancel := context.WithTimeout(total, budget)
		defer cancel()
		if err := fn(ctx); err != nil {
			a.Logger.Error("shutdown stage failed", "stage", name, "error", err)
		}
	}

	stage("http", orDefault(a.ShutdownHTTPDrainTimeout, 10*time.Second), a.Server.Shutdown)
	if a.Observability != nil {
		stage("observability", orDefault(a.ShutdownObservabilityTimeout, 8*time.Second), a.Observability.Shutdown)
	}
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			a.Logger.Error("failed to close redis client", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			if err := sqlDB.Close(); err != nil {
				a.Logger.Error("failed to close database connection", "error", err)
			}
		}
	}
	a.Logger.Info("card api stopped")
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
