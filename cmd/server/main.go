// Command server runs the OAuth provider HTTP API.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bengobox/oauth-provider/internal/app"
	"github.com/bengobox/oauth-provider/internal/config"
	"github.com/bengobox/oauth-provider/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	zapLogger, err := logger.New(cfg.App.Environment, cfg.App.ServiceName)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	if err := run(cfg, zapLogger); err != nil {
		zapLogger.Fatal("server stopped", zap.Error(err))
	}
}

// run serves until SIGINT or SIGTERM, then drains within the configured
// shutdown timeout.
func run(cfg *config.Config, zapLogger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, cfg, zapLogger)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(application.Run)
	g.Go(func() error {
		<-gctx.Done()
		zapLogger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		return application.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
