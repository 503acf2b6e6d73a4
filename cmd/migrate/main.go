// Command migrate creates or upgrades the provider tables and exits. It only
// needs OAUTH_DB_URL.
package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/bengobox/oauth-provider/internal/config"
	"github.com/bengobox/oauth-provider/internal/database"
	"github.com/bengobox/oauth-provider/internal/logger"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: could not load .env file: %v", err)
	}
	cfg, err := config.LoadDatabase()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	zapLogger, err := logger.New(cfg.App.Environment, "oauth-migrate")
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	pool, err := database.NewPool(ctx, cfg.Database)
	if err != nil {
		zapLogger.Fatal("connect", zap.Error(err))
	}
	defer pool.Close()

	start := time.Now()
	if err := database.RunMigrations(ctx, pool); err != nil {
		zapLogger.Fatal("migrate", zap.Error(err))
	}
	zapLogger.Info("migrations completed", zap.Duration("took", time.Since(start)))
}
