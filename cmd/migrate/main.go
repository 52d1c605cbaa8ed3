// Command migrate applies or rolls back the embedded schema migrations.
//
//	migrate up
//	migrate down [steps]
package main

import (
	"os"
	"strconv"

	"go.uber.org/zap"

	"github.com/boddenberg/coop-transporte-bfa/internal/config"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/observability"
	"github.com/boddenberg/coop-transporte-bfa/internal/infra/postgres"
)

func main() {
	_ = config.LoadDotEnv(".env")

	logger := observability.NewLogger(os.Getenv("LOG_LEVEL"))
	defer logger.Sync()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		logger.Fatal("DATABASE_URL is required")
	}

	cmd := "up"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	switch cmd {
	case "up":
		if err := postgres.Migrate(dsn, logger); err != nil {
			logger.Fatal("migration failed", zap.Error(err))
		}
	case "down":
		steps := 1
		if len(os.Args) > 2 {
			n, err := strconv.Atoi(os.Args[2])
			if err != nil || n <= 0 {
				logger.Fatal("steps must be a positive integer", zap.String("steps", os.Args[2]))
			}
			steps = n
		}
		if err := postgres.Rollback(dsn, steps, logger); err != nil {
			logger.Fatal("rollback failed", zap.Error(err))
		}
	default:
		logger.Fatal("unknown command, use up or down", zap.String("command", cmd))
	}
}
