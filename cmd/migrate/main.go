package main

import (
	"flag"
	"os"

	"github.com/oksasatya/anaqa-user-service/config"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/postgres"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

// Applies pending migrations, or rolls back -down N steps.
func main() {
	down := flag.Int("down", 0, "number of migrations to roll back")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		config.Report(nil, err)
		os.Exit(1)
	}
	logger := helpers.NewLogger(cfg.AppName+"-migrate", cfg.Env, cfg.LogLevel)
	log := logger.WithField("dir", cfg.MigrationsDir)

	if *down > 0 {
		err = postgres.MigrateDown(cfg.DatabaseURL, cfg.MigrationsDir, *down, log)
	} else {
		err = postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsDir, log)
	}
	if err != nil {
		helpers.LogError(log, "migration failed", err, nil)
		os.Exit(1)
	}
}
