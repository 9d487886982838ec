package main

import (
	"context"
	"expvar"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/config"
	"github.com/oksasatya/anaqa-user-service/internal/container"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/postgres"
	"github.com/oksasatya/anaqa-user-service/internal/lifecycle"
	"github.com/oksasatya/anaqa-user-service/internal/router"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
	"github.com/oksasatya/anaqa-user-service/pkg/validation"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg, err := config.Load()
	if err != nil {
		config.Report(nil, err)
		return lifecycle.ExitFailed
	}

	logger := helpers.NewLogger(cfg.AppName, cfg.Env, cfg.LogLevel)
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.IsTest() {
		gin.SetMode(gin.TestMode)
	}
	validation.Init()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	o := lifecycle.New(srv, logger, lifecycle.Options{
		Timeout:    cfg.ShutdownTimeout,
		Production: cfg.IsProduction(),
	})

	ctx := context.Background()
	c, err := container.New(ctx, cfg, logger, container.WithBackground(o.Go))
	if err != nil {
		helpers.LogError(logger, "startup failed", err, nil)
		return lifecycle.ExitFailed
	}
	o.Manage(c.Resources()...)

	// migrations run against the connected database, before any request
	if cfg.RunMigrations {
		if err := postgres.Migrate(cfg.DatabaseURL, cfg.MigrationsDir, logger); err != nil {
			helpers.LogError(logger, "migration failed", err, nil)
			o.Drain()
			return lifecycle.ExitFailed
		}
	}
	if cfg.DebugMetricsEnabled {
		publishVars(c)
	}
	srv.Handler = router.New(c.RouterDeps())

	helpers.LogInfo(logger, "server starting", logrus.Fields{
		"addr":   srv.Addr,
		"env":    cfg.Env,
		"prefix": cfg.APIPrefix,
		"auth":   cfg.AuthEnabled,
	})
	return o.Run(ctx, srv.ListenAndServe)
}

func publishVars(c *container.Container) {
	started := time.Now()
	expvar.Publish("uptime_seconds", expvar.Func(func() any { return int64(time.Since(started).Seconds()) }))
	expvar.Publish("database", expvar.Func(func() any {
		return map[string]any{"state": c.DB.State().String(), "healthy": c.DB.IsHealthy()}
	}))
}
