package main

import (
	"context"
	"flag"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/config"
	"github.com/oksasatya/anaqa-user-service/internal/application"
	"github.com/oksasatya/anaqa-user-service/internal/container"
	"github.com/oksasatya/anaqa-user-service/internal/domain/entity"
	"github.com/oksasatya/anaqa-user-service/pkg/apperror"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

const actor = "seed"

func main() {
	email := flag.String("email", "admin@anaqa.local", "admin email")
	password := flag.String("password", "Admin123!", "admin password")
	name := flag.String("name", "Admin", "admin display name")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		config.Report(nil, err)
		os.Exit(1)
	}
	logger := helpers.NewLogger(cfg.AppName+"-seed", cfg.Env, cfg.LogLevel)

	ctx := context.Background()
	c, err := container.New(ctx, cfg, logger)
	if err != nil {
		helpers.LogError(logger, "startup failed", err, nil)
		os.Exit(1)
	}
	defer func() { _ = c.Close(ctx) }()

	u, err := c.Users.CreateUser(ctx, actor, application.CreateUserInput{
		Email:    *email,
		Password: *password,
		Name:     *name,
		Role:     entity.RoleAdmin,
	})
	if apperror.Is(err, apperror.KindConflict) {
		helpers.LogInfo(logger, "admin already present", logrus.Fields{"email": *email})
		return
	}
	if err != nil {
		helpers.LogError(logger, "seed admin", err, logrus.Fields{"email": *email})
		_ = c.Close(ctx)
		os.Exit(1)
	}
	if _, err := c.Users.VerifyEmail(ctx, actor, u.ID); err != nil {
		helpers.LogError(logger, "verify admin email", err, logrus.Fields{"id": u.ID})
	}
	helpers.LogInfo(logger, "seeded admin", logrus.Fields{"id": u.ID, "email": u.Email})
}
