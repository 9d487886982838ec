package container

import (
	"context"
	"fmt"

	gcs "cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/config"
	"github.com/oksasatya/anaqa-user-service/internal/application"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/cache"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/postgres"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/search"
	"github.com/oksasatya/anaqa-user-service/internal/infrastructure/storage"
	handlers "github.com/oksasatya/anaqa-user-service/internal/interface/http"
	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
	"github.com/oksasatya/anaqa-user-service/internal/lifecycle"
	"github.com/oksasatya/anaqa-user-service/internal/router"
	"github.com/oksasatya/anaqa-user-service/pkg/helpers"
)

// Container owns every long-lived component of the API process. Optional
// collaborators stay nil when their feature is off.
type Container struct {
	Config *config.Config
	Logger *logrus.Logger

	DB    *postgres.Manager
	Redis *redis.Client
	JWT   *helpers.JWTManager
	GCS   *gcs.Client

	MailPub  *helpers.RabbitPublisher
	AuditPub *helpers.RabbitPublisher

	Users    *application.UserService
	Profiles *application.ProfileService

	resources []lifecycle.Resource
}

// Option customizes New.
type Option func(*options)

type options struct {
	spawn postgres.Spawner
}

// WithBackground runs the long-lived goroutines of the components, such as
// the database health watcher, through spawn.
func WithBackground(spawn postgres.Spawner) Option {
	return func(o *options) { o.spawn = spawn }
}

// New connects the database and every enabled backend. On failure whatever
// was already opened is closed again.
func New(ctx context.Context, cfg *config.Config, log *logrus.Logger, opts ...Option) (_ *Container, err error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	c := &Container{Config: cfg, Logger: log}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	c.DB = postgres.NewManager(postgres.Options{
		URL:              cfg.DatabaseURL,
		MaxConns:         cfg.DBMaxConns,
		MinConns:         cfg.DBMinConns,
		MaxConnLifetime:  cfg.DBMaxConnLife,
		ConnectTimeout:   cfg.DBConnectTimeout,
		StatementTimeout: cfg.DBStatementTimeout,
		HealthInterval:   cfg.DBHealthInterval,
	}, log, postgres.WithSpawner(o.spawn))
	if err = c.DB.Connect(ctx); err != nil {
		return nil, err
	}
	c.manage("database", c.DB.Disconnect)

	if cfg.RedisURL != "" {
		if c.Redis, err = helpers.NewRedisClient(ctx, cfg.RedisURL); err != nil {
			return nil, err
		}
		c.manage("redis", func(context.Context) error { return c.Redis.Close() })
	} else {
		log.Warn("REDIS_URL not set, using in-process rate limits and auth state")
	}

	if cfg.MailSendEnabled {
		if c.MailPub, err = helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQEmailQueue); err != nil {
			return nil, fmt.Errorf("rabbitmq %s: %w", cfg.RabbitMQEmailQueue, err)
		}
		c.manage("rabbitmq-email", func(context.Context) error { return c.MailPub.Close() })
	}
	if cfg.AuditPublishEnabled {
		if c.AuditPub, err = helpers.NewRabbitPublisher(cfg.RabbitMQURL, cfg.RabbitMQAuditQueue); err != nil {
			return nil, fmt.Errorf("rabbitmq %s: %w", cfg.RabbitMQAuditQueue, err)
		}
		c.manage("rabbitmq-audit", func(context.Context) error { return c.AuditPub.Close() })
	}

	var index application.UserIndexer
	if cfg.SearchIndexEnabled {
		es, esErr := helpers.NewESClient(cfg.ESAddrs(), cfg.ElasticsearchUser, cfg.ElasticsearchPass)
		if esErr != nil {
			return nil, fmt.Errorf("elasticsearch: %w", esErr)
		}
		index = search.NewUserIndex(es, cfg.ESUsersIndex)
	}

	var avatars application.AvatarUploader
	if cfg.AvatarUploadEnabled {
		if c.GCS, err = helpers.NewGCSClient(ctx, cfg.GCSCredentialsJSONPath); err != nil {
			return nil, fmt.Errorf("gcs: %w", err)
		}
		c.manage("gcs", func(context.Context) error { return c.GCS.Close() })
		avatars = storage.NewAvatarStore(c.GCS, cfg.GCSBucket)
	}

	c.buildServices(index, avatars)
	return c, nil
}

func (c *Container) buildServices(index application.UserIndexer, avatars application.AvatarUploader) {
	cfg, log := c.Config, c.Logger
	hasher := helpers.NewHasher(cfg.BcryptCost, cfg.HashConcurrency)

	var guard application.LoginGuard
	var verify application.TokenStore
	if c.Redis != nil {
		guard = cache.NewRedisLoginGuard(c.Redis, cfg.LoginMaxAttempts, cfg.LoginLockDuration)
		verify = cache.NewRedisTokenStore(c.Redis)
	} else {
		guard = cache.NewMemoryLoginGuard(cfg.LoginMaxAttempts, cfg.LoginLockDuration)
		verify = cache.NewMemoryTokenStore()
	}

	deps := application.UserServiceDeps{
		Repo:    postgres.NewUserRepository(c.DB, hasher),
		Hasher:  hasher,
		Guard:   guard,
		Verify:  verify,
		Index:   index,
		Auditor: application.NewAuditor(log, publisher(c.AuditPub)),
		Logger:  log,
		Settings: application.Settings{
			AppName:          cfg.AppName,
			VerifyEmailURL:   cfg.VerifyEmailURL,
			ResetPasswordURL: cfg.ResetPasswordURL,
			PasswordResetTTL: cfg.PasswordResetTTL,
			EmailVerifyTTL:   cfg.EmailVerifyTTL,
		},
	}
	deps.Mail = publisher(c.MailPub)
	if cfg.AuthEnabled {
		c.JWT = helpers.NewJWTManager(cfg.JWTAccessSecret, cfg.JWTRefreshSecret, cfg.AccessTTL, cfg.RefreshTTL)
		deps.Tokens = c.JWT
	}
	c.Users = application.NewUserService(deps)
	c.Profiles = application.NewProfileService(deps.Repo, postgres.NewProfileRepository(c.DB), avatars, deps.Auditor, log)
}

// publisher keeps a nil *RabbitPublisher from becoming a non-nil interface.
func publisher(p *helpers.RabbitPublisher) application.Publisher {
	if p == nil {
		return nil
	}
	return p
}

// RouterDeps assembles the HTTP layer on top of the services.
func (c *Container) RouterDeps() router.Deps {
	cfg := c.Config
	cookies := helpers.NewCookie(cfg.CookieDomain, cfg.CookieSecure)
	d := router.Deps{
		Config:   cfg,
		Logger:   c.Logger,
		Limiters: middleware.Limiters(c.Redis),
		Users:    handlers.NewUserHandler(c.Users, cookies),
		Profiles: handlers.NewProfileHandler(c.Profiles),
		Health:   handlers.NewHealthHandler(c.DB),
	}
	if c.JWT != nil {
		d.Tokens = c.JWT
		d.Auth = handlers.NewAuthHandler(c.Users, cookies)
	}
	return d
}

// Resources lists everything opened by New in acquisition order.
func (c *Container) Resources() []lifecycle.Resource {
	return append([]lifecycle.Resource(nil), c.resources...)
}

// Close releases resources in reverse acquisition order. It is used when the
// process exits without an orchestrated drain.
func (c *Container) Close(ctx context.Context) error {
	var first error
	for i := len(c.resources) - 1; i >= 0; i-- {
		if err := c.resources[i].Close(ctx); err != nil {
			c.Logger.WithField("resource", c.resources[i].Name).WithError(err).Error("release failed")
			if first == nil {
				first = err
			}
		}
	}
	c.resources = nil
	return first
}

func (c *Container) manage(name string, fn func(context.Context) error) {
	c.resources = append(c.resources, lifecycle.Resource{Name: name, Close: fn})
}
