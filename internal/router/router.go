package router

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/oksasatya/anaqa-user-service/config"
	handlers "github.com/oksasatya/anaqa-user-service/internal/interface/http"
	"github.com/oksasatya/anaqa-user-service/internal/interface/middleware"
	"github.com/oksasatya/anaqa-user-service/internal/router/modules"
)

// Deps are the pieces the HTTP surface is assembled from. A nil Auth handler
// means token auth is disabled: /auth is not mounted and the caller identity
// comes from gateway headers.
type Deps struct {
	Config   *config.Config
	Logger   logrus.FieldLogger
	Limiters middleware.LimiterFactory
	Tokens   middleware.AccessTokenParser
	Auth     *handlers.AuthHandler
	Users    *handlers.UserHandler
	Profiles *handlers.ProfileHandler
	Health   *handlers.HealthHandler
}

// New builds the Gin engine with global middleware and every module.
func New(d Deps) *gin.Engine {
	cfg := d.Config
	if d.Limiters == nil {
		d.Limiters = middleware.Limiters(nil)
	}

	r := gin.New()
	r.Use(
		middleware.ErrorHandler(d.Logger, cfg.IsProduction()),
		middleware.RequestID(),
		middleware.RealIP(),
	)
	if cfg.HTTPLogEnabled {
		r.Use(middleware.RequestLogger(d.Logger, "/health"))
	}
	r.Use(middleware.SecureHeaders(cfg.IsProduction()), cors.New(corsConfig(cfg)))
	r.NoRoute(middleware.NoRoute)

	var auth gin.HandlerFunc
	if cfg.AuthEnabled && d.Tokens != nil {
		auth = middleware.Auth(d.Tokens)
	} else {
		auth = middleware.Auth(nil)
	}

	reg := NewRegistry(r, cfg.APIPrefix)
	reg.Use(middleware.RateLimit(
		d.Limiters(cfg.RateLimitMax, cfg.RateLimitWindow),
		middleware.KeyByIP(),
		middleware.AllowPaths("/health"),
	))

	reg.AddRoot(modules.NewHealthModule(d.Health))
	if cfg.DebugMetricsEnabled {
		reg.Add(modules.NewDebugModule(d.Limiters))
	}
	if d.Auth != nil {
		reg.Add(modules.NewAuthModule(d.Auth, auth, d.Limiters))
	}
	reg.Add(modules.NewUserModule(d.Users, auth, d.Limiters))
	reg.Add(modules.NewProfileModule(d.Profiles, auth, d.Limiters))
	reg.RegisterAll()
	return r
}

func corsConfig(cfg *config.Config) cors.Config {
	c := cors.Config{
		AllowMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut,
			http.MethodPatch, http.MethodDelete, http.MethodOptions,
		},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.HeaderRequestID},
		ExposeHeaders: []string{"Content-Length", middleware.HeaderRequestID, "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		MaxAge:        12 * time.Hour,
	}
	origins := cfg.CORSOrigins()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		c.AllowAllOrigins = true
	} else {
		c.AllowOrigins = origins
		c.AllowCredentials = true
	}
	return c
}
