package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment names accepted in NODE_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds the validated application configuration.
// It is built once by Validate and never mutated afterwards.
type Config struct {
	AppName   string
	Env       string // development, production, test
	Port      int
	APIPrefix string
	LogLevel  string

	// Database
	DatabaseURL        string
	DBMaxConns         int32
	DBMinConns         int32
	DBConnectTimeout   time.Duration // server selection
	DBStatementTimeout time.Duration // socket
	DBMaxConnLife      time.Duration
	DBHealthInterval   time.Duration
	MigrationsDir      string
	RunMigrations      bool

	// Redis (optional; rate limiting and lockout fall back to in-process state)
	RedisURL string

	// Auth
	AuthEnabled      bool
	JWTAccessSecret  string
	JWTRefreshSecret string
	AccessTTL        time.Duration
	RefreshTTL       time.Duration
	BcryptCost       int
	HashConcurrency  int

	// Cookies
	CookieDomain string
	CookieSecure bool

	// CORS
	CORSOrigin string // comma-separated

	// Rate limiting and lockout
	RateLimitWindow   time.Duration
	RateLimitMax      int
	LoginMaxAttempts  int
	LoginLockDuration time.Duration

	// Token lifetimes for emailed links
	PasswordResetTTL time.Duration
	EmailVerifyTTL   time.Duration
	VerifyEmailURL   string
	ResetPasswordURL string

	ShutdownTimeout time.Duration

	// RabbitMQ
	RabbitMQURL        string
	RabbitMQEmailQueue string
	RabbitMQAuditQueue string

	// Mailgun (email worker)
	MailgunDomain string
	MailgunAPIKey string
	MailgunSender string

	// Elasticsearch
	ElasticsearchAddrs string // comma-separated
	ElasticsearchUser  string
	ElasticsearchPass  string
	ESUsersIndex       string

	// Google Cloud Storage
	GCSBucket              string
	GCSCredentialsJSONPath string // optional; if empty, Application Default Credentials are used

	// Feature flags
	HTTPLogEnabled      bool
	DebugMetricsEnabled bool
	MailSendEnabled     bool
	AuditPublishEnabled bool
	SearchIndexEnabled  bool
	AvatarUploadEnabled bool
}

// Load reads .env (when present) and validates the process environment.
func Load() (*Config, error) {
	return LoadFor(ScopeAPI)
}

// LoadFor is Load for the given scope.
func LoadFor(scope Scope) (*Config, error) {
	loadDotEnv()
	return ValidateFor(Environ(), scope)
}

// Environ returns the process environment as a map.
func Environ() map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

func (c *Config) IsProduction() bool  { return c.Env == EnvProduction }
func (c *Config) IsDevelopment() bool { return c.Env == EnvDevelopment }
func (c *Config) IsTest() bool        { return c.Env == EnvTest }

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string { return ":" + strconv.Itoa(c.Port) }

// CORSOrigins returns the allowed origins as slice
func (c *Config) CORSOrigins() []string {
	return splitList(c.CORSOrigin)
}

// ESAddrs returns Elasticsearch addresses as a slice
func (c *Config) ESAddrs() []string {
	return splitList(c.ElasticsearchAddrs)
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	res := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			res = append(res, p)
		}
	}
	return res
}
