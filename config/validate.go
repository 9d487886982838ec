package config

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/oksasatya/anaqa-user-service/pkg/validation"
)

// minSecretLength is the shortest accepted JWT secret when auth is enabled.
const minSecretLength = 32

// rawEnv is the declarative schema: every field is read as a string so that
// coercion problems surface as violations instead of aborting the parse.
type rawEnv struct {
	AppName   string `env:"APP_NAME" envDefault:"anaqa-user-service" validate:"required"`
	Env       string `env:"NODE_ENV" envDefault:"development" validate:"oneof=development production test"`
	Port      string `env:"PORT" envDefault:"3000" validate:"required,posint"`
	APIPrefix string `env:"API_PREFIX" envDefault:"/api" validate:"required,startswith=/"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=fatal error warn info debug trace"`

	DatabaseURL        string `env:"DATABASE_URL" validate:"required,url"`
	DBMaxConns         string `env:"DB_MAX_CONNS" envDefault:"10" validate:"posint"`
	DBMinConns         string `env:"DB_MIN_CONNS" envDefault:"5" validate:"nonnegint"`
	DBConnectTimeout   string `env:"DB_CONNECT_TIMEOUT" envDefault:"10s" validate:"duration"`
	DBStatementTimeout string `env:"DB_STATEMENT_TIMEOUT" envDefault:"45s" validate:"duration"`
	DBMaxConnLife      string `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h" validate:"duration"`
	DBHealthInterval   string `env:"DB_HEALTH_INTERVAL" envDefault:"5s" validate:"duration"`
	MigrationsDir      string `env:"MIGRATIONS_DIR" envDefault:"db/migrations"`
	RunMigrations      string `env:"RUN_MIGRATIONS" envDefault:"true" validate:"boolean"`

	RedisURL string `env:"REDIS_URL" validate:"omitempty,url"`

	AuthEnabled      string `env:"AUTH_ENABLED" envDefault:"true" validate:"boolean"`
	JWTAccessSecret  string `env:"JWT_ACCESS_SECRET"`
	JWTRefreshSecret string `env:"JWT_REFRESH_SECRET"`
	AccessTTL        string `env:"JWT_ACCESS_TTL" envDefault:"15m" validate:"duration"`
	RefreshTTL       string `env:"JWT_REFRESH_TTL" envDefault:"168h" validate:"duration"`
	BcryptCost       string `env:"BCRYPT_COST" envDefault:"10" validate:"posint"`
	HashConcurrency  string `env:"HASH_CONCURRENCY" envDefault:"4" validate:"posint"`

	CookieDomain string `env:"COOKIE_DOMAIN" envDefault:"localhost"`
	CookieSecure string `env:"COOKIE_SECURE" envDefault:"false" validate:"boolean"`

	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	RateLimitWindowMS   string `env:"RATE_LIMIT_WINDOW_MS" envDefault:"900000" validate:"posint"`
	RateLimitMax        string `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100" validate:"posint"`
	LoginMaxAttempts    string `env:"LOGIN_MAX_ATTEMPTS" envDefault:"5" validate:"posint"`
	LoginLockDurationMS string `env:"LOGIN_LOCK_DURATION_MS" envDefault:"900000" validate:"posint"`

	PasswordResetTTL string `env:"PASSWORD_RESET_TTL" envDefault:"30m" validate:"duration"`
	EmailVerifyTTL   string `env:"EMAIL_VERIFY_TTL" envDefault:"24h" validate:"duration"`
	VerifyEmailURL   string `env:"VERIFY_EMAIL_URL" envDefault:"http://localhost:3000/verify-email" validate:"url"`
	ResetPasswordURL string `env:"RESET_PASSWORD_URL" envDefault:"http://localhost:3000/reset-password" validate:"url"`

	ShutdownTimeout string `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"duration"`

	RabbitMQURL        string `env:"RABBITMQ_URL" validate:"omitempty,url"`
	RabbitMQEmailQueue string `env:"RABBITMQ_EMAIL_QUEUE" envDefault:"emails" validate:"required"`
	RabbitMQAuditQueue string `env:"RABBITMQ_AUDIT_QUEUE" envDefault:"user_audit" validate:"required"`

	MailgunDomain string `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey string `env:"MAILGUN_API_KEY"`
	MailgunSender string `env:"MAILGUN_SENDER" validate:"omitempty,email"`

	ElasticsearchAddrs string `env:"ELASTICSEARCH_ADDRS"`
	ElasticsearchUser  string `env:"ELASTICSEARCH_USERNAME"`
	ElasticsearchPass  string `env:"ELASTICSEARCH_PASSWORD"`
	ESUsersIndex       string `env:"ES_USERS_INDEX" envDefault:"users" validate:"required"`

	GCSBucket              string `env:"GCS_BUCKET"`
	GCSCredentialsJSONPath string `env:"GCS_CREDENTIALS_JSON"`

	HTTPLogEnabled      string `env:"HTTP_LOG_ENABLED" envDefault:"false" validate:"boolean"`
	DebugMetricsEnabled string `env:"DEBUG_METRICS_ENABLED" envDefault:"false" validate:"boolean"`
	MailSendEnabled     string `env:"MAIL_SEND_ENABLED" envDefault:"false" validate:"boolean"`
	AuditPublishEnabled string `env:"AUDIT_PUBLISH_ENABLED" envDefault:"false" validate:"boolean"`
	SearchIndexEnabled  string `env:"SEARCH_INDEX_ENABLED" envDefault:"false" validate:"boolean"`
	AvatarUploadEnabled string `env:"AVATAR_UPLOAD_ENABLED" envDefault:"false" validate:"boolean"`
}

// Violation is a single failing configuration field.
type Violation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every violated field of a rejected environment.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return "invalid configuration: " + strings.Join(parts, "; ")
}

// Scope selects which process the configuration is validated for.
type Scope int

const (
	// ScopeAPI is the HTTP service and the commands sharing its container.
	ScopeAPI Scope = iota
	// ScopeWorker is the email worker. It never touches the database or
	// signs tokens, and it needs Mailgun when mail sending is enabled.
	ScopeWorker
)

var workerIgnored = map[string]bool{
	"DATABASE_URL":       true,
	"JWT_ACCESS_SECRET":  true,
	"JWT_REFRESH_SECRET": true,
}

// Validate parses rawEnv against the schema for the API process. It either
// returns a complete Config or a *ValidationError naming every failing field.
func Validate(rawEnvMap map[string]string) (*Config, error) {
	return ValidateFor(rawEnvMap, ScopeAPI)
}

// ValidateFor is Validate with an explicit scope.
func ValidateFor(rawEnvMap map[string]string, scope Scope) (*Config, error) {
	var raw rawEnv
	if err := env.Parse(&raw, env.Options{Environment: rawEnvMap}); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}

	violations := schemaViolations(&raw)
	violations = append(violations, conditionalViolations(&raw, violations)...)
	if scope == ScopeWorker {
		violations = workerViolations(&raw, violations)
	}
	if len(violations) > 0 {
		sort.SliceStable(violations, func(i, j int) bool { return violations[i].Field < violations[j].Field })
		return nil, &ValidationError{Violations: violations}
	}
	return build(&raw), nil
}

func loadDotEnv() {
	_ = godotenv.Load() // load .env if present
}

func newSchemaValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		return fld.Tag.Get("env")
	})
	_ = v.RegisterValidation("posint", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Field().String())
		return err == nil && n > 0
	})
	_ = v.RegisterValidation("nonnegint", func(fl validator.FieldLevel) bool {
		n, err := strconv.Atoi(fl.Field().String())
		return err == nil && n >= 0
	})
	_ = v.RegisterValidation("duration", func(fl validator.FieldLevel) bool {
		d, err := time.ParseDuration(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

func schemaViolations(raw *rawEnv) []Violation {
	err := newSchemaValidator().Struct(raw)
	if err == nil {
		return nil
	}
	var out []Violation
	for _, d := range validation.ToDetails(err) {
		out = append(out, Violation{Field: d.Field, Message: d.Message})
	}
	return out
}

// conditionalViolations covers rules that depend on other fields. Fields that
// already failed their own schema tag are not reported twice.
func conditionalViolations(raw *rawEnv, prior []Violation) []Violation {
	failed := make(map[string]bool, len(prior))
	for _, v := range prior {
		failed[v.Field] = true
	}
	var out []Violation
	add := func(field, msg string) {
		if !failed[field] {
			out = append(out, Violation{Field: field, Message: msg})
			failed[field] = true
		}
	}

	if parseBool(raw.AuthEnabled) {
		for field, secret := range map[string]string{
			"JWT_ACCESS_SECRET":  raw.JWTAccessSecret,
			"JWT_REFRESH_SECRET": raw.JWTRefreshSecret,
		} {
			switch {
			case secret == "":
				add(field, "is required when AUTH_ENABLED=true")
			case len(secret) < minSecretLength:
				add(field, fmt.Sprintf("must be at least %d characters long", minSecretLength))
			}
		}
	}

	if !failed["BCRYPT_COST"] {
		if n := atoi(raw.BcryptCost); n < 4 || n > 31 {
			add("BCRYPT_COST", "must be between 4 and 31")
		}
	}
	if !failed["DB_MAX_CONNS"] && !failed["DB_MIN_CONNS"] && atoi(raw.DBMinConns) > atoi(raw.DBMaxConns) {
		add("DB_MIN_CONNS", "must not exceed DB_MAX_CONNS")
	}
	if (parseBool(raw.MailSendEnabled) || parseBool(raw.AuditPublishEnabled)) && raw.RabbitMQURL == "" {
		add("RABBITMQ_URL", "is required when MAIL_SEND_ENABLED or AUDIT_PUBLISH_ENABLED is true")
	}
	if parseBool(raw.SearchIndexEnabled) && len(splitList(raw.ElasticsearchAddrs)) == 0 {
		add("ELASTICSEARCH_ADDRS", "is required when SEARCH_INDEX_ENABLED=true")
	}
	if parseBool(raw.AvatarUploadEnabled) && raw.GCSBucket == "" {
		add("GCS_BUCKET", "is required when AVATAR_UPLOAD_ENABLED=true")
	}
	return out
}

// workerViolations drops the rules the worker does not depend on and adds
// the Mailgun requirement.
func workerViolations(raw *rawEnv, prior []Violation) []Violation {
	out := prior[:0]
	seen := make(map[string]bool, len(prior))
	for _, v := range prior {
		if !workerIgnored[v.Field] {
			out = append(out, v)
			seen[v.Field] = true
		}
	}
	if !parseBool(raw.MailSendEnabled) {
		return out
	}
	for field, val := range map[string]string{
		"MAILGUN_DOMAIN":  raw.MailgunDomain,
		"MAILGUN_API_KEY": raw.MailgunAPIKey,
		"MAILGUN_SENDER":  raw.MailgunSender,
	} {
		if val == "" && !seen[field] {
			out = append(out, Violation{Field: field, Message: "is required when MAIL_SEND_ENABLED=true"})
		}
	}
	return out
}

// build converts an already validated raw schema into Config. Parse errors
// cannot occur at this point.
func build(raw *rawEnv) *Config {
	return &Config{
		AppName:   raw.AppName,
		Env:       raw.Env,
		Port:      atoi(raw.Port),
		APIPrefix: strings.TrimRight(raw.APIPrefix, "/"),
		LogLevel:  raw.LogLevel,

		DatabaseURL:        raw.DatabaseURL,
		DBMaxConns:         int32(atoi(raw.DBMaxConns)),
		DBMinConns:         int32(atoi(raw.DBMinConns)),
		DBConnectTimeout:   dur(raw.DBConnectTimeout),
		DBStatementTimeout: dur(raw.DBStatementTimeout),
		DBMaxConnLife:      dur(raw.DBMaxConnLife),
		DBHealthInterval:   dur(raw.DBHealthInterval),
		MigrationsDir:      raw.MigrationsDir,
		RunMigrations:      parseBool(raw.RunMigrations),

		RedisURL: raw.RedisURL,

		AuthEnabled:      parseBool(raw.AuthEnabled),
		JWTAccessSecret:  raw.JWTAccessSecret,
		JWTRefreshSecret: raw.JWTRefreshSecret,
		AccessTTL:        dur(raw.AccessTTL),
		RefreshTTL:       dur(raw.RefreshTTL),
		BcryptCost:       atoi(raw.BcryptCost),
		HashConcurrency:  atoi(raw.HashConcurrency),

		CookieDomain: raw.CookieDomain,
		CookieSecure: parseBool(raw.CookieSecure),

		CORSOrigin: raw.CORSOrigin,

		RateLimitWindow:   time.Duration(atoi(raw.RateLimitWindowMS)) * time.Millisecond,
		RateLimitMax:      atoi(raw.RateLimitMax),
		LoginMaxAttempts:  atoi(raw.LoginMaxAttempts),
		LoginLockDuration: time.Duration(atoi(raw.LoginLockDurationMS)) * time.Millisecond,

		PasswordResetTTL: dur(raw.PasswordResetTTL),
		EmailVerifyTTL:   dur(raw.EmailVerifyTTL),
		VerifyEmailURL:   raw.VerifyEmailURL,
		ResetPasswordURL: raw.ResetPasswordURL,

		ShutdownTimeout: dur(raw.ShutdownTimeout),

		RabbitMQURL:        raw.RabbitMQURL,
		RabbitMQEmailQueue: raw.RabbitMQEmailQueue,
		RabbitMQAuditQueue: raw.RabbitMQAuditQueue,

		MailgunDomain: raw.MailgunDomain,
		MailgunAPIKey: raw.MailgunAPIKey,
		MailgunSender: raw.MailgunSender,

		ElasticsearchAddrs: raw.ElasticsearchAddrs,
		ElasticsearchUser:  raw.ElasticsearchUser,
		ElasticsearchPass:  raw.ElasticsearchPass,
		ESUsersIndex:       raw.ESUsersIndex,

		GCSBucket:              raw.GCSBucket,
		GCSCredentialsJSONPath: raw.GCSCredentialsJSONPath,

		HTTPLogEnabled:      parseBool(raw.HTTPLogEnabled),
		DebugMetricsEnabled: parseBool(raw.DebugMetricsEnabled),
		MailSendEnabled:     parseBool(raw.MailSendEnabled),
		AuditPublishEnabled: parseBool(raw.AuditPublishEnabled),
		SearchIndexEnabled:  parseBool(raw.SearchIndexEnabled),
		AvatarUploadEnabled: parseBool(raw.AvatarUploadEnabled),
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func dur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}
