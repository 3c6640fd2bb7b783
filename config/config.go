// Package config loads the workshop settings from WORKSHOP_* environment
// variables.
package config

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	goerrors "github.com/goliatone/go-errors"
)

// Prefix is prepended to every variable name.
const Prefix = "WORKSHOP_"

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

const (
	BackendLocal = "local"
	BackendREST  = "rest"
)

const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

type Config struct {
	Env      string         `env:"ENV" envDefault:"development"`
	Backend  string         `env:"BACKEND" envDefault:"local"`
	HTTP     HTTPConfig     `envPrefix:"HTTP_"`
	Database DatabaseConfig `envPrefix:"DATABASE_"`
	Hosted   HostedConfig   `envPrefix:"BACKEND_"`
	Auth     AuthConfig     `envPrefix:"AUTH_"`
	Store    StoreConfig    `envPrefix:"STORE_"`
	Log      LogConfig      `envPrefix:"LOG_"`
}

type HTTPConfig struct {
	Addr       string        `env:"ADDR" envDefault:":8572"`
	VisitorTTL time.Duration `env:"VISITOR_TTL" envDefault:"30m"`
}

type DatabaseConfig struct {
	DSN         string        `env:"DSN" envDefault:"file:workshop.db?cache=shared"`
	Debug       bool          `env:"DEBUG" envDefault:"false"`
	PingTimeout time.Duration `env:"PING_TIMEOUT" envDefault:"5s"`
}

// HostedConfig points the rest backend at a hosted deployment.
type HostedConfig struct {
	URL     string `env:"URL"`
	AnonKey string `env:"ANON_KEY"`
}

// AuthConfig drives the in-process local backend.
type AuthConfig struct {
	SigningKey       string        `env:"SIGNING_KEY"`
	Issuer           string        `env:"ISSUER" envDefault:"workshop"`
	Audience         string        `env:"AUDIENCE" envDefault:"authenticated"`
	TokenTTL         time.Duration `env:"TOKEN_TTL" envDefault:"1h"`
	RefreshTTL       time.Duration `env:"REFRESH_TTL" envDefault:"720h"`
	BcryptCost       int           `env:"BCRYPT_COST" envDefault:"12"`
	MaxLoginAttempts int           `env:"MAX_LOGIN_ATTEMPTS" envDefault:"5"`
	CoolDown         time.Duration `env:"COOL_DOWN" envDefault:"24h"`
	UseHashid        bool          `env:"USE_HASHID" envDefault:"false"`
}

type StoreConfig struct {
	OperationTimeout time.Duration `env:"OPERATION_TIMEOUT" envDefault:"10s"`
}

type LogConfig struct {
	Level  string `env:"LEVEL" envDefault:"info"`
	Format string `env:"FORMAT" envDefault:"text"`
}

// Load reads the process environment.
func Load() (*Config, error) {
	return parse(env.Options{Prefix: Prefix})
}

// LoadFrom reads values from environ instead of the process environment.
// Keys carry the WORKSHOP_ prefix.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Prefix: Prefix, Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "failed to parse environment")
	}

	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) normalize() {
	c.Env = strings.ToLower(strings.TrimSpace(c.Env))
	c.Backend = strings.ToLower(strings.TrimSpace(c.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))
	c.Hosted.URL = strings.TrimSpace(c.Hosted.URL)
	c.Hosted.AnonKey = strings.TrimSpace(c.Hosted.AnonKey)
}

// Validate reports every invalid or missing value in one error. Field names
// are the variable names without the prefix.
func (c *Config) Validate() error {
	if verr := goerrors.ValidateWithOzzo(c.rules, "invalid configuration"); verr != nil {
		return verr.WithTextCode("CONFIG_INVALID")
	}
	return nil
}

func (c *Config) rules() error {
	local := c.Backend == BackendLocal
	rest := c.Backend == BackendREST

	return validation.Errors{
		"ENV":     validation.Validate(c.Env, validation.Required, validation.In(EnvDevelopment, EnvStaging, EnvProduction)),
		"BACKEND": validation.Validate(c.Backend, validation.Required, validation.In(BackendLocal, BackendREST)),

		"HTTP_ADDR":        validation.Validate(c.HTTP.Addr, validation.Required),
		"HTTP_VISITOR_TTL": validation.Validate(c.HTTP.VisitorTTL, validation.Required, validation.Min(time.Minute)),

		"DATABASE_DSN": validation.Validate(c.Database.DSN, validation.When(local, validation.Required)),

		"BACKEND_URL":      validation.Validate(c.Hosted.URL, validation.When(rest, validation.Required, is.URL)),
		"BACKEND_ANON_KEY": validation.Validate(c.Hosted.AnonKey, validation.When(rest, validation.Required)),

		"AUTH_SIGNING_KEY":        validation.Validate(c.Auth.SigningKey, validation.When(local, validation.Required, validation.Length(32, 0))),
		"AUTH_ISSUER":             validation.Validate(c.Auth.Issuer, validation.Required),
		"AUTH_AUDIENCE":           validation.Validate(c.Auth.Audience, validation.Required),
		"AUTH_TOKEN_TTL":          validation.Validate(c.Auth.TokenTTL, validation.Required, validation.Min(time.Minute)),
		"AUTH_REFRESH_TTL":        validation.Validate(c.Auth.RefreshTTL, validation.Required, validation.Min(c.Auth.TokenTTL)),
		"AUTH_BCRYPT_COST":        validation.Validate(c.Auth.BcryptCost, validation.Min(4), validation.Max(31)),
		"AUTH_MAX_LOGIN_ATTEMPTS": validation.Validate(c.Auth.MaxLoginAttempts, validation.Required, validation.Min(1)),
		"AUTH_COOL_DOWN":          validation.Validate(c.Auth.CoolDown, validation.Required),

		"STORE_OPERATION_TIMEOUT": validation.Validate(c.Store.OperationTimeout, validation.Required, validation.Min(time.Second)),

		"LOG_LEVEL":  validation.Validate(c.Log.Level, validation.Required, validation.In("debug", "info", "warn", "error")),
		"LOG_FORMAT": validation.Validate(c.Log.Format, validation.Required, validation.In(LogFormatText, LogFormatJSON)),
	}.Filter()
}

func (c *Config) IsProduction() bool {
	return c.Env == EnvProduction
}

// SlogLevel maps the configured level name to a slog level.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Handler builds the slog handler for the configured format.
func (c LogConfig) Handler(w io.Writer) slog.Handler {
	if w == nil {
		w = os.Stderr
	}
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Format == LogFormatJSON {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func (c LogConfig) NewLogger(w io.Writer) *slog.Logger {
	return slog.New(c.Handler(w))
}
