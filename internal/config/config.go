package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator"
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/providers/env"
)

const (
	ClientPrefix  = "CHECKOUT_"
	SandboxPrefix = "SANDBOX_"
)

// ClientConfig configures the SDK side: the host application driving a session.
type ClientConfig struct {
	Primary   Primary         `koanf:"primary"`
	Client    APIClientConfig `koanf:"client"`
	Retry     RetryConfig     `koanf:"retry"`
	PublicKey PublicKeyConfig `koanf:"public_key"`
	Logger    LoggerConfig    `koanf:"logger"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// SandboxConfig configures the sandbox checkout backend.
type SandboxConfig struct {
	Primary   Primary         `koanf:"primary"`
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Sandbox   BackendConfig   `koanf:"sandbox"`
	Logger    LoggerConfig    `koanf:"logger"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Worker    WorkerConfig    `koanf:"worker"`
}

type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

type APIClientConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	ClientKey string        `koanf:"client_key" validate:"required"`
	Timeout   time.Duration `koanf:"timeout" validate:"required"`
}

const (
	RetryStrategyConstant    = "constant"
	RetryStrategyExponential = "exponential"
)

type RetryConfig struct {
	MaximumCount int           `koanf:"maximum_count" validate:"min=0"`
	BaseDelay    time.Duration `koanf:"base_delay"`
	MaxDelay     time.Duration `koanf:"max_delay"`
	Strategy     string        `koanf:"strategy" validate:"omitempty,oneof=constant exponential"`
}

// PublicKeyConfig controls the public key cache. A zero TTL keeps a fetched
// key for the lifetime of the process.
type PublicKeyConfig struct {
	TTL time.Duration `koanf:"ttl"`
}

type LoggerConfig struct {
	Level string `koanf:"level"`
}

type TelemetryConfig struct {
	Enabled        bool   `koanf:"enabled"`
	OTLPEndpoint   string `koanf:"otlp_endpoint"`
	OTLPInsecure   bool   `koanf:"otlp_insecure"`
	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`
}

type ServerConfig struct {
	Port         string        `koanf:"port" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"required"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"required"`
	IdleTimeout  time.Duration `koanf:"idle_timeout" validate:"required"`
}

type DatabaseConfig struct {
	Host            string        `koanf:"host" validate:"required"`
	Port            int           `koanf:"port" validate:"required"`
	User            string        `koanf:"user" validate:"required"`
	Password        string        `koanf:"password" validate:"required"`
	Name            string        `koanf:"name" validate:"required"`
	SSLMode         string        `koanf:"ssl_mode" validate:"required"`
	MaxOpenConns    int           `koanf:"max_open_conns" validate:"required"`
	MaxIdleConns    int           `koanf:"max_idle_conns" validate:"required"`
	ConnMaxLifetime time.Duration `koanf:"conn_max_lifetime" validate:"required"`
	ConnMaxIdleTime time.Duration `koanf:"conn_max_idle_time" validate:"required"`
}

// BackendConfig holds the sandbox's own behaviour knobs.
type BackendConfig struct {
	ClientKey   string        `koanf:"client_key" validate:"required"`
	PublicKey   string        `koanf:"public_key" validate:"required"`
	TokenSecret string        `koanf:"token_secret" validate:"required,min=16"`
	SessionTTL  time.Duration `koanf:"session_ttl" validate:"required"`
	OrderTTL    time.Duration `koanf:"order_ttl" validate:"required"`
	// GiftCardBalance is what every sandbox gift card holds, in minor units
	// of the session currency.
	GiftCardBalance int64 `koanf:"gift_card_balance" validate:"required,gt=0"`
}

type WorkerConfig struct {
	Interval  time.Duration `koanf:"interval" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"required"`
}

// NewLogger builds the JSON slog logger for the configured level.
func (c LoggerConfig) NewLogger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Level)); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

// LoadClientConfig reads CHECKOUT_* variables.
func LoadClientConfig() (*ClientConfig, error) {
	return Load[ClientConfig](ClientPrefix)
}

// LoadSandboxConfig reads SANDBOX_* variables.
func LoadSandboxConfig() (*SandboxConfig, error) {
	return Load[SandboxConfig](SandboxPrefix)
}

// Load reads environment variables with the given prefix into T and
// validates it. A double underscore separates nesting levels, so
// CHECKOUT_CLIENT__BASE_URL lands in client.base_url.
func Load[T any](prefix string) (*T, error) {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	k := koanf.New(".")

	err := k.Load(env.Provider(prefix, ".", func(s string) string {
		return strings.ReplaceAll(
			strings.ToLower(strings.TrimPrefix(s, prefix)),
			"__",
			".",
		)
	}), nil)
	if err != nil {
		logger.Error("failed to load environment variables", "error", err)
		return nil, err
	}

	cfg := new(T)

	err = k.Unmarshal("", cfg)
	if err != nil {
		logger.Error("could not unmarshal config", "error", err)
		return nil, err
	}

	validate := validator.New()

	err = validate.Struct(cfg)
	if err != nil {
		logger.Error("config validation failed", "error", err)
		return nil, err
	}

	return cfg, nil
}
