package config

import (
	"errors"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
)

const (
	CredentialStoreLocal  = "local"
	CredentialStoreRemote = "remote"
)

var ErrJWTSecretRequired = errors.New("JWT_SECRET is required with the local credential store")

// Config centraliza la configuración del servicio.
type Config struct {
	AppEnv        string `env:"APP_ENV" envDefault:"development"`
	HTTPPort      string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL   string `env:"DATABASE_URL,required"`
	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser     string `env:"SMTP_USER"`
	SMTPPass     string `env:"SMTP_PASS"`
	SMTPFrom     string `env:"SMTP_FROM"`
	SMTPFromName string `env:"SMTP_FROM_NAME" envDefault:"Astral"`
	SMTPUseTLS   bool   `env:"SMTP_USE_TLS" envDefault:"false"`

	JWTSecret            string `env:"JWT_SECRET"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"60"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	OTPTTLMinutes          int `env:"OTP_TTL_MINUTES" envDefault:"60"`
	OTPResendWindowSeconds int `env:"OTP_RESEND_WINDOW_SECONDS" envDefault:"60"`
	OTPMaxAttempts         int `env:"OTP_MAX_ATTEMPTS" envDefault:"5"`

	CredentialStore       string `env:"CREDENTIAL_STORE" envDefault:"local"`
	CredentialStoreURL    string `env:"CREDENTIAL_STORE_URL"`
	CredentialStoreAPIKey string `env:"CREDENTIAL_STORE_API_KEY"`

	SentryDSN         string `env:"SENTRY_DSN"`
	SentryEnvironment string `env:"SENTRY_ENVIRONMENT" envDefault:"development"`

	IdentityChannel     string `env:"IDENTITY_CHANNEL" envDefault:"identity:changed"`
	SessionCookieName   string `env:"SESSION_COOKIE_NAME" envDefault:"astral-session"`
	SessionCookieSecure bool   `env:"SESSION_COOKIE_SECURE" envDefault:"false"`
}

// CLIConfig agrupa la configuración del cliente de terminal.
type CLIConfig struct {
	APIBaseURL             string `env:"API_BASE_URL" envDefault:"http://localhost:8080"`
	SuccessRedirectDelayMS int    `env:"SUCCESS_REDIRECT_DELAY_MS" envDefault:"1500"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadCLIConfig carga la configuración del cliente de terminal.
func LoadCLIConfig() (*CLIConfig, error) {
	var cfg CLIConfig
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate revisa combinaciones que env no puede expresar.
func (c *Config) Validate() error {
	if c.CredentialStore != CredentialStoreRemote && strings.TrimSpace(c.JWTSecret) == "" {
		return ErrJWTSecretRequired
	}
	return nil
}

func (c *Config) OTPTTL() time.Duration {
	return time.Duration(c.OTPTTLMinutes) * time.Minute
}

func (c *Config) OTPResendWindow() time.Duration {
	return time.Duration(c.OTPResendWindowSeconds) * time.Second
}

func (c *Config) AccessTTL() time.Duration {
	return time.Duration(c.JWTAccessTTLMinutes) * time.Minute
}

func (c *Config) RefreshTTL() time.Duration {
	return time.Duration(c.JWTRefreshTTLMinutes) * time.Minute
}

func (c *CLIConfig) SuccessRedirectDelay() time.Duration {
	return time.Duration(c.SuccessRedirectDelayMS) * time.Millisecond
}
