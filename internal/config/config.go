package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port        string   `mapstructure:"PORT"`
	Env         string   `mapstructure:"ENV"`
	DatabaseURL string   `mapstructure:"DATABASE_URL"`
	DBMaxConns  int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns  int32    `mapstructure:"DB_MIN_CONNS"`
	CORSOrigins []string `mapstructure:"CORS_ORIGINS"`

	JWTSecret     string `mapstructure:"JWT_SECRET"`
	JWTIssuer     string `mapstructure:"JWT_ISSUER"`
	JWTExpiryMins int    `mapstructure:"JWT_EXPIRY_MINS"`

	FileStore      string `mapstructure:"FILE_STORE"`
	MinioEndpoint  string `mapstructure:"MINIO_ENDPOINT"`
	MinioAccessKey string `mapstructure:"MINIO_ACCESS_KEY"`
	MinioSecretKey string `mapstructure:"MINIO_SECRET_KEY"`
	MinioBucket    string `mapstructure:"MINIO_BUCKET"`
	MinioUseSSL    bool   `mapstructure:"MINIO_USE_SSL"`

	BenefitsAdapter string `mapstructure:"BENEFITS_ADAPTER"`
	BenefitsAPIURL  string `mapstructure:"BENEFITS_API_URL"`

	Notifier  string `mapstructure:"NOTIFIER"`
	SMTPHost  string `mapstructure:"SMTP_HOST"`
	SMTPPort  int    `mapstructure:"SMTP_PORT"`
	SMTPUser  string `mapstructure:"SMTP_USER"`
	SMTPPass  string `mapstructure:"SMTP_PASS"`
	EmailFrom string `mapstructure:"EMAIL_FROM"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout int     `mapstructure:"REQUEST_TIMEOUT_SECS"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("JWT_ISSUER", "provider-portal")
	v.SetDefault("JWT_EXPIRY_MINS", 60)
	v.SetDefault("FILE_STORE", "memory")
	v.SetDefault("MINIO_BUCKET", "portal-files")
	v.SetDefault("BENEFITS_ADAPTER", "rules")
	v.SetDefault("NOTIFIER", "log")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("EMAIL_FROM", "noreply@portal.local")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("REQUEST_TIMEOUT_SECS", 30)

	// Bind env vars explicitly so Unmarshal picks them up
	for _, key := range []string{
		"PORT", "ENV", "DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS",
		"CORS_ORIGINS", "JWT_SECRET", "JWT_ISSUER", "JWT_EXPIRY_MINS",
		"FILE_STORE", "MINIO_ENDPOINT", "MINIO_ACCESS_KEY", "MINIO_SECRET_KEY",
		"MINIO_BUCKET", "MINIO_USE_SSL", "BENEFITS_ADAPTER", "BENEFITS_API_URL",
		"NOTIFIER", "SMTP_HOST", "SMTP_PORT", "SMTP_USER", "SMTP_PASS",
		"EMAIL_FROM", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT_SECS",
	} {
		v.BindEnv(key)
	}

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// TokenTTL returns the configured JWT lifetime.
func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.JWTExpiryMins) * time.Minute
}

// Validate checks that the configuration is safe to run. Adapter profiles
// must name a known implementation, and production refuses to start with a
// missing JWT secret or an in-memory file store.
func (c *Config) Validate() error {
	switch c.FileStore {
	case "memory", "minio":
	default:
		return fmt.Errorf("FILE_STORE must be \"memory\" or \"minio\", got %q", c.FileStore)
	}
	switch c.BenefitsAdapter {
	case "rules", "http":
	default:
		return fmt.Errorf("BENEFITS_ADAPTER must be \"rules\" or \"http\", got %q", c.BenefitsAdapter)
	}
	switch c.Notifier {
	case "log", "smtp":
	default:
		return fmt.Errorf("NOTIFIER must be \"log\" or \"smtp\", got %q", c.Notifier)
	}

	if c.FileStore == "minio" {
		if c.MinioEndpoint == "" {
			return fmt.Errorf("MINIO_ENDPOINT is required when FILE_STORE is \"minio\"")
		}
		if c.MinioAccessKey == "" || c.MinioSecretKey == "" {
			return fmt.Errorf("MINIO_ACCESS_KEY and MINIO_SECRET_KEY are required when FILE_STORE is \"minio\"")
		}
	}
	if c.BenefitsAdapter == "http" && c.BenefitsAPIURL == "" {
		return fmt.Errorf("BENEFITS_API_URL is required when BENEFITS_ADAPTER is \"http\"")
	}
	if c.Notifier == "smtp" && c.SMTPHost == "" {
		return fmt.Errorf("SMTP_HOST is required when NOTIFIER is \"smtp\"")
	}

	if c.IsProduction() {
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required in production")
		}
		if len(c.JWTSecret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters, got %d", len(c.JWTSecret))
		}
		if c.FileStore == "memory" {
			return fmt.Errorf("FILE_STORE=memory is not allowed in production")
		}
	}

	return nil
}
