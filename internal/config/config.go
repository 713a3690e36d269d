package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Source   SourceConfig
	Ingest   IngestConfig
	Alerts   AlertsConfig
	Export   ExportConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server configuration. APIKey protects the
// ingest trigger endpoint.
type ServerConfig struct {
	Port   string
	Env    string
	APIKey string
}

// DatabaseConfig holds PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	PoolMin  int
	PoolMax  int
}

// SourceConfig holds the geographic feature-service configuration the
// source client queries.
type SourceConfig struct {
	// BaseURL is the feature layer query endpoint, e.g.
	// https://maps.example.gov/arcgis/rest/services/LRA/MapServer/0.
	BaseURL string
	// Where is the status inclusion predicate applied server-side.
	Where string
	// PageSize bounds each identifier page request.
	PageSize int
	// BatchSize bounds each full-attribute fetch.
	BatchSize int
	// FetchConcurrency bounds concurrent attribute-batch requests.
	FetchConcurrency int
	// MaxRetries caps transient-failure retry attempts per request.
	MaxRetries int

	// AuthMode is one of "none", "token", "oauth".
	AuthMode     string
	Token        string
	ClientID     string
	ClientSecret string
	TokenURL     string
}

// IngestConfig holds pipeline tuning.
type IngestConfig struct {
	// BatchCeiling caps operations per atomic write batch. Must stay under
	// the store's hard per-batch limit of 500.
	BatchCeiling int
}

// AlertsConfig holds notification delivery configuration. An empty
// AMQPURL falls back to log-only delivery; an empty WebhookURL disables
// the per-run broadcast.
type AlertsConfig struct {
	AMQPURL    string
	Exchange   string
	WebhookURL string
}

// ExportConfig holds the CSV artifact destination. An empty Bucket
// disables the export.
type ExportConfig struct {
	Bucket        string
	Region        string
	Prefix        string
	PresignTTLMin int
}

// CORSConfig holds CORS configuration.
type CORSConfig struct {
	Origins []string
}

// AuthMode values for SourceConfig.
const (
	AuthNone  = "none"
	AuthToken = "token"
	AuthOAuth = "oauth"
)

// Load reads configuration from environment variables.
// It uses viper to read values and provides sensible defaults for development.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("PORT", "8080")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "5432")
	v.SetDefault("DB_NAME", "lra")
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_POOL_MIN", 2)
	v.SetDefault("DB_POOL_MAX", 10)
	v.SetDefault("SOURCE_WHERE", "1=1")
	v.SetDefault("SOURCE_PAGE_SIZE", 2000)
	v.SetDefault("SOURCE_BATCH_SIZE", 100)
	v.SetDefault("SOURCE_FETCH_CONCURRENCY", 4)
	v.SetDefault("SOURCE_MAX_RETRIES", 4)
	v.SetDefault("SOURCE_AUTH_MODE", AuthNone)
	v.SetDefault("INGEST_BATCH_CEILING", 450)
	v.SetDefault("AMQP_EXCHANGE", "lra.alerts")
	v.SetDefault("EXPORT_PREFIX", "exports")
	v.SetDefault("EXPORT_REGION", "us-east-1")
	v.SetDefault("EXPORT_PRESIGN_TTL_MIN", 60)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")

	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:   v.GetString("PORT"),
			Env:    v.GetString("ENV"),
			APIKey: v.GetString("API_KEY"),
		},
		Database: DatabaseConfig{
			Host:     v.GetString("DB_HOST"),
			Port:     v.GetString("DB_PORT"),
			Name:     v.GetString("DB_NAME"),
			User:     v.GetString("DB_USER"),
			Password: v.GetString("DB_PASSWORD"),
			PoolMin:  v.GetInt("DB_POOL_MIN"),
			PoolMax:  v.GetInt("DB_POOL_MAX"),
		},
		Source: SourceConfig{
			BaseURL:          v.GetString("SOURCE_URL"),
			Where:            v.GetString("SOURCE_WHERE"),
			PageSize:         v.GetInt("SOURCE_PAGE_SIZE"),
			BatchSize:        v.GetInt("SOURCE_BATCH_SIZE"),
			FetchConcurrency: v.GetInt("SOURCE_FETCH_CONCURRENCY"),
			MaxRetries:       v.GetInt("SOURCE_MAX_RETRIES"),
			AuthMode:         v.GetString("SOURCE_AUTH_MODE"),
			Token:            v.GetString("SOURCE_TOKEN"),
			ClientID:         v.GetString("SOURCE_CLIENT_ID"),
			ClientSecret:     v.GetString("SOURCE_CLIENT_SECRET"),
			TokenURL:         v.GetString("SOURCE_TOKEN_URL"),
		},
		Ingest: IngestConfig{
			BatchCeiling: v.GetInt("INGEST_BATCH_CEILING"),
		},
		Alerts: AlertsConfig{
			AMQPURL:    v.GetString("AMQP_URL"),
			Exchange:   v.GetString("AMQP_EXCHANGE"),
			WebhookURL: v.GetString("BROADCAST_WEBHOOK_URL"),
		},
		Export: ExportConfig{
			Bucket:        v.GetString("EXPORT_BUCKET"),
			Region:        v.GetString("EXPORT_REGION"),
			Prefix:        v.GetString("EXPORT_PREFIX"),
			PresignTTLMin: v.GetInt("EXPORT_PRESIGN_TTL_MIN"),
		},
		CORS: CORSConfig{
			Origins: parseOrigins(v.GetString("CORS_ORIGINS")),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required")
	}
	if c.Database.Port == "" {
		return fmt.Errorf("DB_PORT is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("DB_NAME is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("DB_USER is required")
	}
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.Database.PoolMin < 0 {
		return fmt.Errorf("DB_POOL_MIN must be non-negative")
	}
	if c.Database.PoolMax < 1 {
		return fmt.Errorf("DB_POOL_MAX must be at least 1")
	}
	if c.Database.PoolMin > c.Database.PoolMax {
		return fmt.Errorf("DB_POOL_MIN must be less than or equal to DB_POOL_MAX")
	}

	if c.Source.BaseURL == "" {
		return fmt.Errorf("SOURCE_URL is required")
	}
	if c.Source.PageSize < 1 {
		return fmt.Errorf("SOURCE_PAGE_SIZE must be at least 1")
	}
	if c.Source.BatchSize < 1 {
		return fmt.Errorf("SOURCE_BATCH_SIZE must be at least 1")
	}
	if c.Source.FetchConcurrency < 1 {
		return fmt.Errorf("SOURCE_FETCH_CONCURRENCY must be at least 1")
	}

	switch c.Source.AuthMode {
	case AuthNone:
	case AuthToken:
		if c.Source.Token == "" {
			return fmt.Errorf("SOURCE_TOKEN is required when SOURCE_AUTH_MODE is %q", AuthToken)
		}
	case AuthOAuth:
		if c.Source.ClientID == "" || c.Source.ClientSecret == "" || c.Source.TokenURL == "" {
			return fmt.Errorf("SOURCE_CLIENT_ID, SOURCE_CLIENT_SECRET and SOURCE_TOKEN_URL are required when SOURCE_AUTH_MODE is %q", AuthOAuth)
		}
	default:
		return fmt.Errorf("SOURCE_AUTH_MODE must be one of %q, %q, %q", AuthNone, AuthToken, AuthOAuth)
	}

	if c.Ingest.BatchCeiling < 1 || c.Ingest.BatchCeiling > 500 {
		return fmt.Errorf("INGEST_BATCH_CEILING must be between 1 and 500")
	}

	if c.Export.Bucket != "" && c.Export.PresignTTLMin < 1 {
		return fmt.Errorf("EXPORT_PRESIGN_TTL_MIN must be at least 1")
	}

	if len(c.CORS.Origins) == 0 {
		return fmt.Errorf("CORS_ORIGINS is required")
	}

	return nil
}

// parseOrigins splits a comma-separated string of origins into a slice.
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
