// Package config loads the service configuration from a yaml file,
// environment variables and defaults, in that order of precedence.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Events     EventsConfig     `mapstructure:"events"`
	Auth       AuthConfig       `mapstructure:"auth"`
	Processing ProcessingConfig `mapstructure:"processing"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	CORS       CORSConfig       `mapstructure:"cors"`
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port         string `mapstructure:"port"`
	Host         string `mapstructure:"host"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	IdleTimeout  int    `mapstructure:"idle_timeout"`
}

// DatabaseConfig holds database-related configuration. When InMemory is
// set (or no postgres host is reachable at startup) the service falls
// back to the in-memory store.
type DatabaseConfig struct {
	InMemory     bool   `mapstructure:"in_memory"`
	Host         string `mapstructure:"host"`
	Port         string `mapstructure:"port"`
	Name         string `mapstructure:"name"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxLifetime  int    `mapstructure:"max_lifetime"`
}

// StorageConfig selects and configures the blob storage provider
type StorageConfig struct {
	Provider string `mapstructure:"provider"` // local, aws, gcp

	Local LocalStorageConfig `mapstructure:"local"`
	AWS   AWSStorageConfig   `mapstructure:"aws"`
	GCP   GCPStorageConfig   `mapstructure:"gcp"`
}

// LocalStorageConfig configures the filesystem provider
type LocalStorageConfig struct {
	BasePath string `mapstructure:"base_path"`
}

// AWSStorageConfig configures the S3 provider
type AWSStorageConfig struct {
	Region          string `mapstructure:"region"`
	Bucket          string `mapstructure:"bucket"`
	Endpoint        string `mapstructure:"endpoint"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
}

// GCPStorageConfig configures the GCS provider
type GCPStorageConfig struct {
	ProjectID       string `mapstructure:"project_id"`
	Bucket          string `mapstructure:"bucket"`
	CredentialsFile string `mapstructure:"credentials_file"`
}

// CacheConfig holds redis configuration
type CacheConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// EventsConfig holds the NATS connection settings. An empty URL disables
// event publishing.
type EventsConfig struct {
	NATSURL string `mapstructure:"nats_url"`
}

// AuthConfig holds token and registration settings
type AuthConfig struct {
	JWTSecret          string `mapstructure:"jwt_secret"`
	TokenExpiryMinutes int    `mapstructure:"token_expiry_minutes"`
	AllowRegistration  bool   `mapstructure:"allow_registration"`
}

// ProcessingConfig tunes the background pipeline
type ProcessingConfig struct {
	Workers          int `mapstructure:"workers"`
	QueueSize        int `mapstructure:"queue_size"`
	StageDelayMs     int `mapstructure:"stage_delay_ms"`
	SweepIntervalSec int `mapstructure:"sweep_interval_sec"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// CORSConfig holds CORS settings
type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LoadConfig loads configuration from file, environment and defaults
func LoadConfig() (*Config, error) {
	config := &Config{}

	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AddConfigPath("/etc/catalog-service")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetEnvPrefix("CATALOG")
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	bindEnvVars()

	if err := viper.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", "8080")
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 10)
	viper.SetDefault("server.write_timeout", 10)
	viper.SetDefault("server.idle_timeout", 60)

	viper.SetDefault("database.in_memory", false)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", "5432")
	viper.SetDefault("database.name", "catalog_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 10)
	viper.SetDefault("database.max_lifetime", 300)

	viper.SetDefault("storage.provider", "local")
	viper.SetDefault("storage.local.base_path", "./uploads")

	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.host", "localhost")
	viper.SetDefault("cache.port", "6379")
	viper.SetDefault("cache.db", 0)
	viper.SetDefault("cache.pool_size", 10)

	viper.SetDefault("auth.token_expiry_minutes", 30)
	viper.SetDefault("auth.allow_registration", true)

	viper.SetDefault("processing.workers", 4)
	viper.SetDefault("processing.queue_size", 100)
	viper.SetDefault("processing.stage_delay_ms", 250)
	viper.SetDefault("processing.sweep_interval_sec", 60)

	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")

	viper.SetDefault("cors.enabled", true)
}

func bindEnvVars() {
	viper.BindEnv("database.in_memory", "USE_MEMORY_DB")
	viper.BindEnv("database.host", "DB_HOST")
	viper.BindEnv("database.port", "DB_PORT")
	viper.BindEnv("database.name", "DB_NAME")
	viper.BindEnv("database.user", "DB_USER")
	viper.BindEnv("database.password", "DB_PASSWORD")
	viper.BindEnv("database.ssl_mode", "DB_SSLMODE")

	viper.BindEnv("storage.provider", "STORAGE_PROVIDER")
	viper.BindEnv("storage.local.base_path", "STORAGE_PATH")
	viper.BindEnv("storage.aws.region", "AWS_REGION")
	viper.BindEnv("storage.aws.bucket", "AWS_BUCKET")
	viper.BindEnv("storage.aws.endpoint", "AWS_ENDPOINT")
	viper.BindEnv("storage.aws.force_path_style", "AWS_FORCE_PATH_STYLE")
	viper.BindEnv("storage.aws.access_key_id", "AWS_ACCESS_KEY_ID")
	viper.BindEnv("storage.aws.secret_access_key", "AWS_SECRET_ACCESS_KEY")
	viper.BindEnv("storage.gcp.project_id", "GOOGLE_CLOUD_PROJECT")
	viper.BindEnv("storage.gcp.bucket", "GCS_BUCKET")
	viper.BindEnv("storage.gcp.credentials_file", "GOOGLE_APPLICATION_CREDENTIALS")

	viper.BindEnv("cache.enabled", "CACHE_ENABLED")
	viper.BindEnv("cache.host", "REDIS_HOST")
	viper.BindEnv("cache.port", "REDIS_PORT")
	viper.BindEnv("cache.password", "REDIS_PASSWORD")
	viper.BindEnv("cache.db", "REDIS_DB")

	viper.BindEnv("events.nats_url", "NATS_URL")

	viper.BindEnv("auth.jwt_secret", "JWT_SECRET")
	viper.BindEnv("auth.token_expiry_minutes", "TOKEN_EXPIRY_MINUTES")
	viper.BindEnv("auth.allow_registration", "ALLOW_REGISTRATION")

	viper.BindEnv("processing.workers", "PROCESSING_WORKERS")
	viper.BindEnv("processing.queue_size", "PROCESSING_QUEUE_SIZE")

	viper.BindEnv("logging.level", "LOG_LEVEL")
	viper.BindEnv("logging.format", "LOG_FORMAT")

	viper.BindEnv("server.port", "PORT")
	viper.BindEnv("server.host", "HOST")
}

func validateConfig(config *Config) error {
	switch config.Storage.Provider {
	case "local":
		if config.Storage.Local.BasePath == "" {
			return fmt.Errorf("storage path is required when using the local provider")
		}
	case "aws":
		if config.Storage.AWS.Region == "" || config.Storage.AWS.Bucket == "" {
			return fmt.Errorf("AWS region and bucket are required when using the aws provider")
		}
	case "gcp":
		if config.Storage.GCP.Bucket == "" {
			return fmt.Errorf("GCS bucket is required when using the gcp provider")
		}
	default:
		return fmt.Errorf("unsupported storage provider: %s", config.Storage.Provider)
	}

	if config.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if config.Auth.TokenExpiryMinutes <= 0 {
		return fmt.Errorf("token expiry must be greater than 0")
	}

	return nil
}

// GetDSN returns the postgres connection string
func (c *Config) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Database.Host,
		c.Database.Port,
		c.Database.User,
		c.Database.Password,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// GetAddr returns the server listen address
func (c *Config) GetAddr() string {
	return fmt.Sprintf("%s:%s", c.Server.Host, c.Server.Port)
}

// TokenExpiry returns the access token lifetime
func (c *Config) TokenExpiry() time.Duration {
	return time.Duration(c.Auth.TokenExpiryMinutes) * time.Minute
}

// StageDelay returns the simulated per-stage processing delay
func (c *Config) StageDelay() time.Duration {
	return time.Duration(c.Processing.StageDelayMs) * time.Millisecond
}

// SweepInterval returns how often the stale-processing sweeper runs
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Processing.SweepIntervalSec) * time.Second
}
