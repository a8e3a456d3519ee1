package config

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Rules         RulesConfig
	Archive       *DatabaseConfig // Optional: durable mirror of the monitoring log. When nil, state stays in memory only.
	ReplayQueue   *SQSConfig      // Optional: outbound replay dispatch. When nil, replay only records intent.
	CORS          CORSConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

// RulesConfig points at the orchestration rule thresholds document.
// An empty File means the built-in defaults are used.
type RulesConfig struct {
	File  string
	Watch bool
}

// DatabaseConfig holds PostgreSQL database configuration.
// When ConnectionString (from ARCHIVE_DATABASE_URL) is set, it takes precedence over individual fields.
type DatabaseConfig struct {
	ConnectionString string
	Host             string
	Port             int
	User             string
	Password         string
	Database         string
	SSLMode          string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration

	// Archiver tuning
	BufferSize  int
	WorkerCount int
}

// SQSConfig holds the replay dispatch queue settings
type SQSConfig struct {
	Region          string
	QueueURL        string
	Endpoint        string // Local override, e.g. ElasticMQ or LocalStack
	AccessKeyID     string
	SecretAccessKey string
}

// CORSConfig holds cross-origin settings for the HTTP surface
type CORSConfig struct {
	AllowedOrigins []string
}

// ObservabilityConfig holds monitoring and logging configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string // json or console
	MetricsEnabled bool
}

// New creates a new Config instance by loading environment variables
func New(ctx context.Context) (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getPort(),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			RequestTimeout:  getEnvAsDuration("SERVER_REQUEST_TIMEOUT", 30*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		Rules: RulesConfig{
			File:  getEnv("RULES_FILE", ""),
			Watch: getEnvAsBool("RULES_WATCH", false),
		},
		Archive:     loadArchiveConfig(),
		ReplayQueue: loadReplayQueueConfig(),
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate checks if all required configuration fields are set
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}

	if c.Archive != nil {
		if c.Archive.ConnectionString == "" {
			if c.Archive.User == "" {
				return fmt.Errorf("archive database user is required")
			}
			if c.Archive.Database == "" {
				return fmt.Errorf("archive database name is required")
			}
		}
		if c.Archive.BufferSize <= 0 {
			return fmt.Errorf("archive buffer size must be positive")
		}
		if c.Archive.WorkerCount <= 0 {
			return fmt.Errorf("archive worker count must be positive")
		}
	}

	if c.ReplayQueue != nil && c.ReplayQueue.Region == "" {
		return fmt.Errorf("replay queue region is required")
	}

	if c.Rules.Watch && c.Rules.File == "" {
		return fmt.Errorf("rules watch requires RULES_FILE")
	}

	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}

	return nil
}

// DSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DSN() string {
	if c.ConnectionString != "" {
		return c.ConnectionString
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// LogString returns a safe string for logging (no password)
func (c *DatabaseConfig) LogString() string {
	if c.ConnectionString != "" {
		u, err := url.Parse(c.ConnectionString)
		if err == nil {
			host := u.Hostname()
			port := u.Port()
			if port == "" {
				port = "5432"
			}
			db := strings.TrimPrefix(u.Path, "/")
			return fmt.Sprintf("host=%s port=%s database=%s", host, port, db)
		}
		return "host=<from ARCHIVE_DATABASE_URL>"
	}
	return fmt.Sprintf("host=%s port=%d database=%s", c.Host, c.Port, c.Database)
}

// loadArchiveConfig returns nil unless ARCHIVE_DATABASE_URL or ARCHIVE_DB_HOST is set
func loadArchiveConfig() *DatabaseConfig {
	dbURL := getEnv("ARCHIVE_DATABASE_URL", "")
	host := getEnv("ARCHIVE_DB_HOST", "")
	if dbURL == "" && host == "" {
		return nil
	}

	cfg := &DatabaseConfig{
		MaxOpenConns:    getEnvAsInt("ARCHIVE_DB_MAX_OPEN_CONNS", 10),
		MaxIdleConns:    getEnvAsInt("ARCHIVE_DB_MAX_IDLE_CONNS", 2),
		ConnMaxLifetime: getEnvAsDuration("ARCHIVE_DB_CONN_MAX_LIFETIME", 5*time.Minute),
		BufferSize:      getEnvAsInt("ARCHIVE_BUFFER_SIZE", 1000),
		WorkerCount:     getEnvAsInt("ARCHIVE_WORKERS", 2),
	}
	if dbURL != "" {
		cfg.ConnectionString = dbURL
		return cfg
	}

	cfg.Host = host
	cfg.Port = getEnvAsInt("ARCHIVE_DB_PORT", 5432)
	cfg.User = getEnv("ARCHIVE_DB_USER", "orchestrator")
	cfg.Password = getEnv("ARCHIVE_DB_PASSWORD", "")
	cfg.Database = getEnv("ARCHIVE_DB_NAME", "orchestrator")
	cfg.SSLMode = getEnv("ARCHIVE_DB_SSLMODE", "disable")
	return cfg
}

// loadReplayQueueConfig returns nil unless REPLAY_SQS_QUEUE_URL is set
func loadReplayQueueConfig() *SQSConfig {
	queueURL := getEnv("REPLAY_SQS_QUEUE_URL", "")
	if queueURL == "" {
		return nil
	}
	return &SQSConfig{
		Region:          getEnv("AWS_REGION", "us-east-1"),
		QueueURL:        queueURL,
		Endpoint:        getEnv("REPLAY_SQS_ENDPOINT", ""),
		AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
	}
}

// Address returns the HTTP server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

// getPort returns the server port from PORT or SERVER_PORT env vars (default: 8004)
func getPort() int {
	if value := os.Getenv("PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	if value := os.Getenv("SERVER_PORT"); value != "" {
		if p, err := strconv.Atoi(value); err == nil {
			return p
		}
	}
	return 8004
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
