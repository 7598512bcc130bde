package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	GRPC        GRPCConfig        `yaml:"grpc"`
	Database    DatabaseConfig    `yaml:"database"`
	Store       StoreConfig       `yaml:"store"`
	JWT         JWTConfig         `yaml:"jwt"`
	Log         LogConfig         `yaml:"log"`
	Idempotency IdempotencyConfig `yaml:"idempotency"`
	Lending     LendingConfig     `yaml:"lending"`
	Events      EventsConfig      `yaml:"events"`
	Scheduler   SchedulerConfig   `yaml:"scheduler"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Host                   string `yaml:"host"`
	Port                   int    `yaml:"port"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds"`
}

// GRPCConfig contains the health check server settings
type GRPCConfig struct {
	Port                       int `yaml:"port"`
	HealthCheckIntervalSeconds int `yaml:"health_check_interval_seconds"`
}

// DatabaseConfig contains PostgreSQL connection settings
type DatabaseConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port"`
	User         string `yaml:"user"`
	Password     string `yaml:"password"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	AutoMigrate  bool   `yaml:"auto_migrate"`
}

// StoreConfig selects the persistence backend
type StoreConfig struct {
	Type string `yaml:"type"` // "postgres" or "memory"
}

// JWTConfig contains bearer token settings
type JWTConfig struct {
	Secret string `yaml:"secret"`
}

// LogConfig contains logging settings
type LogConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// IdempotencyConfig controls the request de-duplication window
type IdempotencyConfig struct {
	DefaultTTLSeconds int            `yaml:"default_ttl_seconds"`
	TTLOverrides      map[string]int `yaml:"ttl_overrides"` // operation name -> seconds
	CacheSize         int            `yaml:"cache_size"`
}

// LendingConfig contains loan period settings
type LendingConfig struct {
	DefaultLoanDays int `yaml:"default_loan_days"`
	MaxLoanDays     int `yaml:"max_loan_days"`
	MaxExtendDays   int `yaml:"max_extend_days"` // 0 disables the extension cap
}

// EventsConfig contains the domain event sink settings
type EventsConfig struct {
	Type     string `yaml:"type"` // "none" or "amqp"
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

// SchedulerConfig contains cron schedule settings
type SchedulerConfig struct {
	PurgeIdempotencyKeys  string `yaml:"purge_idempotency_keys"`
	AuditLedgerInvariants string `yaml:"audit_ledger_invariants"`
}

// Load reads configuration from a YAML file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.overrideWithEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// overrideWithEnv overrides config values with environment variables
func (c *Config) overrideWithEnv() {
	// Database
	if val := os.Getenv("DB_HOST"); val != "" {
		c.Database.Host = val
	}
	if val := os.Getenv("DB_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Database.Port)
	}
	if val := os.Getenv("DB_USER"); val != "" {
		c.Database.User = val
	}
	if val := os.Getenv("DB_PASSWORD"); val != "" {
		c.Database.Password = val
	}
	if val := os.Getenv("DB_NAME"); val != "" {
		c.Database.Database = val
	}
	if val := os.Getenv("DB_SSL_MODE"); val != "" {
		c.Database.SSLMode = val
	}

	if val := os.Getenv("STORE_TYPE"); val != "" {
		c.Store.Type = val
	}

	// JWT
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.JWT.Secret = val
	}

	// Server
	if val := os.Getenv("SERVER_HOST"); val != "" {
		c.Server.Host = val
	}
	if val := os.Getenv("SERVER_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.Server.Port)
	}
	if val := os.Getenv("GRPC_PORT"); val != "" {
		fmt.Sscanf(val, "%d", &c.GRPC.Port)
	}

	// Events
	if val := os.Getenv("AMQP_URL"); val != "" {
		c.Events.AMQPURL = val
	}

	// Log
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Log.Level = val
	}
	if val := os.Getenv("LOG_FORMAT"); val != "" {
		c.Log.Format = val
	}

	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks if the configuration is valid and fills defaults
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.GRPC.Port < 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid grpc port: %d", c.GRPC.Port)
	}
	if c.Server.ShutdownTimeoutSeconds == 0 {
		c.Server.ShutdownTimeoutSeconds = 15
	}
	if c.GRPC.HealthCheckIntervalSeconds == 0 {
		c.GRPC.HealthCheckIntervalSeconds = 10
	}
	if c.GRPC.HealthCheckIntervalSeconds < 0 {
		return fmt.Errorf("grpc health check interval must be positive: %d", c.GRPC.HealthCheckIntervalSeconds)
	}

	if c.Store.Type == "" {
		c.Store.Type = "postgres"
	}
	switch c.Store.Type {
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database user is required")
		}
		if c.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if c.Database.SSLMode == "" {
			c.Database.SSLMode = "disable"
		}
	case "memory":
	default:
		return fmt.Errorf("unsupported store type: %s", c.Store.Type)
	}

	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT secret is required")
	}
	if len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret must be at least 32 characters")
	}

	// Idempotency defaults
	if c.Idempotency.DefaultTTLSeconds == 0 {
		c.Idempotency.DefaultTTLSeconds = 300
	}
	if c.Idempotency.DefaultTTLSeconds < 0 {
		return fmt.Errorf("idempotency default ttl must be positive: %d", c.Idempotency.DefaultTTLSeconds)
	}
	for op, ttl := range c.Idempotency.TTLOverrides {
		if ttl <= 0 {
			return fmt.Errorf("idempotency ttl for %s must be positive: %d", op, ttl)
		}
	}
	if c.Idempotency.CacheSize == 0 {
		c.Idempotency.CacheSize = 10000
	}

	// Lending defaults
	if c.Lending.DefaultLoanDays == 0 {
		c.Lending.DefaultLoanDays = 14
	}
	if c.Lending.MaxLoanDays == 0 {
		c.Lending.MaxLoanDays = 60
	}
	if c.Lending.DefaultLoanDays > c.Lending.MaxLoanDays {
		return fmt.Errorf("default loan days %d exceeds max loan days %d", c.Lending.DefaultLoanDays, c.Lending.MaxLoanDays)
	}
	if c.Lending.MaxExtendDays < 0 {
		return fmt.Errorf("max extend days must not be negative: %d", c.Lending.MaxExtendDays)
	}

	// Events
	if c.Events.Type == "" {
		c.Events.Type = "none"
	}
	switch c.Events.Type {
	case "none":
	case "amqp":
		if c.Events.AMQPURL == "" {
			return fmt.Errorf("amqp url is required when events type is amqp")
		}
		if c.Events.Exchange == "" {
			c.Events.Exchange = "bookshare.events"
		}
	default:
		return fmt.Errorf("unsupported events type: %s", c.Events.Type)
	}

	// Scheduler defaults
	if c.Scheduler.PurgeIdempotencyKeys == "" {
		c.Scheduler.PurgeIdempotencyKeys = "0 */10 * * * *" // every 10 minutes
	}
	if c.Scheduler.AuditLedgerInvariants == "" {
		c.Scheduler.AuditLedgerInvariants = "0 0 3 * * *" // nightly at 03:00 UTC
	}

	return nil
}

// GetDatabaseConnectionString returns a PostgreSQL connection string
func (c *Config) GetDatabaseConnectionString() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Database,
		c.Database.SSLMode,
	)
}

// GetServerAddress returns the HTTP server address
func (c *Config) GetServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// GetGRPCAddress returns the health server address, empty when disabled
func (c *Config) GetGRPCAddress() string {
	if c.GRPC.Port == 0 {
		return ""
	}
	return fmt.Sprintf("%s:%d", c.Server.Host, c.GRPC.Port)
}

// IdempotencyTTLs returns the default window and the per-operation overrides.
func (c *Config) IdempotencyTTLs() (time.Duration, map[string]time.Duration) {
	overrides := make(map[string]time.Duration, len(c.Idempotency.TTLOverrides))
	for op, secs := range c.Idempotency.TTLOverrides {
		overrides[op] = time.Duration(secs) * time.Second
	}
	return time.Duration(c.Idempotency.DefaultTTLSeconds) * time.Second, overrides
}
