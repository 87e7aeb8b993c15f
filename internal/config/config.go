// Package config provides configuration management for Warden.
//
// Configuration is loaded from:
// 1. config.yaml file (optional)
// 2. Environment variables (standard names like DATABASE_URL, SERVER_PORT)
// 3. Default values
//
// Import Path: lawwarden.io/warden/internal/config
package config

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"lawwarden.io/warden/internal/enforcement"
)

// Config is the root configuration structure.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	River     RiverConfig     `mapstructure:"river"`
	Security  SecurityConfig  `mapstructure:"security"`
	Worker    WorkerConfig    `mapstructure:"worker"`
	Engine    EngineConfig    `mapstructure:"engine"`
	World     WorldConfig     `mapstructure:"world"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	// AllowCredentials lets browser tools send cookies and auth headers.
	AllowCredentials bool `mapstructure:"allow_credentials"`
	// UnsafeAllowAllOrigins honours a "*" origin. Credentials are then disabled.
	UnsafeAllowAllOrigins bool `mapstructure:"unsafe_allow_all_origins"`
	// TokenTTL is the lifetime of API tokens minted by the CLI.
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// DatabaseConfig contains PostgreSQL connection settings.
// One pool is shared by the repository, sqlc queries, and River.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`

	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	SSLMode  string `mapstructure:"sslmode"`

	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`

	AutoMigrate bool `mapstructure:"auto_migrate"`
}

// DSN returns the PostgreSQL connection string.
// Priority: DATABASE_URL > constructed from individual fields.
func (c DatabaseConfig) DSN() string {
	if c.URL != "" {
		return c.URL
	}
	sslmode := c.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, sslmode,
	)
}

// RedisConfig contains the crime ledger and notice channel settings.
// An empty Addr keeps the ledger in process memory.
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
	Channel   string `mapstructure:"channel"`
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or console
}

// RiverConfig contains River Queue settings.
type RiverConfig struct {
	MaxWorkers                  int           `mapstructure:"max_workers"`
	CompletedJobRetentionPeriod time.Duration `mapstructure:"completed_job_retention_period"`
	// CrimeRetention is how long resolved crimes stay in the ledger.
	CrimeRetention time.Duration `mapstructure:"crime_retention"`
	// NotificationRetention is how long crime notices stay in the inbox.
	NotificationRetention time.Duration `mapstructure:"notification_retention"`
	// SweepInterval schedules the start-trigger sweep as a periodic job.
	// Zero leaves the sweep to the in-process scheduler.
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// SecurityConfig contains API authentication settings.
// A missing JWT signing key is generated on boot.
type SecurityConfig struct {
	JWTSigningKey       string   `mapstructure:"jwt_signing_key"`
	JWTVerificationKeys []string `mapstructure:"jwt_verification_keys"`
	JWTIssuer           string   `mapstructure:"jwt_issuer"`
}

// WorkerConfig contains worker pool settings.
type WorkerConfig struct {
	GeneralPoolSize int `mapstructure:"general_pool_size"`
	PatrolPoolSize  int `mapstructure:"patrol_pool_size"`
}

// EngineConfig tunes the patrol engine and its scheduler.
type EngineConfig struct {
	TickInterval        time.Duration `mapstructure:"tick_interval"`
	SweepEveryTicks     int64         `mapstructure:"sweep_every_ticks"`
	FormingTimeoutTicks int           `mapstructure:"forming_timeout_ticks"`
	TicksPerHop         int           `mapstructure:"ticks_per_hop"`
	StuckTickLimit      int           `mapstructure:"stuck_tick_limit"`
	// DefaultStrategy replaces law strategies the engine does not recognise.
	DefaultStrategy string `mapstructure:"default_strategy"`
	// NoPrisonFallback replaces arrests when the authority has no prison.
	NoPrisonFallback string `mapstructure:"no_prison_fallback"`
	// HookTimeout and HookInstructionBudget bound one start-trigger evaluation.
	HookTimeout           time.Duration `mapstructure:"hook_timeout"`
	HookInstructionBudget int           `mapstructure:"hook_instruction_budget"`
}

// Policy builds the enforcement policy from the configured fallbacks.
func (c EngineConfig) Policy() (enforcement.Policy, error) {
	def, err := enforcement.ParseFallback(c.DefaultStrategy)
	if err != nil {
		return enforcement.Policy{}, fmt.Errorf("engine.default_strategy: %w", err)
	}
	noPrison, err := enforcement.ParseFallback(c.NoPrisonFallback)
	if err != nil {
		return enforcement.Policy{}, fmt.Errorf("engine.no_prison_fallback: %w", err)
	}
	return enforcement.Policy{Default: def, NoPrisonFallback: noPrison}, nil
}

// WorldConfig points at the world definition loaded on boot.
type WorldConfig struct {
	// File is a YAML world file applied on boot; empty skips it.
	File string `mapstructure:"file"`
	// HooksDir holds *.lua start-trigger programs; empty skips it.
	HooksDir string `mapstructure:"hooks_dir"`
}

// TelemetryConfig configures trace export. An empty endpoint disables export.
type TelemetryConfig struct {
	OTLPEndpoint string  `mapstructure:"otlp_endpoint"`
	ServiceName  string  `mapstructure:"service_name"`
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	Insecure     bool    `mapstructure:"insecure"`
}

var (
	bootstrapLoggerOnce sync.Once
	bootstrapLogger     *zap.Logger
)

// Load reads configuration from file and environment variables.
// Environment variables use standard names without prefix (DATABASE_URL, SERVER_PORT, etc.).
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/warden")

	// Maps nested config: engine.tick_interval → ENGINE_TICK_INTERVAL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// Config file is optional, use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.ensureSecrets(); err != nil {
		return nil, fmt.Errorf("ensure secrets: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// Validate checks for critical configuration errors.
func (c *Config) Validate() error {
	if c.Security.JWTSigningKey == "" {
		return fmt.Errorf("security.jwt_signing_key must not be empty")
	}
	if len(c.Security.JWTSigningKey) < 32 {
		return fmt.Errorf("security.jwt_signing_key must be at least 32 characters")
	}
	if c.Engine.TickInterval <= 0 {
		return fmt.Errorf("engine.tick_interval must be positive, got %s", c.Engine.TickInterval)
	}
	if c.Engine.TicksPerHop < 1 {
		return fmt.Errorf("engine.ticks_per_hop must be at least 1, got %d", c.Engine.TicksPerHop)
	}
	if c.Engine.FormingTimeoutTicks < 0 || c.Engine.StuckTickLimit < 0 {
		return fmt.Errorf("engine tick limits must not be negative")
	}
	if _, err := c.Engine.Policy(); err != nil {
		return err
	}
	if c.Worker.GeneralPoolSize < 1 || c.Worker.PatrolPoolSize < 1 {
		return fmt.Errorf("worker pool sizes must be positive")
	}
	return nil
}

// ensureSecrets auto-generates a missing JWT signing key.
func (c *Config) ensureSecrets() error {
	if c.Security.JWTSigningKey == "" {
		key, err := generateSecureRandomHex(32)
		if err != nil {
			return fmt.Errorf("auto-generate jwt signing key: %w", err)
		}
		c.Security.JWTSigningKey = key
		logBootstrapWarn(
			"auto-generated jwt_signing_key; set SECURITY_JWT_SIGNING_KEY env var so issued tokens survive restarts",
			zap.Int("length", len(key)),
		)
	}
	return nil
}

func logBootstrapWarn(msg string, fields ...zap.Field) {
	bootstrapLoggerOnce.Do(func() {
		cfg := zap.NewProductionConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

		l, err := cfg.Build()
		if err != nil {
			bootstrapLogger = zap.NewNop()
			return
		}
		bootstrapLogger = l
	})

	bootstrapLogger.Warn(msg, fields...)
}

// generateSecureRandomHex produces a hex-encoded string of n random bytes.
func generateSecureRandomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand: %w", err)
	}
	return hex.EncodeToString(b), nil
}

func setDefaults(v *viper.Viper) {
	// Server
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")
	v.SetDefault("server.allowed_origins", []string{})
	v.SetDefault("server.allow_credentials", true)
	v.SetDefault("server.unsafe_allow_all_origins", false)
	v.SetDefault("server.token_ttl", "24h")

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "warden")
	v.SetDefault("database.password", "")
	v.SetDefault("database.database", "warden")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "10m")
	v.SetDefault("database.auto_migrate", false)

	// Redis
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.key_prefix", "warden:")
	v.SetDefault("redis.channel", "warden:notices")

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// River
	v.SetDefault("river.max_workers", 10)
	v.SetDefault("river.completed_job_retention_period", "24h")
	v.SetDefault("river.crime_retention", "168h")
	v.SetDefault("river.notification_retention", "720h")
	v.SetDefault("river.sweep_interval", "0s")

	// Security
	v.SetDefault("security.jwt_verification_keys", []string{})
	v.SetDefault("security.jwt_issuer", "warden")

	// Worker Pool
	v.SetDefault("worker.general_pool_size", 16)
	v.SetDefault("worker.patrol_pool_size", 64)

	// Engine
	v.SetDefault("engine.tick_interval", "1s")
	v.SetDefault("engine.sweep_every_ticks", 10)
	v.SetDefault("engine.forming_timeout_ticks", 30)
	v.SetDefault("engine.ticks_per_hop", 1)
	v.SetDefault("engine.stuck_tick_limit", 20)
	v.SetDefault("engine.default_strategy", "warn")
	v.SetDefault("engine.no_prison_fallback", "fine")
	v.SetDefault("engine.hook_timeout", "250ms")
	v.SetDefault("engine.hook_instruction_budget", 1000000)

	// World
	v.SetDefault("world.file", "")
	v.SetDefault("world.hooks_dir", "")

	// Telemetry
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "warden")
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("telemetry.insecure", true)
}
