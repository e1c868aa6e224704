package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/damoang/angple-collab/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config is the full service configuration
type Config struct {
	Env          string             `yaml:"env"`
	LogLevel     string             `yaml:"log_level"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	JWT          JWTConfig          `yaml:"jwt"`
	CORS         CORSConfig         `yaml:"cors"`
	Lock         LockConfig         `yaml:"lock"`
	Versions     VersionsConfig     `yaml:"versions"`
	Housekeeping HousekeepingConfig `yaml:"housekeeping"`
	RateLimit    RateLimitConfig    `yaml:"rate_limit"`
}

type ServerConfig struct {
	Port            int           `yaml:"port"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql | sqlite
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	Name            string `yaml:"name"`
	Path            string `yaml:"path"` // sqlite file path
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
	LogSQL          bool   `yaml:"log_sql"`
}

// GetDSN builds the driver specific data source name
func (d DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		d.User, d.Password, d.Host, d.Port, d.Name)
}

type RedisConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // seconds
	RefreshIn int    `yaml:"refresh_in"` // seconds
}

type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"`
}

// LockConfig controls edit lock lifetimes and the store that backs them
type LockConfig struct {
	Backend    string        `yaml:"backend"` // gorm | redis
	DefaultTTL time.Duration `yaml:"default_ttl"`
	MaxTTL     time.Duration `yaml:"max_ttl"`
}

type VersionsConfig struct {
	RetryAttempts int `yaml:"retry_attempts"`
	DefaultLimit  int `yaml:"default_limit"`
	MaxLimit      int `yaml:"max_limit"`
	// CacheTTL bounds Redis-cached snapshots; 0 disables the cache
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

// HousekeepingConfig controls the periodic cleanup of expired locks and old versions.
// RetainVersions of 0 disables version pruning.
type HousekeepingConfig struct {
	Enabled        bool          `yaml:"enabled"`
	Interval       time.Duration `yaml:"interval"`
	RetainVersions int           `yaml:"retain_versions"`
	BatchSize      int           `yaml:"batch_size"`
}

// RateLimitConfig limits edit writes per actor; it needs Redis
type RateLimitConfig struct {
	WritesPerMinute int `yaml:"writes_per_minute"` // 0 disables
}

// Default returns a configuration with every field set to its default
func Default() *Config {
	return &Config{
		Env:      "local",
		LogLevel: "info",
		Server: ServerConfig{
			Port:            8082,
			ShutdownTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Driver:          "mysql",
			Host:            "localhost",
			Port:            3306,
			User:            "angple",
			Name:            "angple",
			Path:            "angple-collab.db",
			MaxIdleConns:    10,
			MaxOpenConns:    50,
			ConnMaxLifetime: 300,
		},
		Redis: RedisConfig{
			Host:     "localhost",
			Port:     6379,
			PoolSize: 10,
		},
		JWT: JWTConfig{
			ExpiresIn: 900,
			RefreshIn: 604800,
		},
		CORS: CORSConfig{
			AllowOrigins: "http://localhost:3000",
		},
		Lock: LockConfig{
			Backend:    "gorm",
			DefaultTTL: 10 * time.Minute,
			MaxTTL:     60 * time.Minute,
		},
		Versions: VersionsConfig{
			RetryAttempts: 3,
			DefaultLimit:  20,
			MaxLimit:      100,
		},
		Housekeeping: HousekeepingConfig{
			Enabled:   true,
			Interval:  5 * time.Minute,
			BatchSize: 100,
		},
		RateLimit: RateLimitConfig{
			WritesPerMinute: 120,
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
		logger.Warn("Config file %s not found, using defaults and environment", path)
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would make the service misbehave
func (c *Config) Validate() error {
	var problems []string

	switch c.Database.Driver {
	case "mysql", "sqlite":
	default:
		problems = append(problems, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	switch c.Lock.Backend {
	case "gorm", "redis":
	default:
		problems = append(problems, fmt.Sprintf("lock.backend %q must be gorm or redis", c.Lock.Backend))
	}
	if c.Lock.DefaultTTL <= 0 {
		problems = append(problems, "lock.default_ttl must be positive")
	}
	if c.Lock.MaxTTL < c.Lock.DefaultTTL {
		problems = append(problems, "lock.max_ttl must be >= lock.default_ttl")
	}
	if c.Versions.RetryAttempts < 1 {
		problems = append(problems, "versions.retry_attempts must be >= 1")
	}
	if c.Versions.DefaultLimit < 1 || c.Versions.MaxLimit < c.Versions.DefaultLimit {
		problems = append(problems, "versions.default_limit must be >= 1 and <= versions.max_limit")
	}
	if c.Versions.CacheTTL < 0 {
		problems = append(problems, "versions.cache_ttl must be >= 0")
	}
	if c.Housekeeping.Enabled && c.Housekeeping.Interval <= 0 {
		problems = append(problems, "housekeeping.interval must be positive")
	}
	if c.Housekeeping.RetainVersions < 0 {
		problems = append(problems, "housekeeping.retain_versions must be >= 0")
	}
	if c.RateLimit.WritesPerMinute < 0 {
		problems = append(problems, "rate_limit.writes_per_minute must be >= 0")
	}
	if c.JWT.Secret == "" {
		problems = append(problems, "jwt.secret (JWT_SECRET) is required")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// IsDevelopment reports whether the service runs in a local or dev environment
func (c *Config) IsDevelopment() bool {
	return c.Env == "local" || c.Env == "dev" || c.Env == "development"
}

// applyEnv overrides fields from environment variables when set
func applyEnv(cfg *Config) {
	setString(&cfg.Env, "APP_ENV")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setInt(&cfg.Server.Port, "APP_PORT")

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Name, "DB_NAME")
	setString(&cfg.Database.Path, "DB_PATH")

	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")

	setString(&cfg.Lock.Backend, "LOCK_BACKEND")
	setDuration(&cfg.Lock.DefaultTTL, "LOCK_DEFAULT_TTL")
	setDuration(&cfg.Lock.MaxTTL, "LOCK_MAX_TTL")
	setInt(&cfg.Housekeeping.RetainVersions, "VERSIONS_RETAIN")
	setDuration(&cfg.Versions.CacheTTL, "VERSIONS_CACHE_TTL")
	setInt(&cfg.RateLimit.WritesPerMinute, "RATE_LIMIT_WRITES")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		} else {
			logger.Warn("Ignoring %s=%q: %v", key, v, err)
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		} else {
			logger.Warn("Ignoring %s=%q: %v", key, v, err)
		}
	}
}

// LogResolved logs the effective configuration without secrets
func LogResolved(cfg *Config) {
	logger.GetLogger().Info().
		Str("env", cfg.Env).
		Int("port", cfg.Server.Port).
		Str("db_driver", cfg.Database.Driver).
		Str("db_host", cfg.Database.Host).
		Str("db_name", cfg.Database.Name).
		Str("lock_backend", cfg.Lock.Backend).
		Dur("lock_default_ttl", cfg.Lock.DefaultTTL).
		Dur("lock_max_ttl", cfg.Lock.MaxTTL).
		Bool("housekeeping", cfg.Housekeeping.Enabled).
		Int("retain_versions", cfg.Housekeeping.RetainVersions).
		Msg("config resolved")
}
