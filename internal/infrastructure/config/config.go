// Package config loads the service configuration from config.toml and
// DRIMS_ environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	App             AppConfig             `mapstructure:"app"`
	Database        DatabaseConfig        `mapstructure:"database"`
	Redis           RedisConfig           `mapstructure:"redis"`
	Log             LogConfig             `mapstructure:"log"`
	HTTP            HTTPConfig            `mapstructure:"http"`
	Telemetry       TelemetryConfig       `mapstructure:"telemetry"`
	FulfillmentLock FulfillmentLockConfig `mapstructure:"fulfillment_lock"`
	StatusCache     StatusCacheConfig     `mapstructure:"status_cache"`
}

// AppConfig identifies the running service.
type AppConfig struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds PostgreSQL connection and pool settings.
type DatabaseConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	DBName          string `mapstructure:"dbname"`
	SSLMode         string `mapstructure:"sslmode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`  // minutes
	ConnMaxIdleTime int    `mapstructure:"conn_max_idle_time"` // minutes
}

// DSN returns a postgres URL with escaped credentials.
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: url.Values{"sslmode": {d.SSLMode}}.Encode(),
	}
	return u.String()
}

// RedisConfig holds the status cache mirror connection.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns host:port.
func (r *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// HTTPConfig configures the HTTP server.
type HTTPConfig struct {
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	MaxHeaderBytes int           `mapstructure:"max_header_bytes"`
	TrustedProxies []string      `mapstructure:"trusted_proxies"`
	// SwaggerEnabled serves the API docs under /swagger.
	SwaggerEnabled bool          `mapstructure:"swagger_enabled"`
}

// TelemetryConfig switches traces, metrics, log export and profiling.
type TelemetryConfig struct {
	Enabled           bool    `mapstructure:"enabled"`
	CollectorEndpoint string  `mapstructure:"collector_endpoint"`
	SamplingRatio     float64 `mapstructure:"sampling_ratio"`
	ServiceName       string  `mapstructure:"service_name"`
	Insecure          bool    `mapstructure:"insecure"`
	DBTraceEnabled    bool    `mapstructure:"db_trace_enabled"`
	DBLogFullSQL      bool    `mapstructure:"db_log_full_sql"` // never in production

	MetricsEnabled        bool          `mapstructure:"metrics_enabled"`
	MetricsExportInterval time.Duration `mapstructure:"metrics_export_interval"`
	StockSampleInterval   time.Duration `mapstructure:"stock_sample_interval"`
	LogsEnabled           bool          `mapstructure:"logs_enabled"`

	ProfilingEnabled    bool   `mapstructure:"profiling_enabled"`
	ProfilingServer     string `mapstructure:"profiling_server"`
	ProfilingContention bool   `mapstructure:"profiling_contention"`
}

// FulfillmentLockConfig holds relief request lock settings.
type FulfillmentLockConfig struct {
	// DefaultExpiration of zero keeps locks until they are released.
	DefaultExpiration time.Duration `mapstructure:"default_expiration"`
}

// StatusCacheConfig holds item status cache settings.
type StatusCacheConfig struct {
	RedisEnabled bool          `mapstructure:"redis_enabled"`
	TTL          time.Duration `mapstructure:"ttl"`
	KeyPrefix    string        `mapstructure:"key_prefix"`
}

// defaults registers every key. Viper only maps environment variables onto
// keys it knows, so keys without a useful default are registered with their
// zero value.
var defaults = map[string]any{
	"app.name": "drims-backend",
	"app.env":  "development",
	"app.port": "8080",

	"database.host":               "localhost",
	"database.port":               5432,
	"database.user":               "postgres",
	"database.password":           "",
	"database.dbname":             "drims",
	"database.sslmode":            "disable",
	"database.max_open_conns":     25,
	"database.max_idle_conns":     5,
	"database.conn_max_lifetime":  60,
	"database.conn_max_idle_time": 30,

	"redis.host":     "localhost",
	"redis.port":     6379,
	"redis.password": "",
	"redis.db":       0,

	"log.level":  "info",
	"log.format": "console",
	"log.output": "stdout",

	"http.read_timeout":     15 * time.Second,
	"http.write_timeout":    15 * time.Second,
	"http.idle_timeout":     60 * time.Second,
	"http.max_header_bytes": 1 << 20,
	"http.trusted_proxies":  []string{},
	"http.swagger_enabled":  true,

	"telemetry.enabled":                 false,
	"telemetry.collector_endpoint":      "localhost:4317",
	"telemetry.sampling_ratio":          1.0,
	"telemetry.service_name":            "drims-backend",
	"telemetry.insecure":                false,
	"telemetry.db_trace_enabled":        false,
	"telemetry.db_log_full_sql":         false,
	"telemetry.metrics_enabled":         false,
	"telemetry.metrics_export_interval": 60 * time.Second,
	"telemetry.stock_sample_interval":   time.Minute,
	"telemetry.logs_enabled":            false,
	"telemetry.profiling_enabled":       false,
	"telemetry.profiling_server":        "",
	"telemetry.profiling_contention":    false,

	"fulfillment_lock.default_expiration": 24 * time.Hour,

	"status_cache.redis_enabled": false,
	"status_cache.ttl":           10 * time.Minute,
	"status_cache.key_prefix":    "drims:item_status",
}

// Load reads configuration. Priority, highest first: DRIMS_ environment
// variables (DRIMS_DATABASE_PASSWORD), config.toml in . or /app, defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	v.SetEnvPrefix("DRIMS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	db := c.Database
	switch {
	case db.MaxOpenConns <= 0:
		return errors.New("database.max_open_conns must be positive")
	case db.MaxIdleConns < 0:
		return errors.New("database.max_idle_conns cannot be negative")
	case db.MaxIdleConns > db.MaxOpenConns:
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			db.MaxIdleConns, db.MaxOpenConns)
	case c.FulfillmentLock.DefaultExpiration < 0:
		return errors.New("fulfillment_lock.default_expiration cannot be negative")
	case c.StatusCache.TTL < 0:
		return errors.New("status_cache.ttl cannot be negative")
	case c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1:
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %g", c.Telemetry.SamplingRatio)
	case c.Telemetry.ProfilingEnabled && c.Telemetry.ProfilingServer == "":
		return errors.New("telemetry.profiling_server is required when profiling is enabled")
	}

	if c.App.Env != "production" {
		return nil
	}
	switch {
	case db.Password == "":
		return errors.New("database.password is required in production")
	case db.SSLMode == "disable":
		return errors.New("database.sslmode cannot be 'disable' in production")
	case c.Telemetry.DBLogFullSQL:
		return errors.New("telemetry.db_log_full_sql must be false in production")
	}
	return nil
}
