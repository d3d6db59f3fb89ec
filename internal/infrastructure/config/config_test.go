package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("loads default values when env vars not set", func(t *testing.T) {
		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "drims-backend", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "drims", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 24*time.Hour, cfg.FulfillmentLock.DefaultExpiration)
		assert.Equal(t, 10*time.Minute, cfg.StatusCache.TTL)
		assert.False(t, cfg.StatusCache.RedisEnabled)
		assert.Equal(t, 60*time.Second, cfg.Telemetry.MetricsExportInterval)
		assert.Equal(t, time.Minute, cfg.Telemetry.StockSampleInterval)
		assert.Equal(t, 15*time.Second, cfg.HTTP.ReadTimeout)
		assert.True(t, cfg.HTTP.SwaggerEnabled)
		assert.Equal(t, 1.0, cfg.Telemetry.SamplingRatio)
	})

	t.Run("loads values from environment variables with DRIMS prefix", func(t *testing.T) {
		t.Setenv("DRIMS_APP_NAME", "relief-test")
		t.Setenv("DRIMS_APP_PORT", "9000")
		t.Setenv("DRIMS_DATABASE_HOST", "testdb.local")
		t.Setenv("DRIMS_DATABASE_PORT", "5433")
		t.Setenv("DRIMS_DATABASE_MAX_OPEN_CONNS", "50")
		t.Setenv("DRIMS_DATABASE_MAX_IDLE_CONNS", "10")
		t.Setenv("DRIMS_FULFILLMENT_LOCK_DEFAULT_EXPIRATION", "2h")
		t.Setenv("DRIMS_STATUS_CACHE_REDIS_ENABLED", "true")
		t.Setenv("DRIMS_HTTP_SWAGGER_ENABLED", "false")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "relief-test", cfg.App.Name)
		assert.Equal(t, "9000", cfg.App.Port)
		assert.Equal(t, "testdb.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 50, cfg.Database.MaxOpenConns)
		assert.Equal(t, 2*time.Hour, cfg.FulfillmentLock.DefaultExpiration)
		assert.True(t, cfg.StatusCache.RedisEnabled)
		assert.False(t, cfg.HTTP.SwaggerEnabled)
	})

	t.Run("explicit zero lock expiration is kept", func(t *testing.T) {
		t.Setenv("DRIMS_FULFILLMENT_LOCK_DEFAULT_EXPIRATION", "0s")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, time.Duration(0), cfg.FulfillmentLock.DefaultExpiration)
	})
}

func TestValidate(t *testing.T) {
	load := func(t *testing.T, values map[string]any) (*Config, error) {
		t.Helper()
		v := viper.New()
		for k, val := range values {
			v.Set(k, val)
		}
		return fromViper(v)
	}

	t.Run("idle connections cannot exceed open connections", func(t *testing.T) {
		_, err := load(t, map[string]any{"database.max_open_conns": 5, "database.max_idle_conns": 10})
		assert.ErrorContains(t, err, "cannot exceed")
	})

	t.Run("production requires a database password", func(t *testing.T) {
		_, err := load(t, map[string]any{"app.env": "production", "database.sslmode": "require"})
		assert.ErrorContains(t, err, "database.password is required")
	})

	t.Run("production rejects sslmode disable", func(t *testing.T) {
		_, err := load(t, map[string]any{"app.env": "production", "database.password": "secret"})
		assert.ErrorContains(t, err, "sslmode")
	})

	t.Run("profiling needs a server", func(t *testing.T) {
		_, err := load(t, map[string]any{"telemetry.profiling_enabled": true})
		assert.ErrorContains(t, err, "profiling_server")
	})

	t.Run("negative lock expiration", func(t *testing.T) {
		_, err := load(t, map[string]any{"fulfillment_lock.default_expiration": "-1h"})
		assert.ErrorContains(t, err, "default_expiration")
	})

	t.Run("explicit zero sampling ratio is kept", func(t *testing.T) {
		cfg, err := load(t, map[string]any{"telemetry.sampling_ratio": 0.0})
		require.NoError(t, err)
		assert.Zero(t, cfg.Telemetry.SamplingRatio)
	})

	t.Run("sampling ratio out of range", func(t *testing.T) {
		_, err := load(t, map[string]any{"telemetry.sampling_ratio": 1.5})
		assert.ErrorContains(t, err, "sampling_ratio")
	})
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "relief", Password: "p@ss", DBName: "drims", SSLMode: "disable"}

	dsn := d.DSN()
	assert.Contains(t, dsn, "postgres://relief:p%40ss@db:5432/drims")
	assert.Contains(t, dsn, "sslmode=disable")
}

func TestRedisConfig_Addr(t *testing.T) {
	r := RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}
