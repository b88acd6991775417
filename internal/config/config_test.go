package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "")
	t.Setenv("LOCK_BACKEND", "")
	t.Setenv("CLASSIFIER_MAX_ATTEMPTS", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverSQLite, cfg.Store.Driver)
	assert.Equal(t, LockBackendLocal, cfg.Lock.Backend)
	assert.Equal(t, 3, cfg.Classifier.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Classifier.Backoff())
	assert.Equal(t, 10*time.Second, cfg.Classifier.RequestTimeout())
	assert.Equal(t, 8, cfg.Auth.MinPasswordLength)
	assert.Equal(t, 5*time.Second, cfg.Store.WriteTimeout())
	assert.Equal(t, 32*time.Second, cfg.Classifier.PhaseBudget())
	assert.GreaterOrEqual(t, cfg.App.RequestTimeout(), 2*cfg.Classifier.PhaseBudget())
}

func TestLoggerDevelopmentFollowsEnvironment(t *testing.T) {
	t.Setenv("LOG_DEVELOPMENT", "")

	t.Setenv("APP_ENV", "production")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.Logger.Development)

	t.Setenv("APP_ENV", "development")
	cfg, err = Load()
	require.NoError(t, err)
	assert.True(t, cfg.Logger.Development)

	t.Setenv("LOG_DEVELOPMENT", "false")
	cfg, err = Load()
	require.NoError(t, err)
	assert.False(t, cfg.Logger.Development)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("CLASSIFIER_BACKOFF_MILLIS", "250")
	t.Setenv("APP_PORT", "9090")
	t.Setenv("AUTH_BCRYPT_COST", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, StoreDriverMemory, cfg.Store.Driver)
	assert.Equal(t, 250*time.Millisecond, cfg.Classifier.Backoff())
	assert.Equal(t, "0.0.0.0:9090", cfg.App.Addr())
	assert.Equal(t, 12, cfg.Auth.BcryptCost)
}

func TestLoadRejectsInvalidCombinations(t *testing.T) {
	t.Run("postgres without dsn", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "postgres")
		t.Setenv("POSTGRES_DSN", "")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("redis lock without redis", func(t *testing.T) {
		t.Setenv("LOCK_BACKEND", "redis")
		t.Setenv("REDIS_ENABLED", "false")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("request timeout shorter than two classification phases", func(t *testing.T) {
		t.Setenv("HTTP_REQUEST_TIMEOUT_SECONDS", "60")
		t.Setenv("CLASSIFIER_MAX_ATTEMPTS", "3")
		t.Setenv("CLASSIFIER_REQUEST_TIMEOUT_SECONDS", "10")
		t.Setenv("CLASSIFIER_BACKOFF_MILLIS", "1000")
		_, err := Load()
		assert.ErrorContains(t, err, "HTTP_REQUEST_TIMEOUT_SECONDS")
	})

	t.Run("non-positive store write timeout", func(t *testing.T) {
		t.Setenv("STORE_WRITE_TIMEOUT_SECONDS", "0")
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("unknown driver", func(t *testing.T) {
		t.Setenv("STORE_DRIVER", "mongo")
		_, err := Load()
		assert.Error(t, err)
	})
}

func TestLocationFallsBackToFixedZone(t *testing.T) {
	loc := AppConfig{Timezone: "Not/AZone"}.Location()
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	assert.Equal(t, 8*3600, offset)
}
