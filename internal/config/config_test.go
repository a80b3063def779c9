package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()

	t.Setenv("POSTGRES_USER", "postgres")
	t.Setenv("POSTGRES_PASSWORD", "postgres")
	t.Setenv("POSTGRES_DB", "redirector")
	t.Setenv("JWT_SECRET", "secret")
}

func TestLoad(t *testing.T) {
	t.Run("applies defaults", func(t *testing.T) {
		setRequiredEnv(t)

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, EnvDev, cfg.Env)
		assert.Equal(t, 7, cfg.ShortCodeLength)
		assert.Equal(t, ":8080", cfg.HTTPServer.Addr())
		assert.Equal(t, 5*time.Minute, cfg.Cache.TTL)
		assert.Equal(t, 100, cfg.Buffer.MaxSize)
		assert.Equal(t, 10*time.Second, cfg.Buffer.FlushInterval)
		assert.Equal(t, 1000, cfg.RateLimit.RedirectMax)
		assert.Equal(t, time.Minute, cfg.RateLimit.RedirectWindow)
		assert.Equal(t, "/password", cfg.PasswordPageURL)
		assert.False(t, cfg.Redis.Enabled())
	})

	t.Run("missing required variables", func(t *testing.T) {
		for _, key := range []string{"POSTGRES_USER", "POSTGRES_PASSWORD", "POSTGRES_DB", "JWT_SECRET"} {
			t.Setenv(key, "")
			require.NoError(t, os.Unsetenv(key))
		}

		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("overrides from the environment", func(t *testing.T) {
		setRequiredEnv(t)
		t.Setenv("SERVER_PORT", "9090")
		t.Setenv("REDIS_ADDR", "localhost:6379")
		t.Setenv("CLICK_BUFFER_MAX_SIZE", "500")
		t.Setenv("RATE_LIMIT_AUTH_WINDOW", "30m")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, ":9090", cfg.HTTPServer.Addr())
		assert.True(t, cfg.Redis.Enabled())
		assert.Equal(t, 500, cfg.Buffer.MaxSize)
		assert.Equal(t, 30*time.Minute, cfg.RateLimit.AuthWindow)
	})
}

func TestPostgresDSN(t *testing.T) {
	p := Postgres{
		User:     "user",
		Password: "pass",
		Host:     "db",
		Port:     5433,
		DB:       "redirector",
		SSLMode:  "require",
	}

	assert.Equal(t, "postgres://user:pass@db:5433/redirector?sslmode=require", p.DSN())
}
