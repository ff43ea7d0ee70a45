package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadWithEnv(t *testing.T, env map[string]string) (*Config, error) {
	t.Helper()
	viper.Reset()
	for k, v := range env {
		t.Setenv(k, v)
	}
	return LoadConfig()
}

func TestLoadConfig_Defaults(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{"JWT_SECRET": "test-secret"})
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0:8080", cfg.GetAddr())
	assert.Equal(t, "local", cfg.Storage.Provider)
	assert.Equal(t, "./uploads", cfg.Storage.Local.BasePath)
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, 100, cfg.Processing.QueueSize)
	assert.Equal(t, 250*time.Millisecond, cfg.StageDelay())
	assert.Equal(t, time.Minute, cfg.SweepInterval())
	assert.Equal(t, 30*time.Minute, cfg.TokenExpiry())
	assert.True(t, cfg.Auth.AllowRegistration)
	assert.True(t, cfg.Cache.Enabled)
	assert.False(t, cfg.Database.InMemory)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	cfg, err := loadWithEnv(t, map[string]string{
		"JWT_SECRET":    "test-secret",
		"PORT":          "9000",
		"DB_HOST":       "db.internal",
		"DB_PASSWORD":   "hunter2",
		"USE_MEMORY_DB": "true",
		"STORAGE_PATH":  "/var/lib/catalog",
		"LOG_LEVEL":     "debug",
		"NATS_URL":      "nats://broker:4222",
	})
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.True(t, cfg.Database.InMemory)
	assert.Equal(t, "/var/lib/catalog", cfg.Storage.Local.BasePath)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "nats://broker:4222", cfg.Events.NATSURL)
	assert.Contains(t, cfg.GetDSN(), "host=db.internal")
	assert.Contains(t, cfg.GetDSN(), "password=hunter2")
}

func TestLoadConfig_RequiresJWTSecret(t *testing.T) {
	_, err := loadWithEnv(t, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT secret")
}

func TestLoadConfig_ValidatesStorageProvider(t *testing.T) {
	_, err := loadWithEnv(t, map[string]string{
		"JWT_SECRET":       "test-secret",
		"STORAGE_PROVIDER": "ftp",
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage provider")

	// aws without region/bucket is rejected.
	_, err = loadWithEnv(t, map[string]string{
		"JWT_SECRET":       "test-secret",
		"STORAGE_PROVIDER": "aws",
	})
	require.Error(t, err)
}
