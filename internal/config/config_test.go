package config

import (
	"os"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, "mfgsight_ai", cfg.Database.DBName)
	assert.Equal(t, 6379, cfg.Redis.Port)
	assert.Equal(t, 7, cfg.Forecast.DefaultHorizonDays)
	assert.Equal(t, 60, cfg.Forecast.LookbackDays)
	assert.InDelta(t, 0.3, cfg.Forecast.SmoothingFactor, 1e-9)
	assert.Equal(t, "1h", cfg.Retrain.SweepInterval)
	assert.Equal(t, 10000, cfg.Retrain.MaxRows)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	resetViper(t)
	require.NoError(t, os.Setenv("MFGSIGHT_DATABASE_HOST", "db.internal"))
	require.NoError(t, os.Setenv("MFGSIGHT_SERVER_PORT", "9090"))
	require.NoError(t, os.Setenv("MFGSIGHT_ENVIRONMENT", "Production"))
	t.Cleanup(func() {
		_ = os.Unsetenv("MFGSIGHT_DATABASE_HOST")
		_ = os.Unsetenv("MFGSIGHT_SERVER_PORT")
		_ = os.Unsetenv("MFGSIGHT_ENVIRONMENT")
	})

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "production", cfg.Environment, "environment is normalized to lowercase")
}

func TestLoad_InvalidSweepInterval(t *testing.T) {
	resetViper(t)
	require.NoError(t, os.Setenv("MFGSIGHT_RETRAIN_SWEEP_INTERVAL", "not-a-duration"))
	t.Cleanup(func() { _ = os.Unsetenv("MFGSIGHT_RETRAIN_SWEEP_INTERVAL") })

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidSmoothingFactor(t *testing.T) {
	resetViper(t)
	require.NoError(t, os.Setenv("MFGSIGHT_FORECAST_SMOOTHING_FACTOR", "1.5"))
	t.Cleanup(func() { _ = os.Unsetenv("MFGSIGHT_FORECAST_SMOOTHING_FACTOR") })

	_, err := Load()
	assert.Error(t, err)
}

func TestSweepIntervalDuration(t *testing.T) {
	cfg := &Config{Retrain: RetrainConfig{SweepInterval: "30m"}}
	assert.Equal(t, 30*time.Minute, cfg.SweepIntervalDuration())

	broken := &Config{Retrain: RetrainConfig{SweepInterval: "bogus"}}
	assert.Equal(t, time.Hour, broken.SweepIntervalDuration())
}
