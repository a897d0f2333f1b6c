package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	// Check defaults
	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "csv", cfg.Output.Format)
	assert.Equal(t, 2, cfg.Output.DecimalPlaces)
	assert.True(t, cfg.Sources.Yahoo.Enabled)
	assert.Equal(t, 2000, cfg.Sources.Yahoo.RateLimit)
	assert.Equal(t, 5, cfg.Sources.Polygon.RateLimit)
	assert.False(t, cfg.Sources.AlphaVantage.Enabled)
	assert.Equal(t, 120, cfg.Sources.FRED.RateLimit)
	assert.Equal(t, 30*time.Second, cfg.Sources.Yahoo.Timeout)
}

func TestLoadWithCustomValues(t *testing.T) {
	os.Setenv("ENV", "production")
	os.Setenv("POLYGON_API_KEY", "pk_test")
	os.Setenv("FRED_ENABLED", "true")
	os.Setenv("LOG_LEVEL", "info")
	os.Setenv("OUTPUT_FORMAT", "table")

	defer func() {
		os.Unsetenv("ENV")
		os.Unsetenv("POLYGON_API_KEY")
		os.Unsetenv("FRED_ENABLED")
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("OUTPUT_FORMAT")
	}()

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "pk_test", cfg.Sources.Polygon.APIKey)
	assert.True(t, cfg.Sources.FRED.Enabled)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "table", cfg.Output.Format)
}

func TestValidateInvalidEnv(t *testing.T) {
	os.Setenv("ENV", "invalid")
	defer os.Unsetenv("ENV")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidateInvalidOutputFormat(t *testing.T) {
	os.Setenv("OUTPUT_FORMAT", "pdf")
	defer os.Unsetenv("OUTPUT_FORMAT")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadFrom(t *testing.T) {
	path := t.TempDir() + "/test.env"
	require.NoError(t, os.WriteFile(path, []byte("ALPHA_VANTAGE_API_KEY=av_key\n"), 0o600))
	defer os.Unsetenv("ALPHA_VANTAGE_API_KEY")

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "av_key", cfg.Sources.AlphaVantage.APIKey)
}

func TestGetEnvAsDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "2h")
	defer os.Unsetenv("TEST_DURATION")

	assert.Equal(t, 2*time.Hour, getEnvAsDuration("TEST_DURATION", "1h"))
	assert.Equal(t, time.Hour, getEnvAsDuration("TEST_DURATION_MISSING", "1h"))
}

func TestGetEnvAsInt(t *testing.T) {
	os.Setenv("TEST_INT", "100")
	defer os.Unsetenv("TEST_INT")

	assert.Equal(t, 100, getEnvAsInt("TEST_INT", 50))
	assert.Equal(t, 50, getEnvAsInt("TEST_INT_MISSING", 50))
}

func TestGetEnvAsBool(t *testing.T) {
	os.Setenv("TEST_BOOL", "true")
	defer os.Unsetenv("TEST_BOOL")

	assert.True(t, getEnvAsBool("TEST_BOOL", false))
	assert.False(t, getEnvAsBool("TEST_BOOL_MISSING", false))
}
