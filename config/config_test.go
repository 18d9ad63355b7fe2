package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetViper(t *testing.T) {
	t.Helper()
	viper.Reset()
	setDefaults()
	t.Cleanup(viper.Reset)
}

func TestLoad_Defaults(t *testing.T) {
	resetViper(t)
	viper.Set("telegram_bot_token", "123:abc")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "123:abc", cfg.TelegramBotToken)
	assert.Equal(t, "alerts.db", cfg.DatabasePath)
	assert.Equal(t, 9090, cfg.MetricsPort)
	assert.Equal(t, time.Minute, cfg.CheckInterval)
	assert.Equal(t, 5*time.Second, cfg.RetryMin)
	assert.Equal(t, "en", cfg.Lang)
	assert.Equal(t, "locales", cfg.LocalesPath)
	assert.Empty(t, cfg.WebhookURL)
	assert.False(t, cfg.Debug)
}

func TestLoad_MissingToken(t *testing.T) {
	resetViper(t)

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Intervals(t *testing.T) {
	resetViper(t)
	viper.Set("telegram_bot_token", "123:abc")

	viper.Set("check_interval", "1d")
	viper.Set("retry_min", "1h")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 24*time.Hour, cfg.CheckInterval)
	assert.Equal(t, time.Hour, cfg.RetryMin)

	viper.Set("check_interval", "10s")
	viper.Set("retry_min", "1m")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, cfg.RetryMin)

	viper.Set("check_interval", "soon")
	_, err = Load()
	assert.Error(t, err)

	viper.Set("check_interval", "0s")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoad_InvalidPort(t *testing.T) {
	resetViper(t)
	viper.Set("telegram_bot_token", "123:abc")
	viper.Set("metrics_port", 70000)

	_, err := Load()
	assert.Error(t, err)
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "en_us", language("en_US.UTF-8"))
	assert.Equal(t, "pl", language("PL"))
	assert.Equal(t, "en", language("C.UTF-8"))
	assert.Equal(t, "en", language(""))
}
