package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, "dispatch", cfg.Database.DBName)
	assert.Equal(t, "USD", cfg.Dispatch.Currency)
	assert.InDelta(t, 10.0, cfg.Dispatch.MatchRadiusKm, 1e-9)
	assert.InDelta(t, 0.15, cfg.Dispatch.PlatformCommission, 1e-9)
	assert.Equal(t, 30, cfg.Quote.ValidityDays)
	assert.Equal(t, 30*24*time.Hour, cfg.Quote.Validity())
	assert.False(t, cfg.Quote.SweepEnabled)
	assert.Equal(t, "@every 5m", cfg.Quote.SweepSchedule)
	assert.Equal(t, "dispatch_events", cfg.RabbitMQ.Exchange)
	assert.Equal(t, "INFO", cfg.Log.Level)
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("DISPATCH_CURRENCY", "eur")
	t.Setenv("QUOTE_VALIDITY_DAYS", "7")
	t.Setenv("QUOTE_EXPIRY_SWEEP_ENABLED", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := load(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "EUR", cfg.Dispatch.Currency)
	assert.Equal(t, 7*24*time.Hour, cfg.Quote.Validity())
	assert.True(t, cfg.Quote.SweepEnabled)
	assert.Equal(t, "DEBUG", cfg.Log.Level)
}

func TestLoad_RejectsBadCommission(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("DISPATCH_PLATFORM_COMMISSION", "1.5")

	_, err := load(viper.New())
	assert.Error(t, err)
}

func TestDatabaseConfig_DSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", c.DSN())
}
