package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/printfleet/printfleet/internal/infrastructure/config"
)

func validConfig() *config.Config {
	cfg := &config.Config{}
	config.SetDefaults(cfg)
	cfg.Crypto.EncryptionKey = "dGhpcnR5LXR3by1ieXRlLWtleS1mb3ItdGVzdGluZyE="
	return cfg
}

func TestSetDefaults_FillsOperationalValues(t *testing.T) {
	cfg := &config.Config{}
	config.SetDefaults(cfg)

	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 7, cfg.Scheduler.HorizonDays)
	assert.Equal(t, 120, cfg.Scheduler.SetupMinutes)
	assert.Equal(t, 4, cfg.Alerting.Workers)
	assert.NotZero(t, cfg.Daemon.ShutdownTimeout)
}

func TestValidateConfig_AcceptsDefaultsWithKey(t *testing.T) {
	assert.NoError(t, config.ValidateConfig(validConfig()))
}

func TestValidateConfig_RequiresEncryptionKey(t *testing.T) {
	cfg := validConfig()
	cfg.Crypto.EncryptionKey = ""

	err := config.ValidateConfig(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "EncryptionKey")
}

func TestValidateConfig_BlackoutTimes(t *testing.T) {
	for _, good := range []string{"", "00:00", "22:00", "23:59", "7:05"} {
		cfg := validConfig()
		cfg.Scheduler.BlackoutStart = good
		assert.NoError(t, config.ValidateConfig(cfg), "value %q", good)
	}

	for _, bad := range []string{"24:00", "22:60", "2200", "ten past nine"} {
		cfg := validConfig()
		cfg.Scheduler.BlackoutEnd = bad
		assert.Error(t, config.ValidateConfig(cfg), "value %q", bad)
	}
}
