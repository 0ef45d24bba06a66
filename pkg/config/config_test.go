package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type slotConfig struct {
	Backend string        `env:"SLOT_BACKEND" envDefault:"memory"`
	Dir     string        `env:"SLOT_DIR" envDefault:"/tmp/carts"`
	Timeout time.Duration `env:"SLOT_TIMEOUT" envDefault:"2s"`
	Brokers []string      `env:"SLOT_BROKERS" envSeparator:","`
}

func TestLoad_Defaults(t *testing.T) {
	var cfg slotConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "memory", cfg.Backend)
	assert.Equal(t, "/tmp/carts", cfg.Dir)
	assert.Equal(t, 2*time.Second, cfg.Timeout)
	assert.Empty(t, cfg.Brokers)
}

func TestLoad_FromEnvVars(t *testing.T) {
	t.Setenv("SLOT_BACKEND", "file")
	t.Setenv("SLOT_TIMEOUT", "500ms")
	t.Setenv("SLOT_BROKERS", "k1:9092,k2:9092")

	var cfg slotConfig
	require.NoError(t, Load(&cfg))

	assert.Equal(t, "file", cfg.Backend)
	assert.Equal(t, 500*time.Millisecond, cfg.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Brokers)
}

func TestLoad_InvalidDuration(t *testing.T) {
	t.Setenv("SLOT_TIMEOUT", "soon")

	var cfg slotConfig
	err := Load(&cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

type requiredConfig struct {
	OrderURL string `env:"TEST_ORDER_URL,required"`
}

func TestLoad_RequiredFieldMissing(t *testing.T) {
	var cfg requiredConfig
	err := Load(&cfg)
	require.Error(t, err)
}

func TestLoadWithPrefix(t *testing.T) {
	t.Setenv("STAGING_SLOT_BACKEND", "redis")

	var cfg slotConfig
	require.NoError(t, LoadWithPrefix(&cfg, "STAGING_"))

	assert.Equal(t, "redis", cfg.Backend)
	assert.Equal(t, "/tmp/carts", cfg.Dir)
}
