package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_SQLITE_PATH", "test.db")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("SIMULATION_SEED", "")
	t.Setenv("SIMULATION_INTERVAL", "")
	t.Setenv("SIMULATION_ANOMALY_PERIOD", "")
	t.Setenv("SEED_DAYS", "")
	t.Setenv("SEED_BATCH_SIZE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(42), cfg.Simulation.Seed)
	assert.Equal(t, 15*time.Second, cfg.Simulation.Interval)
	assert.Equal(t, int64(500), cfg.Simulation.AnomalyPeriod)
	assert.Equal(t, 60, cfg.Seed.Days)
	assert.Equal(t, 500, cfg.Seed.BatchSize)
	assert.False(t, cfg.AuthConfigured())
	assert.Equal(t, "file:test.db?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.ConnectionString())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_NAME", "aqua")
	t.Setenv("DB_USER", "sim")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_PORT", "5433")
	t.Setenv("DB_SSLMODE", "require")
	t.Setenv("SIMULATION_SEED", "7")
	t.Setenv("SIMULATION_INTERVAL", "1s")
	t.Setenv("SIMULATION_ANOMALY_PERIOD", "4")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("REDIS_ENABLED", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, uint64(7), cfg.Simulation.Seed)
	assert.Equal(t, time.Second, cfg.Simulation.Interval)
	assert.Equal(t, int64(4), cfg.Simulation.AnomalyPeriod)
	assert.True(t, cfg.AuthConfigured())
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "host=db port=5433 user=sim password=pw dbname=aqua sslmode=require", cfg.ConnectionString())
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"short secret":    {"JWT_SECRET": "too-short"},
		"unknown driver":  {"DB_DRIVER": "mysql"},
		"bad interval":    {"SIMULATION_INTERVAL": "soon"},
		"zero interval":   {"SIMULATION_INTERVAL": "0s"},
		"zero anomaly":    {"SIMULATION_ANOMALY_PERIOD": "0"},
		"negative seed":   {"SIMULATION_SEED": "-1"},
		"zero batch size": {"SEED_BATCH_SIZE": "0"},
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			t.Setenv("DB_DRIVER", "sqlite")
			t.Setenv("JWT_SECRET", "")
			for k, v := range env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}
