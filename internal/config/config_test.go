package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("API_KEYS", " key-1, ,key-2 ")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "in_progress", cfg.AssignIncidentStatus)
	assert.Equal(t, 15*time.Minute, cfg.DispatchDefaultETA)
	assert.Equal(t, 3, cfg.WorkflowMaxAttempts)
	assert.Equal(t, []string{"key-1", "key-2"}, cfg.APIKeys)
}

func TestLoadConfig_PostgresRequiresURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestValidate_RejectsUnknownAssignStatus(t *testing.T) {
	cfg := &Config{StoreDriver: DriverMemory, AssignIncidentStatus: "completed", WorkflowMaxAttempts: 1}
	require.Error(t, cfg.Validate())

	cfg.AssignIncidentStatus = "assigned"
	require.NoError(t, cfg.Validate())
}

func TestGetEnvHelpers(t *testing.T) {
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_BAD_INT", "x")
	t.Setenv("TEST_DURATION", "250ms")

	assert.Equal(t, 42, getEnvAsInt("TEST_INT", 1))
	assert.Equal(t, 1, getEnvAsInt("TEST_BAD_INT", 1))
	assert.Equal(t, 250*time.Millisecond, getEnvAsDuration("TEST_DURATION", time.Second))
	assert.Equal(t, "fallback", getEnv("TEST_MISSING_KEY", "fallback"))
}
