package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	t.Setenv("SANDBOXD_LISTEN_ADDR", ":9999")
	t.Setenv("SANDBOXD_DEFAULT_TIME_LIMIT_SEC", "7")
	os.Unsetenv("SANDBOXD_CONFIG_FILE")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 7, cfg.DefaultTimeLimitSec)
}

func TestValidateAggregatesProblems(t *testing.T) {
	cfg := Config{}
	err := cfg.validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.GreaterOrEqual(t, len(verr.Problems), 3)
}

func TestClampTimeLimit(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero uses default", 0, cfg.DefaultTimeLimitSec},
		{"negative uses default", -1, cfg.DefaultTimeLimitSec},
		{"within bound kept", 10, 10},
		{"over max clamped", 1000, cfg.MaxTimeLimitSec},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ClampTimeLimit(tt.requested))
		})
	}
}

func TestClampMemoryLimit(t *testing.T) {
	cfg := Default()

	tests := []struct {
		name      string
		requested int
		want      int
	}{
		{"zero uses default", 0, cfg.DefaultMemoryLimitMB},
		{"within bound kept", 512, 512},
		{"over max clamped", 999999, cfg.MaxMemoryLimitMB},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, cfg.ClampMemoryLimit(tt.requested))
		})
	}
}
