package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	tests := []struct {
		name    string
		backend string
		wantErr bool
	}{
		{name: "postgres", backend: "postgres"},
		{name: "memory", backend: "memory"},
		{name: "unknown backend", backend: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CMS_BACKEND", tt.backend)
			t.Setenv("XS2A_PORT", "9090")

			cfg, err := loadConfig()
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, 9090, cfg.Port)
			assert.Equal(t, tt.backend, cfg.CmsBackend)
			assert.False(t, cfg.NATS.Enabled)
		})
	}
}

func TestSetupLogger(t *testing.T) {
	assert.NotNil(t, setupLogger("debug", "json"))
	assert.NotNil(t, setupLogger("bogus", "text"))
}
