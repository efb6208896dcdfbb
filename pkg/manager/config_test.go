package manager

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/virtplane/pkg/log"
)

func TestParseConfig(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name:  "empty document keeps defaults",
			input: "",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, DefaultConfig(), cfg)
			},
		},
		{
			name: "overrides",
			input: `
heartbeatTimeout: 45s
scheduleInterval: 1s
tokenTTL: 2h
defaultProject: ops
healthAddr: 127.0.0.1:8081
log:
  level: debug
  json: true
manifests:
  - base.yaml
  - tenants.yaml
`,
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 45*time.Second, cfg.HeartbeatTimeout)
				assert.Equal(t, time.Second, cfg.ScheduleInterval)
				assert.Equal(t, 10*time.Second, cfg.ReconcileInterval)
				assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
				assert.Equal(t, "ops", cfg.DefaultProject)
				assert.Equal(t, "127.0.0.1:8081", cfg.HealthAddr)
				assert.Equal(t, log.DebugLevel, cfg.Log.Level)
				assert.True(t, cfg.Log.JSONOutput)
				assert.Equal(t, []string{"base.yaml", "tenants.yaml"}, cfg.Manifests)
			},
		},
		{name: "zero interval", input: "reconcileInterval: 0s", wantErr: true},
		{name: "empty project", input: `defaultProject: ""`, wantErr: true},
		{name: "bad duration", input: "heartbeatTimeout: soon", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(tt.input))
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "virtplane.yaml")
	require.NoError(t, os.WriteFile(path, []byte("metricsInterval: 30s\n"), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 30*time.Second, cfg.MetricsInterval)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
