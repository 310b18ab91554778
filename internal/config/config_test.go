package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zeusync/helmsman/internal/core/fleet"
	"github.com/zeusync/helmsman/internal/core/observability/log"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, int64(200), cfg.TimeUnitMillis())
	assert.Equal(t, log.LevelInfo, cfg.LogLevel())
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	src := `
server:
  listen_addr: "127.0.0.1:9000"
  shutdown_timeout: 2s
log:
  level: debug
  encoding: console
movement:
  time_unit: 100ms
fleet:
  disperse: 5
  seed: 42
  classes:
    - name: scout
      speed: 20
      turn_accel: 4
`
	cfg, err := LoadYAML(strings.NewReader(src))
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddr)
	assert.Equal(t, 2*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, 10*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, log.LevelDebug, cfg.LogLevel())
	assert.Equal(t, int64(100), cfg.TimeUnitMillis())
	assert.Equal(t, []fleet.Class{{Name: "scout", Speed: 20, TurnAccel: 4}}, cfg.Fleet.Classes)

	reg := cfg.Registry()
	assert.Equal(t, 16, reg.Shards)
	assert.Equal(t, int64(100), reg.TimeUnit)
	assert.Equal(t, 5, reg.Disperse)
}

func TestLoadYAMLEmptyInput(t *testing.T) {
	cfg, err := LoadYAML(strings.NewReader(""))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadYAMLRejectsUnknownFields(t *testing.T) {
	_, err := LoadYAML(strings.NewReader("server:\n  listen: \":80\"\n"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"empty listen addr", func(c *Config) { c.Server.ListenAddr = "" }, ErrEmptyListenAddr},
		{"message size", func(c *Config) { c.Server.MaxMessageSize = 0 }, ErrInvalidMessageSz},
		{"encoding", func(c *Config) { c.Log.Encoding = "xml" }, ErrInvalidEncoding},
		{"time unit", func(c *Config) { c.Movement.TimeUnit = time.Microsecond }, ErrInvalidTimeUnit},
		{"disperse", func(c *Config) { c.Fleet.Disperse = -1 }, ErrInvalidDisperse},
		{"no classes", func(c *Config) { c.Fleet.Classes = nil }, ErrNoClasses},
		{"negative speed", func(c *Config) { c.Fleet.Classes[0].Speed = -3 }, fleet.ErrInvalidClass},
		{"duplicate class", func(c *Config) {
			c.Fleet.Classes = append(c.Fleet.Classes, c.Fleet.Classes[0])
		}, fleet.ErrDuplicateClass},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), tt.want)
		})
	}

	cfg := Default()
	cfg.Log.Level = "loud"
	assert.Error(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "helmsman.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: warn\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, log.LevelWarn, cfg.LogLevel())

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
