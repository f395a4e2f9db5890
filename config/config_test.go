package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacokyle01/analysis-session/session"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault_IsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
engine:
  path: /opt/stockfish/stockfish
  multipv: 3
  ack_timeout: 10s
  options:
    Threads: "4"
    Hash: "256"
server:
  addr: ":9090"
  store_path: results.db
worker:
  poll_rate: 0.5
log:
  level: debug
  json: true
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/opt/stockfish/stockfish", cfg.Engine.Path)
	assert.Equal(t, 3, cfg.Engine.MultiPV)
	assert.Equal(t, 12, cfg.Engine.StableDepth)
	assert.Equal(t, 10*time.Second, cfg.Engine.AckTimeout)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "results.db", cfg.Server.StorePath)
	assert.Equal(t, 100, cfg.Server.QueueSize)
	assert.Equal(t, 0.5, cfg.Worker.PollRate)
	assert.Equal(t, "http://localhost:8080", cfg.Worker.ServerURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.Log.JSON)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"multipv zero", "engine:\n  multipv: 0\n"},
		{"depth too deep", "engine:\n  stable_depth: 101\n"},
		{"bad url", "worker:\n  server_url: not a url\n"},
		{"bad level", "log:\n  level: chatty\n"},
		{"not yaml", "engine: [\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestEngine_Session(t *testing.T) {
	e := Engine{
		Path:        "sf",
		MultiPV:     2,
		StableDepth: 8,
		AckTimeout:  time.Second,
		Options:     map[string]string{"Threads": "2", "Hash": "64"},
	}
	got := e.Session(nil)
	assert.Equal(t, "sf", got.EnginePath)
	assert.Equal(t, 2, got.MultiPV)
	assert.Equal(t, 8, got.StableDepth)
	assert.Equal(t, time.Second, got.AckTimeout)
	assert.Equal(t, []session.Option{{Name: "Hash", Value: "64"}, {Name: "Threads", Value: "2"}}, got.Options)
}
