package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Equal(t, 8090, cfg.Server.GRPCPort)
	assert.Equal(t, "nam5", cfg.Emulator.DefaultLocation)
	assert.NotEmpty(t, cfg.Emulator.Locations)
	assert.Equal(t, "grpc", cfg.Client.Transport)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
store:
  driver: sqlite
  sqlitePath: /tmp/emu.db
emulator:
  projects: [demo]
  workers: 2
  stepDelay: 10ms
kafka:
  enabled: true
  brokers: [kafka:9092]
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("DA_SERVER_GRPC_PORT", "9999")
	t.Setenv("DA_CLIENT_TRANSPORT", "rest")
	t.Setenv("DA_AUTH_STATIC_KEYS", "k1,k2")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, []string{"demo"}, cfg.Emulator.Projects)
	assert.Equal(t, 2, cfg.Emulator.Workers)
	assert.Equal(t, 10*time.Millisecond, cfg.Emulator.StepDelay)
	assert.Equal(t, 9999, cfg.Server.GRPCPort)
	assert.Equal(t, "rest", cfg.Client.Transport)
	assert.Equal(t, []string{"k1", "k2"}, cfg.Auth.StaticKeys)
	assert.Equal(t, "nam5", cfg.Emulator.DefaultLocation)
}

func TestValidate(t *testing.T) {
	cfg := Default()
	cfg.Store.Driver = "mongo"
	cfg.Emulator.Workers = 0
	cfg.Client.Transport = "carrier-pigeon"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorContains(t, err, "store.driver")
	assert.ErrorContains(t, err, "emulator.workers")
	assert.ErrorContains(t, err, "client.transport")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestPostgresDSN(t *testing.T) {
	p := Default().Postgres
	assert.Equal(t, "host=localhost port=5432 user=docstoreadmin password=localdev dbname=docstoreadmin sslmode=disable", p.DSN())
}
