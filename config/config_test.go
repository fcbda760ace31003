package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFillsDefaults(t *testing.T) {
	path := writeConfig(t, `
provider:
  kind: http
  url: https://rollup.example/api
database:
  kind: bolt
  path: /tmp/rollupsync.db
users:
  - publicKey: "0xaa"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)
	require.True(t, cfg.Metrics.Enabled)
}

func TestLoadRejectsMissingProviderURL(t *testing.T) {
	path := writeConfig(t, `
provider:
  kind: http
database:
  kind: bolt
  path: /tmp/rollupsync.db
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsUnknownProviderKind(t *testing.T) {
	path := writeConfig(t, `
provider:
  kind: carrier-pigeon
database:
  kind: memory
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadAcceptsMemoryBackends(t *testing.T) {
	path := writeConfig(t, `
provider:
  kind: memory
database:
  kind: memory
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "memory", cfg.Provider.Kind)
	require.Equal(t, "memory", cfg.Database.Kind)
}
