package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "db4sphinx.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
assemblies:
  - book.xml
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.BaseDir)
	assert.Equal(t, []string{"book.xml"}, cfg.Assemblies)
	assert.Equal(t, "preserve", cfg.Passthrough)
	assert.Greater(t, cfg.Concurrency, 0)
	assert.Equal(t, 2*time.Second, cfg.Watch.Debounce)
	assert.Equal(t, "db4sphinx.runs", cfg.Events.Subject)
	assert.Equal(t, "nats://127.0.0.1:4222", cfg.Events.NATSURL)
	assert.False(t, cfg.Watch.Enabled)
}

func TestLoad_FullConfig(t *testing.T) {
	path := writeConfig(t, `
base_dir: /docs
assemblies:
  - guide.xml
  - reference.xml
passthrough: drop
concurrency: 4
inventory_path: inventory.db
watch:
  enabled: true
  debounce: 500ms
  full_resolve_interval: 1h
events:
  enabled: true
  nats_url: nats://broker:4222
  subject: docs.runs
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/docs", cfg.BaseDir)
	assert.Len(t, cfg.Assemblies, 2)
	assert.Equal(t, "drop", cfg.Passthrough)
	assert.Equal(t, 4, cfg.Concurrency)
	assert.Equal(t, "inventory.db", cfg.InventoryPath)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 500*time.Millisecond, cfg.Watch.Debounce)
	assert.Equal(t, time.Hour, cfg.Watch.FullResolveInterval)
	assert.Equal(t, "nats://broker:4222", cfg.Events.NATSURL)
	assert.Equal(t, "docs.runs", cfg.Events.Subject)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("DOCS_BASE", "/srv/docs")
	path := writeConfig(t, `
base_dir: ${DOCS_BASE}
assemblies:
  - book.xml
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/docs", cfg.BaseDir)
}

func TestManifestPaths(t *testing.T) {
	cfg := &Config{
		BaseDir:    "/docs",
		Assemblies: []string{"book.xml", "/abs/other.xml"},
	}
	assert.Equal(t, []string{
		filepath.Join("/docs", "book.xml"),
		"/abs/other.xml",
	}, cfg.ManifestPaths())
}

func TestLoad_InvalidPassthrough(t *testing.T) {
	path := writeConfig(t, `
assemblies: [book.xml]
passthrough: mangle
`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "passthrough")
}

func TestLoad_NoAssemblies(t *testing.T) {
	path := writeConfig(t, `base_dir: .`)
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no assemblies")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "assemblies: [\n")
	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal")
}
