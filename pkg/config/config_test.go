package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	t.Setenv("MONTRANSIT_CONFIG", path)
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	t.Setenv("MONTRANSIT_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.yml"))

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":8080", cfg.Server.Listen)
	require.Equal(t, "https://api.stm.info/pub/i3/v1c", cfg.Sources.APIBase)
	require.Equal(t, 60, cfg.Cache.Bus.TooFresh)
	require.Equal(t, 86400, cfg.Cache.Bus.NotUseful)
	require.Equal(t, 4, cfg.Prefetch.Workers)
}

func TestLoadAppliesFileOverrides(t *testing.T) {
	writeConfig(t, `
server:
  listen: ":9090"
sources:
  mobileBase: "https://mobile.example.net"
cache:
  bus:
    tooFresh: 15
`)

	cfg, err := Load()
	require.NoError(t, err)

	require.Equal(t, ":9090", cfg.Server.Listen)
	require.Equal(t, "https://mobile.example.net", cfg.Sources.MobileBase)
	require.Equal(t, 15, cfg.Cache.Bus.TooFresh)

	// Everything the file does not mention keeps its default.
	require.Equal(t, "https://api.stm.info/pub/i3/v1c", cfg.Sources.APIBase)
	require.Equal(t, 300, cfg.Cache.Bus.TooOld)
}

func TestLoadListenEnvironmentOverride(t *testing.T) {
	t.Setenv("MONTRANSIT_CONFIG", filepath.Join(t.TempDir(), "does-not-exist.yml"))
	t.Setenv("MONTRANSIT_LISTEN", ":3000")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":3000", cfg.Server.Listen)
}

func TestLoadRejectsInvalidBaseURL(t *testing.T) {
	writeConfig(t, `
sources:
  apiBase: "not a url"
`)

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	writeConfig(t, "server: [")

	_, err := Load()
	require.Error(t, err)
}
