package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server: build-box
port: 2114
aliases:
  fmt: com.example.Formatter
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "build-box", cfg.Server)
	assert.Equal(t, 2114, cfg.Port)
	assert.Equal(t, "com.example.Formatter", cfg.ResolveCommand("fmt"))
	assert.Equal(t, "other", cfg.ResolveCommand("other"))
}

func TestLoadMissing(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, &Config{}, cfg)

	cfg, err = Load("  ")
	require.NoError(t, err)
	assert.Equal(t, "x", cfg.ResolveCommand("x"))
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: [unterminated"), 0o600))
	_, err := Load(bad)
	assert.ErrorContains(t, err, "parse config")

	port := filepath.Join(dir, "port.yaml")
	require.NoError(t, os.WriteFile(port, []byte("port: 70000"), 0o600))
	_, err = Load(port)
	assert.ErrorContains(t, err, "invalid port")
}

func TestResolveCommandNilConfig(t *testing.T) {
	var cfg *Config
	assert.Equal(t, "x", cfg.ResolveCommand("x"))
}
