package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    string
		shouldError bool
	}{
		{name: "full url", input: "https://media.example.com/", expected: "https://media.example.com"},
		{name: "bare host and port", input: "127.0.0.1:8000", expected: "http://127.0.0.1:8000"},
		{name: "surrounding spaces", input: "  http://localhost:8000  ", expected: "http://localhost:8000"},
		{name: "empty", input: "", shouldError: true},
		{name: "bad scheme", input: "ftp://example.com", shouldError: true},
		{name: "no host", input: "http://", shouldError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeURL(tt.input)
			if tt.shouldError {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestAddServer(t *testing.T) {
	cfg := &Config{}

	server, added, err := cfg.AddServer("http://localhost:8000/", "", false)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "server-1", server.Alias)
	assert.Equal(t, "http://localhost:8000", server.URL)

	server, added, err = cfg.AddServer("https://prod.example.com", "production", true)
	require.NoError(t, err)
	assert.True(t, added)
	assert.True(t, server.Insecure)

	// Same URL again is a no-op
	server, added, err = cfg.AddServer("http://localhost:8000", "other", false)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, "server-1", server.Alias)

	// Duplicate alias is rejected
	_, _, err = cfg.AddServer("http://staging.example.com", "production", false)
	assert.Error(t, err)

	assert.Len(t, cfg.Servers, 2)
}

func TestLookup(t *testing.T) {
	cfg := &Config{Servers: []Server{
		{URL: "http://localhost:8000", Alias: "local"},
		{URL: "https://prod.example.com", Alias: "production"},
	}}

	server, err := cfg.GetServerByURLOrAlias("production")
	require.NoError(t, err)
	assert.Equal(t, "https://prod.example.com", server.URL)

	server, err = cfg.GetServerByURLOrAlias("http://localhost:8000/")
	require.NoError(t, err)
	assert.Equal(t, "local", server.Alias)

	_, err = cfg.GetServerByURLOrAlias("missing")
	assert.Error(t, err)

	server, err = cfg.GetDefaultServer()
	require.NoError(t, err)
	assert.Equal(t, "local", server.Alias)

	_, err = (&Config{}).GetDefaultServer()
	assert.Error(t, err)
}

func TestSaveLoadAndFind(t *testing.T) {
	root := t.TempDir()
	nested := filepath.Join(root, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0755))

	path := filepath.Join(root, ConfigFileName)
	require.NoError(t, Save(path, &Config{Servers: []Server{{URL: "http://localhost:8000", Alias: "local"}}}))

	originalDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(nested))
	defer os.Chdir(originalDir)

	found, err := FindConfigFile()
	require.NoError(t, err)
	// macOS temp dirs resolve through /private
	assert.Equal(t, filepath.Base(path), filepath.Base(found))

	cfg, err := LoadFromCurrentDir()
	require.NoError(t, err)
	require.Len(t, cfg.Servers, 1)
	assert.Equal(t, "local", cfg.Servers[0].Alias)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte("{"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}
