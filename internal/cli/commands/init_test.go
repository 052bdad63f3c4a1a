package commands

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodhini-dev/mediadmin/internal/cli/config"
)

// chdirTemp moves the test into a fresh directory and returns the config path there
func chdirTemp(t *testing.T) string {
	t.Helper()
	tempDir := t.TempDir()
	t.Chdir(tempDir)
	return filepath.Join(tempDir, config.ConfigFileName)
}

func quietInit() *initOptions {
	return &initOptions{out: io.Discard}
}

// TestInitCommand_NewConfig tests creating a brand new config file
func TestInitCommand_NewConfig(t *testing.T) {
	configPath := chdirTemp(t)

	if err := runInitWithOptions([]string{"192.168.1.100:8000"}, quietInit()); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Fatal("mediadmin.json was not created")
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("failed to load created config: %v", err)
	}

	if len(cfg.Servers) != 1 {
		t.Fatalf("expected 1 server, got %d", len(cfg.Servers))
	}

	// Bare host:port is stored as http
	if cfg.Servers[0].URL != "http://192.168.1.100:8000" {
		t.Errorf("expected URL 'http://192.168.1.100:8000', got '%s'", cfg.Servers[0].URL)
	}

	if cfg.Servers[0].Alias != "server-1" {
		t.Errorf("expected alias 'server-1', got '%s'", cfg.Servers[0].Alias)
	}
}

// TestInitCommand_AliasAndInsecure tests the --alias and --insecure flags
func TestInitCommand_AliasAndInsecure(t *testing.T) {
	configPath := chdirTemp(t)

	opts := quietInit()
	opts.alias = "staging"
	opts.insecure = true
	if err := runInitWithOptions([]string{"https://media.staging.local/"}, opts); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	srv := cfg.Servers[0]
	if srv.URL != "https://media.staging.local" {
		t.Errorf("expected trailing slash stripped, got '%s'", srv.URL)
	}
	if srv.Alias != "staging" {
		t.Errorf("expected alias 'staging', got '%s'", srv.Alias)
	}
	if !srv.Insecure {
		t.Error("expected insecure to be set")
	}
}

// TestInitCommand_DuplicateServer tests that a URL is only added once
func TestInitCommand_DuplicateServer(t *testing.T) {
	configPath := chdirTemp(t)

	initialCfg := &config.Config{
		Servers: []config.Server{
			{URL: "http://192.168.1.100:8000", Alias: "server-1"},
		},
	}
	if err := config.Save(configPath, initialCfg); err != nil {
		t.Fatalf("failed to save initial config: %v", err)
	}

	if err := runInitWithOptions([]string{"http://192.168.1.100:8000/"}, quietInit()); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Servers) != 1 {
		t.Errorf("expected 1 server (no duplicate), got %d", len(cfg.Servers))
	}
}

// TestInitCommand_DuplicateAlias tests that an alias cannot be reused
func TestInitCommand_DuplicateAlias(t *testing.T) {
	chdirTemp(t)

	opts := quietInit()
	opts.alias = "prod"
	if err := runInitWithOptions([]string{"http://a.example.com"}, opts); err != nil {
		t.Fatalf("init command failed: %v", err)
	}
	if err := runInitWithOptions([]string{"http://b.example.com"}, opts); err == nil {
		t.Fatal("expected error for a reused alias")
	}
}

// TestInitCommand_MultipleServers tests adding multiple servers and alias naming
func TestInitCommand_MultipleServers(t *testing.T) {
	configPath := chdirTemp(t)

	servers := []struct {
		url           string
		expectedAlias string
	}{
		{"http://10.0.0.1:8000", "server-1"},
		{"http://10.0.0.2:8000", "server-2"},
		{"http://10.0.0.3:8000", "server-3"},
	}

	for i, srv := range servers {
		if err := runInitWithOptions([]string{srv.url}, quietInit()); err != nil {
			t.Fatalf("init command failed for server %d: %v", i+1, err)
		}
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Servers) != len(servers) {
		t.Fatalf("expected %d servers, got %d", len(servers), len(cfg.Servers))
	}

	for i, expected := range servers {
		if cfg.Servers[i].URL != expected.url {
			t.Errorf("server %d: expected URL '%s', got '%s'", i, expected.url, cfg.Servers[i].URL)
		}
		if cfg.Servers[i].Alias != expected.expectedAlias {
			t.Errorf("server %d: expected alias '%s', got '%s'", i, expected.expectedAlias, cfg.Servers[i].Alias)
		}
	}
}

// TestInitCommand_InvalidURL tests that unsupported schemes are refused
func TestInitCommand_InvalidURL(t *testing.T) {
	configPath := chdirTemp(t)

	if err := runInitWithOptions([]string{"ftp://media.example.com"}, quietInit()); err == nil {
		t.Fatal("expected error for ftp URL")
	}
	if _, err := os.Stat(configPath); !os.IsNotExist(err) {
		t.Error("config file should not be written for an invalid URL")
	}
}

// TestInitCommand_MissingArgument tests that init requires a server URL
func TestInitCommand_MissingArgument(t *testing.T) {
	chdirTemp(t)

	cmd := NewInitCmd()
	cmd.SetArgs([]string{})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error when no server URL provided, but got nil")
	}
}

// TestInitCommand_ConfigFileFormat tests that config file is properly formatted JSON
func TestInitCommand_ConfigFileFormat(t *testing.T) {
	configPath := chdirTemp(t)

	if err := runInitWithOptions([]string{"http://localhost:8000"}, quietInit()); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("failed to read config file: %v", err)
	}

	var parsedConfig config.Config
	if err := json.Unmarshal(data, &parsedConfig); err != nil {
		t.Fatalf("config file is not valid JSON: %v", err)
	}

	if len(parsedConfig.Servers) != 1 {
		t.Errorf("expected 1 server in parsed config, got %d", len(parsedConfig.Servers))
	}
}

// TestInitCommand_PreservesExistingConfig tests that existing servers aren't lost
func TestInitCommand_PreservesExistingConfig(t *testing.T) {
	configPath := chdirTemp(t)

	initialCfg := &config.Config{
		Servers: []config.Server{
			{URL: "https://media.example.com", Alias: "custom-production"},
			{URL: "https://staging.example.com", Alias: "custom-staging"},
		},
	}
	if err := config.Save(configPath, initialCfg); err != nil {
		t.Fatalf("failed to save initial config: %v", err)
	}

	if err := runInitWithOptions([]string{"http://localhost:8000"}, quietInit()); err != nil {
		t.Fatalf("init command failed: %v", err)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if len(cfg.Servers) != 3 {
		t.Fatalf("expected 3 servers, got %d", len(cfg.Servers))
	}

	if cfg.Servers[0].Alias != "custom-production" || cfg.Servers[1].Alias != "custom-staging" {
		t.Error("existing servers were modified")
	}

	if cfg.Servers[2].Alias != "server-3" {
		t.Errorf("expected third server alias 'server-3', got '%s'", cfg.Servers[2].Alias)
	}
}
