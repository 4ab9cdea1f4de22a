package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_ValidFile(t *testing.T) {
	// Create temp config file
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	configContent := `
server:
  host: "127.0.0.1"
  port: 8080

database:
  driver: "postgres"
  dsn: "postgres://localhost/relnotary"

github:
  token: "ghp_testtoken"
  webhook_secret: "hooksecret"

llm:
  provider: "openai"
  model: "gpt-4o-mini"
  timeout_seconds: 20
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Database.Driver != "postgres" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "postgres")
	}
	if cfg.GitHub.WebhookSecret != "hooksecret" {
		t.Errorf("GitHub.WebhookSecret = %q, want %q", cfg.GitHub.WebhookSecret, "hooksecret")
	}
	if cfg.LLM.Provider != "openai" {
		t.Errorf("LLM.Provider = %q, want %q", cfg.LLM.Provider, "openai")
	}
	if cfg.LLM.TimeoutSeconds != 20 {
		t.Errorf("LLM.TimeoutSeconds = %d, want %d", cfg.LLM.TimeoutSeconds, 20)
	}
}

func TestLoadConfig_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("server:\n  port: 9000\n"), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want default %q", cfg.Database.Driver, "sqlite")
	}
	if cfg.LLM.Provider != "anthropic" {
		t.Errorf("LLM.Provider = %q, want default %q", cfg.LLM.Provider, "anthropic")
	}
	if cfg.Changelog.DefaultStyle != "technical" {
		t.Errorf("Changelog.DefaultStyle = %q, want default %q", cfg.Changelog.DefaultStyle, "technical")
	}
}

func TestLoadConfig_EnvSubstitution(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	t.Setenv("RELNOTARY_TEST_SECRET", "supersecret")

	configContent := `
github:
  webhook_secret: "${RELNOTARY_TEST_SECRET}"
`
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.GitHub.WebhookSecret != "supersecret" {
		t.Errorf("GitHub.WebhookSecret = %q, want %q", cfg.GitHub.WebhookSecret, "supersecret")
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for nonexistent file, got nil")
	}
}
