package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/saiset-co/sai-interaction/types"
)

const testConfig = `
name: sai-interaction-test
version: "1.0.0"

server:
  host: 127.0.0.1
  port: 9090

kv:
  type: memory

store:
  type: memory

recency:
  limit: 5
  ttl: 1h

session:
  prune_enabled: true
  max_idle: 30m
`

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestConfigurationManagerLoad(t *testing.T) {
	manager, err := NewConfigurationManager(writeConfigFile(t, testConfig))
	if err != nil {
		t.Fatalf("NewConfigurationManager: %v", err)
	}

	cfg := manager.GetConfig()
	if cfg.Name != "sai-interaction-test" {
		t.Errorf("got name %q", cfg.Name)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("got port %d, want 9090", cfg.Server.Port)
	}
	if cfg.Recency.Limit != 5 {
		t.Errorf("got limit %d, want 5", cfg.Recency.Limit)
	}
	if cfg.Session.MaxIdle != 30*time.Minute {
		t.Errorf("got max_idle %v, want 30m", cfg.Session.MaxIdle)
	}
}

func TestConfigurationManagerDefaultsSurviveOverride(t *testing.T) {
	manager, err := NewConfigurationManager(writeConfigFile(t, testConfig))
	if err != nil {
		t.Fatalf("NewConfigurationManager: %v", err)
	}

	cfg := manager.GetConfig()
	if cfg.Catalog.KeyPrefix != "product:" {
		t.Errorf("got key prefix %q, want product:", cfg.Catalog.KeyPrefix)
	}
	if cfg.Catalog.TTL != 24*time.Hour {
		t.Errorf("got ttl %v, want 24h", cfg.Catalog.TTL)
	}
	if cfg.Recency.KeyPrefix != "recent:" {
		t.Errorf("got key prefix %q, want recent:", cfg.Recency.KeyPrefix)
	}
}

func TestConfigurationManagerGetValue(t *testing.T) {
	manager, err := NewConfigurationManager(writeConfigFile(t, testConfig))
	if err != nil {
		t.Fatalf("NewConfigurationManager: %v", err)
	}

	if got := manager.GetValue("server.host", ""); got != "127.0.0.1" {
		t.Errorf("got %v, want 127.0.0.1", got)
	}
	if got := manager.GetValue("server.missing", "fallback"); got != "fallback" {
		t.Errorf("got %v, want fallback", got)
	}
}

func TestConfigurationManagerGetAs(t *testing.T) {
	manager, err := NewConfigurationManager(writeConfigFile(t, testConfig))
	if err != nil {
		t.Fatalf("NewConfigurationManager: %v", err)
	}

	var serverConfig types.ServerConfig
	if err := manager.GetAs("server", &serverConfig); err != nil {
		t.Fatalf("GetAs: %v", err)
	}
	if serverConfig.Port != 9090 {
		t.Errorf("got port %d, want 9090", serverConfig.Port)
	}

	if err := manager.GetAs("absent.path", &serverConfig); !types.IsError(err, types.ErrConfigNotFound) {
		t.Errorf("got %v, want ErrConfigNotFound", err)
	}
}

func TestConfigurationManagerMissingFile(t *testing.T) {
	if _, err := NewConfigurationManager(filepath.Join(t.TempDir(), "absent.yml")); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestConfigurationManagerValidation(t *testing.T) {
	// Name and version are mandatory.
	path := writeConfigFile(t, "version: \"1.0.0\"\nkv:\n  type: memory\nstore:\n  type: memory\n")
	if _, err := NewConfigurationManager(path); err == nil {
		t.Error("expected validation error for missing name")
	}
}

func TestConfigurationManagerMalformedYAML(t *testing.T) {
	path := writeConfigFile(t, "name: [unclosed")
	if _, err := NewConfigurationManager(path); err == nil {
		t.Error("expected parse error")
	}
}
