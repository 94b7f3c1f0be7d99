package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ledgerline/payables/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payables.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad_EmptyPath_Defaults(t *testing.T) {
	cfg, err := config.Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Database.Path != "./data/payables.db" {
		t.Errorf("default db path = %q", cfg.Database.Path)
	}
	if cfg.Addr() != "0.0.0.0:8080" {
		t.Errorf("Addr() = %q, want 0.0.0.0:8080", cfg.Addr())
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
host = "127.0.0.1"
port = 9000
cors_origins = ["https://app.example.com"]

[database]
path = "/var/lib/payables/ledger.db"
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr() != "127.0.0.1:9000" {
		t.Errorf("Addr() = %q, want 127.0.0.1:9000", cfg.Addr())
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example.com" {
		t.Errorf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.Database.Path != "/var/lib/payables/ledger.db" {
		t.Errorf("db path = %q", cfg.Database.Path)
	}
}

func TestLoad_PartialFileKeepsOtherDefaults(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 3000
`)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("port = %d, want 3000", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want default 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Database.Path != "./data/payables.db" {
		t.Errorf("db path = %q, want default", cfg.Database.Path)
	}
}

func TestLoad_MissingFile_Error(t *testing.T) {
	if _, err := config.Load("/nonexistent/payables.toml"); err == nil {
		t.Error("missing file should be an error")
	}
}

func TestLoad_InvalidPort_Error(t *testing.T) {
	path := writeConfig(t, `
[server]
port = 70000
`)
	if _, err := config.Load(path); err == nil {
		t.Error("port 70000 should be rejected")
	}
}

func TestLoad_MalformedTOML_Error(t *testing.T) {
	path := writeConfig(t, `[server`)
	if _, err := config.Load(path); err == nil {
		t.Error("malformed TOML should be an error")
	}
}

func TestLoad_EmptyDatabasePath_Error(t *testing.T) {
	path := writeConfig(t, `
[database]
path = ""
`)
	if _, err := config.Load(path); err == nil {
		t.Error("empty database path should be rejected")
	}
}
