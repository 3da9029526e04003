package appconfig

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.ConfigVersion != CurrentConfigVersion {
		t.Fatalf("expected default config version, got %d", cfg.ConfigVersion)
	}
	if cfg.HTTP.Addr == "" {
		t.Fatalf("expected default http addr")
	}
}

func TestLoadRejectsUnsupportedConfigVersion(t *testing.T) {
	path := writeConfig(t, `
config_version: 99
state_dir: /state
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "unsupported config_version") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsMissingConfigVersion(t *testing.T) {
	path := writeConfig(t, `
state_dir: /state
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "config_version is required") {
		t.Fatalf("expected config_version error, got %v", err)
	}
}

func TestLoadRejectsInvalidBasePath(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
state_dir: /state
http:
  base_path: https://example.com/deck
`)
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "http.base_path") {
		t.Fatalf("expected base_path error, got %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	path := writeConfig(t, `
config_version: 1
state_dir: /var/lib/promptdeck
persistence:
  encrypt: true
  key_store_path: /var/lib/promptdeck/keys.bundle
http:
  addr: ":9090"
  base_path: /deck
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StateDir != "/var/lib/promptdeck" {
		t.Fatalf("unexpected state dir %q", cfg.StateDir)
	}
	if !cfg.Persistence.Encrypt || cfg.Persistence.KeyStorePath != "/var/lib/promptdeck/keys.bundle" {
		t.Fatalf("unexpected persistence config %+v", cfg.Persistence)
	}
	if cfg.HTTP.Addr != ":9090" || cfg.HTTP.BasePath != "/deck" {
		t.Fatalf("unexpected http config %+v", cfg.HTTP)
	}
}

func TestExpandEnv(t *testing.T) {
	t.Setenv("FOO", "bar")
	value := expandEnv("$FOO/$UID/$GID/$MISSING")
	if !strings.HasPrefix(value, "bar/") {
		t.Fatalf("expected env expansion, got %q", value)
	}
	if strings.Contains(value, "$UID") || strings.Contains(value, "$GID") {
		t.Fatalf("expected UID/GID expansion, got %q", value)
	}
	if !strings.HasSuffix(value, "/$MISSING") {
		t.Fatalf("expected missing vars to remain, got %q", value)
	}
}

func TestWriteDefaultRespectsOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	written, err := WriteDefault(path, false)
	if err != nil {
		t.Fatalf("write default: %v", err)
	}
	if written != path {
		t.Fatalf("expected path %q, got %q", path, written)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config to exist: %v", err)
	}
	if _, err := WriteDefault(path, false); err == nil {
		t.Fatalf("expected error when config exists")
	}
	if _, err := WriteDefault(path, true); err != nil {
		t.Fatalf("expected overwrite to succeed: %v", err)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(strings.TrimSpace(content)+"\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
