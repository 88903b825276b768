package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("DATABASE_URL", "postgresql://localhost:5432/uploads")
	t.Setenv("CTC_NUMBERS_ENDPOINT", "http://localhost:8090/get-uploaded-ctc-numbers")
	t.Setenv("ELICITATION_NUMBERS_ENDPOINT", "http://localhost:8091/get-uploaded-elicitation-numbers")
}

func TestLoad_Defaults(t *testing.T) {
	validEnv(t)

	cfg := Load()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if cfg.Port != 3000 {
		t.Errorf("expected default port 3000, got %d", cfg.Port)
	}
	if cfg.DedupTimeout != 10*time.Second {
		t.Errorf("expected default dedup timeout 10s, got %s", cfg.DedupTimeout)
	}
	if cfg.PublicDir != "public" {
		t.Errorf("expected default public dir, got %q", cfg.PublicDir)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	validEnv(t)
	t.Setenv("PORT", "9999")
	t.Setenv("DEDUP_TIMEOUT", "1m")
	t.Setenv("OPENSRP_IP", "10.0.0.5")
	t.Setenv("OPENSRP_PORT", "8443")
	t.Setenv("DASHBOARD_USERNAME1", "dash")
	t.Setenv("DASHBOARD_PASSWORD1", "board")

	cfg := Load()
	if cfg.Port != 9999 {
		t.Errorf("port override not applied: %d", cfg.Port)
	}
	if cfg.DedupTimeout != time.Minute {
		t.Errorf("dedup timeout override not applied: %s", cfg.DedupTimeout)
	}
	if got := cfg.OpenSRPBaseURL(); got != "http://10.0.0.5:8443" {
		t.Errorf("unexpected opensrp base url: %q", got)
	}
	if cfg.DashboardUsers["dash"] != "board" {
		t.Errorf("dashboard user not loaded: %v", cfg.DashboardUsers)
	}
}

func TestValidate_MissingSecret(t *testing.T) {
	validEnv(t)
	t.Setenv("JWT_SECRET", "")

	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing JWT_SECRET")
	}
}

func TestValidate_BadEndpoint(t *testing.T) {
	validEnv(t)
	t.Setenv("CTC_NUMBERS_ENDPOINT", "not a url")

	cfg := Load()
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for malformed endpoint URL")
	}
}

func TestLoadFromFile_DashboardUsers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("dashboard_users:\n  - username: extra\n    password: pw\n"), 0644)

	var c Config
	if err := c.LoadFromFile(path); err != nil {
		t.Fatalf("LoadFromFile: %v", err)
	}
	if c.DashboardUsers["extra"] != "pw" {
		t.Errorf("yaml user not merged: %v", c.DashboardUsers)
	}
}

func TestLoadFromFile_MissingPassword(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	os.WriteFile(path, []byte("dashboard_users:\n  - username: extra\n"), 0644)

	var c Config
	if err := c.LoadFromFile(path); err == nil {
		t.Fatal("expected error for user entry without password")
	}
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	var c Config
	if err := c.LoadFromFile("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing file")
	}
}
