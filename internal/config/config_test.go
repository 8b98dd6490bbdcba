package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"sceneforge/internal/config"
)

func TestLoadDefaultsUseEnvOracleKeyAndExpandPaths(t *testing.T) {
	t.Setenv("SCENEFORGE_ORACLE_API_KEY", "test-key")
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantData := filepath.Join(tempHome, ".local", "share", "sceneforge")
	if cfg.Paths.DataDir != wantData {
		t.Fatalf("unexpected data dir: got %q want %q", cfg.Paths.DataDir, wantData)
	}
	if cfg.Paths.APIBind != "127.0.0.1:7643" {
		t.Fatalf("unexpected api bind: %q", cfg.Paths.APIBind)
	}
	if cfg.Oracle.APIKey != "test-key" {
		t.Fatalf("expected oracle key from env, got %q", cfg.Oracle.APIKey)
	}
	if cfg.Oracle.BaseURL != config.Default().Oracle.BaseURL {
		t.Fatalf("unexpected oracle base url: %q", cfg.Oracle.BaseURL)
	}
	if cfg.Orchestrator.MaxRevisionRetries != 3 {
		t.Fatalf("unexpected revision retry default: %d", cfg.Orchestrator.MaxRevisionRetries)
	}
	if cfg.Orchestrator.DefaultCrossProjectPolicy != "fail" {
		t.Fatalf("unexpected policy default: %q", cfg.Orchestrator.DefaultCrossProjectPolicy)
	}
	if cfg.DatabasePath() != filepath.Join(wantData, "sceneforge.db") {
		t.Fatalf("unexpected database path: %q", cfg.DatabasePath())
	}
}

func TestLoadParsesExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := strings.Join([]string{
		"[paths]",
		`data_dir = "` + filepath.Join(dir, "data") + `"`,
		`log_dir = "` + filepath.Join(dir, "logs") + `"`,
		"[oracle]",
		`api_key = "file-key"`,
		"timeout_seconds = 30",
		"[orchestrator]",
		"max_revision_retries = 7",
		`default_cross_project_policy = "warn"`,
		"[logging]",
		`format = "json"`,
		`level = "debug"`,
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists || resolved != path {
		t.Fatalf("expected config at %q to be used, got %q exists=%v", path, resolved, exists)
	}
	if cfg.Oracle.APIKey != "file-key" {
		t.Fatalf("unexpected oracle key: %q", cfg.Oracle.APIKey)
	}
	if cfg.Oracle.TimeoutSeconds != 30 {
		t.Fatalf("unexpected oracle timeout: %d", cfg.Oracle.TimeoutSeconds)
	}
	if cfg.Orchestrator.MaxRevisionRetries != 7 {
		t.Fatalf("unexpected revision retries: %d", cfg.Orchestrator.MaxRevisionRetries)
	}
	if cfg.Orchestrator.DefaultCrossProjectPolicy != "warn" {
		t.Fatalf("unexpected policy: %q", cfg.Orchestrator.DefaultCrossProjectPolicy)
	}
	if cfg.Logging.Format != "json" || cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected logging config: %+v", cfg.Logging)
	}
}

func TestValidateRejectsBadPolicy(t *testing.T) {
	cfg := config.Default()
	cfg.Orchestrator.DefaultCrossProjectPolicy = "explode"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad policy")
	}
}

func TestValidateRejectsBadLogFormat(t *testing.T) {
	cfg := config.Default()
	cfg.Logging.Format = "xml"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error for bad log format")
	}
}

func TestCreateSampleWritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "config.toml")
	if err := config.CreateSample(path); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sample: %v", err)
	}
	if !strings.Contains(string(data), "[oracle]") {
		t.Fatal("expected sample to contain oracle section")
	}
}
