package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/a3tai/mcp-pdf-forms/internal/form"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Mode != "stdio" {
		t.Errorf("Expected default mode to be 'stdio', got '%s'", cfg.Mode)
	}
	if cfg.Host != "127.0.0.1" {
		t.Errorf("Expected default host to be '127.0.0.1', got '%s'", cfg.Host)
	}
	if cfg.Port != 8080 {
		t.Errorf("Expected default port to be 8080, got %d", cfg.Port)
	}
	if cfg.ServerName != "mcp-pdf-forms" {
		t.Errorf("Expected default server name to be 'mcp-pdf-forms', got '%s'", cfg.ServerName)
	}
	if cfg.MaxFileSize != 100*1024*1024 {
		t.Errorf("Expected default max file size to be 100MB, got %d", cfg.MaxFileSize)
	}
	if cfg.MaxSessions != DefaultMaxSessions {
		t.Errorf("Expected default max sessions to be %d, got %d", DefaultMaxSessions, cfg.MaxSessions)
	}
	if !cfg.Verify {
		t.Error("Expected verification to be on by default")
	}

	currentDir, _ := os.Getwd()
	if cfg.Directory != currentDir {
		t.Errorf("Expected default directory to be '%s', got '%s'", currentDir, cfg.Directory)
	}

	if got, want := cfg.Policy(), form.DefaultPolicy(); got != want {
		t.Errorf("Policy() = %+v, want %+v", got, want)
	}
}

func TestConfigValidate(t *testing.T) {
	tempDir := t.TempDir()
	valid := func(mutate func(*Config)) *Config {
		cfg := DefaultConfig()
		cfg.Directory = tempDir
		mutate(cfg)
		return cfg
	}

	tests := []struct {
		name    string
		config  *Config
		wantErr string
	}{
		{"valid stdio", valid(func(*Config) {}), ""},
		{"valid server", valid(func(c *Config) { c.Mode = ModeServer; c.Port = 9090 }), ""},
		{"invalid mode", valid(func(c *Config) { c.Mode = "grpc" }), "mode must be"},
		{"port too high", valid(func(c *Config) { c.Mode = ModeServer; c.Port = 70000 }), "port must be"},
		{"port ignored in stdio", valid(func(c *Config) { c.Port = 0 }), ""},
		{"empty directory", valid(func(c *Config) { c.Directory = "" }), "cannot be empty"},
		{"zero file size", valid(func(c *Config) { c.MaxFileSize = 0 }), "file size"},
		{"negative sessions", valid(func(c *Config) { c.MaxSessions = -1 }), "sessions"},
		{"negative parallel", valid(func(c *Config) { c.Parallel = -2 }), "parallel"},
		{"bad log level", valid(func(c *Config) { c.LogLevel = "trace" }), "invalid log level"},
		{"zero min width", valid(func(c *Config) { c.MinTextWidth = 0 }), "field policy"},
		{
			"default below minimum",
			valid(func(c *Config) { c.DefaultCheckboxSize = c.MinCheckboxSize / 2 }),
			"field policy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfigValidateDirectoryCreation(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "workspace")
	cfg := DefaultConfig()
	cfg.Directory = dir

	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("workspace was not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("workspace is not a directory")
	}
}

func TestConfigPolicy(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MinTextWidth = 30
	cfg.MinTextHeight = 10
	cfg.MinCheckboxSize = 8
	cfg.DefaultTextWidth = 200
	cfg.DefaultTextHeight = 20
	cfg.DefaultCheckboxSize = 14

	p := cfg.Policy()
	if p.MinTextWidth != 30 || p.MinTextHeight != 10 || p.MinCheckboxSize != 8 {
		t.Errorf("Policy() minimums = %+v", p)
	}
	if p.DefaultTextSize.Width != 200 || p.DefaultTextSize.Height != 20 {
		t.Errorf("Policy() DefaultTextSize = %+v", p.DefaultTextSize)
	}
	if p.DefaultCheckboxSize != 14 {
		t.Errorf("Policy() DefaultCheckboxSize = %v", p.DefaultCheckboxSize)
	}
	if p.HistoryLimit != form.DefaultPolicy().HistoryLimit {
		t.Errorf("Policy() HistoryLimit = %d, want default", p.HistoryLimit)
	}

	opts := cfg.SessionOptions()
	if opts.Policy != p {
		t.Errorf("SessionOptions().Policy = %+v, want %+v", opts.Policy, p)
	}
	if opts.MaxFileSize != cfg.MaxFileSize || opts.Verify != cfg.Verify {
		t.Errorf("SessionOptions() = %+v", opts)
	}
}

func TestConfigAddress(t *testing.T) {
	cfg := &Config{Host: "localhost", Port: 3000}
	if got := cfg.Address(); got != "localhost:3000" {
		t.Errorf("Address() = %v, want %v", got, "localhost:3000")
	}
}

func TestConfigIsDebug(t *testing.T) {
	for level, want := range map[string]bool{"debug": true, "info": false, "warn": false, "error": false} {
		cfg := &Config{LogLevel: level}
		if got := cfg.IsDebug(); got != want {
			t.Errorf("IsDebug() with %s = %v, want %v", level, got, want)
		}
	}
}

func TestConfigString(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Directory = "/tmp/forms"
	s := cfg.String()
	for _, want := range []string{"Mode: stdio", "Directory: /tmp/forms", "Verify: true", "MaxSessions: 16"} {
		if !strings.Contains(s, want) {
			t.Errorf("String() = %q, missing %q", s, want)
		}
	}
}

func TestConfigModes(t *testing.T) {
	cfg := &Config{Mode: ModeServer}
	if !cfg.IsServerMode() || cfg.IsStdioMode() {
		t.Error("server mode not reported")
	}
	cfg.Mode = ModeStdio
	if cfg.IsServerMode() || !cfg.IsStdioMode() {
		t.Error("stdio mode not reported")
	}
}
