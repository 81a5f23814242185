// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"
)

// isolateHome points the home directory at a temp dir so Load never reads
// the developer's real ~/.paperclip.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	return home
}

func TestConfig_Default(t *testing.T) {
	isolateHome(t)
	cfg := Default()
	cfg.SetDefaults()

	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate, got %v", err)
	}
	if cfg.PreferredFamily != "openrouter" {
		t.Errorf("PreferredFamily = %q, want openrouter", cfg.PreferredFamily)
	}
	if cfg.RequestTimeout() != 90*time.Second {
		t.Errorf("RequestTimeout = %v, want 90s", cfg.RequestTimeout())
	}
	if cfg.PollInterval() != 350*time.Millisecond {
		t.Errorf("PollInterval = %v, want 350ms", cfg.PollInterval())
	}
	if cfg.Dispatch.HistoryLimit != 30 {
		t.Errorf("HistoryLimit = %d, want 30", cfg.Dispatch.HistoryLimit)
	}
	if !cfg.Dispatch.Cooldown {
		t.Error("Cooldown should default to true")
	}
	if !strings.HasSuffix(cfg.ProvidersFile, filepath.Join(".paperclip", "providers.json")) {
		t.Errorf("ProvidersFile = %q, want it under .paperclip", cfg.ProvidersFile)
	}
}

func TestConfig_Validate(t *testing.T) {
	isolateHome(t)

	tests := []struct {
		name   string
		mutate func(c *Config)
		field  string
	}{
		{"bad clipboard backend", func(c *Config) { c.Clipboard.Backend = "x11" }, "clipboard.backend"},
		{"file backend without file", func(c *Config) { c.Clipboard.Backend = "file" }, "clipboard.file"},
		{"notify on system clipboard", func(c *Config) { c.Clipboard.Watch = "notify" }, "clipboard.watch"},
		{"poll too fast", func(c *Config) { c.Clipboard.PollIntervalMs = 1 }, "clipboard.poll_interval_ms"},
		{"zero timeout", func(c *Config) { c.Dispatch.RequestTimeoutSecs = 0 }, "dispatch.request_timeout_secs"},
		{"negative history", func(c *Config) { c.Dispatch.HistoryLimit = -1 }, "dispatch.history_limit"},
		{"hot temperature", func(c *Config) { c.Dispatch.Temperature = 3 }, "dispatch.temperature"},
		{"bad session backend", func(c *Config) { c.Session.Backend = "redis" }, "session.backend"},
		{"bad log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.SetDefaults()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			var verrs ValidateErrors
			if !errors.As(err, &verrs) {
				t.Fatalf("expected ValidateErrors, got %T", err)
			}
			found := false
			for _, v := range verrs {
				if v.Field == tt.field {
					found = true
				}
			}
			if !found {
				t.Errorf("expected error on field %s, got %v", tt.field, err)
			}
		})
	}
}

func TestLoadFromPath_TOMLKeepsDefaultsForMissingKeys(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
preferred_family = "gem"

[dispatch]
request_timeout_secs = 30
cooldown = false

[session]
backend = "sqlite3"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}

	if cfg.PreferredFamily != "gemini" {
		t.Errorf("PreferredFamily = %q, want gemini (migrated from gem)", cfg.PreferredFamily)
	}
	if cfg.Dispatch.RequestTimeoutSecs != 30 {
		t.Errorf("RequestTimeoutSecs = %d, want 30", cfg.Dispatch.RequestTimeoutSecs)
	}
	if cfg.Dispatch.Cooldown {
		t.Error("cooldown = false in file should stick")
	}
	if cfg.Dispatch.HistoryLimit != 30 {
		t.Errorf("HistoryLimit = %d, want default 30", cfg.Dispatch.HistoryLimit)
	}
	if cfg.Session.Backend != "sqlite" {
		t.Errorf("Session.Backend = %q, want sqlite", cfg.Session.Backend)
	}

	// Loading must tighten permissions on a file that may hold keys.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0600 && os.PathSeparator == '/' {
		t.Errorf("config permissions = %o, want 600", perm)
	}
}

func TestLoadFromPath_JSON(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.json")
	content := `{"clipboard": {"backend": "file", "file": "/tmp/clip.txt", "watch": "notify"}}`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if cfg.Clipboard.Backend != "file" || cfg.Clipboard.Watch != "notify" {
		t.Errorf("clipboard = %+v", cfg.Clipboard)
	}
	if cfg.Clipboard.PollIntervalMs != 350 {
		t.Errorf("PollIntervalMs = %d, want default 350", cfg.Clipboard.PollIntervalMs)
	}
}

func TestLoadFromPath_Invalid(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[session]\nbackend = \"redis\"\n"), 0600); err != nil {
		t.Fatal(err)
	}

	_, err := LoadFromPath(path)
	if err == nil || !strings.Contains(err.Error(), "session.backend") {
		t.Fatalf("expected session.backend validation error, got %v", err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	isolateHome(t)
	t.Setenv("PAPERCLIP_FAMILY", "gemini")
	t.Setenv("PAPERCLIP_CLIPBOARD", "file")
	t.Setenv("PAPERCLIP_CLIPBOARD_FILE", "/tmp/paperclip.txt")
	t.Setenv("PAPERCLIP_TIMEOUT", "45s")
	t.Setenv("PAPERCLIP_LOG_LEVEL", "debug")

	cfg := Default()
	cfg.ApplyEnvOverrides()

	if cfg.PreferredFamily != "gemini" {
		t.Errorf("PreferredFamily = %q", cfg.PreferredFamily)
	}
	if cfg.Clipboard.Backend != "file" || cfg.Clipboard.File != "/tmp/paperclip.txt" {
		t.Errorf("clipboard = %+v", cfg.Clipboard)
	}
	if cfg.Dispatch.RequestTimeoutSecs != 45 {
		t.Errorf("RequestTimeoutSecs = %d, want 45", cfg.Dispatch.RequestTimeoutSecs)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestSaveTOML_LoadsBack(t *testing.T) {
	isolateHome(t)
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.SetDefaults()
	cfg.PreferredFamily = "gemini"
	cfg.Dispatch.MinIntervalMs = 0

	if err := SaveTOML(cfg, path); err != nil {
		t.Fatalf("SaveTOML: %v", err)
	}
	loaded, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("LoadFromPath: %v", err)
	}
	if loaded.PreferredFamily != "gemini" {
		t.Errorf("PreferredFamily = %q", loaded.PreferredFamily)
	}
	if loaded.MinInterval() != 0 {
		t.Errorf("MinInterval = %v, want 0 (disabled)", loaded.MinInterval())
	}
}

func TestNormalizeFamily(t *testing.T) {
	cases := map[string]string{
		"gem":        "gemini",
		" Gemini ":   "gemini",
		"openr":      "openrouter",
		"OpenRouter": "openrouter",
		"mistral":    "mistral",
	}
	for in, want := range cases {
		if got := NormalizeFamily(in); got != want {
			t.Errorf("NormalizeFamily(%q) = %q, want %q", in, got, want)
		}
	}
}

// TestConfig_ConcurrentAccess tests that Global() and SetGlobal() can be
// called concurrently. Run with: go test -race ./internal/config/
func TestConfig_ConcurrentAccess(t *testing.T) {
	isolateHome(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := Default()
			c.SetDefaults()
			SetGlobal(c)
		}()
		go func() {
			defer wg.Done()
			if Global() == nil {
				t.Error("Global() returned nil")
			}
		}()
	}
	wg.Wait()
}

func TestConfig_SetGlobalWins(t *testing.T) {
	isolateHome(t)
	ResetGlobalForTesting()
	defer ResetGlobalForTesting()

	c := Default()
	c.PreferredFamily = "gemini"
	SetGlobal(c)

	if got := Global().PreferredFamily; got != "gemini" {
		t.Errorf("Global().PreferredFamily = %q, want gemini", got)
	}
}
