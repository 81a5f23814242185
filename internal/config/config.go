// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for paperclip.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// Configuration file locations (in order of precedence):
//   - ~/.paperclip/config.toml
//   - ~/.paperclip/config.json
//   - Built-in defaults
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/jeranaias/paperclip/internal/util"
)

// =============================================================================
// CONFIG STRUCTURES
// =============================================================================

// Config represents the complete paperclip configuration.
type Config struct {
	Version string `toml:"version" json:"version"`

	// ProvidersFile is the provider descriptor file (.json, .toml, .yaml).
	ProvidersFile string `toml:"providers_file" json:"providers_file"`

	// PreferredFamily is the family biasing candidate order at startup.
	// Changed at runtime by model.gem / model.openr.
	PreferredFamily string `toml:"preferred_family" json:"preferred_family"`

	Clipboard ClipboardConfig `toml:"clipboard" json:"clipboard"`
	Dispatch  DispatchConfig  `toml:"dispatch" json:"dispatch"`
	Session   SessionConfig   `toml:"session" json:"session"`
	Log       LogConfig       `toml:"log" json:"log"`
}

// ClipboardConfig selects the clipboard backend and how changes are observed.
type ClipboardConfig struct {
	// Backend is "system" (OS clipboard) or "file" (a plain text file).
	Backend string `toml:"backend" json:"backend"`

	// File is the backing file when Backend is "file".
	File string `toml:"file" json:"file"`

	// Watch is "poll" or "notify". Notify needs the file backend.
	Watch string `toml:"watch" json:"watch"`

	PollIntervalMs int `toml:"poll_interval_ms" json:"poll_interval_ms"`
}

// DispatchConfig controls requests sent to providers.
type DispatchConfig struct {
	RequestTimeoutSecs int     `toml:"request_timeout_secs" json:"request_timeout_secs"`
	HistoryLimit       int     `toml:"history_limit" json:"history_limit"`
	SystemPrompt       string  `toml:"system_prompt" json:"system_prompt"`
	MaxTokens          int     `toml:"max_tokens" json:"max_tokens"`
	Temperature        float64 `toml:"temperature" json:"temperature"`

	// Cooldown skips a rate-limited provider until its retry delay passes.
	Cooldown              bool `toml:"cooldown" json:"cooldown"`
	DefaultRetryAfterSecs int  `toml:"default_retry_after_secs" json:"default_retry_after_secs"`

	// MinIntervalMs drops prompts arriving sooner than this after the
	// previous dispatch. 0 disables.
	MinIntervalMs int `toml:"min_interval_ms" json:"min_interval_ms"`
}

// SessionConfig selects where conversations are persisted.
type SessionConfig struct {
	// Backend is "json" (one file per session) or "sqlite".
	Backend  string `toml:"backend" json:"backend"`
	Dir      string `toml:"dir" json:"dir"`
	Database string `toml:"database" json:"database"`
}

// LogConfig configures the agent event log.
type LogConfig struct {
	Level  string `toml:"level" json:"level"`
	Format string `toml:"format" json:"format"`
	// File receives the log while the operator console is active.
	File string `toml:"file" json:"file"`
}

// DefaultSystemPrompt is prepended to every request.
const DefaultSystemPrompt = "You are a helpful coding assistant. Provide complete, detailed responses without truncating or summarizing. " +
	"When asked for code, return the full code with explanations if needed. " +
	"Questions are mostly about hard coding, debugging and object oriented programming problems. " +
	"Solutions must handle edge cases and use efficient algorithms in a clean, readable style."

// =============================================================================
// DEFAULT CONFIGURATION
// =============================================================================

// Default returns a Config with sensible default values.
// Paths are left empty and resolved against ConfigDir by SetDefaults.
func Default() *Config {
	return &Config{
		Version:         "1.0.0",
		PreferredFamily: "openrouter",

		Clipboard: ClipboardConfig{
			Backend:        "system",
			Watch:          "poll",
			PollIntervalMs: 350,
		},

		Dispatch: DispatchConfig{
			RequestTimeoutSecs:    90,
			HistoryLimit:          30,
			SystemPrompt:          DefaultSystemPrompt,
			MaxTokens:             8192,
			Temperature:           0.0,
			Cooldown:              true,
			DefaultRetryAfterSecs: 10,
			MinIntervalMs:         2000,
		},

		Session: SessionConfig{
			Backend: "json",
		},

		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// =============================================================================
// DURATION ACCESSORS
// =============================================================================

// PollInterval returns the clipboard polling interval.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Clipboard.PollIntervalMs) * time.Millisecond
}

// RequestTimeout returns the per-attempt dispatch timeout.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.Dispatch.RequestTimeoutSecs) * time.Second
}

// DefaultRetryAfter returns the cooldown used when a 429 carries no delay.
func (c *Config) DefaultRetryAfter() time.Duration {
	return time.Duration(c.Dispatch.DefaultRetryAfterSecs) * time.Second
}

// MinInterval returns the minimum spacing between dispatches.
func (c *Config) MinInterval() time.Duration {
	return time.Duration(c.Dispatch.MinIntervalMs) * time.Millisecond
}

// =============================================================================
// CONFIG PATH HELPERS
// =============================================================================

// ConfigDir returns the paperclip configuration directory path.
func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine home directory: %w", err)
	}
	return filepath.Join(home, ".paperclip"), nil
}

// ConfigPathTOML returns the path to the TOML config file.
func ConfigPathTOML() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// ConfigPathJSON returns the path to the JSON config file.
func ConfigPathJSON() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// EnsureConfigDir ensures the config directory exists.
func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}

// ExpandPath expands a leading "~" to the user's home directory.
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") || strings.HasPrefix(path, `~\`) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}

// ensureSecurePermissions forces 0600 on config files since they may hold
// API keys.
func ensureSecurePermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	mode := info.Mode().Perm()
	if mode != 0600 {
		if err := os.Chmod(path, 0600); err != nil {
			return fmt.Errorf("failed to fix insecure permissions (was %o): %w", mode, err)
		}
	}
	return nil
}

// =============================================================================
// LOAD FUNCTIONS
// =============================================================================

// Load loads configuration from the config file(s).
// Tries TOML first, then JSON, and falls back to defaults.
// Environment overrides are applied last.
func Load() (*Config, error) {
	var loadErr error

	if tomlPath, err := ConfigPathTOML(); err == nil {
		if _, statErr := os.Stat(tomlPath); statErr == nil {
			cfg := Default()
			if err := LoadTOML(cfg, tomlPath); err != nil {
				loadErr = fmt.Errorf("failed to load TOML config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	if jsonPath, err := ConfigPathJSON(); err == nil {
		if _, statErr := os.Stat(jsonPath); statErr == nil {
			cfg := Default()
			if err := LoadJSON(cfg, jsonPath); err != nil {
				loadErr = fmt.Errorf("failed to load JSON config: %w", err)
			} else {
				return finish(cfg)
			}
		}
	}

	cfg, err := finish(Default())
	if err != nil {
		return nil, err
	}
	// Defaults are usable; loadErr is informational.
	return cfg, loadErr
}

// LoadFromPath loads configuration from a specific file path with full validation.
func LoadFromPath(path string) (*Config, error) {
	cfg := Default()
	path = ExpandPath(path)

	if strings.HasSuffix(strings.ToLower(path), ".json") {
		if err := LoadJSON(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load JSON config from %s: %w", path, err)
		}
	} else {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, fmt.Errorf("failed to load TOML config from %s: %w", path, err)
		}
	}
	return finish(cfg)
}

// finish runs the common post-load pipeline.
func finish(cfg *Config) (*Config, error) {
	cfg.ApplyEnvOverrides()
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// LoadTOML decodes a TOML file over cfg. Keys absent from the file keep
// their current values.
func LoadTOML(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to decode TOML file: %w", err)
	}
	return nil
}

// LoadJSON decodes a JSON file over cfg.
func LoadJSON(cfg *Config, path string) error {
	if err := ensureSecurePermissions(path); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not ensure secure permissions on %s: %v\n", path, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to decode JSON file: %w", err)
	}
	return nil
}

// =============================================================================
// SAVE FUNCTIONS
// =============================================================================

// SaveTOML writes the configuration to a TOML file with 0600 permissions.
func SaveTOML(cfg *Config, path string) error {
	var buf strings.Builder
	buf.WriteString("# paperclip configuration file\n")
	buf.WriteString("# Generated by paperclip init - edit with care\n\n")

	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := util.AtomicWriteFile(path, []byte(buf.String()), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// =============================================================================
// VALIDATION
// =============================================================================

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if strings.TrimSpace(c.PreferredFamily) == "" {
		errs = append(errs, ValidationError{Field: "preferred_family", Message: "must not be empty"})
	}
	if c.ProvidersFile == "" {
		errs = append(errs, ValidationError{Field: "providers_file", Message: "must not be empty"})
	}

	// Clipboard
	switch c.Clipboard.Backend {
	case "system":
	case "file":
		if c.Clipboard.File == "" {
			errs = append(errs, ValidationError{Field: "clipboard.file", Message: "required when clipboard.backend is 'file'"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "clipboard.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: system, file", c.Clipboard.Backend),
		})
	}
	switch c.Clipboard.Watch {
	case "poll":
	case "notify":
		if c.Clipboard.Backend != "file" {
			errs = append(errs, ValidationError{Field: "clipboard.watch", Message: "'notify' requires clipboard.backend = 'file'"})
		}
	default:
		errs = append(errs, ValidationError{
			Field:   "clipboard.watch",
			Message: fmt.Sprintf("invalid watch mode '%s', must be one of: poll, notify", c.Clipboard.Watch),
		})
	}
	if c.Clipboard.PollIntervalMs < 50 || c.Clipboard.PollIntervalMs > 10000 {
		errs = append(errs, ValidationError{
			Field:   "clipboard.poll_interval_ms",
			Message: fmt.Sprintf("must be between 50 and 10000, got %d", c.Clipboard.PollIntervalMs),
		})
	}

	// Dispatch
	if c.Dispatch.RequestTimeoutSecs <= 0 || c.Dispatch.RequestTimeoutSecs > 600 {
		errs = append(errs, ValidationError{
			Field:   "dispatch.request_timeout_secs",
			Message: fmt.Sprintf("must be between 1 and 600, got %d", c.Dispatch.RequestTimeoutSecs),
		})
	}
	if c.Dispatch.HistoryLimit < 0 {
		errs = append(errs, ValidationError{Field: "dispatch.history_limit", Message: "must not be negative"})
	}
	if c.Dispatch.MaxTokens < 0 {
		errs = append(errs, ValidationError{Field: "dispatch.max_tokens", Message: "must not be negative"})
	}
	if c.Dispatch.Temperature < 0 || c.Dispatch.Temperature > 2 {
		errs = append(errs, ValidationError{
			Field:   "dispatch.temperature",
			Message: fmt.Sprintf("must be between 0 and 2, got %g", c.Dispatch.Temperature),
		})
	}
	if c.Dispatch.DefaultRetryAfterSecs < 0 {
		errs = append(errs, ValidationError{Field: "dispatch.default_retry_after_secs", Message: "must not be negative"})
	}
	if c.Dispatch.MinIntervalMs < 0 {
		errs = append(errs, ValidationError{Field: "dispatch.min_interval_ms", Message: "must not be negative"})
	}

	// Session
	switch c.Session.Backend {
	case "json", "sqlite":
	default:
		errs = append(errs, ValidationError{
			Field:   "session.backend",
			Message: fmt.Sprintf("invalid backend '%s', must be one of: json, sqlite", c.Session.Backend),
		})
	}

	// Log
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.level",
			Message: fmt.Sprintf("invalid level '%s', must be one of: debug, info, warn, error", c.Log.Level),
		})
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, ValidationError{
			Field:   "log.format",
			Message: fmt.Sprintf("invalid format '%s', must be one of: text, json", c.Log.Format),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SetDefaults fills empty string fields and resolves paths under ConfigDir.
func (c *Config) SetDefaults() {
	defaults := Default()

	if c.Version == "" {
		c.Version = defaults.Version
	}
	if c.PreferredFamily == "" {
		c.PreferredFamily = defaults.PreferredFamily
	}
	if c.Clipboard.Backend == "" {
		c.Clipboard.Backend = defaults.Clipboard.Backend
	}
	if c.Clipboard.Watch == "" {
		c.Clipboard.Watch = defaults.Clipboard.Watch
	}
	if c.Dispatch.SystemPrompt == "" {
		c.Dispatch.SystemPrompt = defaults.Dispatch.SystemPrompt
	}
	if c.Session.Backend == "" {
		c.Session.Backend = defaults.Session.Backend
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	dir, err := ConfigDir()
	if err != nil {
		dir = "."
	}
	if c.ProvidersFile == "" {
		c.ProvidersFile = filepath.Join(dir, "providers.json")
	}
	if c.Session.Dir == "" {
		c.Session.Dir = filepath.Join(dir, "sessions")
	}
	if c.Session.Database == "" {
		c.Session.Database = filepath.Join(dir, "sessions.db")
	}
	if c.Log.File == "" {
		c.Log.File = filepath.Join(dir, "paperclip.log")
	}

	c.ProvidersFile = ExpandPath(c.ProvidersFile)
	c.Clipboard.File = ExpandPath(c.Clipboard.File)
	c.Session.Dir = ExpandPath(c.Session.Dir)
	c.Session.Database = ExpandPath(c.Session.Database)
	c.Log.File = ExpandPath(c.Log.File)
}

// Migrate normalizes aliases accepted from hand-written files.
func (c *Config) Migrate() {
	c.PreferredFamily = NormalizeFamily(c.PreferredFamily)
	c.Clipboard.Backend = strings.ToLower(strings.TrimSpace(c.Clipboard.Backend))
	c.Clipboard.Watch = strings.ToLower(strings.TrimSpace(c.Clipboard.Watch))
	c.Session.Backend = strings.ToLower(strings.TrimSpace(c.Session.Backend))
	c.Log.Level = strings.ToLower(strings.TrimSpace(c.Log.Level))
	c.Log.Format = strings.ToLower(strings.TrimSpace(c.Log.Format))

	switch c.Session.Backend {
	case "sqlite3", "db":
		c.Session.Backend = "sqlite"
	case "file", "files":
		c.Session.Backend = "json"
	}
	if c.Log.Level == "warning" {
		c.Log.Level = "warn"
	}
}

// NormalizeFamily maps the short operator spellings onto family names.
func NormalizeFamily(family string) string {
	f := strings.ToLower(strings.TrimSpace(family))
	switch f {
	case "gem", "google":
		return "gemini"
	case "openr", "or":
		return "openrouter"
	}
	return f
}

// =============================================================================
// ENVIRONMENT OVERRIDES
// =============================================================================

// ApplyEnvOverrides applies environment variable overrides to the config.
//
// Supported environment variables:
//   - PAPERCLIP_PROVIDERS: overrides providers_file
//   - PAPERCLIP_FAMILY: overrides preferred_family
//   - PAPERCLIP_CLIPBOARD: overrides clipboard.backend
//   - PAPERCLIP_CLIPBOARD_FILE: overrides clipboard.file
//   - PAPERCLIP_SESSION_BACKEND: overrides session.backend
//   - PAPERCLIP_TIMEOUT: overrides dispatch.request_timeout_secs
//   - PAPERCLIP_LOG_LEVEL: overrides log.level
func (c *Config) ApplyEnvOverrides() {
	if v := os.Getenv("PAPERCLIP_PROVIDERS"); v != "" {
		c.ProvidersFile = v
	}
	if v := os.Getenv("PAPERCLIP_FAMILY"); v != "" {
		c.PreferredFamily = v
	}
	if v := os.Getenv("PAPERCLIP_CLIPBOARD"); v != "" {
		c.Clipboard.Backend = v
	}
	if v := os.Getenv("PAPERCLIP_CLIPBOARD_FILE"); v != "" {
		c.Clipboard.File = v
	}
	if v := os.Getenv("PAPERCLIP_SESSION_BACKEND"); v != "" {
		c.Session.Backend = v
	}
	if v := os.Getenv("PAPERCLIP_TIMEOUT"); v != "" {
		if secs, err := strconv.Atoi(v); err == nil {
			c.Dispatch.RequestTimeoutSecs = secs
		} else if d, err := time.ParseDuration(v); err == nil {
			c.Dispatch.RequestTimeoutSecs = int(d.Seconds())
		}
	}
	if v := os.Getenv("PAPERCLIP_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Clone returns a deep copy of the configuration.
func (c *Config) Clone() *Config {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// =============================================================================
// SINGLETON PATTERN (THREAD-SAFE)
// =============================================================================

var (
	globalConfig     *Config
	globalConfigOnce sync.Once
	globalConfigMu   sync.RWMutex
)

// Global returns the global configuration instance.
// Loads configuration on first access. Thread-safe.
func Global() *Config {
	globalConfigOnce.Do(func() {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: %v (using defaults)\n", err)
		}
		if cfg == nil {
			cfg = Default()
			cfg.SetDefaults()
		}
		globalConfigMu.Lock()
		if globalConfig == nil {
			globalConfig = cfg
		}
		globalConfigMu.Unlock()
	})

	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	return globalConfig
}

// SetGlobal sets the global configuration instance. Thread-safe.
func SetGlobal(cfg *Config) {
	// Consume the Once so a later Global() does not overwrite cfg.
	globalConfigOnce.Do(func() {})
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// ResetGlobalForTesting resets the global config state for testing.
func ResetGlobalForTesting() {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = nil
	globalConfigOnce = sync.Once{}
}
