// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides unified configuration loading and management for paperclip.
//
// Supports both TOML and JSON configuration formats, with sensible defaults,
// environment variable overrides, and validation.
//
// # Key Types
//
//   - Config: main configuration structure
//   - ClipboardConfig: clipboard backend and watch mode
//   - DispatchConfig: timeouts, history replay, cooldown and debounce
//   - SessionConfig: session persistence backend
//   - LogConfig: agent event log
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (PAPERCLIP_*)
//   - ~/.paperclip/config.toml
//   - ~/.paperclip/config.json
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    log.Fatal(err)
//	}
//	timeout := cfg.RequestTimeout()
package config
