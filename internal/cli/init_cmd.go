// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"os"

	"github.com/jeranaias/paperclip/internal/config"
)

// HandleInit writes a default config.toml. An existing file is kept
// unless --force is given.
func HandleInit(args Args) error {
	path := args.ConfigPath
	if path == "" {
		p, err := config.ConfigPathTOML()
		if err != nil {
			return NewCommandError("init", "locate config", "no home directory", err)
		}
		path = p
	}
	path = config.ExpandPath(path)

	if _, err := os.Stat(path); err == nil && !args.Force {
		return &ValidationError{
			Field:   "config",
			Value:   path,
			Reason:  "file already exists",
			Example: "paperclip init --force",
		}
	}
	if err := config.EnsureConfigDir(); err != nil {
		return NewCommandError("init", "create directory", "cannot create config directory", err)
	}

	cfg := config.Default()
	cfg.SetDefaults()
	if err := config.SaveTOML(cfg, path); err != nil {
		return NewCommandError("init", "write config", path, err)
	}

	fmt.Println(SuccessStyle.Render("Wrote"), path)
	fmt.Println(DimStyle.Render("Add your providers to " + cfg.ProvidersFile + ", for example:"))
	fmt.Println(exampleProviders)
	return nil
}

const exampleProviders = `[
  {"id": "gemini-flash", "base_url": "https://generativelanguage.googleapis.com/v1beta",
   "api_key": "...", "model": "gemini-2.0-flash", "priority": 1, "enabled": true},
  {"id": "openrouter", "base_url": "https://openrouter.ai/api/v1",
   "api_key": "...", "model": "deepseek/deepseek-chat", "priority": 2, "enabled": true}
]`
