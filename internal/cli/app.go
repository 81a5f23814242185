// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/provider"
	"github.com/jeranaias/paperclip/internal/session"
	"github.com/jeranaias/paperclip/internal/storage"
)

// loadConfig loads the config file named by --config (or the default
// location), applies command-line overrides and validates the result.
// The validated config becomes config.Global().
func loadConfig(args Args) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if args.ConfigPath != "" {
		cfg, err = config.LoadFromPath(args.ConfigPath)
	} else {
		cfg, err = config.Load()
	}
	if cfg == nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	if err != nil {
		// Defaults are still usable.
		StderrPrint("%s %v\n", WarningStyle.Render("Warning:"), err)
	}

	applyFlags(cfg, args)
	cfg.Migrate()
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConfig, err)
	}
	config.SetGlobal(cfg)
	return cfg, nil
}

// applyFlags copies command-line overrides onto cfg.
func applyFlags(cfg *config.Config, args Args) {
	if args.ProvidersFile != "" {
		cfg.ProvidersFile = args.ProvidersFile
	}
	if args.Family != "" {
		cfg.PreferredFamily = args.Family
	}
	if args.Clipboard != "" {
		cfg.Clipboard.Backend = args.Clipboard
	}
	if args.ClipboardFile != "" {
		cfg.Clipboard.File = args.ClipboardFile
		if args.Clipboard == "" {
			cfg.Clipboard.Backend = "file"
		}
	}
}

// openSessions opens the configured session backend.
func openSessions(cfg *config.Config) (session.Backend, error) {
	backend, err := storage.Open(cfg.Session)
	if err != nil {
		return nil, NewCommandError("sessions", "open", "cannot open session storage", err)
	}
	return backend, nil
}

// providerData converts descriptors into their masked output form.
func providerData(descs []provider.Descriptor) []ProviderData {
	out := make([]ProviderData, len(descs))
	for i, d := range descs {
		out[i] = ProviderData{
			Rank:      i + 1,
			ID:        d.ID,
			Name:      d.Name,
			Family:    d.Family,
			Protocol:  d.Protocol().String(),
			Model:     d.Model,
			Priority:  d.Priority,
			Enabled:   d.Enabled,
			APIKey:    d.MaskedKey(),
			Endpoint:  d.Endpoint(),
			MaxTokens: d.MaxTokens,
		}
	}
	return out
}
