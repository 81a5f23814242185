// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status_cmd.go - status, providers and version commands.
package cli

import (
	"fmt"
	"runtime"

	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/provider"
)

// HandleStatus prints the effective configuration and provider order.
func HandleStatus(args Args) error {
	return OutputJSON(args.JSON, "status", func() (interface{}, error) {
		cfg, err := loadConfig(args)
		if err != nil {
			return nil, err
		}
		data := StatusData{
			Version:         Version,
			ConfigPath:      args.ConfigPath,
			ProvidersFile:   cfg.ProvidersFile,
			PreferredFamily: cfg.PreferredFamily,
			Clipboard:       cfg.Clipboard.Backend,
			Watch:           cfg.Clipboard.Watch,
			SessionBackend:  cfg.Session.Backend,
			SessionDir:      sessionLocation(cfg),
		}
		if data.ConfigPath == "" {
			data.ConfigPath, _ = config.ConfigPathTOML()
		}

		reg, regErr := provider.Load(cfg.ProvidersFile)
		if regErr == nil {
			data.Providers = providerData(reg.OrderedCandidates(cfg.PreferredFamily))
		}
		if backend, err := openSessions(cfg); err == nil {
			if list, err := backend.List(); err == nil {
				data.Sessions = len(list)
			}
			backend.Close()
		}

		if args.JSON {
			if regErr != nil {
				return nil, regErr
			}
			return data, nil
		}

		fmt.Println(TitleStyle.Render("paperclip status"))
		fmt.Println(RenderField("Version:", data.Version))
		fmt.Println(RenderField("Config:", data.ConfigPath))
		fmt.Println(RenderField("Providers file:", data.ProvidersFile))
		fmt.Println(RenderField("Preferred:", dash(data.PreferredFamily)))
		fmt.Println(RenderField("Clipboard:", data.Clipboard+" ("+data.Watch+")"))
		fmt.Println(RenderField("Sessions:", fmt.Sprintf("%d in %s (%s)", data.Sessions, data.SessionDir, data.SessionBackend)))
		fmt.Println(SectionStyle.Render("Candidate order"))
		if regErr != nil {
			fmt.Println(ErrorStyle.Render("Error:"), regErr)
			return nil, regErr
		}
		fmt.Println(formatProviderTable(reg.All(), reg.OrderedCandidates(cfg.PreferredFamily)))
		return data, nil
	})
}

// HandleProviders lists providers. --family previews another order.
func HandleProviders(args Args) error {
	return OutputJSON(args.JSON, "providers", func() (interface{}, error) {
		cfg, err := loadConfig(args)
		if err != nil {
			return nil, err
		}
		reg, err := provider.Load(cfg.ProvidersFile)
		if err != nil {
			return nil, err
		}
		ordered := reg.OrderedCandidates(cfg.PreferredFamily)
		if !args.JSON {
			fmt.Println(formatProviderTable(reg.All(), ordered))
		}
		return providerData(ordered), nil
	})
}

// HandleVersion prints version information.
func HandleVersion(args Args) error {
	if !args.JSON {
		PrintVersion()
		return nil
	}
	return NewJSONResponse("version", VersionData{
		Version:   Version,
		GitCommit: GitCommit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}).Print()
}

func sessionLocation(cfg *config.Config) string {
	if cfg.Session.Backend == "sqlite" {
		return cfg.Session.Database
	}
	return cfg.Session.Dir
}
