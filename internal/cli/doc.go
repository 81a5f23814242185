// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cli provides command-line parsing and command handlers for
// paperclip.
//
// # Key Types
//
//   - Command: enumeration of the CLI commands
//   - Args: parsed global flags and command arguments
//   - Console: the operator REPL shown while the agent runs
//
// # Usage
//
//	cmd, args := cli.Parse()
//	switch cmd {
//	case cli.CmdRun:
//	    err = cli.HandleRun(args)
//	case cli.CmdSessions:
//	    err = cli.HandleSessions(args)
//	}
//
// # Commands Overview
//
//   - run: watch the clipboard and answer prompts (default)
//   - status: configuration and provider summary
//   - providers: list configured providers in candidate order
//   - sessions: list, show and export stored sessions
//   - init: write a default config.toml
//
// status, providers and sessions accept --json.
package cli
