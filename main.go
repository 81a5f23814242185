// paperclip - clipboard-driven coding assistant.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later
package main

import (
	"github.com/jeranaias/paperclip/internal/cli"
)

// Version information (set at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func init() {
	cli.Version = Version
	cli.GitCommit = GitCommit
	cli.BuildDate = BuildDate
}

func main() {
	cmd, args := cli.Parse()

	var err error
	switch cmd {
	case cli.CmdRun:
		err = cli.HandleRun(args)
	case cli.CmdStatus:
		err = cli.HandleStatus(args)
	case cli.CmdProviders:
		err = cli.HandleProviders(args)
	case cli.CmdSessions:
		err = cli.HandleSessions(args)
	case cli.CmdInit:
		err = cli.HandleInit(args)
	case cli.CmdVersion:
		err = cli.HandleVersion(args)
	case cli.CmdHelp:
		cli.PrintUsage()
		if len(args.Raw) > 0 {
			err = &cli.ValidationError{Field: "command", Value: args.Raw[0], Reason: "unknown command"}
		}
	}

	cli.HandleErrorAndExit(err, args.JSON)
}
