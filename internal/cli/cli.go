// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing for paperclip.
package cli

import (
	"fmt"
	"os"
	"runtime"
	"strings"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdRun Command = iota
	CmdStatus
	CmdProviders
	CmdSessions
	CmdInit
	CmdVersion
	CmdHelp
)

// Args holds parsed CLI arguments.
type Args struct {
	// Global flags
	ConfigPath    string
	ProvidersFile string
	Family        string
	Clipboard     string
	ClipboardFile string
	NoConsole     bool
	Quiet         bool
	Verbose       bool
	JSON          bool

	// Command-specific
	Subcommand string
	Force      bool

	// Raw args (remaining after flag parsing)
	Raw []string

	// Options holds command-specific named options (e.g., --format)
	Options map[string]string
}

const usageText = `paperclip - clipboard-driven coding assistant

Copy text that starts with "agent.prompt" and paperclip sends it to a
language model, then puts the answer (code only, where possible) back on
your clipboard.

Usage:
  paperclip [run]                   Watch the clipboard (default)
  paperclip status                  Show configuration and providers
  paperclip providers               List providers in candidate order
  paperclip sessions [subcommand]   Stored sessions
  paperclip init [--force]          Write ~/.paperclip/config.toml
  paperclip version                 Show version
  paperclip help                    Show this help

Clipboard Commands:
  agent.prompt <text>     Send <text> as a prompt
  agent.prompt            Send the next thing you copy
  agent.promptall         Send everything you copy from now on
  agent.promptone         Back to explicit prompts only
  model.gem               Prefer Gemini providers
  model.openr             Prefer OpenRouter providers

Session Commands:
  paperclip sessions list           List sessions, newest first
  paperclip sessions show <id>      Show a session transcript
  paperclip sessions export <id>    Export a session
    --format md|json|txt            Export format (default: md)

Global Flags:
  --config PATH           Config file (default: ~/.paperclip/config.toml)
  --providers PATH        Providers file (json, toml or yaml)
  --family NAME           Preferred family: gemini or openrouter
  --clipboard system|file Clipboard backend
  --clipboard-file PATH   Backing file for the file clipboard
  --no-console            Run without the operator console
  -q, --quiet             Errors only
  -v, --verbose           Debug logging
  --json                  JSON output for status, providers and sessions

Examples:
  paperclip                                  Start with the system clipboard
  paperclip --family gemini                  Prefer Gemini from the start
  paperclip --clipboard file --clipboard-file /tmp/clip.txt --no-console
  paperclip sessions export a1b2c3d4 --format md > chat.md

Version: %s
`

// PrintUsage prints the usage/help text.
func PrintUsage() {
	fmt.Printf(usageText, Version)
}

// PrintVersion prints version information.
func PrintVersion() {
	fmt.Printf("paperclip version %s\n", Version)
	fmt.Printf("  Git commit: %s\n", GitCommit)
	fmt.Printf("  Build date: %s\n", BuildDate)
	fmt.Printf("  Go:         %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

// Parse parses os.Args.
func Parse() (Command, Args) {
	return ParseArgs(os.Args[1:])
}

// ParseArgs parses args (without the program name) and returns the command
// and its arguments.
func ParseArgs(args []string) (Command, Args) {
	remaining, parsedArgs := parseGlobalFlags(args)

	if len(remaining) == 0 {
		return CmdRun, parsedArgs
	}

	cmd := strings.ToLower(remaining[0])
	remaining = remaining[1:]
	parsedArgs.Raw = remaining

	switch cmd {
	case "run", "start":
		return CmdRun, parsedArgs

	case "status", "s":
		return CmdStatus, parsedArgs

	case "providers", "p":
		return CmdProviders, parsedArgs

	case "session", "sessions":
		parseSessionArgs(&parsedArgs, remaining)
		return CmdSessions, parsedArgs

	case "init":
		for _, a := range remaining {
			if a == "--force" || a == "-f" {
				parsedArgs.Force = true
			}
		}
		return CmdInit, parsedArgs

	case "version", "--version":
		return CmdVersion, parsedArgs

	case "help", "-h", "--help":
		return CmdHelp, parsedArgs

	default:
		parsedArgs.Raw = append([]string{cmd}, remaining...)
		return CmdHelp, parsedArgs
	}
}

// parseGlobalFlags extracts global flags from args and returns remaining args.
func parseGlobalFlags(args []string) ([]string, Args) {
	var remaining []string
	parsedArgs := Args{
		Options: make(map[string]string),
	}

	// value returns the flag's value from --flag=value or the next arg.
	value := func(i *int, arg, name string) (string, bool) {
		if strings.HasPrefix(arg, name+"=") {
			return strings.TrimPrefix(arg, name+"="), true
		}
		if arg == name && *i+1 < len(args) {
			*i++
			return args[*i], true
		}
		return "", false
	}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-q", "--quiet":
			parsedArgs.Quiet = true
			continue
		case "-v", "--verbose":
			parsedArgs.Verbose = true
			continue
		case "--json":
			parsedArgs.JSON = true
			continue
		case "--no-console":
			parsedArgs.NoConsole = true
			continue
		}

		if v, ok := value(&i, arg, "--config"); ok {
			parsedArgs.ConfigPath = v
		} else if v, ok := value(&i, arg, "--providers"); ok {
			parsedArgs.ProvidersFile = v
		} else if v, ok := value(&i, arg, "--family"); ok {
			parsedArgs.Family = v
		} else if v, ok := value(&i, arg, "--clipboard-file"); ok {
			parsedArgs.ClipboardFile = v
		} else if v, ok := value(&i, arg, "--clipboard"); ok {
			parsedArgs.Clipboard = v
		} else {
			remaining = append(remaining, arg)
		}
	}

	return remaining, parsedArgs
}

// parseSessionArgs parses "sessions <subcommand> [id] [--format f]".
func parseSessionArgs(args *Args, remaining []string) {
	var positional []string
	for i := 0; i < len(remaining); i++ {
		arg := remaining[i]
		switch {
		case arg == "--format" && i+1 < len(remaining):
			i++
			args.Options["format"] = strings.ToLower(remaining[i])
		case strings.HasPrefix(arg, "--format="):
			args.Options["format"] = strings.ToLower(strings.TrimPrefix(arg, "--format="))
		case strings.HasPrefix(arg, "-"):
		default:
			positional = append(positional, arg)
		}
	}
	if len(positional) > 0 {
		args.Subcommand = strings.ToLower(positional[0])
		positional = positional[1:]
	}
	args.Raw = positional
}
