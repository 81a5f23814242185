// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - Stored session commands.
package cli

import (
	"fmt"

	"github.com/jeranaias/paperclip/internal/session"
)

var exportFormats = []string{"md", "json", "txt"}

// HandleSessions dispatches "paperclip sessions <list|show|export>".
func HandleSessions(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}
	backend, err := openSessions(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	switch args.Subcommand {
	case "", "list", "ls":
		return listSessions(backend, args)
	case "show", "view":
		id, err := sessionID(args, "paperclip sessions show <id>")
		if err != nil {
			return err
		}
		return showSession(backend, id, args)
	case "export":
		id, err := sessionID(args, "paperclip sessions export <id> --format md")
		if err != nil {
			return err
		}
		return exportSession(backend, id, args.Options["format"])
	default:
		return &ValidationError{
			Field:   "subcommand",
			Value:   args.Subcommand,
			Reason:  "unknown sessions subcommand",
			Example: "paperclip sessions list",
		}
	}
}

func sessionID(args Args, usage string) (string, error) {
	if len(args.Raw) == 0 {
		return "", ErrMissingArgument("session id", usage)
	}
	return args.Raw[0], nil
}

func listSessions(backend session.Backend, args Args) error {
	return OutputJSON(args.JSON, "sessions list", func() (interface{}, error) {
		list, err := backend.List()
		if err != nil {
			return nil, NewCommandError("sessions", "list", "cannot read sessions", err)
		}
		if list == nil {
			list = []session.Summary{}
		}
		if !args.JSON {
			fmt.Println(session.FormatList(list))
		}
		return list, nil
	})
}

func showSession(backend session.Backend, id string, args Args) error {
	return OutputJSON(args.JSON, "sessions show", func() (interface{}, error) {
		sess, err := backend.Load(id)
		if err != nil {
			return nil, err
		}
		if !args.JSON {
			fmt.Print(renderMarkdown(sess.ExportMarkdown()))
		}
		return sess, nil
	})
}

// exportSession writes the session to stdout in format (default md).
func exportSession(backend session.Backend, id, format string) error {
	if format == "" {
		format = "md"
	}
	var render func(*session.Session) (string, error)
	switch format {
	case "md", "markdown":
		render = func(s *session.Session) (string, error) { return s.ExportMarkdown(), nil }
	case "txt", "text":
		render = func(s *session.Session) (string, error) { return s.ExportText(), nil }
	case "json":
		render = func(s *session.Session) (string, error) {
			data, err := s.ExportJSON()
			return string(data) + "\n", err
		}
	default:
		return ErrUnsupportedFormat(format, exportFormats)
	}

	sess, err := backend.Load(id)
	if err != nil {
		return err
	}
	out, err := render(sess)
	if err != nil {
		return NewCommandError("sessions", "export", "cannot encode session", err)
	}
	fmt.Print(out)
	return nil
}
