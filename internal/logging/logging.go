// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package logging builds the agent's structured event logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/paperclip/internal/config"
)

// Options selects where and how the log is written.
type Options struct {
	// ToFile sends output to cfg.File instead of stderr. Used while the
	// operator console owns the terminal.
	ToFile bool
	// Verbose forces debug level.
	Verbose bool
	// Quiet raises the level to error.
	Quiet bool
}

// New creates a logger from the [log] config section. The returned closer
// releases the log file, if one was opened.
func New(cfg config.LogConfig, opts Options) (*logrus.Logger, io.Closer, error) {
	logger := logrus.New()

	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, nil, err
	}
	switch {
	case opts.Verbose:
		level = logrus.DebugLevel
	case opts.Quiet:
		level = logrus.ErrorLevel
	}
	logger.SetLevel(level)

	if strings.EqualFold(cfg.Format, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
			DisableColors:   opts.ToFile,
		})
	}

	var closer io.Closer = nopCloser{}
	logger.SetOutput(os.Stderr)

	if opts.ToFile && cfg.File != "" {
		path := config.ExpandPath(cfg.File)
		if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
			return nil, nil, fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		logger.SetOutput(f)
		closer = f
	}

	return logger, closer, nil
}

// ParseLevel accepts debug, info, warn/warning and error. Empty means info.
func ParseLevel(s string) (logrus.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "info":
		return logrus.InfoLevel, nil
	case "debug":
		return logrus.DebugLevel, nil
	case "warn", "warning":
		return logrus.WarnLevel, nil
	case "error":
		return logrus.ErrorLevel, nil
	default:
		return logrus.InfoLevel, fmt.Errorf("unknown log level %q", s)
	}
}

// Discard returns a logger that drops everything.
func Discard() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
