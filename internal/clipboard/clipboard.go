// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package clipboard

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"

	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/util"
)

// ErrUnsupported is returned when no OS clipboard utility is available.
var ErrUnsupported = errors.New("system clipboard not available (install xclip, xsel or wl-clipboard)")

// Clipboard is a readable, writable text clipboard.
type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// =============================================================================
// SYSTEM CLIPBOARD
// =============================================================================

// System is the operating-system clipboard.
type System struct{}

// NewSystem returns the OS clipboard, or ErrUnsupported.
func NewSystem() (*System, error) {
	if clipboard.Unsupported {
		return nil, ErrUnsupported
	}
	return &System{}, nil
}

func (System) Read() (string, error)   { return clipboard.ReadAll() }
func (System) Write(text string) error { return clipboard.WriteAll(text) }

// =============================================================================
// FILE CLIPBOARD
// =============================================================================

// File keeps the clipboard in a text file.
type File struct {
	Path string
}

// NewFile creates the file (empty) if it does not exist.
func NewFile(path string) (*File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := os.WriteFile(path, nil, 0600); err != nil {
			return nil, err
		}
	}
	return &File{Path: path}, nil
}

// Read returns the file contents. A missing file reads as empty.
func (f *File) Read() (string, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	return string(data), err
}

// Write replaces the file contents atomically.
func (f *File) Write(text string) error {
	return util.AtomicWriteFile(f.Path, []byte(text), 0600)
}

// Open returns the clipboard selected by cfg.Backend.
func Open(cfg config.ClipboardConfig) (Clipboard, error) {
	switch cfg.Backend {
	case "file":
		return NewFile(config.ExpandPath(cfg.File))
	case "system", "":
		return NewSystem()
	default:
		return nil, fmt.Errorf("unknown clipboard backend %q", cfg.Backend)
	}
}
