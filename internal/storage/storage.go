// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"fmt"
	"regexp"

	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/session"
)

// Open returns the backend selected by cfg.Backend.
func Open(cfg config.SessionConfig) (session.Backend, error) {
	switch cfg.Backend {
	case "sqlite":
		return NewSQLiteStore(config.ExpandPath(cfg.Database))
	case "json", "":
		return NewFileStore(config.ExpandPath(cfg.Dir))
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}

var validID = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// checkID rejects ids that could escape the storage directory.
func checkID(id string) error {
	if !validID.MatchString(id) {
		return fmt.Errorf("invalid session id %q", id)
	}
	return nil
}
