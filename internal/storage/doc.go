// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage provides the on-disk backends behind session.Store.
//
// # Backends
//
//   - FileStore: one JSON document per session under a directory
//   - SQLiteStore: a single SQLite database with sessions and turns tables
//
// Both backends are append-only with respect to turns: AppendTurns adds
// turns after the existing ones and never rewrites stored turns.
//
// # Usage
//
//	backend, err := storage.Open(cfg.Session)
//	store, err := session.NewStore(backend)
//
// # Storage Location
//
// Sessions are stored in ~/.paperclip/sessions/ as JSON files, or in
// ~/.paperclip/sessions.db when the sqlite backend is selected.
package storage
