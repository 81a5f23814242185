// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package session provides the conversation store.
//
// A Store owns exactly one active Session at a time. Sessions are
// append-only: turns are never reordered or removed, and starting a new
// session leaves the previous one durable and untouched. Persistence is
// delegated to a Backend (see internal/storage for the JSON file and SQLite
// implementations).
//
// # Key Types
//
//   - Store: active-session pointer plus append/start-new operations
//   - Session: identifier, creation time and ordered turns
//   - Turn: one (role, text, timestamp) entry
//   - Backend: create/append/load/list persistence interface
//
// # Usage
//
//	store, err := session.NewStore(backend)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	store.AppendExchange(prompt, reply, providerID)
//	store.StartNew()
package session
