// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package clipboard reads and writes the clipboard and reports changes.
//
// Two backends exist: System uses the operating-system clipboard and File
// uses a plain text file, which is handy over SSH and in tests. A Watcher
// turns either backend into a stream of change events, by polling or, for
// the file backend, by fsnotify. Text written through Watcher.Write is
// never reported back as a change.
package clipboard
