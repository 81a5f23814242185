// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package util holds small helpers shared by the paperclip packages.
//
// # Key Functions
//
//   - AtomicWriteFile: crash-safe file writes (sessions, file clipboard)
//   - TruncateWidth: display-width aware truncation for console previews
//   - OneLine: collapse multi-line text for log and status lines
//   - FormatDuration: compact human durations ("1h 5m", "42s")
package util
