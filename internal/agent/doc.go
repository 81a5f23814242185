// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package agent runs the clipboard event loop.
//
// One goroutine owns the interpreter state and processes clipboard changes
// to completion, one at a time: interpret, dispatch, minimalize, record the
// exchange in the session, write the reply to the clipboard. Operator
// commands arrive on a channel and run between events, so they never
// observe a half-processed event.
//
// On a failed dispatch the clipboard is left alone and nothing is added to
// the session.
package agent
