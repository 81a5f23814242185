// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package dispatch sends one prompt to the first provider that answers.
//
// Candidates are tried strictly one after another in the order the
// registry returns them. Every failure (transport, timeout, 429, 5xx,
// auth, bad request) is recorded and the next candidate is tried; each
// candidate gets exactly one attempt per Send.
//
// A provider that answered 429 is put in cooldown for the delay it asked
// for. While cooling down it is not called and its attempt is recorded
// with kind KindCoolingDown.
package dispatch
