// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package interpreter classifies clipboard changes into agent actions.
//
// Each clipboard text is fed to Interpreter.Next, which updates the
// interpreter state and returns at most one prompt. Rules, first match wins:
//
//	agent.promptall          continuous mode on
//	agent.promptone          continuous mode off, disarm
//	agent.prompt off         same as agent.promptone
//	model.gem / model.openr  switch preferred provider family
//	agent.prompt             arm: the next clipboard text is the prompt
//	agent.prompt<text>       prompt <text>
//	(armed)                  prompt the whole text, disarm
//	(continuous)             prompt the whole text
//	anything else            ignored
//
// Keywords are matched on the trimmed, NFKC-normalised, lower-cased text.
package interpreter
