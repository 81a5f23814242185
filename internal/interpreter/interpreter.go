// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package interpreter

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"

	"github.com/jeranaias/paperclip/internal/provider"
)

// Command keywords.
const (
	KeywordPrompt    = "agent.prompt"
	KeywordPromptAll = "agent.promptall"
	KeywordPromptOne = "agent.promptone"
	// KeywordPromptOff is a legacy alias of KeywordPromptOne.
	KeywordPromptOff = "agent.prompt off"
	KeywordGemini    = "model.gem"
	KeywordOpenR     = "model.openr"
)

// ActionKind says what an event did.
type ActionKind int

const (
	// ActionIgnore means the event changed nothing and emits nothing.
	ActionIgnore ActionKind = iota
	// ActionPrompt carries a prompt to dispatch.
	ActionPrompt
	// ActionArm means the next clipboard text will be the prompt.
	ActionArm
	ActionContinuousOn
	ActionContinuousOff
	ActionSwitchFamily
)

func (k ActionKind) String() string {
	switch k {
	case ActionIgnore:
		return "ignore"
	case ActionPrompt:
		return "prompt"
	case ActionArm:
		return "arm"
	case ActionContinuousOn:
		return "continuous_on"
	case ActionContinuousOff:
		return "continuous_off"
	case ActionSwitchFamily:
		return "switch_family"
	default:
		return "unknown"
	}
}

// Action is the result of one event.
type Action struct {
	Kind ActionKind
	// Prompt is set for ActionPrompt.
	Prompt string
	// Family is set for ActionSwitchFamily.
	Family string
}

// State is the interpreter's mutable state.
type State struct {
	Continuous      bool
	Armed           bool
	PreferredFamily string
}

// Interpreter owns a State and applies the transition rules to it. It is
// not safe for concurrent use; events must be fed one at a time.
type Interpreter struct {
	state State
}

// New creates an interpreter with continuous mode off, nothing armed and
// the given preferred family.
func New(preferredFamily string) *Interpreter {
	return &Interpreter{state: State{PreferredFamily: preferredFamily}}
}

// State returns a copy of the current state.
func (in *Interpreter) State() State {
	return in.state
}

// SetContinuous switches continuous mode from the operator console.
// Turning it off also disarms, like agent.promptone.
func (in *Interpreter) SetContinuous(on bool) {
	in.state.Continuous = on
	if !on {
		in.state.Armed = false
	}
}

// SetFamily changes the preferred provider family.
func (in *Interpreter) SetFamily(family string) {
	in.state.PreferredFamily = family
}

// Next applies one clipboard change and returns what it produced.
func (in *Interpreter) Next(text string) Action {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return Action{Kind: ActionIgnore}
	}
	normalized := norm.NFKC.String(trimmed)
	key := strings.ToLower(normalized)

	switch key {
	case KeywordPromptAll:
		in.state.Continuous = true
		return Action{Kind: ActionContinuousOn}
	case KeywordPromptOne, KeywordPromptOff:
		in.state.Continuous = false
		in.state.Armed = false
		return Action{Kind: ActionContinuousOff}
	case KeywordGemini:
		return in.switchFamily(provider.FamilyGemini)
	case KeywordOpenR:
		return in.switchFamily(provider.FamilyOpenRouter)
	case KeywordPrompt:
		in.state.Armed = true
		return Action{Kind: ActionArm}
	}

	if strings.HasPrefix(key, KeywordPrompt) {
		if rest := inlineRemainder(normalized); rest != "" {
			in.state.Armed = false
			return Action{Kind: ActionPrompt, Prompt: rest}
		}
		// Only separators after the keyword: treat as a bare agent.prompt.
		in.state.Armed = true
		return Action{Kind: ActionArm}
	}

	if in.state.Armed {
		in.state.Armed = false
		return Action{Kind: ActionPrompt, Prompt: trimmed}
	}
	if in.state.Continuous {
		return Action{Kind: ActionPrompt, Prompt: trimmed}
	}
	return Action{Kind: ActionIgnore}
}

func (in *Interpreter) switchFamily(family string) Action {
	in.state.PreferredFamily = family
	return Action{Kind: ActionSwitchFamily, Family: family}
}

// inlineRemainder strips the keyword and any ':' or whitespace after it.
// The keyword is ASCII, so its byte length is the same in any case.
func inlineRemainder(s string) string {
	rest := s[len(KeywordPrompt):]
	return strings.TrimLeftFunc(rest, func(r rune) bool {
		return r == ':' || unicode.IsSpace(r)
	})
}
