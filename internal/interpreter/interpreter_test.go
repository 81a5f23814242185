// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package interpreter

import (
	"testing"

	"github.com/jeranaias/paperclip/internal/provider"
)

// feed runs events through a fresh interpreter and collects the prompts.
func feed(in *Interpreter, events ...string) []string {
	var prompts []string
	for _, ev := range events {
		if a := in.Next(ev); a.Kind == ActionPrompt {
			prompts = append(prompts, a.Prompt)
		}
	}
	return prompts
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNext_Sequences(t *testing.T) {
	tests := []struct {
		name   string
		events []string
		want   []string
		state  State
	}{
		{
			name:   "armed then prompt",
			events: []string{"agent.prompt", "foo"},
			want:   []string{"foo"},
		},
		{
			name:   "armed prompt consumed once",
			events: []string{"agent.prompt", "foo", "bar"},
			want:   []string{"foo"},
		},
		{
			name:   "inline prompt",
			events: []string{"agent.prompt reverse a list in python"},
			want:   []string{"reverse a list in python"},
		},
		{
			name:   "inline prompt with colon",
			events: []string{"agent.prompt: explain defer"},
			want:   []string{"explain defer"},
		},
		{
			name:   "inline prompt keeps case and newlines",
			events: []string{"AGENT.PROMPT Fix This\nline two"},
			want:   []string{"Fix This\nline two"},
		},
		{
			name:   "inline prompt clears armed",
			events: []string{"agent.prompt", "agent.prompt now"},
			want:   []string{"now"},
		},
		{
			name:   "plain text ignored by default",
			events: []string{"hello", "world"},
			want:   nil,
		},
		{
			name:   "continuous mode captures plain text",
			events: []string{"agent.promptall", "hello", "world"},
			want:   []string{"hello", "world"},
			state:  State{Continuous: true},
		},
		{
			name:   "promptone escapes continuous mode",
			events: []string{"agent.promptall", "hello", "agent.promptone", "hello"},
			want:   []string{"hello"},
		},
		{
			name:   "prompt off alias",
			events: []string{"agent.promptall", "agent.prompt off", "hello"},
			want:   nil,
		},
		{
			name:   "promptall is not an inline prompt",
			events: []string{"agent.promptall"},
			want:   nil,
			state:  State{Continuous: true},
		},
		{
			name:   "keyword while armed is still a command",
			events: []string{"agent.prompt", "model.gem", "question"},
			want:   []string{"question"},
			state:  State{PreferredFamily: provider.FamilyGemini},
		},
		{
			name:   "promptone disarms",
			events: []string{"agent.prompt", "agent.promptone", "question"},
			want:   nil,
		},
		{
			name:   "keywords are case and space insensitive",
			events: []string{"  Agent.PromptAll \n", "x"},
			want:   []string{"x"},
			state:  State{Continuous: true},
		},
		{
			name:   "fullwidth keyword",
			events: []string{"ａｇｅｎｔ.ｐｒｏｍｐｔ", "q"},
			want:   []string{"q"},
		},
		{
			name:   "empty clipboard ignored and keeps armed",
			events: []string{"agent.prompt", "   ", "q"},
			want:   []string{"q"},
		},
		{
			name:   "bare keyword with colon arms",
			events: []string{"agent.prompt:", "q"},
			want:   []string{"q"},
		},
		{
			name:   "armed takes precedence over continuous",
			events: []string{"agent.promptall", "agent.prompt", "q", "r"},
			want:   []string{"q", "r"},
			state:  State{Continuous: true},
		},
		{
			name:   "family switch to openrouter",
			events: []string{"model.gem", "model.openr"},
			want:   nil,
			state:  State{PreferredFamily: provider.FamilyOpenRouter},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := New("")
			got := feed(in, tt.events...)
			if !equal(got, tt.want) {
				t.Errorf("prompts = %q, want %q", got, tt.want)
			}
			if s := in.State(); s != tt.state {
				t.Errorf("state = %+v, want %+v", s, tt.state)
			}
		})
	}
}

func TestNext_ActionKinds(t *testing.T) {
	in := New(provider.FamilyOpenRouter)

	cases := []struct {
		event string
		kind  ActionKind
	}{
		{"agent.prompt", ActionArm},
		{"text", ActionPrompt},
		{"agent.promptall", ActionContinuousOn},
		{"agent.promptone", ActionContinuousOff},
		{"model.gem", ActionSwitchFamily},
		{"just text", ActionIgnore},
	}
	for _, c := range cases {
		if got := in.Next(c.event); got.Kind != c.kind {
			t.Errorf("Next(%q).Kind = %v, want %v", c.event, got.Kind, c.kind)
		}
	}
}

func TestNext_SwitchFamilyReportsFamily(t *testing.T) {
	in := New(provider.FamilyOpenRouter)
	a := in.Next("model.gem")
	if a.Family != provider.FamilyGemini {
		t.Errorf("Family = %q", a.Family)
	}
	if in.State().PreferredFamily != provider.FamilyGemini {
		t.Errorf("PreferredFamily = %q", in.State().PreferredFamily)
	}
}

func TestSetContinuous(t *testing.T) {
	in := New("")
	in.SetContinuous(true)
	if got := feed(in, "x"); !equal(got, []string{"x"}) {
		t.Errorf("continuous on: %q", got)
	}

	in.Next("agent.prompt")
	in.SetContinuous(false)
	if s := in.State(); s.Armed || s.Continuous {
		t.Errorf("state after mode off = %+v", s)
	}
	if got := feed(in, "x"); got != nil {
		t.Errorf("continuous off: %q", got)
	}
}

func TestActionKindString(t *testing.T) {
	if ActionContinuousOn.String() != "continuous_on" || ActionKind(99).String() != "unknown" {
		t.Error("unexpected ActionKind strings")
	}
}
