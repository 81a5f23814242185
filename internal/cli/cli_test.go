// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/paperclip/internal/agent"
	"github.com/jeranaias/paperclip/internal/cloud"
	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/dispatch"
	"github.com/jeranaias/paperclip/internal/provider"
	"github.com/jeranaias/paperclip/internal/session"
)

// =============================================================================
// PARSING
// =============================================================================

func TestParseArgs_Commands(t *testing.T) {
	tests := []struct {
		args []string
		want Command
	}{
		{nil, CmdRun},
		{[]string{"run"}, CmdRun},
		{[]string{"status"}, CmdStatus},
		{[]string{"providers"}, CmdProviders},
		{[]string{"p"}, CmdProviders},
		{[]string{"sessions"}, CmdSessions},
		{[]string{"session", "list"}, CmdSessions},
		{[]string{"init"}, CmdInit},
		{[]string{"version"}, CmdVersion},
		{[]string{"--help"}, CmdHelp},
		{[]string{"bogus"}, CmdHelp},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.args), func(t *testing.T) {
			cmd, _ := ParseArgs(tt.args)
			assert.Equal(t, tt.want, cmd)
		})
	}
}

func TestParseArgs_GlobalFlags(t *testing.T) {
	cmd, args := ParseArgs([]string{
		"--config", "/tmp/c.toml",
		"--providers=/tmp/p.yaml",
		"--family", "gem",
		"--clipboard", "file",
		"--clipboard-file=/tmp/clip.txt",
		"--no-console", "-v", "--json",
		"status",
	})

	assert.Equal(t, CmdStatus, cmd)
	assert.Equal(t, "/tmp/c.toml", args.ConfigPath)
	assert.Equal(t, "/tmp/p.yaml", args.ProvidersFile)
	assert.Equal(t, "gem", args.Family)
	assert.Equal(t, "file", args.Clipboard)
	assert.Equal(t, "/tmp/clip.txt", args.ClipboardFile)
	assert.True(t, args.NoConsole)
	assert.True(t, args.Verbose)
	assert.True(t, args.JSON)
}

func TestParseArgs_FlagsAfterCommand(t *testing.T) {
	cmd, args := ParseArgs([]string{"run", "--family", "openr", "-q"})
	assert.Equal(t, CmdRun, cmd)
	assert.Equal(t, "openr", args.Family)
	assert.True(t, args.Quiet)
}

func TestParseArgs_Sessions(t *testing.T) {
	cmd, args := ParseArgs([]string{"sessions", "export", "01HZX", "--format", "JSON"})
	require.Equal(t, CmdSessions, cmd)
	assert.Equal(t, "export", args.Subcommand)
	assert.Equal(t, []string{"01HZX"}, args.Raw)
	assert.Equal(t, "json", args.Options["format"])

	_, args = ParseArgs([]string{"sessions", "show", "abc", "--format=txt"})
	assert.Equal(t, "show", args.Subcommand)
	assert.Equal(t, "txt", args.Options["format"])

	_, args = ParseArgs([]string{"sessions"})
	assert.Equal(t, "", args.Subcommand)
}

func TestParseArgs_InitForce(t *testing.T) {
	_, args := ParseArgs([]string{"init", "--force"})
	assert.True(t, args.Force)
}

func TestApplyFlags(t *testing.T) {
	cfg := config.Default()
	applyFlags(cfg, Args{ClipboardFile: "/tmp/clip.txt", Family: "openr", ProvidersFile: "/tmp/p.json"})

	assert.Equal(t, "file", cfg.Clipboard.Backend)
	assert.Equal(t, "/tmp/clip.txt", cfg.Clipboard.File)
	assert.Equal(t, "openr", cfg.PreferredFamily)
	assert.Equal(t, "/tmp/p.json", cfg.ProvidersFile)

	cfg.Migrate()
	assert.Equal(t, "openrouter", cfg.PreferredFamily)
}

// =============================================================================
// EXIT CODES
// =============================================================================

func TestGetExitCode(t *testing.T) {
	allFailed := &dispatch.AllProvidersFailedError{Attempts: []dispatch.Attempt{{ProviderID: "a", Kind: cloud.KindServer}}}

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, ExitSuccess},
		{"generic", errors.New("boom"), ExitGeneralError},
		{"validation", ErrMissingArgument("id", "x"), ExitUsageError},
		{"config", fmt.Errorf("%w: bad", ErrConfig), ExitConfigError},
		{"provider file", &provider.ConfigurationError{Problems: []string{"no enabled providers"}}, ExitConfigError},
		{"not found", &session.StoreError{Op: "load", ID: "x", Err: session.ErrNotFound}, ExitNotFoundError},
		{"auth", fmt.Errorf("send: %w", cloud.ErrAuthFailed), ExitAuthError},
		{"all failed", allFailed, ExitNetworkError},
		{"all failed with auth", &dispatch.AllProvidersFailedError{Attempts: []dispatch.Attempt{{ProviderID: "a", Kind: cloud.KindAuth, Err: cloud.ErrAuthFailed}}}, ExitNetworkError},
		{"none available", dispatch.ErrNoProviderAvailable, ExitNetworkError},
		{"timeout", context.DeadlineExceeded, ExitTimeoutError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetExitCode(tt.err))
		})
	}
}

func TestCommandError_Unwrap(t *testing.T) {
	err := NewCommandError("sessions", "export", "cannot encode", session.ErrNotFound)
	assert.ErrorIs(t, err, session.ErrNotFound)
	assert.Contains(t, err.Error(), "sessions export failed")
}

// =============================================================================
// EVENTS
// =============================================================================

func TestFormatEvent(t *testing.T) {
	failed := []dispatch.Attempt{
		{ProviderID: "gem-a", Kind: cloud.KindRateLimited},
		{ProviderID: "or-b", Kind: cloud.KindServer},
	}

	assert.Contains(t, formatEvent(agent.Event{Kind: agent.EventArmed}), "next thing you copy")
	assert.Contains(t, formatEvent(agent.Event{Kind: agent.EventMode, Continuous: true}), "all")
	assert.Contains(t, formatEvent(agent.Event{Kind: agent.EventFamily, Family: "gemini"}), "gemini")
	assert.Contains(t, formatEvent(agent.Event{Kind: agent.EventTrigger, Prompt: "write\na sort"}), "write a sort")

	reply := formatEvent(agent.Event{Kind: agent.EventReply, Provider: "or-c", Failed: failed, Duration: 1500 * time.Millisecond})
	assert.Contains(t, reply, "or-c")
	assert.Contains(t, reply, "gem-a (rate_limited)")

	fail := formatEvent(agent.Event{Kind: agent.EventFailed, Failed: failed})
	assert.Contains(t, fail, "all providers failed")
	assert.Contains(t, fail, "or-b")

	none := formatEvent(agent.Event{Kind: agent.EventFailed, Err: dispatch.ErrNoProviderAvailable})
	assert.Contains(t, none, "no provider")
}

// =============================================================================
// CONSOLE
// =============================================================================

type fakeController struct {
	cmds  []agent.Command
	reply agent.Reply
	err   error
}

func (f *fakeController) Do(_ context.Context, cmd agent.Command) (agent.Reply, error) {
	f.cmds = append(f.cmds, cmd)
	return f.reply, f.err
}

func testRegistry(t *testing.T) *provider.Registry {
	t.Helper()
	reg, err := provider.New([]provider.Descriptor{
		{ID: "or-main", BaseURL: "https://openrouter.ai/api/v1", APIKey: "sk-or-123", Model: "m1", Priority: 1, Enabled: true, Family: provider.FamilyOpenRouter},
		{ID: "gem-flash", BaseURL: "https://generativelanguage.googleapis.com/v1beta", APIKey: "AIza", Model: "gemini-2.0-flash", Priority: 2, Enabled: true, Family: provider.FamilyGemini},
		{ID: "old", BaseURL: "https://example.com", Model: "x", Priority: 3, Enabled: false},
	})
	require.NoError(t, err)
	return reg
}

func TestConsole_ModeAndModel(t *testing.T) {
	ctrl := &fakeController{reply: agent.Reply{Message: "ok"}}
	c := NewConsole(ctrl, nil, nil)

	out, quit, err := c.Execute(context.Background(), "mode all")
	require.NoError(t, err)
	assert.False(t, quit)
	assert.Equal(t, "ok", out)

	_, _, err = c.Execute(context.Background(), "MODEL gem")
	require.NoError(t, err)

	require.Len(t, ctrl.cmds, 2)
	assert.Equal(t, agent.Command{Kind: agent.CmdSetMode, Arg: "all"}, ctrl.cmds[0])
	assert.Equal(t, agent.Command{Kind: agent.CmdSetFamily, Arg: "gem"}, ctrl.cmds[1])
}

func TestConsole_MissingArgument(t *testing.T) {
	c := NewConsole(&fakeController{}, nil, nil)
	_, _, err := c.Execute(context.Background(), "mode")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestConsole_QuitAndUnknown(t *testing.T) {
	c := NewConsole(&fakeController{}, nil, nil)

	_, quit, err := c.Execute(context.Background(), "quit")
	require.NoError(t, err)
	assert.True(t, quit)

	_, quit, err = c.Execute(context.Background(), "frobnicate")
	assert.Error(t, err)
	assert.False(t, quit)

	out, _, err := c.Execute(context.Background(), "   ")
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConsole_LastWithoutReply(t *testing.T) {
	c := NewConsole(&fakeController{}, nil, nil)
	out, _, err := c.Execute(context.Background(), "last")
	require.NoError(t, err)
	assert.Contains(t, out, "No reply yet")
}

func TestConsole_Status(t *testing.T) {
	ctrl := &fakeController{reply: agent.Reply{Status: &agent.Status{
		SessionID:       "01HZX",
		SessionName:     "Session 1",
		Turns:           4,
		Continuous:      true,
		PreferredFamily: "gemini",
		LastProvider:    "gem-flash",
		LastAt:          time.Now().Add(-time.Minute),
	}}}
	engine := dispatch.New(testRegistry(t), nil, dispatch.Options{})
	c := NewConsole(ctrl, engine, nil)

	out, _, err := c.Execute(context.Background(), "status")
	require.NoError(t, err)
	assert.Contains(t, out, "01HZX")
	assert.Contains(t, out, "4 turns")
	assert.Contains(t, out, "all")
	assert.Contains(t, out, "gem-flash")
	assert.Contains(t, out, "No dispatches yet")
}

func TestConsole_ProvidersFollowPreferredFamily(t *testing.T) {
	ctrl := &fakeController{reply: agent.Reply{Status: &agent.Status{PreferredFamily: "gemini"}}}
	c := NewConsole(ctrl, nil, testRegistry(t))

	out, _, err := c.Execute(context.Background(), "providers")
	require.NoError(t, err)

	gem := strings.Index(out, "gem-flash")
	orIdx := strings.Index(out, "or-main")
	require.True(t, gem >= 0 && orIdx >= 0)
	assert.Less(t, gem, orIdx)
	assert.Contains(t, out, "DISABLED")
	assert.NotContains(t, out, "sk-or-123")
}

func TestConsole_ProviderDetail(t *testing.T) {
	c := NewConsole(&fakeController{}, nil, testRegistry(t))

	out, _, err := c.Execute(context.Background(), "providers gem-flash")
	require.NoError(t, err)
	assert.Contains(t, out, "gemini-2.0-flash")
	assert.Contains(t, out, ":generateContent")
	assert.NotContains(t, out, "AIza")

	out, _, err = c.Execute(context.Background(), "providers old")
	require.NoError(t, err)
	assert.Contains(t, out, "DISABLED")

	_, _, err = c.Execute(context.Background(), "providers nope")
	var verr *ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestFormatProviderTable_Separator(t *testing.T) {
	reg := testRegistry(t)
	out := formatProviderTable(reg.All(), reg.OrderedCandidates(""))
	lines := strings.Split(out, "\n")
	require.True(t, len(lines) > 2)
	assert.Equal(t, strings.Repeat("-", separatorWidth()), lines[1])
}

func TestProviderData_MasksKeys(t *testing.T) {
	data := providerData(testRegistry(t).OrderedCandidates(""))
	require.Len(t, data, 2)
	assert.Equal(t, 1, data[0].Rank)
	assert.Equal(t, "or-main", data[0].ID)
	assert.NotContains(t, data[0].APIKey, "sk-or")
	assert.Equal(t, "gemini", data[1].Protocol)
}
