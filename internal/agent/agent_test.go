// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeranaias/paperclip/internal/cloud"
	"github.com/jeranaias/paperclip/internal/dispatch"
	"github.com/jeranaias/paperclip/internal/minimal"
	"github.com/jeranaias/paperclip/internal/session"
	"github.com/jeranaias/paperclip/internal/storage"
)

type sendCall struct {
	prompt  string
	history []session.Turn
	family  string
}

// fakeDispatcher answers from a queue of results.
type fakeDispatcher struct {
	mu      sync.Mutex
	calls   []sendCall
	results []error
	reply   string
}

func (f *fakeDispatcher) Send(_ context.Context, prompt string, history []session.Turn, family string) (*dispatch.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	h := make([]session.Turn, len(history))
	copy(h, history)
	f.calls = append(f.calls, sendCall{prompt: prompt, history: h, family: family})

	if len(f.results) > 0 {
		err := f.results[0]
		f.results = f.results[1:]
		if err != nil {
			return nil, err
		}
	}
	text := f.reply
	if text == "" {
		text = "answer to " + prompt
	}
	return &dispatch.Outcome{ProviderID: "or-main", Text: text}, nil
}

type fakeClipboard struct {
	mu     sync.Mutex
	writes []string
}

func (c *fakeClipboard) Write(text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writes = append(c.writes, text)
	return nil
}

type harness struct {
	agent  *Agent
	disp   *fakeDispatcher
	clip   *fakeClipboard
	store  *session.Store
	events chan string
	seen   []Event
	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan error
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	backend, err := storage.NewFileStore(t.TempDir())
	require.NoError(t, err)
	store, err := session.NewStore(backend)
	require.NoError(t, err)

	h := &harness{
		disp:   &fakeDispatcher{},
		clip:   &fakeClipboard{},
		store:  store,
		events: make(chan string),
		done:   make(chan error, 1),
	}
	opts.Notify = func(ev Event) {
		h.mu.Lock()
		h.seen = append(h.seen, ev)
		h.mu.Unlock()
	}
	h.agent = New(h.disp, store, h.clip, opts)

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go func() { h.done <- h.agent.Run(ctx, h.events) }()
	t.Cleanup(func() {
		cancel()
		<-h.done
	})
	return h
}

// copy delivers clipboard changes; each send returns once the loop took it.
func (h *harness) copy(texts ...string) {
	for _, t := range texts {
		h.events <- t
	}
}

// sync waits until every delivered event has been fully processed.
func (h *harness) sync(t *testing.T) *Status {
	t.Helper()
	rep, err := h.agent.Do(context.Background(), Command{Kind: CmdStatus})
	require.NoError(t, err)
	return rep.Status
}

func (h *harness) eventsOf(kind EventKind) []Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []Event
	for _, e := range h.seen {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func TestAgent_ArmedPromptRoundTrip(t *testing.T) {
	h := newHarness(t, Options{})
	h.disp.reply = "Sure:\n```go\nfmt.Println(\"hi\")\n```"

	h.copy("agent.prompt", "print hi in go")
	st := h.sync(t)

	require.Len(t, h.disp.calls, 1)
	assert.Equal(t, "print hi in go", h.disp.calls[0].prompt)
	assert.Empty(t, h.disp.calls[0].history)

	require.Len(t, h.clip.writes, 1)
	assert.Equal(t, minimal.MarkerExtracted+"\nfmt.Println(\"hi\")\n", h.clip.writes[0])

	assert.Equal(t, 2, st.Turns)
	assert.False(t, st.Armed)
	assert.Equal(t, "or-main", st.LastProvider)

	sess := h.store.Active()
	assert.Equal(t, session.RoleUser, sess.Turns[0].Role)
	assert.Equal(t, "print hi in go", sess.Turns[0].Text)
	assert.Equal(t, h.disp.reply, sess.Turns[1].Text, "session keeps the raw reply")
	assert.Len(t, h.eventsOf(EventArmed), 1)
	assert.Len(t, h.eventsOf(EventReply), 1)
}

func TestAgent_HistoryReplayedOnNextPrompt(t *testing.T) {
	h := newHarness(t, Options{})

	h.copy("agent.prompt first", "agent.prompt second")
	h.sync(t)

	require.Len(t, h.disp.calls, 2)
	hist := h.disp.calls[1].history
	require.Len(t, hist, 2)
	assert.Equal(t, "first", hist[0].Text)
	assert.Equal(t, "answer to first", hist[1].Text)
}

func TestAgent_FailedDispatchLeavesClipboardAndSession(t *testing.T) {
	h := newHarness(t, Options{})
	failure := &dispatch.AllProvidersFailedError{Attempts: []dispatch.Attempt{
		{ProviderID: "a", Kind: cloud.KindServer},
		{ProviderID: "b", Kind: cloud.KindAuth},
	}}
	h.disp.results = []error{failure}

	h.copy("agent.prompt explain channels")
	st := h.sync(t)

	assert.Empty(t, h.clip.writes)
	assert.Equal(t, 0, st.Turns)

	failed := h.eventsOf(EventFailed)
	require.Len(t, failed, 1)
	assert.Len(t, failed[0].Failed, 2)
	assert.ErrorIs(t, failed[0].Err, dispatch.ErrAllProvidersFailed)
}

func TestAgent_NoProviderLeavesSessionUnchanged(t *testing.T) {
	h := newHarness(t, Options{})
	h.disp.results = []error{dispatch.ErrNoProviderAvailable}

	h.copy("agent.prompt anything")
	st := h.sync(t)

	assert.Equal(t, 0, st.Turns)
	assert.Empty(t, h.clip.writes)
	require.Len(t, h.eventsOf(EventFailed), 1)
	assert.True(t, errors.Is(h.eventsOf(EventFailed)[0].Err, dispatch.ErrNoProviderAvailable))
}

func TestAgent_ContinuousModeFromClipboard(t *testing.T) {
	h := newHarness(t, Options{})

	h.copy("agent.promptall", "question one", "agent.promptone", "question two")
	h.sync(t)

	require.Len(t, h.disp.calls, 1)
	assert.Equal(t, "question one", h.disp.calls[0].prompt)
}

func TestAgent_ModeCommand(t *testing.T) {
	h := newHarness(t, Options{})

	rep, err := h.agent.Do(context.Background(), Command{Kind: CmdSetMode, Arg: "all"})
	require.NoError(t, err)
	assert.Equal(t, "Mode set to all", rep.Message)

	h.copy("plain text")
	st := h.sync(t)
	assert.True(t, st.Continuous)
	require.Len(t, h.disp.calls, 1)

	_, err = h.agent.Do(context.Background(), Command{Kind: CmdSetMode, Arg: "sideways"})
	assert.Error(t, err)
}

func TestAgent_FamilySwitch(t *testing.T) {
	h := newHarness(t, Options{PreferredFamily: "openrouter"})

	h.copy("model.gem", "agent.prompt q1")
	h.sync(t)
	_, err := h.agent.Do(context.Background(), Command{Kind: CmdSetFamily, Arg: "openr"})
	require.NoError(t, err)
	h.copy("agent.prompt q2")
	h.sync(t)

	require.Len(t, h.disp.calls, 2)
	assert.Equal(t, "gemini", h.disp.calls[0].family)
	assert.Equal(t, "openrouter", h.disp.calls[1].family)
	assert.Len(t, h.eventsOf(EventFamily), 1)
}

func TestAgent_NewSessionCommand(t *testing.T) {
	h := newHarness(t, Options{})

	h.copy("agent.prompt q1")
	before := h.sync(t)

	rep, err := h.agent.Do(context.Background(), Command{Kind: CmdNewSession})
	require.NoError(t, err)
	assert.Contains(t, rep.Message, "Started session")

	h.copy("agent.prompt q2")
	after := h.sync(t)

	assert.NotEqual(t, before.SessionID, after.SessionID)
	assert.Empty(t, h.disp.calls[1].history)

	old, err := h.store.Load(before.SessionID)
	require.NoError(t, err)
	assert.Len(t, old.Turns, 2)
}

func TestAgent_DebounceDropsRapidPrompts(t *testing.T) {
	h := newHarness(t, Options{MinInterval: time.Hour})

	h.copy("agent.prompt one", "agent.prompt two")
	h.sync(t)

	require.Len(t, h.disp.calls, 1)
	assert.Len(t, h.eventsOf(EventSkipped), 1)
}

func TestAgent_FailedDispatchDoesNotHoldInterval(t *testing.T) {
	h := newHarness(t, Options{MinInterval: time.Hour})
	h.disp.results = []error{dispatch.ErrNoProviderAvailable}

	h.copy("agent.prompt one", "agent.prompt two", "agent.prompt three")
	h.sync(t)

	require.Len(t, h.disp.calls, 2)
	assert.Equal(t, "two", h.disp.calls[1].prompt)
	assert.Equal(t, []string{"answer to two"}, h.clip.writes)
	assert.Len(t, h.eventsOf(EventSkipped), 1)
}

func TestAgent_EmptyReplyLeavesClipboardAndSession(t *testing.T) {
	h := newHarness(t, Options{})
	h.disp.reply = "  \n\t "

	h.copy("agent.prompt say nothing")
	st := h.sync(t)

	assert.Empty(t, h.clip.writes)
	assert.Equal(t, 0, st.Turns)
	require.Len(t, h.eventsOf(EventFailed), 1)
	assert.Empty(t, h.eventsOf(EventReply))
}

func TestAgent_LastAndRaw(t *testing.T) {
	h := newHarness(t, Options{})
	h.disp.reply = "x = 1\ny = 2\nThat sets both values for you."

	h.copy("agent.prompt set values")
	h.sync(t)

	last, err := h.agent.Do(context.Background(), Command{Kind: CmdLast})
	require.NoError(t, err)
	assert.Equal(t, minimal.MarkerHeuristic+"\nx = 1\ny = 2\n", last.Text)

	raw, err := h.agent.Do(context.Background(), Command{Kind: CmdRaw})
	require.NoError(t, err)
	assert.Equal(t, h.disp.reply, raw.Text)
}

func TestAgent_DoAfterStop(t *testing.T) {
	h := newHarness(t, Options{})
	h.cancel()
	<-h.done
	h.done <- nil // for Cleanup

	_, err := h.agent.Do(context.Background(), Command{Kind: CmdStatus})
	assert.ErrorIs(t, err, ErrStopped)
}
