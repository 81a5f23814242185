// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/jeranaias/paperclip/internal/dispatch"
	"github.com/jeranaias/paperclip/internal/interpreter"
	"github.com/jeranaias/paperclip/internal/logging"
	"github.com/jeranaias/paperclip/internal/minimal"
	"github.com/jeranaias/paperclip/internal/session"
	"github.com/jeranaias/paperclip/internal/util"
)

// ErrStopped is returned by Do once the loop has exited.
var ErrStopped = errors.New("agent stopped")

var errEmptyReply = errors.New("provider returned an empty reply")

// Dispatcher sends a prompt to a provider. *dispatch.Engine satisfies it.
type Dispatcher interface {
	Send(ctx context.Context, prompt string, history []session.Turn, preferredFamily string) (*dispatch.Outcome, error)
}

// ClipboardWriter writes replies. *clipboard.Watcher satisfies it and
// keeps the write from coming back as an event.
type ClipboardWriter interface {
	Write(text string) error
}

// Options configures an Agent.
type Options struct {
	// PreferredFamily is the starting provider family.
	PreferredFamily string
	// MinInterval drops prompts arriving sooner than this after the
	// previous dispatch. Zero disables.
	MinInterval time.Duration
	Log         logrus.FieldLogger
	// Notify receives operator-facing events. It is called from the loop
	// goroutine and must not block.
	Notify func(Event)
}

// Agent joins interpreter, dispatcher, session store and clipboard.
type Agent struct {
	interp     *interpreter.Interpreter
	dispatcher Dispatcher
	store      *session.Store
	clip       ClipboardWriter
	limiter    *rate.Limiter
	log        logrus.FieldLogger
	notify     func(Event)

	commands chan request
	done     chan struct{}

	// Owned by the loop goroutine.
	lastRaw      string
	lastMinimal  string
	lastProvider string
	lastAt       time.Time
}

// New creates an agent. Call Run to start it.
func New(d Dispatcher, store *session.Store, clip ClipboardWriter, opts Options) *Agent {
	a := &Agent{
		interp:     interpreter.New(opts.PreferredFamily),
		dispatcher: d,
		store:      store,
		clip:       clip,
		log:        opts.Log,
		notify:     opts.Notify,
		commands:   make(chan request),
		done:       make(chan struct{}),
	}
	if a.log == nil {
		a.log = logging.Discard()
	}
	if a.notify == nil {
		a.notify = func(Event) {}
	}
	if opts.MinInterval > 0 {
		a.limiter = rate.NewLimiter(rate.Every(opts.MinInterval), 1)
	}
	return a
}

// Run processes clipboard changes from events and operator commands until
// ctx is done or events is closed.
func (a *Agent) Run(ctx context.Context, events <-chan string) error {
	defer close(a.done)

	a.log.WithField("session", a.store.Active().ID).Info("agent: started")
	for {
		select {
		case <-ctx.Done():
			a.log.Info("agent: stopping")
			return nil

		case text, ok := <-events:
			if !ok {
				return nil
			}
			a.handleClip(ctx, text)

		case req := <-a.commands:
			rep, err := a.exec(req.cmd)
			req.reply <- response{rep, err}
		}
	}
}

// handleClip runs one clipboard change to completion.
func (a *Agent) handleClip(ctx context.Context, text string) {
	action := a.interp.Next(text)
	log := a.log.WithField("action", action.Kind.String())

	switch action.Kind {
	case interpreter.ActionIgnore:
		return
	case interpreter.ActionArm:
		log.Info("agent: armed, waiting for prompt")
		a.notify(Event{Kind: EventArmed})
	case interpreter.ActionContinuousOn, interpreter.ActionContinuousOff:
		on := action.Kind == interpreter.ActionContinuousOn
		log.WithField("continuous", on).Info("agent: mode changed")
		a.notify(Event{Kind: EventMode, Continuous: on})
	case interpreter.ActionSwitchFamily:
		log.WithField("family", action.Family).Info("agent: preferred family changed")
		a.notify(Event{Kind: EventFamily, Family: action.Family})
	case interpreter.ActionPrompt:
		a.handlePrompt(ctx, action.Prompt)
	}
}

func (a *Agent) handlePrompt(ctx context.Context, prompt string) {
	log := a.log.WithField("prompt", util.Preview(prompt, 60))

	// The token is spent when a reply arrives, so the interval runs from
	// the last successful reply and failed dispatches never hold it.
	if a.limiter != nil && a.limiter.Tokens() < 1 {
		log.Info("agent: prompt dropped, too soon after previous reply")
		a.notify(Event{Kind: EventSkipped, Prompt: prompt})
		return
	}

	sess := a.store.Active()
	family := a.interp.State().PreferredFamily
	a.notify(Event{Kind: EventTrigger, Prompt: prompt, Family: family})
	log.WithFields(logrus.Fields{"session": sess.ID, "family": family}).Info("agent: dispatching prompt")

	// An in-flight dispatch is never cancelled; shutdown waits for it.
	out, err := a.dispatcher.Send(context.WithoutCancel(ctx), prompt, sess.Turns, family)
	if err != nil {
		var all *dispatch.AllProvidersFailedError
		ev := Event{Kind: EventFailed, Prompt: prompt, Err: err}
		if errors.As(err, &all) {
			ev.Failed = all.Attempts
		}
		log.WithError(err).Error("agent: dispatch failed, clipboard left unchanged")
		a.notify(ev)
		return
	}

	if a.limiter != nil {
		a.limiter.Allow()
	}

	if strings.TrimSpace(out.Text) == "" {
		log.WithField("provider", out.ProviderID).Error("agent: empty reply, clipboard left unchanged")
		a.notify(Event{Kind: EventFailed, Prompt: prompt, Provider: out.ProviderID, Err: errEmptyReply})
		return
	}

	if _, err := a.store.AppendExchange(prompt, out.Text, out.ProviderID); err != nil {
		log.WithError(err).Error("agent: could not record exchange")
		a.notify(Event{Kind: EventError, Err: err})
	}

	reply := minimal.Minimalize(out.Text)
	a.lastRaw, a.lastMinimal = out.Text, reply
	a.lastProvider, a.lastAt = out.ProviderID, time.Now()

	if err := a.clip.Write(reply); err != nil {
		log.WithError(err).Error("agent: clipboard write failed")
		a.notify(Event{Kind: EventError, Err: fmt.Errorf("clipboard write: %w", err)})
		return
	}

	log.WithFields(logrus.Fields{
		"provider": out.ProviderID,
		"duration": out.Duration.Round(time.Millisecond),
		"failover": len(out.Failed),
		"chars":    len(reply),
	}).Info("agent: reply written to clipboard")
	a.notify(Event{Kind: EventReply, Provider: out.ProviderID, Failed: out.Failed, Duration: out.Duration})
}
