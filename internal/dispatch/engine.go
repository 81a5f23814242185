// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/paperclip/internal/cloud"
	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/provider"
	"github.com/jeranaias/paperclip/internal/session"
)

// Candidates supplies the ordered provider list for one dispatch.
// *provider.Registry satisfies it.
type Candidates interface {
	OrderedCandidates(preferredFamily string) []provider.Descriptor
}

// Transport performs one completion request. *cloud.Client satisfies it.
type Transport interface {
	Complete(ctx context.Context, d provider.Descriptor, req cloud.Request) (string, error)
}

// Options tunes an Engine.
type Options struct {
	// Timeout bounds each attempt, not the whole dispatch.
	Timeout      time.Duration
	SystemPrompt string
	// HistoryLimit caps the replayed turns. 0 or less replays everything.
	HistoryLimit int
	MaxTokens    int
	Temperature  float64

	Cooldown          bool
	DefaultRetryAfter time.Duration
}

// OptionsFromConfig maps the [dispatch] config section onto Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Timeout:           cfg.RequestTimeout(),
		SystemPrompt:      cfg.Dispatch.SystemPrompt,
		HistoryLimit:      cfg.Dispatch.HistoryLimit,
		MaxTokens:         cfg.Dispatch.MaxTokens,
		Temperature:       cfg.Dispatch.Temperature,
		Cooldown:          cfg.Dispatch.Cooldown,
		DefaultRetryAfter: cfg.DefaultRetryAfter(),
	}
}

// Outcome is a successful dispatch.
type Outcome struct {
	ProviderID string
	Text       string
	// Failed lists the candidates that failed before ProviderID answered.
	Failed   []Attempt
	Duration time.Duration
}

// Engine runs dispatches. It never mutates the registry or the session.
type Engine struct {
	candidates Candidates
	transport  Transport
	opts       Options
	log        logrus.FieldLogger
	now        func() time.Time

	mu        sync.Mutex
	coolUntil map[string]time.Time

	stats *Stats
}

// New creates an engine.
func New(candidates Candidates, transport Transport, opts Options) *Engine {
	if opts.Timeout <= 0 {
		opts.Timeout = cloud.DefaultTimeout
	}
	if opts.DefaultRetryAfter <= 0 {
		opts.DefaultRetryAfter = 10 * time.Second
	}
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	return &Engine{
		candidates: candidates,
		transport:  transport,
		opts:       opts,
		log:        discard,
		now:        time.Now,
		coolUntil:  make(map[string]time.Time),
		stats:      NewStats(),
	}
}

// WithLogger sets the event logger.
func (e *Engine) WithLogger(l logrus.FieldLogger) *Engine {
	e.log = l
	return e
}

// Stats returns the engine's running statistics.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Send asks each candidate in turn until one answers. history is replayed
// before prompt; it is read, never modified.
func (e *Engine) Send(ctx context.Context, prompt string, history []session.Turn, preferredFamily string) (*Outcome, error) {
	candidates := e.candidates.OrderedCandidates(preferredFamily)
	if len(candidates) == 0 {
		e.log.Warn("dispatch: no provider available")
		return nil, ErrNoProviderAvailable
	}

	req := cloud.Request{
		Messages:    e.buildMessages(prompt, history),
		MaxTokens:   e.opts.MaxTokens,
		Temperature: e.opts.Temperature,
	}

	start := e.now()
	var failed []Attempt

	for _, d := range candidates {
		if remaining, cooling := e.coolingDown(d.ID); cooling {
			a := Attempt{
				ProviderID: d.ID,
				Kind:       KindCoolingDown,
				Err:        fmt.Errorf("cooling down for %s", remaining.Round(time.Second)),
			}
			failed = append(failed, a)
			e.stats.recordFailure(d.ID, a)
			e.log.WithFields(logrus.Fields{"provider": d.ID, "remaining": remaining.Round(time.Second)}).
				Info("dispatch: skipping provider in cooldown")
			continue
		}

		if err := ctx.Err(); err != nil {
			a := Attempt{ProviderID: d.ID, Kind: cloud.KindCanceled, Err: err}
			failed = append(failed, a)
			continue
		}

		text, a := e.attempt(ctx, d, req)
		if a == nil {
			e.clearCooldown(d.ID)
			out := &Outcome{
				ProviderID: d.ID,
				Text:       text,
				Failed:     failed,
				Duration:   e.now().Sub(start),
			}
			e.stats.recordSuccess(d.ID, out.Duration)
			return out, nil
		}

		failed = append(failed, *a)
		e.stats.recordFailure(d.ID, *a)
		if a.Kind == cloud.KindRateLimited {
			e.startCooldown(d.ID, cloud.RetryAfterOf(a.Err))
		}
	}

	e.stats.recordExhausted()
	err := &AllProvidersFailedError{Attempts: failed}
	e.log.WithField("attempts", len(failed)).Error(err.Error())
	return nil, err
}

// attempt calls one candidate with its own deadline.
func (e *Engine) attempt(ctx context.Context, d provider.Descriptor, req cloud.Request) (string, *Attempt) {
	if d.MaxTokens > 0 {
		req.MaxTokens = d.MaxTokens
	}

	actx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	began := e.now()
	text, err := e.transport.Complete(actx, d, req)
	took := e.now().Sub(began)
	if err == nil && strings.TrimSpace(text) == "" {
		err = fmt.Errorf("%w: empty content", cloud.ErrInvalidResponse)
	}

	fields := logrus.Fields{"provider": d.ID, "model": d.Model, "duration": took.Round(time.Millisecond)}
	if err == nil {
		e.log.WithFields(fields).Info("dispatch: provider answered")
		return text, nil
	}

	kind := cloud.Classify(err)
	if kind == cloud.KindCanceled && ctx.Err() == nil {
		// Our own per-attempt deadline fired.
		kind = cloud.KindTimeout
	}
	fields["kind"] = kind
	e.log.WithFields(fields).WithError(err).Warn("dispatch: provider failed, trying next")
	return "", &Attempt{ProviderID: d.ID, Kind: kind, Err: err, Duration: took}
}

// buildMessages lays out system prompt, history tail and the new prompt.
func (e *Engine) buildMessages(prompt string, history []session.Turn) []cloud.Message {
	if e.opts.HistoryLimit > 0 {
		history = session.LastTurns(history, e.opts.HistoryLimit)
	}

	msgs := make([]cloud.Message, 0, len(history)+2)
	if e.opts.SystemPrompt != "" {
		msgs = append(msgs, cloud.NewSystemMessage(e.opts.SystemPrompt))
	}
	for _, t := range history {
		switch t.Role {
		case session.RoleUser:
			msgs = append(msgs, cloud.NewUserMessage(t.Text))
		case session.RoleAssistant:
			msgs = append(msgs, cloud.NewAssistantMessage(t.Text))
		}
	}
	return append(msgs, cloud.NewUserMessage(prompt))
}

// =============================================================================
// COOLDOWN
// =============================================================================

func (e *Engine) coolingDown(id string) (time.Duration, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	until, ok := e.coolUntil[id]
	if !ok {
		return 0, false
	}
	remaining := until.Sub(e.now())
	if remaining <= 0 {
		delete(e.coolUntil, id)
		return 0, false
	}
	return remaining, true
}

func (e *Engine) startCooldown(id string, retryAfter time.Duration) {
	if !e.opts.Cooldown {
		return
	}
	if retryAfter <= 0 {
		retryAfter = e.opts.DefaultRetryAfter
	}

	e.mu.Lock()
	e.coolUntil[id] = e.now().Add(retryAfter)
	e.mu.Unlock()

	e.log.WithFields(logrus.Fields{"provider": id, "retry_after": retryAfter}).Info("dispatch: provider rate-limited, cooling down")
}

func (e *Engine) clearCooldown(id string) {
	e.mu.Lock()
	delete(e.coolUntil, id)
	e.mu.Unlock()
}

// Cooldowns returns the remaining cooldown per provider id.
func (e *Engine) Cooldowns() map[string]time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]time.Duration, len(e.coolUntil))
	now := e.now()
	for id, until := range e.coolUntil {
		if d := until.Sub(now); d > 0 {
			out[id] = d
		}
	}
	return out
}
