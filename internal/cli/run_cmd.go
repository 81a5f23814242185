// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// run_cmd.go - The clipboard agent: paperclip run.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/paperclip/internal/agent"
	"github.com/jeranaias/paperclip/internal/clipboard"
	"github.com/jeranaias/paperclip/internal/cloud"
	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/dispatch"
	"github.com/jeranaias/paperclip/internal/logging"
	"github.com/jeranaias/paperclip/internal/provider"
	"github.com/jeranaias/paperclip/internal/session"
	"github.com/jeranaias/paperclip/internal/util"
)

// HandleRun starts the agent and blocks until interrupted or, with the
// console, until the operator quits.
func HandleRun(args Args) error {
	cfg, err := loadConfig(args)
	if err != nil {
		return err
	}

	useConsole := !args.NoConsole && IsTTY()
	log, closer, err := logging.New(cfg.Log, logging.Options{
		ToFile:  useConsole,
		Verbose: args.Verbose,
		Quiet:   args.Quiet,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrConfig, err)
	}
	defer closer.Close()

	reg, err := provider.Load(cfg.ProvidersFile)
	if err != nil {
		return err
	}
	log.WithFields(logrus.Fields{
		"providers": len(reg.All()),
		"enabled":   reg.Len(),
		"source":    reg.Source(),
	}).Info("run: providers loaded")

	engine := dispatch.New(reg, cloud.NewClient().WithLogger(log), dispatch.OptionsFromConfig(cfg)).WithLogger(log)

	backend, err := openSessions(cfg)
	if err != nil {
		return err
	}
	store, err := session.NewStore(backend)
	if err != nil {
		backend.Close()
		return err
	}
	defer store.Close()

	clip, err := clipboard.Open(cfg.Clipboard)
	if err != nil {
		return NewCommandError("run", "open clipboard", "clipboard unavailable", err)
	}
	watcher := clipboard.NewWatcher(clip, clipboard.WatchOptions{
		Notify:   cfg.Clipboard.Watch == "notify",
		Interval: cfg.PollInterval(),
		Log:      log,
	})
	if err := watcher.Prime(); err != nil {
		log.WithError(err).Warn("run: could not read initial clipboard")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	printer := &eventPrinter{out: os.Stdout, quiet: args.Quiet}
	ag := agent.New(engine, store, watcher, agent.Options{
		PreferredFamily: cfg.PreferredFamily,
		MinInterval:     cfg.MinInterval(),
		Log:             log,
		Notify:          printer.Print,
	})

	changes := make(chan string)
	watchErr := make(chan error, 1)
	go func() { watchErr <- watcher.Run(ctx, changes) }()
	agentDone := make(chan error, 1)
	go func() { agentDone <- ag.Run(ctx, changes) }()

	printBanner(os.Stdout, cfg, reg, store.Active())

	var runErr error
	if useConsole {
		console := NewConsole(ag, engine, reg)
		runErr = console.Run(ctx, watchErr)
	} else {
		select {
		case <-ctx.Done():
		case runErr = <-watchErr:
		}
	}

	stop()
	<-agentDone
	log.Info("run: stopped")
	fmt.Fprintln(os.Stdout, DimStyle.Render("Stopped."))
	return runErr
}

func printBanner(w io.Writer, cfg *config.Config, reg *provider.Registry, sess *session.Session) {
	fmt.Fprintln(w, TitleStyle.Render("paperclip "+Version))
	fmt.Fprintln(w, RenderField("Providers:", fmt.Sprintf("%d enabled of %d (%s)", reg.Len(), len(reg.All()), reg.Source())))
	family := cfg.PreferredFamily
	if family == "" {
		family = "none"
	}
	fmt.Fprintln(w, RenderField("Preferred:", family))
	fmt.Fprintln(w, RenderField("Clipboard:", cfg.Clipboard.Backend+" ("+cfg.Clipboard.Watch+")"))
	fmt.Fprintln(w, RenderField("Session:", sess.Name+" ("+sess.ID+")"))
	fmt.Fprintln(w, DimStyle.Render(`Copy "agent.prompt <question>" to ask. Type "help" for console commands.`))
	fmt.Fprintln(w)
}

// =============================================================================
// EVENT OUTPUT
// =============================================================================

// eventPrinter writes agent events for the operator.
type eventPrinter struct {
	out   io.Writer
	quiet bool
}

// Print renders one event. Called on the agent loop goroutine.
func (p *eventPrinter) Print(ev agent.Event) {
	line := formatEvent(ev)
	if line == "" {
		return
	}
	if p.quiet && ev.Kind != agent.EventFailed && ev.Kind != agent.EventError {
		return
	}
	fmt.Fprintln(p.out, line)
}

// formatEvent returns the operator-facing text for ev.
func formatEvent(ev agent.Event) string {
	switch ev.Kind {
	case agent.EventArmed:
		return WarningStyle.Render("Armed:") + " the next thing you copy will be sent"
	case agent.EventMode:
		if ev.Continuous {
			return WarningStyle.Render("Mode:") + " all (every copy is a prompt)"
		}
		return WarningStyle.Render("Mode:") + " one (explicit prompts only)"
	case agent.EventFamily:
		return WarningStyle.Render("Model:") + " preferring " + ev.Family
	case agent.EventTrigger:
		return DimStyle.Render("-> ") + util.Preview(ev.Prompt, 60)
	case agent.EventSkipped:
		return DimStyle.Render("Skipped: too soon after the previous prompt")
	case agent.EventReply:
		var b strings.Builder
		b.WriteString(SuccessStyle.Render("Copied"))
		fmt.Fprintf(&b, " reply from %s in %s", ev.Provider, ev.Duration.Round(10*time.Millisecond))
		if len(ev.Failed) > 0 {
			fmt.Fprintf(&b, " %s", DimStyle.Render("after "+attemptList(ev.Failed)))
		}
		return b.String()
	case agent.EventFailed:
		msg := ErrorStyle.Render("Failed:") + " "
		if len(ev.Failed) > 0 {
			return msg + "all providers failed: " + attemptList(ev.Failed)
		}
		if errors.Is(ev.Err, dispatch.ErrNoProviderAvailable) {
			return msg + "no provider is enabled"
		}
		return msg + errString(ev.Err)
	case agent.EventError:
		return ErrorStyle.Render("Error:") + " " + errString(ev.Err)
	}
	return ""
}

func attemptList(attempts []dispatch.Attempt) string {
	parts := make([]string, len(attempts))
	for i, a := range attempts {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}

// formatAge renders how long ago t was, or "never".
func formatAge(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return util.FormatDuration(time.Since(t).Round(time.Second)) + " ago"
}
