// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/paperclip/internal/config"
)

// CommandKind names an operator command.
type CommandKind int

const (
	CmdStatus CommandKind = iota
	CmdNewSession
	// CmdSetMode takes "all", "off" or "one".
	CmdSetMode
	// CmdSetFamily takes "gem", "openr" or a family name.
	CmdSetFamily
	CmdLast
	CmdRaw
)

// Command is an operator request executed by the loop between events.
type Command struct {
	Kind CommandKind
	Arg  string
}

// Status is a snapshot of the agent.
type Status struct {
	SessionID       string
	SessionName     string
	Turns           int
	Continuous      bool
	Armed           bool
	PreferredFamily string
	LastProvider    string
	LastAt          time.Time
}

// Reply is the result of a command.
type Reply struct {
	Status  *Status
	Text    string
	Message string
}

type request struct {
	cmd   Command
	reply chan response
}

type response struct {
	rep Reply
	err error
}

// Do runs cmd on the loop goroutine and waits for its result. It waits
// behind any event being processed.
func (a *Agent) Do(ctx context.Context, cmd Command) (Reply, error) {
	req := request{cmd: cmd, reply: make(chan response, 1)}
	select {
	case a.commands <- req:
	case <-a.done:
		return Reply{}, ErrStopped
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
	select {
	case r := <-req.reply:
		return r.rep, r.err
	case <-ctx.Done():
		return Reply{}, ctx.Err()
	}
}

func (a *Agent) exec(cmd Command) (Reply, error) {
	switch cmd.Kind {
	case CmdStatus:
		return Reply{Status: a.status()}, nil

	case CmdNewSession:
		sess, err := a.store.StartNew()
		if err != nil {
			return Reply{}, err
		}
		a.log.WithField("session", sess.ID).Info("agent: new session")
		return Reply{Message: fmt.Sprintf("Started session %s (id=%s)", sess.Name, sess.ID)}, nil

	case CmdSetMode:
		switch strings.ToLower(strings.TrimSpace(cmd.Arg)) {
		case "all":
			a.interp.SetContinuous(true)
			return Reply{Message: "Mode set to all"}, nil
		case "off", "one":
			a.interp.SetContinuous(false)
			return Reply{Message: "Mode set to off"}, nil
		}
		return Reply{}, fmt.Errorf("mode must be: all, off or one")

	case CmdSetFamily:
		family := config.NormalizeFamily(cmd.Arg)
		if family == "" {
			return Reply{}, fmt.Errorf("model must be: gem or openr")
		}
		a.interp.SetFamily(family)
		return Reply{Message: "Preferred provider set to " + family}, nil

	case CmdLast:
		return Reply{Text: a.lastMinimal}, nil

	case CmdRaw:
		return Reply{Text: a.lastRaw}, nil
	}
	return Reply{}, fmt.Errorf("unknown command %d", cmd.Kind)
}

func (a *Agent) status() *Status {
	sess := a.store.Active()
	st := a.interp.State()
	return &Status{
		SessionID:       sess.ID,
		SessionName:     sess.Name,
		Turns:           len(sess.Turns),
		Continuous:      st.Continuous,
		Armed:           st.Armed,
		PreferredFamily: st.PreferredFamily,
		LastProvider:    a.lastProvider,
		LastAt:          a.lastAt,
	}
}
