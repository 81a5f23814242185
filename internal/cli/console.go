// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// console.go - Operator console shown while the agent runs.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/jeranaias/paperclip/internal/agent"
	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/dispatch"
	"github.com/jeranaias/paperclip/internal/provider"
)

const consolePrompt = "paperclip> "

const consoleHelp = `Console commands:
  status            Session, mode and provider health
  providers [id]    Providers in current candidate order, or one in detail
  new               Start a new session
  mode all|one|off  Continuous mode on (all) or off (one/off)
  model gem|openr   Prefer Gemini or OpenRouter
  last              Show the last reply as copied
  raw               Show the last reply in full
  help              Show this help
  quit              Stop paperclip`

// AgentController runs operator commands. *agent.Agent satisfies it.
type AgentController interface {
	Do(ctx context.Context, cmd agent.Command) (agent.Reply, error)
}

// DispatchInfo exposes dispatch health. *dispatch.Engine satisfies it.
type DispatchInfo interface {
	Stats() *dispatch.Stats
	Cooldowns() map[string]time.Duration
}

// Console is a liner-based REPL over a running agent.
type Console struct {
	agent    AgentController
	dispatch DispatchInfo
	registry *provider.Registry
}

// NewConsole creates a console.
func NewConsole(a AgentController, d DispatchInfo, reg *provider.Registry) *Console {
	return &Console{agent: a, dispatch: d, registry: reg}
}

type inputLine struct {
	text string
	err  error
}

// Run reads commands until quit, EOF, ctx is done or a value arrives on
// fatal.
func (c *Console) Run(ctx context.Context, fatal <-chan error) error {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)
	historyFile := consoleHistoryPath()
	if f, err := os.Open(historyFile); err == nil {
		line.ReadHistory(f)
		f.Close()
	}
	defer func() {
		saveHistory(line, historyFile)
		line.Close()
	}()

	inputs := make(chan inputLine)
	next := make(chan struct{}, 1)
	go func() {
		for {
			text, err := line.Prompt(consolePrompt)
			select {
			case inputs <- inputLine{text, err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
			select {
			case <-next:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-fatal:
			return err
		case in := <-inputs:
			if in.err != nil {
				if errors.Is(in.err, liner.ErrPromptAborted) || errors.Is(in.err, io.EOF) {
					return nil
				}
				return in.err
			}
			if strings.TrimSpace(in.text) != "" {
				line.AppendHistory(in.text)
			}
			out, quit, err := c.Execute(ctx, in.text)
			if err != nil {
				fmt.Fprintf(os.Stdout, "%s %v\n", ErrorStyle.Render("Error:"), err)
			} else if out != "" {
				fmt.Fprintln(os.Stdout, out)
			}
			if quit {
				return nil
			}
			next <- struct{}{}
		}
	}
}

// Execute runs one console line and returns its output and whether the
// console should exit.
func (c *Console) Execute(ctx context.Context, input string) (string, bool, error) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return "", false, nil
	}
	cmd := strings.ToLower(fields[0])
	arg := ""
	if len(fields) > 1 {
		arg = fields[1]
	}

	switch cmd {
	case "help", "h", "?":
		return consoleHelp, false, nil

	case "quit", "exit", "q":
		return "", true, nil

	case "status", "s":
		rep, err := c.agent.Do(ctx, agent.Command{Kind: agent.CmdStatus})
		if err != nil {
			return "", false, err
		}
		return c.formatStatus(rep.Status), false, nil

	case "providers", "p":
		if arg != "" {
			return c.describeProvider(arg)
		}
		return c.formatProviders(), false, nil

	case "new":
		rep, err := c.agent.Do(ctx, agent.Command{Kind: agent.CmdNewSession})
		return rep.Message, false, err

	case "mode":
		if arg == "" {
			return "", false, &ValidationError{Field: "mode", Reason: "required argument missing", Example: "mode all"}
		}
		rep, err := c.agent.Do(ctx, agent.Command{Kind: agent.CmdSetMode, Arg: arg})
		return rep.Message, false, err

	case "model":
		if arg == "" {
			return "", false, &ValidationError{Field: "model", Reason: "required argument missing", Example: "model gem"}
		}
		rep, err := c.agent.Do(ctx, agent.Command{Kind: agent.CmdSetFamily, Arg: arg})
		return rep.Message, false, err

	case "last":
		rep, err := c.agent.Do(ctx, agent.Command{Kind: agent.CmdLast})
		if err != nil {
			return "", false, err
		}
		if rep.Text == "" {
			return DimStyle.Render("No reply yet."), false, nil
		}
		return highlightCode(rep.Text, ""), false, nil

	case "raw":
		rep, err := c.agent.Do(ctx, agent.Command{Kind: agent.CmdRaw})
		if err != nil {
			return "", false, err
		}
		if rep.Text == "" {
			return DimStyle.Render("No reply yet."), false, nil
		}
		return renderMarkdown(rep.Text), false, nil
	}

	return "", false, fmt.Errorf("unknown command %q (type help)", cmd)
}

func (c *Console) formatStatus(st *agent.Status) string {
	if st == nil {
		return ""
	}
	var b strings.Builder
	mode := "one"
	if st.Continuous {
		mode = "all"
	}
	family := st.PreferredFamily
	if family == "" {
		family = "none"
	}
	fmt.Fprintln(&b, RenderField("Session:", fmt.Sprintf("%s (%s), %d turns", st.SessionName, st.SessionID, st.Turns)))
	fmt.Fprintln(&b, RenderField("Mode:", mode))
	if st.Armed {
		fmt.Fprintln(&b, RenderField("Armed:", "yes"))
	}
	fmt.Fprintln(&b, RenderField("Preferred:", family))
	last := formatAge(st.LastAt)
	if st.LastProvider != "" {
		last = st.LastProvider + ", " + last
	}
	fmt.Fprintln(&b, RenderField("Last reply:", last))
	if c.dispatch != nil {
		b.WriteString(c.dispatch.Stats().Summary())
		cool := c.dispatch.Cooldowns()
		ids := make([]string, 0, len(cool))
		for id := range cool {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "\n  %s %s for %s", RenderStatus("cooling"), id, cool[id].Round(time.Second))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (c *Console) formatProviders() string {
	if c.registry == nil {
		return ""
	}
	family := ""
	if rep, err := c.agent.Do(context.Background(), agent.Command{Kind: agent.CmdStatus}); err == nil && rep.Status != nil {
		family = rep.Status.PreferredFamily
	}
	return formatProviderTable(c.registry.All(), c.registry.OrderedCandidates(family))
}

// describeProvider shows one descriptor with its key masked.
func (c *Console) describeProvider(id string) (string, bool, error) {
	if c.registry == nil {
		return "", false, fmt.Errorf("no providers loaded")
	}
	d, ok := c.registry.Lookup(id)
	if !ok {
		return "", false, &ValidationError{Field: "provider", Value: id, Reason: "no such provider", Example: "providers or-main"}
	}
	status := "enabled"
	if !d.Enabled {
		status = "disabled"
	}
	var b strings.Builder
	fmt.Fprintln(&b, RenderField("ID:", d.ID)+" "+RenderStatus(status))
	fmt.Fprintln(&b, RenderField("Family:", dash(d.Family)))
	fmt.Fprintln(&b, RenderField("Protocol:", d.Protocol().String()))
	fmt.Fprintln(&b, RenderField("Model:", d.Model))
	fmt.Fprintln(&b, RenderField("Priority:", fmt.Sprint(d.Priority)))
	fmt.Fprintln(&b, RenderField("Endpoint:", d.Endpoint()))
	b.WriteString(RenderField("API key:", d.MaskedKey()))
	return b.String(), false, nil
}

// formatProviderTable lists ordered candidates first, then disabled
// providers.
func formatProviderTable(all, ordered []provider.Descriptor) string {
	if len(all) == 0 {
		return "No providers configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-4s %-18s %-11s %-32s %s\n", "#", "ID", "Family", "Model", "Key")
	b.WriteString(RenderSeparator(separatorWidth()) + "\n")
	for i, d := range ordered {
		fmt.Fprintf(&b, "%-4d %-18s %-11s %-32s %s\n", i+1, d.ID, dash(d.Family), d.Model, d.MaskedKey())
	}
	for _, d := range all {
		if !d.Enabled {
			fmt.Fprintf(&b, "%-4s %-18s %-11s %-32s %s\n", "-", d.ID, dash(d.Family), d.Model, RenderStatus("disabled"))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func consoleHistoryPath() string {
	dir, err := config.ConfigDir()
	if err != nil {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "console_history")
}

// saveHistory persists console history with 0600 permissions.
func saveHistory(line *liner.State, path string) {
	if err := config.EnsureConfigDir(); err != nil {
		return
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return
	}
	defer f.Close()
	line.WriteHistory(f)
}
