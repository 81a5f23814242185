// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/paperclip/internal/util"
)

// ExportMarkdown renders the session as a markdown transcript.
func (s *Session) ExportMarkdown() string {
	var sb strings.Builder
	sb.WriteString("# Session " + s.Name + "\n\n")
	sb.WriteString("Created: " + s.CreatedAt.Format(time.RFC3339) + "\n\n")
	sb.WriteString("---\n\n")

	for _, t := range s.Turns {
		role := "**User**"
		if t.Role == RoleAssistant {
			role = "**Assistant**"
			if t.Provider != "" {
				role += " via `" + t.Provider + "`"
			}
		}
		sb.WriteString(role + " (" + t.Timestamp.Format("15:04") + "):\n\n")
		sb.WriteString(t.Text)
		sb.WriteString("\n\n---\n\n")
	}
	return sb.String()
}

// ExportText renders the session as plain text.
func (s *Session) ExportText() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Session %s (created %s)\n\n", s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"))
	for _, t := range s.Turns {
		fmt.Fprintf(&sb, "[%s] %s:\n%s\n\n", t.Timestamp.Format("15:04:05"), t.Role, t.Text)
	}
	return sb.String()
}

// ExportJSON renders the session in its on-disk JSON shape.
func (s *Session) ExportJSON() ([]byte, error) {
	return json.MarshalIndent(s, "", "  ")
}

// FormatList renders summaries as an aligned table.
func FormatList(list []Summary) string {
	if len(list) == 0 {
		return "No sessions found."
	}

	var sb strings.Builder
	sb.WriteString("Sessions:\n")
	sb.WriteString("-----------------------------------------------------\n")
	fmt.Fprintf(&sb, "%-10s %-18s %-6s %s\n", "ID", "Updated", "Turns", "Preview")
	sb.WriteString("-----------------------------------------------------\n")

	for _, s := range list {
		fmt.Fprintf(&sb, "%-10s %-18s %-6d %s\n",
			s.ID,
			s.UpdatedAt.Format("2006-01-02 15:04"),
			s.TurnCount,
			util.Preview(s.Preview, 40))
	}
	return sb.String()
}
