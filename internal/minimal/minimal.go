// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package minimal reduces a model response to the code it contains.
package minimal

import (
	"regexp"
	"strings"
)

// Markers prefixed to reduced output.
const (
	MarkerExtracted = "// code (extracted)"
	MarkerHeuristic = "// code (heuristic)"
)

// MinHeuristicLines is the fewest code-like lines the heuristic needs
// before it replaces the response.
const MinHeuristicLines = 2

var (
	fenceRe = regexp.MustCompile("(?s)```[^\\n`]*\\n(.*?)```")

	codeLineRes = []*regexp.Regexp{
		// comments
		regexp.MustCompile(`^(?:#|//|/\*|\*/|--\s)`),
		// assignments, not comparisons
		regexp.MustCompile(`^[\w.\[\]"'-]+\s*(?:[-+*/%|&^]|:|<<|>>)?=[^=]`),
		// statements and declarations
		regexp.MustCompile(`^(?:def|class|for|while|if|elif|else|return|print|import|from|func|package|type|var|let|const|fn|pub|public|private|protected|static|try|except|catch|finally|switch|case|default|with|async|await|yield|raise|throw|struct|enum|interface|impl|use|#include)\b`),
		// calls and lines ending like code
		regexp.MustCompile(`^[\w.]+\(.*\)\s*;?$`),
		regexp.MustCompile(`[{};]\s*$`),
		regexp.MustCompile(`^[})\]]+[;,]?$`),
	}

	// prose ends in sentence punctuation and carries no code symbols.
	proseEndRe = regexp.MustCompile(`[.!?]$`)
)

// Minimalize returns the compact, code-biased form of raw.
//
// Fenced code blocks win: their contents are joined in order under
// MarkerExtracted. Otherwise code-looking lines are kept under
// MarkerHeuristic. If neither finds anything, raw is returned unchanged,
// so a non-empty input never yields an empty output.
func Minimalize(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return raw
	}
	if blocks := fencedBlocks(raw); len(blocks) > 0 {
		return MarkerExtracted + "\n" + strings.Join(blocks, "\n\n") + "\n"
	}
	if code, n := heuristicLines(raw); n >= MinHeuristicLines {
		return MarkerHeuristic + "\n" + code + "\n"
	}
	return raw
}

// fencedBlocks returns the non-empty fenced block bodies in order.
func fencedBlocks(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	for _, m := range fenceRe.FindAllStringSubmatch(s, -1) {
		body := strings.TrimRight(m[1], " \t\n")
		if strings.TrimSpace(body) != "" {
			out = append(out, body)
		}
	}
	return out
}

// heuristicLines keeps runs of code-like lines, separating runs with a
// blank line. Indented lines directly after a code line continue the run.
// It returns the kept text and the number of kept non-blank lines.
func heuristicLines(s string) (string, int) {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")

	var (
		runs  []string
		run   []string
		count int
	)
	flush := func() {
		if len(run) > 0 {
			runs = append(runs, strings.Join(run, "\n"))
			run = nil
		}
	}

	for _, ln := range lines {
		trimmed := strings.TrimSpace(ln)
		switch {
		case trimmed == "":
			flush()
		case IsCodeLine(trimmed), len(run) > 0 && indented(ln):
			run = append(run, strings.TrimRight(ln, " \t"))
			count++
		default:
			flush()
		}
	}
	flush()

	return strings.Join(runs, "\n\n"), count
}

// IsCodeLine reports whether a trimmed line looks like source code.
func IsCodeLine(line string) bool {
	if isProse(line) {
		return false
	}
	for _, re := range codeLineRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func isProse(line string) bool {
	if !proseEndRe.MatchString(line) || strings.ContainsAny(line, "=;{}()[]") {
		return false
	}
	return len(strings.Fields(line)) >= 4
}

func indented(line string) bool {
	return strings.HasPrefix(line, "\t") || strings.HasPrefix(line, "    ")
}
