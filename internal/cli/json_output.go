// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// json_output.go - JSON output for scripting against paperclip.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// JSONResponse is the envelope every --json command prints.
type JSONResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	Error     *string     `json:"error"`
	Timestamp string      `json:"timestamp"`
	Command   string      `json:"command,omitempty"`
}

// NewJSONResponse creates a new successful JSON response.
func NewJSONResponse(command string, data interface{}) *JSONResponse {
	return &JSONResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// NewJSONErrorResponse creates a new error JSON response.
func NewJSONErrorResponse(command string, err error) *JSONResponse {
	errStr := err.Error()
	return &JSONResponse{
		Success:   false,
		Error:     &errStr,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Command:   command,
	}
}

// Print outputs the JSON response to stdout.
func (r *JSONResponse) Print() error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(r)
}

// OutputJSON runs handler and, in JSON mode, prints its result wrapped in
// a JSONResponse. Outside JSON mode the handler prints for itself.
func OutputJSON(jsonMode bool, command string, handler func() (interface{}, error)) error {
	if !jsonMode {
		_, err := handler()
		return err
	}

	data, err := handler()
	if err != nil {
		NewJSONErrorResponse(command, err).Print()
		return err
	}
	return NewJSONResponse(command, data).Print()
}

// StderrPrint prints a message to stderr.
func StderrPrint(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, format, args...)
}

// =============================================================================
// COMMAND-SPECIFIC DATA STRUCTURES
// =============================================================================

// ProviderData is one provider in status/providers output. The API key is
// always masked.
type ProviderData struct {
	Rank      int    `json:"rank"`
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Family    string `json:"family,omitempty"`
	Protocol  string `json:"protocol"`
	Model     string `json:"model"`
	Priority  int    `json:"priority"`
	Enabled   bool   `json:"enabled"`
	APIKey    string `json:"api_key"`
	Endpoint  string `json:"endpoint"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}

// StatusData is the --json payload of "paperclip status".
type StatusData struct {
	Version         string         `json:"version"`
	ConfigPath      string         `json:"config_path,omitempty"`
	ProvidersFile   string         `json:"providers_file"`
	PreferredFamily string         `json:"preferred_family"`
	Clipboard       string         `json:"clipboard"`
	Watch           string         `json:"watch"`
	SessionBackend  string         `json:"session_backend"`
	SessionDir      string         `json:"session_dir"`
	Sessions        int            `json:"sessions"`
	Providers       []ProviderData `json:"providers"`
}

// VersionData is the --json payload of "paperclip version".
type VersionData struct {
	Version   string `json:"version"`
	GitCommit string `json:"git_commit"`
	BuildDate string `json:"build_date"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
}
