// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Unified error handling for CLI commands.
//
// Commands always return errors; main decides how to display them and
// which exit code to use.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/jeranaias/paperclip/internal/cloud"
	"github.com/jeranaias/paperclip/internal/config"
	"github.com/jeranaias/paperclip/internal/dispatch"
	"github.com/jeranaias/paperclip/internal/provider"
	"github.com/jeranaias/paperclip/internal/session"
)

// =============================================================================
// EXIT CODES - Specific codes for different error categories
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates configuration file or provider file error
	ExitConfigError = 3
	// ExitAuthError indicates a provider rejected the API key
	ExitAuthError = 4
	// ExitNetworkError indicates no provider could be reached
	ExitNetworkError = 5
	// ExitNotFoundError indicates a resource was not found
	ExitNotFoundError = 7
	// ExitTimeoutError indicates an operation timed out
	ExitTimeoutError = 8
)

// =============================================================================
// ERROR TYPES FOR STRUCTURED ERROR HANDLING
// =============================================================================

// ErrConfig marks errors loading or validating config.toml.
var ErrConfig = errors.New("configuration error")

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string // Command that failed (e.g., "sessions")
	Action  string // Action being performed (e.g., "export")
	Reason  string // Human-readable reason
	Err     error  // Underlying error (if any)
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s %s failed: %s: %v", e.Command, e.Action, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s %s failed: %s", e.Command, e.Action, e.Reason)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents a validation failure for user input.
type ValidationError struct {
	Field   string // Field that failed validation
	Value   string // Value that was provided
	Reason  string // Why validation failed
	Example string // Example of valid value (optional)
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	if e.Value != "" {
		msg += fmt.Sprintf(" (got: %s)", e.Value)
	}
	if e.Example != "" {
		msg += fmt.Sprintf("\nExample: %s", e.Example)
	}
	return msg
}

// NewCommandError creates a new command error.
func NewCommandError(command, action, reason string, err error) error {
	return &CommandError{Command: command, Action: action, Reason: reason, Err: err}
}

// ErrMissingArgument creates an error for missing required arguments.
func ErrMissingArgument(argName, usage string) error {
	return &ValidationError{Field: argName, Reason: "required argument missing", Example: usage}
}

// ErrUnsupportedFormat creates an error for unsupported formats.
func ErrUnsupportedFormat(format string, supported []string) error {
	return &ValidationError{
		Field:   "format",
		Value:   format,
		Reason:  "unsupported format",
		Example: fmt.Sprintf("supported formats: %v", supported),
	}
}

// =============================================================================
// ERROR DISPLAY HELPERS
// =============================================================================

// DisplayError prints err to stderr, as JSON in JSON mode.
func DisplayError(err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(err)
		return
	}
	fmt.Fprintf(os.Stderr, "%s %s\n", ErrorStyle.Render("Error:"), err.Error())
}

// DisplayErrorJSON outputs an error as JSON on stdout.
func DisplayErrorJSON(err error) {
	output := map[string]interface{}{
		"error":     err.Error(),
		"success":   false,
		"exit_code": GetExitCode(err),
	}

	var cmdErr *CommandError
	var valErr *ValidationError
	switch {
	case errors.As(err, &valErr):
		output["error_type"] = "validation_error"
		output["field"] = valErr.Field
	case errors.As(err, &cmdErr):
		output["error_type"] = "command_error"
		output["command"] = cmdErr.Command
		output["action"] = cmdErr.Action
	default:
		output["error_type"] = "generic_error"
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	encoder.Encode(output)
}

// HandleErrorAndExit displays an error and exits with the matching code.
func HandleErrorAndExit(err error, jsonMode bool) {
	if err == nil {
		return
	}
	DisplayError(err, jsonMode)
	os.Exit(GetExitCode(err))
}

// GetExitCode maps an error onto an exit code by its type.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var validationErr *ValidationError
	var configErrs config.ValidateErrors
	switch {
	case errors.As(err, &validationErr):
		return ExitUsageError
	case errors.Is(err, ErrConfig), errors.Is(err, provider.ErrConfiguration), errors.As(err, &configErrs):
		return ExitConfigError
	case errors.Is(err, session.ErrNotFound):
		return ExitNotFoundError
	case errors.Is(err, dispatch.ErrNoProviderAvailable), errors.Is(err, dispatch.ErrAllProvidersFailed):
		return ExitNetworkError
	case errors.Is(err, cloud.ErrAuthFailed):
		return ExitAuthError
	case cloud.Classify(err) == cloud.KindTimeout:
		return ExitTimeoutError
	}
	return ExitGeneralError
}
