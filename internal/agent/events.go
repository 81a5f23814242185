// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package agent

import (
	"time"

	"github.com/jeranaias/paperclip/internal/dispatch"
)

// EventKind classifies an operator-facing event.
type EventKind int

const (
	EventArmed EventKind = iota
	EventMode
	EventFamily
	EventTrigger
	EventSkipped
	EventReply
	EventFailed
	EventError
)

// Event is something the operator should see.
type Event struct {
	Kind       EventKind
	Prompt     string
	Provider   string
	Family     string
	Continuous bool
	Duration   time.Duration
	// Failed holds the failed attempts: all of them for EventFailed, the
	// ones before the answering provider for EventReply.
	Failed []dispatch.Attempt
	Err    error
}
