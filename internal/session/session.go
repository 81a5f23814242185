// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a role a session may record.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one immutable entry in a conversation.
type Turn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"ts"`

	// Provider is the id of the provider that produced an assistant turn.
	Provider string `json:"provider,omitempty"`
}

// Session is an ordered, append-only conversation.
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Turns     []Turn    `json:"messages"`
}

// Clone returns a copy whose turn slice does not alias s.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	copy(c.Turns, s.Turns)
	return &c
}

// LastTurns returns at most the last n turns. n <= 0 returns none.
func LastTurns(turns []Turn, n int) []Turn {
	if n <= 0 {
		return nil
	}
	if n >= len(turns) {
		return turns
	}
	return turns[len(turns)-n:]
}

// Preview returns the first user turn's text, or "".
func (s *Session) Preview() string {
	for _, t := range s.Turns {
		if t.Role == RoleUser {
			return t.Text
		}
	}
	return ""
}

// Summary is the listing view of a stored session.
type Summary struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	TurnCount int       `json:"turn_count"`
	Preview   string    `json:"preview"`
}

// Summarize builds the listing view of s.
func Summarize(s *Session) Summary {
	return Summary{
		ID:        s.ID,
		Name:      s.Name,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
		TurnCount: len(s.Turns),
		Preview:   s.Preview(),
	}
}

// newSession creates an empty session with a short random identifier.
func newSession(now time.Time) *Session {
	id := uuid.NewString()[:8]
	return &Session{
		ID:        id,
		Name:      "session_" + id,
		CreatedAt: now,
		UpdatedAt: now,
		Turns:     []Turn{},
	}
}

// newTurn creates a turn with a time-sortable identifier.
func newTurn(role Role, text, providerID string, now time.Time) Turn {
	return Turn{
		ID:        ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String(),
		Role:      role,
		Text:      text,
		Timestamp: now,
		Provider:  providerID,
	}
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("session not found")

// StoreError wraps a persistence failure with the operation and session id.
type StoreError struct {
	Op  string
	ID  string
	Err error
}

func (e *StoreError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("session %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("session %s %s: %v", e.Op, e.ID, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
