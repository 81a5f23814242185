// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"fmt"
	"sync"
	"time"
)

// Backend persists sessions. Implementations must keep turns in append
// order and must never rewrite turns already stored.
type Backend interface {
	// Create records a new, empty session.
	Create(s *Session) error
	// AppendTurns appends turns to an existing session, in order.
	AppendTurns(id string, updatedAt time.Time, turns ...Turn) error
	// Load reads a session with all its turns. Missing ids yield ErrNotFound.
	Load(id string) (*Session, error)
	// List returns summaries, most recently updated first.
	List() ([]Summary, error)
	Close() error
}

// Store is the sole owner of persisted conversation state. Exactly one
// session is active at a time. Safe for concurrent use, though the agent
// loop only ever calls it from one goroutine.
type Store struct {
	mu      sync.Mutex
	backend Backend
	active  *Session
	now     func() time.Time
}

// NewStore creates a store and starts its first active session.
func NewStore(backend Backend) (*Store, error) {
	s := &Store{backend: backend, now: time.Now}
	if _, err := s.StartNew(); err != nil {
		return nil, err
	}
	return s, nil
}

// Active returns a snapshot of the active session.
func (s *Store) Active() *Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active.Clone()
}

// StartNew creates a fresh empty session and makes it active. The previous
// session stays on disk as it was.
func (s *Store) StartNew() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess := newSession(s.now())
	if err := s.backend.Create(sess); err != nil {
		return nil, &StoreError{Op: "create", ID: sess.ID, Err: err}
	}
	s.active = sess
	return sess.Clone(), nil
}

// Append records one turn on the active session and returns the updated
// snapshot. The turn is persisted before it becomes visible in memory.
func (s *Store) Append(role Role, text, providerID string) (*Session, error) {
	if !role.Valid() {
		return nil, fmt.Errorf("invalid role %q", role)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return s.appendLocked(now, newTurn(role, text, providerID, now))
}

// AppendExchange records a prompt and its reply as two consecutive turns
// in one backend write.
func (s *Store) AppendExchange(prompt, reply, providerID string) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	return s.appendLocked(now,
		newTurn(RoleUser, prompt, "", now),
		newTurn(RoleAssistant, reply, providerID, now),
	)
}

func (s *Store) appendLocked(now time.Time, turns ...Turn) (*Session, error) {
	if err := s.backend.AppendTurns(s.active.ID, now, turns...); err != nil {
		return nil, &StoreError{Op: "append", ID: s.active.ID, Err: err}
	}
	s.active.Turns = append(s.active.Turns, turns...)
	s.active.UpdatedAt = now
	return s.active.Clone(), nil
}

// Load reads any stored session by id.
func (s *Store) Load(id string) (*Session, error) {
	sess, err := s.backend.Load(id)
	if err != nil {
		return nil, &StoreError{Op: "load", ID: id, Err: err}
	}
	return sess, nil
}

// List returns stored session summaries, most recent first.
func (s *Store) List() ([]Summary, error) {
	list, err := s.backend.List()
	if err != nil {
		return nil, &StoreError{Op: "list", Err: err}
	}
	return list, nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.backend.Close()
}
