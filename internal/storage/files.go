// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/paperclip/internal/session"
	"github.com/jeranaias/paperclip/internal/util"
)

// =============================================================================
// FILE STORE
// =============================================================================

// FileStore persists each session as <dir>/<id>.json.
type FileStore struct {
	// BaseDir is the directory holding session files.
	BaseDir string

	mu sync.Mutex
}

// NewFileStore creates a store rooted at dir, creating it if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}
	return &FileStore{BaseDir: dir}, nil
}

// Create writes an empty session document.
func (s *FileStore) Create(sess *session.Session) error {
	if err := checkID(sess.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.filePath(sess.ID)); err == nil {
		return fmt.Errorf("session %s already exists", sess.ID)
	}
	return s.write(sess)
}

// AppendTurns loads the document, appends turns and writes it back
// atomically.
func (s *FileStore) AppendTurns(id string, updatedAt time.Time, turns ...session.Turn) error {
	if err := checkID(id); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, err := s.read(id)
	if err != nil {
		return err
	}
	sess.Turns = append(sess.Turns, turns...)
	sess.UpdatedAt = updatedAt
	return s.write(sess)
}

// Load reads one session.
func (s *FileStore) Load(id string) (*session.Session, error) {
	if err := checkID(id); err != nil {
		return nil, session.ErrNotFound
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read(id)
}

// List returns all readable sessions, most recently updated first.
// Corrupted files are skipped.
func (s *FileStore) List() ([]session.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []session.Summary{}, nil
		}
		return nil, err
	}

	list := make([]session.Summary, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		sess, err := s.read(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		list = append(list, session.Summarize(sess))
	}

	sort.SliceStable(list, func(i, j int) bool {
		return list[i].UpdatedAt.After(list[j].UpdatedAt)
	})
	return list, nil
}

// Close is a no-op for the file store.
func (s *FileStore) Close() error { return nil }

func (s *FileStore) filePath(id string) string {
	return filepath.Join(s.BaseDir, id+".json")
}

func (s *FileStore) read(id string) (*session.Session, error) {
	data, err := os.ReadFile(s.filePath(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, session.ErrNotFound
		}
		return nil, err
	}
	var sess session.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	if sess.Turns == nil {
		sess.Turns = []session.Turn{}
	}
	return &sess, nil
}

func (s *FileStore) write(sess *session.Session) error {
	data, err := json.MarshalIndent(sess, "", "  ")
	if err != nil {
		return err
	}
	return util.AtomicWriteFile(s.filePath(sess.ID), data, 0600)
}
