// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jeranaias/paperclip/internal/session"

	_ "modernc.org/sqlite"
)

// Schema is the SQLite schema for session storage.
const Schema = `
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS turns (
    session_id TEXT NOT NULL REFERENCES sessions(id) ON DELETE CASCADE,
    seq        INTEGER NOT NULL,
    id         TEXT NOT NULL,
    role       TEXT NOT NULL,
    text       TEXT NOT NULL,
    provider   TEXT NOT NULL DEFAULT '',
    ts         INTEGER NOT NULL,
    PRIMARY KEY (session_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at);
`

// SQLiteStore persists sessions in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// NewSQLiteStore opens (or creates) the database at path.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA temp_store=MEMORY",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string { return s.path }

// Create inserts an empty session row.
func (s *SQLiteStore) Create(sess *session.Session) error {
	_, err := s.db.Exec(
		"INSERT INTO sessions (id, name, created_at, updated_at) VALUES (?, ?, ?, ?)",
		sess.ID, sess.Name, sess.CreatedAt.UnixNano(), sess.UpdatedAt.UnixNano(),
	)
	return err
}

// AppendTurns inserts turns after the session's current last turn in a
// single transaction.
func (s *SQLiteStore) AppendTurns(id string, updatedAt time.Time, turns ...session.Turn) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.Exec("UPDATE sessions SET updated_at = ? WHERE id = ?", updatedAt.UnixNano(), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.ErrNotFound
	}

	var next int64
	if err := tx.QueryRow("SELECT COALESCE(MAX(seq), -1) + 1 FROM turns WHERE session_id = ?", id).Scan(&next); err != nil {
		return err
	}

	stmt, err := tx.Prepare("INSERT INTO turns (session_id, seq, id, role, text, provider, ts) VALUES (?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, t := range turns {
		if _, err := stmt.Exec(id, next+int64(i), t.ID, string(t.Role), t.Text, t.Provider, t.Timestamp.UnixNano()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load reads a session and its turns in order.
func (s *SQLiteStore) Load(id string) (*session.Session, error) {
	var (
		sess             session.Session
		created, updated int64
	)
	err := s.db.QueryRow("SELECT id, name, created_at, updated_at FROM sessions WHERE id = ?", id).
		Scan(&sess.ID, &sess.Name, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	sess.CreatedAt = time.Unix(0, created)
	sess.UpdatedAt = time.Unix(0, updated)

	rows, err := s.db.Query("SELECT id, role, text, provider, ts FROM turns WHERE session_id = ? ORDER BY seq", id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sess.Turns = []session.Turn{}
	for rows.Next() {
		var (
			t    session.Turn
			role string
			ts   int64
		)
		if err := rows.Scan(&t.ID, &role, &t.Text, &t.Provider, &ts); err != nil {
			return nil, err
		}
		t.Role = session.Role(role)
		t.Timestamp = time.Unix(0, ts)
		sess.Turns = append(sess.Turns, t)
	}
	return &sess, rows.Err()
}

// List returns session summaries, most recently updated first. The
// preview is the first user turn.
func (s *SQLiteStore) List() ([]session.Summary, error) {
	rows, err := s.db.Query(`
		SELECT s.id, s.name, s.created_at, s.updated_at,
		       (SELECT COUNT(*) FROM turns t WHERE t.session_id = s.id),
		       COALESCE((SELECT t.text FROM turns t WHERE t.session_id = s.id AND t.role = 'user' ORDER BY t.seq LIMIT 1), '')
		FROM sessions s
		ORDER BY s.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := []session.Summary{}
	for rows.Next() {
		var (
			sum              session.Summary
			created, updated int64
		)
		if err := rows.Scan(&sum.ID, &sum.Name, &created, &updated, &sum.TurnCount, &sum.Preview); err != nil {
			return nil, err
		}
		sum.CreatedAt = time.Unix(0, created)
		sum.UpdatedAt = time.Unix(0, updated)
		list = append(list, sum)
	}
	return list, rows.Err()
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
