// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package clipboard

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultPollInterval is used when WatchOptions.Interval is zero.
const DefaultPollInterval = 350 * time.Millisecond

// WatchOptions configures a Watcher.
type WatchOptions struct {
	// Notify uses fsnotify instead of polling. Only valid for *File.
	Notify   bool
	Interval time.Duration
	Log      logrus.FieldLogger
}

// Watcher reports clipboard changes and writes back replies. A change is
// any read that differs from the last text seen or written; reading and
// writing are serialized so an own write is never reported.
type Watcher struct {
	clip Clipboard
	opts WatchOptions
	log  logrus.FieldLogger

	mu   sync.Mutex
	last string
}

// NewWatcher wraps clip.
func NewWatcher(clip Clipboard, opts WatchOptions) *Watcher {
	if opts.Interval <= 0 {
		opts.Interval = DefaultPollInterval
	}
	log := opts.Log
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Watcher{clip: clip, opts: opts, log: log}
}

// Prime records the current clipboard as seen, so text already on the
// clipboard at startup does not trigger anything.
func (w *Watcher) Prime() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	text, err := w.clip.Read()
	if err != nil {
		return err
	}
	w.last = text
	return nil
}

// Write puts text on the clipboard without it being reported as a change.
func (w *Watcher) Write(text string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	prev := w.last
	w.last = text
	if err := w.clip.Write(text); err != nil {
		w.last = prev
		return err
	}
	return nil
}

// Read returns the current clipboard text.
func (w *Watcher) Read() (string, error) {
	return w.clip.Read()
}

// check reads the clipboard and reports whether it changed.
func (w *Watcher) check() (string, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	text, err := w.clip.Read()
	if err != nil {
		w.log.WithError(err).Debug("clipboard: read failed")
		return "", false
	}
	if text == "" || text == w.last {
		return "", false
	}
	w.last = text
	return text, true
}

// Run delivers changes on out until ctx is done. It blocks on each send,
// so a slow consumer holds back later events and order is preserved.
func (w *Watcher) Run(ctx context.Context, out chan<- string) error {
	if w.opts.Notify {
		f, ok := w.clip.(*File)
		if !ok {
			return errors.New("notify watch requires the file clipboard backend")
		}
		return w.runNotify(ctx, f.Path, out)
	}
	return w.runPoll(ctx, out)
}

func (w *Watcher) runPoll(ctx context.Context, out chan<- string) error {
	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !w.emit(ctx, out) {
				return nil
			}
		}
	}
}

func (w *Watcher) runNotify(ctx context.Context, path string, out chan<- string) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	// Watch the directory: atomic writes replace the file by rename.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		return err
	}
	target := filepath.Clean(path)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if !w.emit(ctx, out) {
				return nil
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.WithError(err).Warn("clipboard: watch error")
		}
	}
}

// emit sends the change, if any. It returns false once ctx is done.
func (w *Watcher) emit(ctx context.Context, out chan<- string) bool {
	text, changed := w.check()
	if !changed {
		return true
	}
	select {
	case out <- text:
		return true
	case <-ctx.Done():
		return false
	}
}
