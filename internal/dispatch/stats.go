// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jeranaias/paperclip/internal/cloud"
)

// ProviderStats holds counters for one provider.
type ProviderStats struct {
	ID          string          `json:"id"`
	Successes   int             `json:"successes"`
	Failures    int             `json:"failures"`
	LastKind    cloud.ErrorKind `json:"last_kind,omitempty"`
	LastError   string          `json:"last_error,omitempty"`
	LastLatency time.Duration   `json:"last_latency_ns,omitempty"`
	LastUsed    time.Time       `json:"last_used,omitempty"`
}

// Stats tracks cumulative dispatch statistics.
// All methods are safe for concurrent access.
type Stats struct {
	mu sync.RWMutex

	Dispatches int `json:"dispatches"`
	Exhausted  int `json:"exhausted"`

	providers map[string]*ProviderStats
}

// NewStats creates an empty Stats.
func NewStats() *Stats {
	return &Stats{providers: make(map[string]*ProviderStats)}
}

func (s *Stats) entry(id string) *ProviderStats {
	p, ok := s.providers[id]
	if !ok {
		p = &ProviderStats{ID: id}
		s.providers[id] = p
	}
	return p
}

func (s *Stats) recordSuccess(id string, latency time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Dispatches++
	p := s.entry(id)
	p.Successes++
	p.LastLatency = latency
	p.LastUsed = time.Now()
}

func (s *Stats) recordFailure(id string, a Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := s.entry(id)
	p.Failures++
	p.LastKind = a.Kind
	if a.Err != nil {
		p.LastError = a.Err.Error()
	}
}

func (s *Stats) recordExhausted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Dispatches++
	s.Exhausted++
}

// Provider returns a copy of the counters for id.
func (s *Stats) Provider(id string) (ProviderStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.providers[id]
	if !ok {
		return ProviderStats{}, false
	}
	return *p, true
}

// Snapshot returns copies of all provider counters sorted by id.
func (s *Stats) Snapshot() []ProviderStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ProviderStats, 0, len(s.providers))
	for _, p := range s.providers {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Summary returns a human-readable summary of the statistics.
func (s *Stats) Summary() string {
	snap := s.Snapshot()

	s.mu.RLock()
	dispatches, exhausted := s.Dispatches, s.Exhausted
	s.mu.RUnlock()

	if dispatches == 0 {
		return "No dispatches yet"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Dispatch Stats: %d dispatches, %d answered, %d exhausted",
		dispatches, dispatches-exhausted, exhausted)
	for _, p := range snap {
		fmt.Fprintf(&sb, "\n  %-16s ok=%d fail=%d", p.ID, p.Successes, p.Failures)
		if p.LastKind != "" {
			fmt.Fprintf(&sb, " last=%s", p.LastKind)
		}
	}
	return sb.String()
}
