// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// ErrConfiguration matches any *ConfigurationError via errors.Is.
var ErrConfiguration = errors.New("provider configuration error")

// ConfigurationError reports an unusable provider file. It is fatal at
// startup: without candidates no dispatch can succeed.
type ConfigurationError struct {
	Source   string
	Problems []string
}

func (e *ConfigurationError) Error() string {
	src := e.Source
	if src == "" {
		src = "providers"
	}
	return fmt.Sprintf("%s: %s", src, strings.Join(e.Problems, "; "))
}

// Is makes errors.Is(err, ErrConfiguration) work.
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// record is the on-disk shape of a descriptor. Pointers distinguish
// "absent" from zero so defaults can be applied.
type record struct {
	ID        string `json:"id" toml:"id" yaml:"id"`
	Name      string `json:"name" toml:"name" yaml:"name"`
	Type      string `json:"type" toml:"type" yaml:"type"`
	Family    string `json:"family" toml:"family" yaml:"family"`
	BaseURL   string `json:"base_url" toml:"base_url" yaml:"base_url"`
	APIKey    string `json:"api_key" toml:"api_key" yaml:"api_key"`
	Model     string `json:"model" toml:"model" yaml:"model"`
	Priority  *int   `json:"priority" toml:"priority" yaml:"priority"`
	Enabled   *bool  `json:"enabled" toml:"enabled" yaml:"enabled"`
	MaxTokens int    `json:"max_tokens" toml:"max_tokens" yaml:"max_tokens"`
}

type recordFile struct {
	Providers []record `json:"providers" toml:"providers" yaml:"providers"`
}

// Registry holds the descriptors loaded at startup. It is never mutated
// after construction and is safe for concurrent readers.
type Registry struct {
	source  string
	all     []Descriptor
	enabled []Descriptor
}

// =============================================================================
// LOADING
// =============================================================================

// Load reads a provider file. The format is chosen by extension: .toml,
// .yaml/.yml, anything else is JSON.
func Load(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &ConfigurationError{Source: path, Problems: []string{"provider file not found"}}
		}
		return nil, &ConfigurationError{Source: path, Problems: []string{err.Error()}}
	}

	reg, err := Parse(data, formatFor(path))
	if err != nil {
		var cfgErr *ConfigurationError
		if errors.As(err, &cfgErr) {
			cfgErr.Source = path
		}
		return nil, err
	}
	reg.source = path
	return reg, nil
}

func formatFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return "toml"
	case ".yaml", ".yml":
		return "yaml"
	default:
		return "json"
	}
}

// Parse decodes descriptor records in the given format ("json", "toml" or
// "yaml"), applies defaults and validates the result.
func Parse(data []byte, format string) (*Registry, error) {
	records, err := decode(data, format)
	if err != nil {
		return nil, &ConfigurationError{Problems: []string{err.Error()}}
	}

	descs := make([]Descriptor, 0, len(records))
	for _, rec := range records {
		descs = append(descs, fromRecord(rec))
	}
	return New(descs)
}

func decode(data []byte, format string) ([]record, error) {
	var file recordFile

	switch format {
	case "toml":
		if _, err := toml.Decode(string(data), &file); err != nil {
			return nil, fmt.Errorf("failed to decode TOML: %w", err)
		}
		return file.Providers, nil

	case "yaml":
		var list []record
		if err := yaml.Unmarshal(data, &list); err == nil {
			return list, nil
		}
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to decode YAML: %w", err)
		}
		return file.Providers, nil

	default:
		trimmed := bytes.TrimSpace(data)
		if len(trimmed) > 0 && trimmed[0] == '[' {
			var list []record
			if err := json.Unmarshal(trimmed, &list); err != nil {
				return nil, fmt.Errorf("failed to decode JSON: %w", err)
			}
			return list, nil
		}
		if err := json.Unmarshal(trimmed, &file); err != nil {
			return nil, fmt.Errorf("failed to decode JSON: %w", err)
		}
		return file.Providers, nil
	}
}

// fromRecord applies the file-level defaults: enabled unless stated,
// priority 100, id falling back to name, family from type or inference.
func fromRecord(rec record) Descriptor {
	d := Descriptor{
		ID:        strings.TrimSpace(rec.ID),
		Name:      strings.TrimSpace(rec.Name),
		BaseURL:   strings.TrimSpace(rec.BaseURL),
		APIKey:    strings.TrimSpace(rec.APIKey),
		Model:     strings.TrimSpace(rec.Model),
		Priority:  DefaultPriority,
		Enabled:   true,
		MaxTokens: rec.MaxTokens,
	}
	if rec.Priority != nil {
		d.Priority = *rec.Priority
	}
	if rec.Enabled != nil {
		d.Enabled = *rec.Enabled
	}
	if strings.Contains(d.APIKey, "$") {
		d.APIKey = os.ExpandEnv(d.APIKey)
	}

	if d.ID == "" {
		d.ID = d.Name
	}
	if d.ID == "" {
		d.ID = uuid.NewString()[:8]
	}
	if d.Name == "" {
		d.Name = d.ID
	}

	family := rec.Family
	if family == "" {
		family = rec.Type
	}
	d.Family = strings.ToLower(strings.TrimSpace(family))
	if d.Family == "" {
		d.Family = inferFamily(d.ID, d.BaseURL)
	}
	return d
}

// New builds a registry from already-shaped descriptors. Disabled
// descriptors are kept for listing but excluded from candidate selection
// and from required-field checks. It fails with *ConfigurationError when an
// enabled descriptor lacks base_url, api_key or model, when ids collide, or
// when nothing is enabled.
func New(descs []Descriptor) (*Registry, error) {
	var problems []string
	seen := make(map[string]bool, len(descs))

	r := &Registry{all: make([]Descriptor, 0, len(descs))}
	for i, d := range descs {
		d.position = i
		if seen[d.ID] {
			problems = append(problems, fmt.Sprintf("duplicate provider id %q", d.ID))
		}
		seen[d.ID] = true

		if d.Enabled {
			var missing []string
			if d.BaseURL == "" {
				missing = append(missing, "base_url")
			}
			if d.APIKey == "" {
				missing = append(missing, "api_key")
			}
			if d.Model == "" {
				missing = append(missing, "model")
			}
			if len(missing) > 0 {
				problems = append(problems, fmt.Sprintf("provider %q missing required field(s): %s", d.ID, strings.Join(missing, ", ")))
			}
			r.enabled = append(r.enabled, d)
		}
		r.all = append(r.all, d)
	}

	if len(r.enabled) == 0 {
		problems = append(problems, "no enabled providers")
	}
	if len(problems) > 0 {
		return nil, &ConfigurationError{Problems: problems}
	}

	sort.SliceStable(r.enabled, func(i, j int) bool {
		return r.enabled[i].Priority < r.enabled[j].Priority
	})
	return r, nil
}

// =============================================================================
// QUERIES
// =============================================================================

// Source returns the file the registry was loaded from, if any.
func (r *Registry) Source() string {
	return r.source
}

// All returns every descriptor in file order, disabled ones included.
func (r *Registry) All() []Descriptor {
	out := make([]Descriptor, len(r.all))
	copy(out, r.all)
	return out
}

// Enabled returns the enabled descriptors by ascending priority.
func (r *Registry) Enabled() []Descriptor {
	out := make([]Descriptor, len(r.enabled))
	copy(out, r.enabled)
	return out
}

// Len returns the number of enabled descriptors.
func (r *Registry) Len() int {
	return len(r.enabled)
}

// Lookup finds a descriptor by id, enabled or not. Used by the console
// "providers <id>" command.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	for _, d := range r.all {
		if d.ID == id {
			return d, true
		}
	}
	return Descriptor{}, false
}

// OrderedCandidates returns the enabled descriptors with those matching
// preferredFamily first, then by ascending priority, then file order.
// An empty preferredFamily yields plain priority order.
func (r *Registry) OrderedCandidates(preferredFamily string) []Descriptor {
	out := r.Enabled()
	if preferredFamily == "" {
		return out
	}
	pref := strings.ToLower(preferredFamily)
	sort.SliceStable(out, func(i, j int) bool {
		mi, mj := out[i].Family == pref, out[j].Family == pref
		if mi != mj {
			return mi
		}
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return out[i].position < out[j].position
	})
	return out
}
