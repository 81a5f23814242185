// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import (
	"fmt"
	"strings"
)

// Known provider families.
const (
	FamilyGemini     = "gemini"
	FamilyOpenRouter = "openrouter"
)

// DefaultPriority is assigned to descriptors that do not set one.
const DefaultPriority = 100

// Protocol is the wire format a descriptor speaks.
type Protocol int

const (
	// ProtocolChat is the OpenAI-style /chat/completions API.
	ProtocolChat Protocol = iota
	// ProtocolGemini is the Google Generative Language generateContent API.
	ProtocolGemini
)

// String returns the protocol name.
func (p Protocol) String() string {
	switch p {
	case ProtocolGemini:
		return "gemini"
	default:
		return "chat"
	}
}

// Descriptor is one configured model backend.
type Descriptor struct {
	ID        string
	Name      string
	BaseURL   string
	APIKey    string
	Model     string
	Priority  int
	Enabled   bool
	Family    string
	MaxTokens int

	// position is the index in the source file, the final ordering tie-break.
	position int
}

// Protocol reports which wire format the descriptor uses. Gemini family
// members and anything pointed at generativelanguage.googleapis.com speak
// generateContent; everything else is treated as OpenAI compatible.
func (d Descriptor) Protocol() Protocol {
	if d.Family == FamilyGemini || strings.Contains(d.BaseURL, "generativelanguage.googleapis.com") {
		return ProtocolGemini
	}
	return ProtocolChat
}

// Endpoint returns the URL a request for this descriptor is posted to.
func (d Descriptor) Endpoint() string {
	base := strings.TrimRight(strings.TrimSpace(d.BaseURL), "/")

	if d.Protocol() == ProtocolGemini {
		if strings.HasSuffix(base, ":generateContent") || strings.Contains(base, "/models/") {
			return base
		}
		model := d.Model
		if !strings.HasPrefix(model, "models/") {
			model = "models/" + model
		}
		return base + "/" + model + ":generateContent"
	}

	switch {
	case strings.HasSuffix(base, "/chat/completions"):
		return base
	case strings.Contains(base, "/v1"):
		return base + "/chat/completions"
	default:
		return base + "/v1/chat/completions"
	}
}

// MaskedKey returns a display-safe form of the API key.
func (d Descriptor) MaskedKey() string {
	if d.APIKey == "" {
		return "[not set]"
	}
	return fmt.Sprintf("[REDACTED, length=%d]", len(d.APIKey))
}

// String implements fmt.Stringer without exposing the key.
func (d Descriptor) String() string {
	return fmt.Sprintf("id=%s name=%s family=%s model=%s priority=%d endpoint=%s",
		d.ID, d.Name, d.familyOrDash(), d.Model, d.Priority, d.Endpoint())
}

func (d Descriptor) familyOrDash() string {
	if d.Family == "" {
		return "-"
	}
	return d.Family
}

// inferFamily derives a family when the descriptor did not name one.
func inferFamily(id, baseURL string) string {
	lowerURL := strings.ToLower(baseURL)
	switch {
	case strings.Contains(lowerURL, "generativelanguage.googleapis.com"):
		return FamilyGemini
	case strings.Contains(lowerURL, "openrouter.ai"):
		return FamilyOpenRouter
	}

	lowerID := strings.ToLower(id)
	for _, f := range []string{FamilyGemini, FamilyOpenRouter} {
		if strings.Contains(lowerID, f) {
			return f
		}
	}
	return ""
}
