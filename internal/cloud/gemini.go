// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jeranaias/paperclip/internal/provider"
)

type geminiRequest struct {
	Contents          []geminiContent  `json:"contents"`
	SystemInstruction *geminiContent   `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig `json:"generationConfig,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenConfig struct {
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
	Temperature     float64 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
			Role  string       `json:"role"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// toGemini converts chat messages: system turns become the system
// instruction and "assistant" becomes Gemini's "model" role.
func toGemini(msgs []Message) ([]geminiContent, *geminiContent) {
	var contents []geminiContent
	var system []geminiPart

	for _, m := range msgs {
		switch m.Role {
		case "system":
			system = append(system, geminiPart{Text: m.Content})
		case "assistant":
			contents = append(contents, geminiContent{Role: "model", Parts: []geminiPart{{Text: m.Content}}})
		default:
			contents = append(contents, geminiContent{Role: "user", Parts: []geminiPart{{Text: m.Content}}})
		}
	}

	if len(system) == 0 {
		return contents, nil
	}
	return contents, &geminiContent{Parts: system}
}

func (c *Client) completeGemini(ctx context.Context, d provider.Descriptor, req Request) (string, error) {
	contents, system := toGemini(req.Messages)
	body := geminiRequest{
		Contents:          contents,
		SystemInstruction: system,
		GenerationConfig: &geminiGenConfig{
			MaxOutputTokens: req.MaxTokens,
			Temperature:     req.Temperature,
		},
	}

	data, err := c.post(ctx, d, d.Endpoint(), body, func(r *http.Request) {
		r.Header.Set("x-goog-api-key", d.APIKey)
	})
	if err != nil {
		return "", err
	}

	var resp geminiResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrInvalidResponse, err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("%w: prompt blocked: %s", ErrInvalidResponse, resp.PromptFeedback.BlockReason)
		}
		return "", fmt.Errorf("%w: no candidates in response", ErrInvalidResponse)
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", fmt.Errorf("%w: empty content (finishReason %q)", ErrInvalidResponse, resp.Candidates[0].FinishReason)
	}
	return sb.String(), nil
}
