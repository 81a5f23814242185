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

// chatRequest is the OpenAI-style chat completions body.
type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Stream      bool      `json:"stream"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
}

// chatResponse is the subset of the completions response we read.
type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message      *Message `json:"message"`
		Text         string   `json:"text"`
		FinishReason string   `json:"finish_reason"`
	} `json:"choices"`
}

// content returns the text of the first choice.
func (r *chatResponse) content() (string, bool) {
	if len(r.Choices) == 0 {
		return "", false
	}
	ch := r.Choices[0]
	if ch.Message != nil {
		return ch.Message.Content, true
	}
	return ch.Text, ch.Text != ""
}

func (c *Client) completeChat(ctx context.Context, d provider.Descriptor, req Request) (string, error) {
	body := chatRequest{
		Model:       d.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	data, err := c.post(ctx, d, d.Endpoint(), body, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+d.APIKey)
		// OpenRouter attribution headers; ignored by other gateways.
		if c.siteURL != "" {
			r.Header.Set("HTTP-Referer", c.siteURL)
		}
		if c.siteName != "" {
			r.Header.Set("X-Title", c.siteName)
		}
	})
	if err != nil {
		return "", err
	}

	var resp chatResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return "", fmt.Errorf("%w: failed to parse response: %v", ErrInvalidResponse, err)
	}
	text, ok := resp.content()
	if !ok {
		return "", fmt.Errorf("%w: no choices in response: %s", ErrInvalidResponse, strings.TrimSpace(truncate(string(data), 200)))
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: empty content (finish_reason %q)", ErrInvalidResponse, resp.Choices[0].FinishReason)
	}
	return text, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
