// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cloud

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/jeranaias/paperclip/internal/provider"
)

// Configuration constants for provider requests.
const (
	// DefaultTimeout caps a request when the caller's context has no deadline.
	DefaultTimeout = 90 * time.Second

	// MaxResponseSize is the maximum allowed response body size.
	MaxResponseSize = 10 * 1024 * 1024

	// DefaultMaxTokens is sent when neither the request nor the descriptor sets one.
	DefaultMaxTokens = 8192

	userAgent = "paperclip/1.0"
)

// Message is one chat turn on the wire.
type Message struct {
	Role    string `json:"role"` // "system", "user" or "assistant"
	Content string `json:"content"`
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) Message {
	return Message{Role: "user", Content: content}
}

// NewAssistantMessage creates a new assistant message.
func NewAssistantMessage(content string) Message {
	return Message{Role: "assistant", Content: content}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) Message {
	return Message{Role: "system", Content: content}
}

// Request is a provider-neutral completion request.
type Request struct {
	Messages    []Message
	MaxTokens   int
	Temperature float64
}

// Client sends completion requests to any configured provider. It holds no
// per-provider state and is safe for concurrent use.
type Client struct {
	httpClient *http.Client
	siteURL    string
	siteName   string
	log        logrus.FieldLogger
}

// NewClient creates a client with a pooled HTTPS transport.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
				TLSClientConfig:     &tls.Config{MinVersion: tls.VersionTLS12},
			},
		},
		siteURL:  "https://github.com/jeranaias/paperclip",
		siteName: "paperclip",
		log:      logrus.StandardLogger(),
	}
}

// WithHTTPClient replaces the underlying HTTP client (tests, proxies).
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// WithLogger sets the logger used for request/response lines.
func (c *Client) WithLogger(l logrus.FieldLogger) *Client {
	c.log = l
	return c
}

// Complete sends req to the provider described by d and returns the raw
// response text. Exactly one HTTP request is made; retrying is the
// caller's business.
func (c *Client) Complete(ctx context.Context, d provider.Descriptor, req Request) (string, error) {
	if req.MaxTokens == 0 {
		req.MaxTokens = d.MaxTokens
	}
	if req.MaxTokens == 0 {
		req.MaxTokens = DefaultMaxTokens
	}

	switch d.Protocol() {
	case provider.ProtocolGemini:
		return c.completeGemini(ctx, d, req)
	default:
		return c.completeChat(ctx, d, req)
	}
}

// post marshals body, sends it and returns the response body of a 200.
// Non-200 responses come back as *APIError.
func (c *Client) post(ctx context.Context, d provider.Descriptor, url string, body interface{}, setAuth func(*http.Request)) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("User-Agent", userAgent)
	setAuth(httpReq)

	entry := c.log.WithFields(logrus.Fields{"provider": d.ID, "path": httpReq.URL.Path})
	entry.Debug("API request")

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq)

	// Keep the credential out of anything that might dump the request later.
	httpReq.Header.Del("Authorization")
	httpReq.Header.Del("x-goog-api-key")

	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	entry.WithFields(logrus.Fields{
		"status":   resp.StatusCode,
		"duration": time.Since(start).Round(time.Millisecond),
	}).Debug("API response")

	data, err := readResponse(resp)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, handleErrorResponse(resp.StatusCode, resp.Header, data)
	}
	return data, nil
}

// readResponse reads the response body with a size limit.
func readResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxResponseSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if int64(len(body)) > MaxResponseSize {
		return nil, fmt.Errorf("%w: response exceeded maximum size of %d bytes", ErrInvalidResponse, MaxResponseSize)
	}
	return body, nil
}
