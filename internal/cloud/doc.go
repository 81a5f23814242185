// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package cloud is the model transport: it turns an ordered list of chat
// messages into one HTTP request against a provider descriptor and returns
// the raw response text.
//
// Two wire formats are supported:
//
//   - OpenAI-style chat completions (OpenRouter and compatible gateways),
//     authenticated with a Bearer token
//   - Google Generative Language generateContent, authenticated with the
//     x-goog-api-key header
//
// # Errors
//
// Every non-success outcome is returned as *APIError or a transport error.
// Classify maps any returned error onto an ErrorKind so callers can record
// why a provider failed without parsing messages:
//
//	text, err := client.Complete(ctx, desc, cloud.Request{Messages: msgs})
//	if err != nil {
//	    kind := cloud.Classify(err) // e.g. KindRateLimited
//	}
//
// API keys are never logged. Requests are logged as method and path only.
package cloud
