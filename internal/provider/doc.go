// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package provider implements the provider registry.
//
// A registry is loaded once at startup from a descriptor file (JSON array,
// TOML [[providers]] tables or YAML list) and is read-only afterwards. It
// hands the dispatch engine an ordered candidate list:
//
//	reg, err := provider.Load("~/.paperclip/providers.json")
//	if err != nil {
//	    // *provider.ConfigurationError: fatal at startup
//	}
//	for _, d := range reg.OrderedCandidates("gemini") {
//	    ...
//	}
//
// Ordering puts descriptors of the preferred family first and sorts by
// ascending priority within each group. Equal keys keep file order.
package provider
