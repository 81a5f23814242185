// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package dispatch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeranaias/paperclip/internal/cloud"
)

// KindCoolingDown marks a candidate skipped because it is rate-limited.
const KindCoolingDown cloud.ErrorKind = "cooling_down"

var (
	// ErrNoProviderAvailable is returned when there are no candidates at all.
	ErrNoProviderAvailable = errors.New("no provider available")

	// ErrAllProvidersFailed matches any *AllProvidersFailedError.
	ErrAllProvidersFailed = errors.New("all providers failed")
)

// Attempt is the recorded result of one failed candidate.
type Attempt struct {
	ProviderID string
	Kind       cloud.ErrorKind
	Err        error
	Duration   time.Duration
}

func (a Attempt) String() string {
	return fmt.Sprintf("%s (%s)", a.ProviderID, a.Kind)
}

// AllProvidersFailedError carries one attempt per candidate, in order.
type AllProvidersFailedError struct {
	Attempts []Attempt
}

func (e *AllProvidersFailedError) Error() string {
	parts := make([]string, len(e.Attempts))
	for i, a := range e.Attempts {
		parts[i] = a.String()
	}
	return "all providers failed: " + strings.Join(parts, ", ")
}

// Is lets errors.Is(err, ErrAllProvidersFailed) match.
func (e *AllProvidersFailedError) Is(target error) bool {
	return target == ErrAllProvidersFailed
}

// Unwrap exposes the per-attempt errors.
func (e *AllProvidersFailedError) Unwrap() []error {
	errs := make([]error, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		if a.Err != nil {
			errs = append(errs, a.Err)
		}
	}
	return errs
}
