// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package provider

import (
	"context"
	"time"
)

// WithTimeout wraps a Provider so every Complete call carries a deadline.
// A non-positive duration returns the provider unchanged.
func WithTimeout(p Provider, d time.Duration) Provider {
	if d <= 0 {
		return p
	}
	return &timeoutProvider{Provider: p, timeout: d}
}

type timeoutProvider struct {
	Provider
	timeout time.Duration
}

func (t *timeoutProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Provider.Complete(ctx, req)
}
