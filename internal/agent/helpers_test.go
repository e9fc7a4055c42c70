// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/promptgate-dev/promptgate/internal/agent"
	"github.com/promptgate-dev/promptgate/internal/provider"
)

// scriptedProvider replays a fixed sequence of completions and records
// every request it receives.
type scriptedProvider struct {
	completions []*provider.Completion
	err         error

	requests []provider.CompletionRequest
}

func (p *scriptedProvider) Name() string                     { return "scripted" }
func (p *scriptedProvider) Available(_ context.Context) bool { return true }
func (p *scriptedProvider) Close() error                     { return nil }

func (p *scriptedProvider) Complete(_ context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	idx := len(p.requests) - 1
	if idx >= len(p.completions) {
		idx = len(p.completions) - 1
	}
	return p.completions[idx], nil
}

// calls reports how many completion requests the provider served.
func (p *scriptedProvider) calls() int { return len(p.requests) }

// staticResolver resolves every ref to one provider.
type staticResolver struct {
	provider provider.Provider
	err      error
}

func (r *staticResolver) Resolve(_ context.Context, _ string) (provider.Provider, string, error) {
	if r.err != nil {
		return nil, "", r.err
	}
	return r.provider, "test-model", nil
}

func textCompletion(text string) *provider.Completion {
	return &provider.Completion{
		Kind:  provider.KindText,
		Text:  text,
		Usage: provider.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

func toolCallCompletion(calls ...provider.ToolCall) *provider.Completion {
	return &provider.Completion{
		Kind:      provider.KindToolCalls,
		ToolCalls: calls,
		Usage:     provider.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

// newTestOrchestrator wires an Orchestrator over a scripted provider and
// the built-in lookup tool.
func newTestOrchestrator(t *testing.T, p provider.Provider) *agent.Orchestrator {
	t.Helper()

	registry := agent.NewToolRegistry()
	registry.Register(agent.NewLookupTool(map[string]string{
		"database_password": "hunter2",
	}))

	dispatcher, err := agent.NewDispatcher(registry, 0)
	require.NoError(t, err)

	orch, err := agent.New(agent.Config{
		Providers:  &staticResolver{provider: p},
		Registry:   registry,
		Dispatcher: dispatcher,
	})
	require.NoError(t, err)
	return orch
}
