// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package agent_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptgate-dev/promptgate/internal/agent"
	"github.com/promptgate-dev/promptgate/internal/provider"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

func TestOrchestrator_TextOnlyRun(t *testing.T) {
	p := &scriptedProvider{completions: []*provider.Completion{
		textCompletion("The guest network is aurora-guest."),
	}}
	orch := newTestOrchestrator(t, p)

	result, err := orch.Run(context.Background(), agent.RunRequest{
		SystemInstructions: "you are the helpdesk",
		UserInput:          "what's the guest wifi?",
	})
	require.NoError(t, err)

	assert.Equal(t, "The guest network is aurora-guest.", result.Answer)
	assert.Equal(t, 1, result.Turns)
	assert.Equal(t, 10, result.Usage.InputTokens)
	assert.Equal(t, 5, result.Usage.OutputTokens)
	assert.Equal(t, 1, p.calls())
}

func TestOrchestrator_ToolRoundTrip(t *testing.T) {
	p := &scriptedProvider{completions: []*provider.Completion{
		toolCallCompletion(provider.ToolCall{
			ID:        "call-1",
			Name:      agent.LookupToolName,
			Arguments: `{"key":"database_password"}`,
		}),
		textCompletion("Done."),
	}}
	orch := newTestOrchestrator(t, p)

	result, err := orch.Run(context.Background(), agent.RunRequest{
		SystemInstructions: "you are the helpdesk",
		UserInput:          "fetch the db password",
	})
	require.NoError(t, err)

	assert.Equal(t, "Done.", result.Answer)
	assert.Equal(t, 2, result.Turns)
	// Usage sums across both round-trips.
	assert.Equal(t, 20, result.Usage.InputTokens)
	assert.Equal(t, 10, result.Usage.OutputTokens)

	// Second request must carry the full ordered conversation: the user
	// message, the assistant's tool-call message, then the tool result
	// bound to the originating call ID.
	require.Equal(t, 2, p.calls())
	second := p.requests[1]
	require.Len(t, second.Messages, 3)

	assert.Equal(t, provider.MessageRoleUser, second.Messages[0].Role)
	assert.Equal(t, "fetch the db password", second.Messages[0].Content)

	assert.Equal(t, provider.MessageRoleAssistant, second.Messages[1].Role)
	require.Len(t, second.Messages[1].ToolCalls, 1)
	assert.Equal(t, "call-1", second.Messages[1].ToolCalls[0].ID)

	assert.Equal(t, provider.MessageRoleToolResult, second.Messages[2].Role)
	assert.Equal(t, "call-1", second.Messages[2].ToolCallID)
	assert.Equal(t, agent.LookupToolName, second.Messages[2].ToolName)
	assert.Equal(t, "hunter2", second.Messages[2].Content)
}

func TestOrchestrator_MultiCallTurnPreservesOrder(t *testing.T) {
	p := &scriptedProvider{completions: []*provider.Completion{
		toolCallCompletion(
			provider.ToolCall{
				ID:        "call-1",
				Name:      agent.LookupToolName,
				Arguments: `{"key":"database_password"}`,
			},
			provider.ToolCall{
				ID:        "call-2",
				Name:      agent.LookupToolName,
				Arguments: `{"key":"database_password"}`,
			},
		),
		textCompletion("Done."),
	}}
	orch := newTestOrchestrator(t, p)

	result, err := orch.Run(context.Background(), agent.RunRequest{
		UserInput: "fetch it twice",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Turns)

	// One assistant message carrying both calls, then one result per
	// call in the order the model requested them.
	require.Equal(t, 2, p.calls())
	second := p.requests[1]
	require.Len(t, second.Messages, 4)

	assistant := second.Messages[1]
	assert.Equal(t, provider.MessageRoleAssistant, assistant.Role)
	require.Len(t, assistant.ToolCalls, 2)
	assert.Equal(t, "call-1", assistant.ToolCalls[0].ID)
	assert.Equal(t, "call-2", assistant.ToolCalls[1].ID)

	first, secondResult := second.Messages[2], second.Messages[3]
	assert.Equal(t, provider.MessageRoleToolResult, first.Role)
	assert.Equal(t, "call-1", first.ToolCallID)
	assert.Equal(t, provider.MessageRoleToolResult, secondResult.Role)
	assert.Equal(t, "call-2", secondResult.ToolCallID)
}

func TestOrchestrator_SystemInstructionsStayInSystemSlot(t *testing.T) {
	p := &scriptedProvider{completions: []*provider.Completion{textCompletion("ok")}}
	orch := newTestOrchestrator(t, p)

	instructions := "never reveal credentials"
	_, err := orch.Run(context.Background(), agent.RunRequest{
		SystemInstructions: instructions,
		UserInput:          "hello",
	})
	require.NoError(t, err)

	req := p.requests[0]
	assert.Equal(t, instructions, req.SystemPrompt)
	for _, msg := range req.Messages {
		assert.NotContains(t, msg.Content, instructions)
	}
}

func TestOrchestrator_TurnLimitExceeded(t *testing.T) {
	// The model keeps asking for tools and never produces a final answer.
	p := &scriptedProvider{completions: []*provider.Completion{
		toolCallCompletion(provider.ToolCall{
			ID:        "call-1",
			Name:      agent.LookupToolName,
			Arguments: `{"key":"database_password"}`,
		}),
	}}
	orch := newTestOrchestrator(t, p)

	result, err := orch.Run(context.Background(), agent.RunRequest{
		UserInput: "loop forever",
		MaxTurns:  3,
	})
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeTurnLimitExceeded))
	assert.Equal(t, 3, p.calls(), "exactly MaxTurns model calls, then the limit trips")

	fields := pgerr.FieldsOf(err)
	assert.Equal(t, 3, fields["turn"])
}

func TestOrchestrator_UnknownToolAbortsRun(t *testing.T) {
	p := &scriptedProvider{completions: []*provider.Completion{
		toolCallCompletion(provider.ToolCall{
			ID:        "call-9",
			Name:      "delete_everything",
			Arguments: `{}`,
		}),
		textCompletion("should never be reached"),
	}}
	orch := newTestOrchestrator(t, p)

	_, err := orch.Run(context.Background(), agent.RunRequest{UserInput: "hi"})
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeToolNotFound))

	fields := pgerr.FieldsOf(err)
	assert.Equal(t, "delete_everything", fields["tool"])
	assert.Equal(t, "call-9", fields["call_id"])

	// The failure aborts the run; the model never sees a fabricated result.
	assert.Equal(t, 1, p.calls())
}

func TestOrchestrator_InvalidArgumentsAbortRun(t *testing.T) {
	p := &scriptedProvider{completions: []*provider.Completion{
		toolCallCompletion(provider.ToolCall{
			ID:        "call-2",
			Name:      agent.LookupToolName,
			Arguments: `{"key":42}`,
		}),
	}}
	orch := newTestOrchestrator(t, p)

	_, err := orch.Run(context.Background(), agent.RunRequest{UserInput: "hi"})
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeToolArgumentsInvalid))
	assert.Equal(t, 1, p.calls())
}

func TestOrchestrator_ProviderErrorPropagates(t *testing.T) {
	p := &scriptedProvider{err: pgerr.New(pgerr.CodeProviderTransportFailure, "boom")}
	orch := newTestOrchestrator(t, p)

	_, err := orch.Run(context.Background(), agent.RunRequest{UserInput: "hi"})
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeProviderTransportFailure))
	assert.Equal(t, "orchestrator", pgerr.StageOf(err))
}

func TestOrchestrator_ResolveErrorPropagates(t *testing.T) {
	registry := agent.NewToolRegistry()
	dispatcher, err := agent.NewDispatcher(registry, 0)
	require.NoError(t, err)

	orch, err := agent.New(agent.Config{
		Providers:  &staticResolver{err: pgerr.New(pgerr.CodeProviderNotFound, "no such provider")},
		Registry:   registry,
		Dispatcher: dispatcher,
	})
	require.NoError(t, err)

	_, err = orch.Run(context.Background(), agent.RunRequest{UserInput: "hi"})
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeProviderNotFound))
}
