// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package agent drives the tool-calling conversation with the model
// endpoint: a bounded state machine that alternates between awaiting the
// model and dispatching the tool calls it requested, until the model
// yields a final text answer or the turn limit trips.
package agent

import (
	"context"
	"log/slog"

	"github.com/promptgate-dev/promptgate/internal/provider"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// defaultMaxTurns bounds model round-trips when RunRequest.MaxTurns is
// not set.
const defaultMaxTurns = 8

// runState names the orchestrator's state machine states.
type runState string

const (
	stateAwaitingModel    runState = "awaiting_model"
	stateDispatchingTools runState = "dispatching_tools"
	stateDone             runState = "done"
)

// RunRequest is one orchestrated conversation run. The input has already
// been cleared by the injection gate; the orchestrator does no screening
// of its own.
type RunRequest struct {
	// SystemInstructions are the protected operating instructions. They
	// travel in the request's system slot only, never inside a
	// conversation message.
	SystemInstructions string

	UserInput string

	// ModelRef is the "provider/model" ref; empty means the registry default.
	ModelRef string

	Options provider.Options

	// MaxTurns caps model round-trips; <= 0 selects defaultMaxTurns.
	MaxTurns int
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	Answer string
	Turns  int
	Usage  provider.Usage
}

// Config holds Orchestrator dependencies.
type Config struct {
	Providers  guardCompleterFor
	Registry   *ToolRegistry
	Dispatcher *Dispatcher
}

// guardCompleterFor mirrors guard.CompleterFor without importing it;
// satisfied by provider.Registry.
type guardCompleterFor interface {
	Resolve(ctx context.Context, ref string) (provider.Provider, string, error)
}

// Orchestrator owns the turn-based conversation state machine. It holds
// no state across runs; every Run owns an independent conversation.
type Orchestrator struct {
	providers  guardCompleterFor
	registry   *ToolRegistry
	dispatcher *Dispatcher
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Providers == nil {
		return nil, pgerr.New(pgerr.CodeOrchestratorRunFailure, "orchestrator: Providers is required")
	}
	if cfg.Registry == nil {
		return nil, pgerr.New(pgerr.CodeOrchestratorRunFailure, "orchestrator: Registry is required")
	}
	if cfg.Dispatcher == nil {
		return nil, pgerr.New(pgerr.CodeOrchestratorRunFailure, "orchestrator: Dispatcher is required")
	}
	return &Orchestrator{
		providers:  cfg.Providers,
		registry:   cfg.Registry,
		dispatcher: cfg.Dispatcher,
	}, nil
}

// Run drives the conversation until the model yields a final text answer
// or a limit is reached.
//
// States: AWAITING_MODEL -> (tool calls requested) -> DISPATCHING_TOOLS
// -> AWAITING_MODEL -> ... -> DONE, with ERROR reachable from any state.
// The turn counter increments per model round-trip; reaching MaxTurns
// while still awaiting a final answer is an error, never a silent
// truncation.
func (o *Orchestrator) Run(ctx context.Context, req RunRequest) (*RunResult, error) {
	maxTurns := req.MaxTurns
	if maxTurns <= 0 {
		maxTurns = defaultMaxTurns
	}

	prov, model, err := o.providers.Resolve(ctx, req.ModelRef)
	if err != nil {
		return nil, pgerr.With(err, pgerr.FieldStage("orchestrator"))
	}

	tools := o.registry.Definitions()

	// ConversationState: the ordered message sequence plus the turn
	// counter, owned by this run alone. System instructions are NOT a
	// message; they ride in the request's system slot.
	messages := []provider.Message{
		{Role: provider.MessageRoleUser, Content: req.UserInput},
	}
	var usage provider.Usage

	for turn := 0; ; turn++ {
		if turn >= maxTurns {
			return nil, pgerr.New(
				pgerr.CodeTurnLimitExceeded,
				"turn limit reached without a final answer",
				pgerr.FieldTurn(turn),
				pgerr.FieldStage("orchestrator"),
			)
		}

		slog.Debug("awaiting model",
			"state", string(stateAwaitingModel),
			"turn", turn,
			"messages", len(messages),
		)
		completion, err := prov.Complete(ctx, provider.CompletionRequest{
			Model:        model,
			SystemPrompt: req.SystemInstructions,
			Messages:     messages,
			Tools:        tools,
			Options:      req.Options,
		})
		if err != nil {
			return nil, pgerr.With(err, pgerr.FieldStage("orchestrator"), pgerr.FieldTurn(turn))
		}
		usage.Add(completion.Usage)

		if completion.Kind == provider.KindText {
			slog.Debug("conversation complete",
				"state", string(stateDone),
				"turns", turn+1,
				"input_tokens", usage.InputTokens,
				"output_tokens", usage.OutputTokens,
			)
			return &RunResult{
				Answer: completion.Text,
				Turns:  turn + 1,
				Usage:  usage,
			}, nil
		}

		// KindToolCalls: echo the assistant's tool-call message, then
		// dispatch every call in request order and append each result in
		// the same order. A malformed call fails the run; fabricating a
		// tool result would misrepresent system state to the model.
		slog.Debug("dispatching tool calls",
			"state", string(stateDispatchingTools),
			"turn", turn,
			"calls", len(completion.ToolCalls),
		)

		messages = append(messages, provider.Message{
			Role:      provider.MessageRoleAssistant,
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		for _, call := range completion.ToolCalls {
			result, err := o.dispatcher.Dispatch(ctx, call)
			if err != nil {
				return nil, pgerr.With(err, pgerr.FieldTurn(turn))
			}
			messages = append(messages, provider.Message{
				Role:       provider.MessageRoleToolResult,
				Content:    result.Content,
				ToolCallID: result.CallID,
				ToolName:   call.Name,
			})
		}
	}
}
