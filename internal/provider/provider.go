// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package provider defines the model-client boundary: a neutral request
// shape sent to a remote completion endpoint and a tagged response
// variant that is either final text or a batch of tool calls. Vendor
// adapters live in subpackages.
package provider

import (
	"context"
)

// Provider is the core interface for LLM completion endpoints. Complete is
// a blocking, synchronous request/response call; the caller bounds it with
// a context deadline.
type Provider interface {
	Name() string
	Available(ctx context.Context) bool
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	Close() error
}

// CompletionRequest is one call to the model endpoint.
//
// SystemPrompt carries the protected system instructions. It is a separate
// field, never a Message: untrusted conversation content and controlling
// instructions must not share a content block anywhere in the pipeline.
type CompletionRequest struct {
	Model        string
	SystemPrompt string
	Messages     []Message
	Tools        []ToolDefinition // empty slice = tool calling disabled
	Options      Options
}

// Options contains generation parameters.
type Options struct {
	Temperature   *float32
	MaxTokens     int
	StopSequences []string
}

// Message is one entry in the ordered conversation.
type Message struct {
	Role    MessageRole
	Content string

	// ToolCalls is set on assistant messages that requested tools; the
	// vendor adapters render these back as tool-use blocks so the endpoint
	// can pair them with the tool_result messages that follow.
	ToolCalls []ToolCall

	// ToolCallID and ToolName identify the originating call on
	// tool_result messages.
	ToolCallID string
	ToolName   string
}

// MessageRole defines the role of a message sender.
type MessageRole string

const (
	MessageRoleUser       MessageRole = "user"
	MessageRoleAssistant  MessageRole = "assistant"
	MessageRoleToolResult MessageRole = "tool_result"
)

// ToolDefinition describes a tool exposed to the model.
type ToolDefinition struct {
	Name        string
	Description string
	InputSchema map[string]any // JSON Schema object
}

// ToolCall is a structured tool invocation request emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // JSON
}

// CompletionKind tags the variant a Completion holds.
type CompletionKind string

const (
	KindText      CompletionKind = "text"
	KindToolCalls CompletionKind = "tool_calls"
)

// Completion is the model's response: exactly one of final text or a batch
// of tool calls, in the order the model emitted them. Adapters return a
// provider.response.malformed error instead of a Completion that fits
// neither case, so downstream decision logic is a total match over Kind.
type Completion struct {
	Kind CompletionKind

	// Text is the final answer when Kind == KindText. It also carries any
	// text the model emitted alongside tool calls.
	Text string

	// ToolCalls is non-empty exactly when Kind == KindToolCalls.
	ToolCalls []ToolCall

	Usage Usage
}

// Usage tracks token consumption for one completion call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Add accumulates another call's usage, used by the orchestrator to sum
// consumption across turns.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
}
