// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package anthropic implements provider.Provider using the Anthropic
// Messages API. Calls are non-streaming: one request, one complete
// response, classified into the tagged Completion variant.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/promptgate-dev/promptgate/internal/provider"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// Config holds Anthropic provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Provider using the Anthropic Messages API.
type Provider struct {
	client anthropicsdk.Client
	config Config
}

// New creates a new Anthropic provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, pgerr.New(pgerr.CodeProviderRequestInvalid, "anthropic: missing api_key in config", pgerr.FieldProvider("anthropic"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := anthropicsdk.NewClient(opts...)
	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string { return "anthropic" }

func (p *Provider) Available(_ context.Context) bool { return true }

func (p *Provider) Close() error { return nil }

// Complete sends one blocking Messages API call and converts the response
// into the tagged Completion variant.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeProviderRequestInvalid, "anthropic: building request params")
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return convertResponse(msg)
}

// buildParams converts a provider.CompletionRequest into Anthropic SDK MessageNewParams.
func buildParams(req provider.CompletionRequest) (anthropicsdk.MessageNewParams, error) {
	msgs, err := convertMessages(req.Messages)
	if err != nil {
		return anthropicsdk.MessageNewParams{}, err
	}

	maxTokens := int64(req.Options.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropicsdk.MessageNewParams{
		Model:     anthropicsdk.Model(req.Model),
		Messages:  msgs,
		MaxTokens: maxTokens,
	}

	if req.SystemPrompt != "" {
		params.System = []anthropicsdk.TextBlockParam{
			{Text: req.SystemPrompt},
		}
	}

	if req.Options.Temperature != nil {
		params.Temperature = anthropicsdk.Float(float64(*req.Options.Temperature))
	}

	if len(req.Options.StopSequences) > 0 {
		params.StopSequences = req.Options.StopSequences
	}

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return params, nil
}

// convertMessages transforms provider.Message slices into Anthropic SDK MessageParam slices.
func convertMessages(msgs []provider.Message) ([]anthropicsdk.MessageParam, error) {
	var result []anthropicsdk.MessageParam

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewTextBlock(msg.Content),
			))
		case provider.MessageRoleAssistant:
			blocks := make([]anthropicsdk.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
			if msg.Content != "" {
				blocks = append(blocks, anthropicsdk.NewTextBlock(msg.Content))
			}
			// Tool calls the assistant made must be echoed back as tool_use
			// blocks so the endpoint can pair them with the tool_result
			// messages that follow.
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropicsdk.NewToolUseBlock(tc.ID, json.RawMessage(tc.Arguments), tc.Name))
			}
			if len(blocks) == 0 {
				return nil, pgerr.New(pgerr.CodeProviderRequestInvalid, "anthropic: assistant message with no content")
			}
			result = append(result, anthropicsdk.NewAssistantMessage(blocks...))
		case provider.MessageRoleToolResult:
			result = append(result, anthropicsdk.NewUserMessage(
				anthropicsdk.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		default:
			return nil, pgerr.Errorf(pgerr.CodeProviderRequestInvalid, "anthropic: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// convertTools transforms provider.ToolDefinition slices into Anthropic SDK tool params.
func convertTools(tools []provider.ToolDefinition) []anthropicsdk.ToolUnionParam {
	result := make([]anthropicsdk.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := extractSchema(t.InputSchema)
		result = append(result, anthropicsdk.ToolUnionParam{
			OfTool: &anthropicsdk.ToolParam{
				Name:        t.Name,
				Description: anthropicsdk.Opt(t.Description),
				InputSchema: schema,
			},
		})
	}
	return result
}

// extractSchema maps a provider.ToolDefinition.InputSchema (a full JSON Schema
// object with keys like "type", "properties", "required") into the Anthropic SDK's
// ToolInputSchemaParam, which expects Properties and Required as separate fields.
func extractSchema(raw map[string]any) anthropicsdk.ToolInputSchemaParam {
	schema := anthropicsdk.ToolInputSchemaParam{}
	if props, ok := raw["properties"]; ok {
		schema.Properties = props
	}
	if req, ok := raw["required"]; ok {
		if arr, ok := req.([]any); ok {
			strs := make([]string, 0, len(arr))
			for _, v := range arr {
				if s, ok := v.(string); ok {
					strs = append(strs, s)
				}
			}
			schema.Required = strs
		}
	}
	return schema
}

// convertResponse classifies a Messages API response into the tagged
// Completion variant. A response with neither text nor tool_use content is
// malformed, never an empty Completion.
func convertResponse(msg *anthropicsdk.Message) (*provider.Completion, error) {
	if msg == nil {
		return nil, pgerr.New(pgerr.CodeProviderResponseMalformed, "anthropic: empty response message")
	}

	out := &provider.Completion{
		Usage: provider.Usage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
		},
	}

	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			out.Text += block.Text
		case "tool_use":
			out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: string(block.Input),
			})
		}
	}

	switch {
	case len(out.ToolCalls) > 0:
		out.Kind = provider.KindToolCalls
	case out.Text != "":
		out.Kind = provider.KindText
	default:
		return nil, pgerr.Errorf(pgerr.CodeProviderResponseMalformed,
			"anthropic: response contains neither text nor tool calls (stop_reason %q)", msg.StopReason)
	}

	return out, nil
}

// classifyTransportError maps SDK call failures onto the transport error taxonomy.
func classifyTransportError(err error) error {
	var apiErr *anthropicsdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return pgerr.Wrapf(err, pgerr.CodeProviderRateLimited, "anthropic: rate limited")
	}
	return pgerr.Wrapf(err, pgerr.CodeProviderTransportFailure, "anthropic: completion call failed")
}
