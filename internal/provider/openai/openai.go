// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package openai implements provider.Provider using the OpenAI Chat
// Completions API, non-streaming.
package openai

import (
	"context"
	"errors"

	openaisdk "github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/packages/param"
	"github.com/openai/openai-go/v2/shared"

	"github.com/promptgate-dev/promptgate/internal/provider"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// Config holds OpenAI provider configuration.
type Config struct {
	APIKey  string
	BaseURL string // optional, useful for testing against a mock server
}

// Provider implements provider.Provider using the OpenAI Chat Completions API.
type Provider struct {
	client openaisdk.Client
	config Config
}

// New creates a new OpenAI provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, pgerr.New(pgerr.CodeProviderRequestInvalid, "openai: missing api_key in config", pgerr.FieldProvider("openai"))
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	client := openaisdk.NewClient(opts...)
	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string { return "openai" }

func (p *Provider) Available(_ context.Context) bool { return true }

func (p *Provider) Close() error { return nil }

// Complete sends one blocking Chat Completions call and converts the
// response into the tagged Completion variant.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	params, err := buildParams(req)
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeProviderRequestInvalid, "openai: building request params")
	}

	resp, err := p.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return convertResponse(resp)
}

// buildParams converts a provider.CompletionRequest into OpenAI SDK ChatCompletionNewParams.
func buildParams(req provider.CompletionRequest) (openaisdk.ChatCompletionNewParams, error) {
	msgs, err := convertMessages(req.Messages, req.SystemPrompt)
	if err != nil {
		return openaisdk.ChatCompletionNewParams{}, err
	}

	params := openaisdk.ChatCompletionNewParams{
		Model:    shared.ChatModel(req.Model),
		Messages: msgs,
	}

	if req.Options.MaxTokens > 0 {
		params.MaxCompletionTokens = param.NewOpt(int64(req.Options.MaxTokens))
	}

	if req.Options.Temperature != nil {
		params.Temperature = param.NewOpt(float64(*req.Options.Temperature))
	}

	if len(req.Options.StopSequences) > 0 {
		params.Stop = openaisdk.ChatCompletionNewParamsStopUnion{
			OfStringArray: req.Options.StopSequences,
		}
	}

	if len(req.Tools) > 0 {
		params.Tools = convertTools(req.Tools)
	}

	return params, nil
}

// convertMessages transforms provider.Message slices into OpenAI SDK message param slices.
// The system prompt is prepended as a system message if present.
func convertMessages(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	var result []openaisdk.ChatCompletionMessageParamUnion

	if systemPrompt != "" {
		result = append(result, openaisdk.SystemMessage(systemPrompt))
	}

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, openaisdk.UserMessage(msg.Content))
		case provider.MessageRoleAssistant:
			if len(msg.ToolCalls) == 0 {
				result = append(result, openaisdk.AssistantMessage(msg.Content))
				continue
			}
			assistant := openaisdk.ChatCompletionAssistantMessageParam{
				ToolCalls: convertToolCalls(msg.ToolCalls),
			}
			if msg.Content != "" {
				assistant.Content = openaisdk.ChatCompletionAssistantMessageParamContentUnion{
					OfString: param.NewOpt(msg.Content),
				}
			}
			result = append(result, openaisdk.ChatCompletionMessageParamUnion{
				OfAssistant: &assistant,
			})
		case provider.MessageRoleToolResult:
			result = append(result, openaisdk.ToolMessage(msg.Content, msg.ToolCallID))
		default:
			return nil, pgerr.Errorf(pgerr.CodeProviderRequestInvalid, "openai: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// convertToolCalls renders assistant-issued tool calls back into SDK params
// so the endpoint can pair them with subsequent tool messages.
func convertToolCalls(calls []provider.ToolCall) []openaisdk.ChatCompletionMessageToolCallUnionParam {
	result := make([]openaisdk.ChatCompletionMessageToolCallUnionParam, 0, len(calls))
	for _, tc := range calls {
		result = append(result, openaisdk.ChatCompletionMessageToolCallUnionParam{
			OfFunction: &openaisdk.ChatCompletionMessageFunctionToolCallParam{
				ID: tc.ID,
				Function: openaisdk.ChatCompletionMessageFunctionToolCallFunctionParam{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			},
		})
	}
	return result
}

// convertTools transforms provider.ToolDefinition slices into OpenAI SDK tool params.
func convertTools(tools []provider.ToolDefinition) []openaisdk.ChatCompletionToolUnionParam {
	result := make([]openaisdk.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		result = append(result, openaisdk.ChatCompletionFunctionTool(shared.FunctionDefinitionParam{
			Name:        t.Name,
			Description: param.NewOpt(t.Description),
			Parameters:  shared.FunctionParameters(t.InputSchema),
		}))
	}
	return result
}

// convertResponse classifies a Chat Completions response into the tagged
// Completion variant.
func convertResponse(resp *openaisdk.ChatCompletion) (*provider.Completion, error) {
	if resp == nil || len(resp.Choices) == 0 {
		return nil, pgerr.New(pgerr.CodeProviderResponseMalformed, "openai: response contains no choices")
	}

	choice := resp.Choices[0]
	out := &provider.Completion{
		Text: choice.Message.Content,
		Usage: provider.Usage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
		},
	}

	for _, tc := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	switch {
	case len(out.ToolCalls) > 0:
		out.Kind = provider.KindToolCalls
	case out.Text != "":
		out.Kind = provider.KindText
	default:
		return nil, pgerr.Errorf(pgerr.CodeProviderResponseMalformed,
			"openai: response contains neither text nor tool calls (finish_reason %q)", choice.FinishReason)
	}

	return out, nil
}

// classifyTransportError maps SDK call failures onto the transport error taxonomy.
func classifyTransportError(err error) error {
	var apiErr *openaisdk.Error
	if errors.As(err, &apiErr) && apiErr.StatusCode == 429 {
		return pgerr.Wrapf(err, pgerr.CodeProviderRateLimited, "openai: rate limited")
	}
	return pgerr.Wrapf(err, pgerr.CodeProviderTransportFailure, "openai: completion call failed")
}
