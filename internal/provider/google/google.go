// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package google implements provider.Provider using the Google Gemini API,
// non-streaming.
package google

import (
	"context"
	"encoding/json"
	"errors"

	"google.golang.org/genai"

	"github.com/promptgate-dev/promptgate/internal/provider"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// Config holds Google provider configuration.
type Config struct {
	APIKey string
}

// Provider implements provider.Provider using the Google Gemini API.
type Provider struct {
	client *genai.Client
	config Config
}

// New creates a new Google provider. Returns an error if the API key is missing.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, pgerr.New(pgerr.CodeProviderRequestInvalid, "google: missing api_key in config", pgerr.FieldProvider("google"))
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeProviderTransportFailure, "google: creating client")
	}

	return &Provider{client: client, config: cfg}, nil
}

func (p *Provider) Name() string { return "google" }

func (p *Provider) Available(_ context.Context) bool { return true }

func (p *Provider) Close() error { return nil }

// Complete sends one blocking GenerateContent call and converts the
// response into the tagged Completion variant.
func (p *Provider) Complete(ctx context.Context, req provider.CompletionRequest) (*provider.Completion, error) {
	contents, err := convertMessages(req.Messages)
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeProviderRequestInvalid, "google: converting messages")
	}

	config := buildConfig(req)

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, contents, config)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	return convertResponse(resp)
}

// buildConfig converts a provider.CompletionRequest into a genai.GenerateContentConfig.
func buildConfig(req provider.CompletionRequest) *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}

	if req.Options.Temperature != nil {
		cfg.Temperature = genai.Ptr(*req.Options.Temperature)
	}

	if req.Options.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(req.Options.MaxTokens)
	}

	if len(req.Options.StopSequences) > 0 {
		cfg.StopSequences = req.Options.StopSequences
	}

	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: req.SystemPrompt},
			},
		}
	}

	if len(req.Tools) > 0 {
		cfg.Tools = convertTools(req.Tools)
	}

	return cfg
}

// convertMessages transforms provider.Message slices into genai.Content slices.
// The Google GenAI SDK uses Content with Role and Parts; system instructions
// are handled via SystemInstruction in buildConfig.
func convertMessages(msgs []provider.Message) ([]*genai.Content, error) {
	var result []*genai.Content

	for _, msg := range msgs {
		switch msg.Role {
		case provider.MessageRoleUser:
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{
					{Text: msg.Content},
				},
			})
		case provider.MessageRoleAssistant:
			var parts []*genai.Part
			if msg.Content != "" {
				parts = append(parts, &genai.Part{Text: msg.Content})
			}
			for _, tc := range msg.ToolCalls {
				var args map[string]any
				if err := json.Unmarshal([]byte(tc.Arguments), &args); err != nil {
					return nil, pgerr.Errorf(pgerr.CodeProviderRequestInvalid,
						"google: decoding arguments for echoed tool call %q: %w", tc.Name, err)
				}
				parts = append(parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   tc.ID,
						Name: tc.Name,
						Args: args,
					},
				})
			}
			if len(parts) == 0 {
				return nil, pgerr.New(pgerr.CodeProviderRequestInvalid, "google: assistant message with no content")
			}
			result = append(result, &genai.Content{Role: "model", Parts: parts})
		case provider.MessageRoleToolResult:
			result = append(result, &genai.Content{
				Role: "user",
				Parts: []*genai.Part{
					{
						FunctionResponse: &genai.FunctionResponse{
							ID:       msg.ToolCallID,
							Name:     msg.ToolName,
							Response: map[string]any{"result": msg.Content},
						},
					},
				},
			})
		default:
			return nil, pgerr.Errorf(pgerr.CodeProviderRequestInvalid, "google: unsupported message role %q", msg.Role)
		}
	}

	return result, nil
}

// convertTools transforms provider.ToolDefinition slices into genai.Tool slices.
func convertTools(tools []provider.ToolDefinition) []*genai.Tool {
	var decls []*genai.FunctionDeclaration
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema,
		})
	}
	return []*genai.Tool{
		{FunctionDeclarations: decls},
	}
}

// convertResponse classifies a GenerateContent response into the tagged
// Completion variant.
func convertResponse(resp *genai.GenerateContentResponse) (*provider.Completion, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, pgerr.New(pgerr.CodeProviderResponseMalformed, "google: response contains no candidates")
	}

	out := &provider.Completion{}
	if resp.UsageMetadata != nil {
		out.Usage = provider.Usage{
			InputTokens:  int(resp.UsageMetadata.PromptTokenCount),
			OutputTokens: int(resp.UsageMetadata.CandidatesTokenCount),
		}
	}

	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			args, err := json.Marshal(part.FunctionCall.Args)
			if err != nil {
				return nil, pgerr.Errorf(pgerr.CodeProviderResponseMalformed,
					"google: marshaling tool call arguments for %q: %w", part.FunctionCall.Name, err)
			}
			out.ToolCalls = append(out.ToolCalls, provider.ToolCall{
				ID:        part.FunctionCall.ID,
				Name:      part.FunctionCall.Name,
				Arguments: string(args),
			})
		}
	}

	switch {
	case len(out.ToolCalls) > 0:
		out.Kind = provider.KindToolCalls
	case out.Text != "":
		out.Kind = provider.KindText
	default:
		return nil, pgerr.New(pgerr.CodeProviderResponseMalformed,
			"google: response contains neither text nor tool calls")
	}

	return out, nil
}

// classifyTransportError maps SDK call failures onto the transport error taxonomy.
func classifyTransportError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		return pgerr.Wrapf(err, pgerr.CodeProviderRateLimited, "google: rate limited")
	}
	return pgerr.Wrapf(err, pgerr.CodeProviderTransportFailure, "google: completion call failed")
}
