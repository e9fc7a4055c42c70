// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package openai

import (
	openaisdk "github.com/openai/openai-go/v2"
	"github.com/promptgate-dev/promptgate/internal/provider"
)

// ConvertMessages exposes convertMessages for white-box testing.
var ConvertMessages = func(msgs []provider.Message, systemPrompt string) ([]openaisdk.ChatCompletionMessageParamUnion, error) {
	return convertMessages(msgs, systemPrompt)
}

// BuildParams exposes buildParams for white-box testing.
var BuildParams = func(req provider.CompletionRequest) (openaisdk.ChatCompletionNewParams, error) {
	return buildParams(req)
}

// ConvertResponse exposes convertResponse for white-box testing.
var ConvertResponse = func(resp *openaisdk.ChatCompletion) (*provider.Completion, error) {
	return convertResponse(resp)
}
