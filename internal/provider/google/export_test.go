// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package google

import (
	"google.golang.org/genai"

	"github.com/promptgate-dev/promptgate/internal/provider"
)

// ConvertMessages exposes convertMessages for white-box testing.
var ConvertMessages = func(msgs []provider.Message) ([]*genai.Content, error) {
	return convertMessages(msgs)
}

// BuildConfig exposes buildConfig for white-box testing.
var BuildConfig = func(req provider.CompletionRequest) *genai.GenerateContentConfig {
	return buildConfig(req)
}

// ConvertResponse exposes convertResponse for white-box testing.
var ConvertResponse = func(resp *genai.GenerateContentResponse) (*provider.Completion, error) {
	return convertResponse(resp)
}
