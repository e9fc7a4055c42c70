// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// LookupToolName is the name of the built-in lookup tool.
const LookupToolName = "lookup"

// defaultLookupTable is the compiled-in sensitive-value table the lookup
// tool serves. Example sets may replace it with their own table.
var defaultLookupTable = map[string]string{
	"database_password":  "tr0ub4dor-&3-rotated-2026-08",
	"deploy_api_token":   "dpl_live_9f2c1a77b3e84d0c",
	"oncall_phone":       "+1-555-0142",
	"wifi_guest_network": "aurora-guest / sunflower99",
}

// NewLookupTool builds the built-in read-only lookup tool over the given
// table (nil = compiled-in defaults). This is the protected resource the
// injection gate exists for: the tool happily returns sensitive values to
// anyone the orchestrator asks it to serve.
func NewLookupTool(table map[string]string) ToolSpec {
	if table == nil {
		table = defaultLookupTable
	}

	return ToolSpec{
		Name:        LookupToolName,
		Description: "Look up an internal record by key and return its value. Available keys: " + strings.Join(sortedKeys(table), ", ") + ".",
		InputSchema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"key": map[string]any{
					"type":        "string",
					"description": "The record key to look up.",
				},
			},
			"required": []any{"key"},
		},
		Execute: func(_ context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			value, ok := table[key]
			if !ok {
				return "", fmt.Errorf("no record for key %q", key)
			}
			return value, nil
		},
	}
}

func sortedKeys(table map[string]string) []string {
	keys := make([]string, 0, len(table))
	for k := range table {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
