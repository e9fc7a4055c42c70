// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/promptgate-dev/promptgate/internal/provider"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// Executor runs a registered tool against decoded arguments and returns
// the result payload. Registered tools are fast, read-only lookups; any
// fault an executor returns is real and propagates unretried.
type Executor func(ctx context.Context, args map[string]any) (string, error)

// ToolSpec describes one registered tool: its name, a human-readable
// description, a JSON Schema for its parameters, and the executor bound
// to it.
type ToolSpec struct {
	Name        string
	Description string
	InputSchema map[string]any
	Execute     Executor
}

// Definition renders the spec as the neutral tool definition sent to the
// model endpoint.
func (s ToolSpec) Definition() provider.ToolDefinition {
	return provider.ToolDefinition{
		Name:        s.Name,
		Description: s.Description,
		InputSchema: s.InputSchema,
	}
}

// ToolRegistry is a thread-safe set of ToolSpecs. The registered set is
// immutable for the lifetime of one pipeline run; Subset carves out the
// per-example view without mutating the parent.
type ToolRegistry struct {
	mu    sync.RWMutex
	tools map[string]ToolSpec
}

// NewToolRegistry creates an empty ToolRegistry.
func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools: make(map[string]ToolSpec),
	}
}

// Register adds a tool to the registry, replacing any spec with the same name.
func (r *ToolRegistry) Register(spec ToolSpec) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[spec.Name] = spec
}

// Get retrieves a tool spec by name.
func (r *ToolRegistry) Get(name string) (ToolSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	spec, ok := r.tools[name]
	return spec, ok
}

// Definitions returns all registered tool definitions, sorted by name so
// requests to the model endpoint are deterministic.
func (r *ToolRegistry) Definitions() []provider.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]provider.ToolDefinition, 0, len(r.tools))
	for _, spec := range r.tools {
		defs = append(defs, spec.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Subset returns a new registry containing only the named tools. An
// unknown name is a configuration error, not a silent omission.
func (r *ToolRegistry) Subset(names []string) (*ToolRegistry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub := NewToolRegistry()
	for _, name := range names {
		spec, ok := r.tools[name]
		if !ok {
			return nil, pgerr.New(
				pgerr.CodeToolNotFound,
				"tool not registered: "+name,
				pgerr.FieldTool(name),
			)
		}
		sub.tools[name] = spec
	}
	return sub, nil
}

// ToolResult is the dispatcher's output. CallID always equals the
// originating call's identifier.
type ToolResult struct {
	CallID  string
	Content string
}

// Dispatcher executes model-issued tool calls against a ToolRegistry with
// argument validation and a per-call timeout.
type Dispatcher struct {
	registry *ToolRegistry
	timeout  time.Duration
}

// NewDispatcher creates a Dispatcher. A zero timeout disables the
// per-call deadline.
func NewDispatcher(registry *ToolRegistry, timeout time.Duration) (*Dispatcher, error) {
	if registry == nil {
		return nil, pgerr.New(pgerr.CodeToolNotFound, "dispatcher: registry is required")
	}
	return &Dispatcher{registry: registry, timeout: timeout}, nil
}

// Dispatch validates and executes one tool call. An unknown tool name or
// arguments failing the spec's schema is a data-model violation surfaced
// as an error identifying the offending call — never a silent no-op and
// never a fabricated result.
func (d *Dispatcher) Dispatch(ctx context.Context, call provider.ToolCall) (*ToolResult, error) {
	spec, ok := d.registry.Get(call.Name)
	if !ok {
		return nil, pgerr.New(
			pgerr.CodeToolNotFound,
			"unknown tool: "+call.Name,
			pgerr.FieldTool(call.Name),
			pgerr.FieldCallID(call.ID),
			pgerr.FieldStage("dispatcher"),
		)
	}

	args, err := decodeArguments(call.Arguments)
	if err != nil {
		return nil, pgerr.Wrap(err, pgerr.CodeToolArgumentsInvalid,
			"decoding arguments for tool "+call.Name,
			pgerr.FieldTool(call.Name),
			pgerr.FieldCallID(call.ID),
			pgerr.FieldStage("dispatcher"),
		)
	}

	if err := validateArguments(spec.InputSchema, args); err != nil {
		return nil, pgerr.Wrap(err, pgerr.CodeToolArgumentsInvalid,
			"arguments for tool "+call.Name+" do not satisfy its schema",
			pgerr.FieldTool(call.Name),
			pgerr.FieldCallID(call.ID),
			pgerr.FieldStage("dispatcher"),
		)
	}

	execCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	content, err := spec.Execute(execCtx, args)
	if err != nil {
		if execCtx.Err() == context.DeadlineExceeded {
			return nil, pgerr.Wrap(err, pgerr.CodeToolTimeout,
				"tool "+call.Name+" execution timeout",
				pgerr.FieldTool(call.Name),
				pgerr.FieldCallID(call.ID),
				pgerr.FieldStage("dispatcher"),
			)
		}
		return nil, pgerr.Wrap(err, pgerr.CodeToolExecutionFailure,
			"executing tool "+call.Name,
			pgerr.FieldTool(call.Name),
			pgerr.FieldCallID(call.ID),
			pgerr.FieldStage("dispatcher"),
		)
	}

	return &ToolResult{CallID: call.ID, Content: content}, nil
}

// decodeArguments parses the model-supplied argument JSON into an object.
// Empty arguments decode to an empty object.
func decodeArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("arguments are not a JSON object: %w", err)
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

// validateArguments checks decoded arguments against the subset of JSON
// Schema the tool specs use: top-level "properties" with primitive "type"
// declarations and a "required" list. Properties absent from the schema
// are rejected.
func validateArguments(schema, args map[string]any) error {
	properties, _ := schema["properties"].(map[string]any)

	if required, ok := schema["required"].([]any); ok {
		for _, entry := range required {
			name, ok := entry.(string)
			if !ok {
				continue
			}
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required property %q", name)
			}
		}
	}

	for name, value := range args {
		propSchema, ok := properties[name].(map[string]any)
		if !ok {
			return fmt.Errorf("unexpected property %q", name)
		}
		declared, ok := propSchema["type"].(string)
		if !ok {
			continue
		}
		if err := checkType(declared, value); err != nil {
			return fmt.Errorf("property %q: %w", name, err)
		}
	}

	return nil
}

// checkType verifies a decoded JSON value against a declared schema type.
func checkType(declared string, value any) error {
	switch declared {
	case "string":
		if _, ok := value.(string); !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
	case "number":
		if _, ok := value.(float64); !ok {
			return fmt.Errorf("expected number, got %T", value)
		}
	case "integer":
		f, ok := value.(float64)
		if !ok || f != float64(int64(f)) {
			return fmt.Errorf("expected integer, got %v", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	case "array":
		if _, ok := value.([]any); !ok {
			return fmt.Errorf("expected array, got %T", value)
		}
	case "object":
		if _, ok := value.(map[string]any); !ok {
			return fmt.Errorf("expected object, got %T", value)
		}
	}
	return nil
}
