// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package errors defines Promptgate's error taxonomy: machine-readable
// dotted codes layered over samber/oops so every failure carries its
// code, the pipeline stage it occurred in, and structured context.
package errors

import (
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/samber/oops"
)

// Code is the machine-readable identifier for an error.
type Code string

const (
	CodeProviderTransportFailure   Code = "provider.transport.failure"
	CodeProviderRateLimited        Code = "provider.transport.rate_limited"
	CodeProviderResponseMalformed  Code = "provider.response.malformed"
	CodeProviderRequestInvalid     Code = "provider.request.invalid"
	CodeProviderNotFound           Code = "provider.registry.not_found"
	CodeProviderInvalidModelRef    Code = "provider.routing.invalid_model_ref"
	CodeProviderNoDefault          Code = "provider.routing.no_default"

	CodeGuardClassifyFailure Code = "guard.classify.failure"

	CodeToolNotFound         Code = "dispatch.tool.not_found"
	CodeToolArgumentsInvalid Code = "dispatch.arguments.invalid"
	CodeToolExecutionFailure Code = "dispatch.tool.execution_failure"
	CodeToolTimeout          Code = "dispatch.tool.timeout"

	CodeTurnLimitExceeded      Code = "orchestrator.turn_limit.exceeded"
	CodeOrchestratorRunFailure Code = "orchestrator.run.failure"

	CodeConfigLoadReadFailure      Code = "config.load.read.failure"
	CodeConfigValidateInvalidValue Code = "config.validate.invalid_value"

	CodeExampleNotFound      Code = "example.lookup.not_found"
	CodeExampleAmbiguous     Code = "example.lookup.ambiguous"
	CodeExampleFilesMissing  Code = "example.load.missing_files"
	CodeExampleConfigInvalid Code = "example.load.invalid_config"

	CodeSecretNotFound      Code = "secret.not_found"
	CodeSecretInvalidInput  Code = "secret.invalid_input"
	CodeSecretStoreFailure  Code = "secret.store.failure"
	CodeSecretListFailure   Code = "secret.list.failure"
	CodeSecretDeleteFailure Code = "secret.delete.failure"

	CodeCLIInputInvalid Code = "cli.input.invalid"
	CodeCLISetupFailure Code = "cli.setup.failure"
)

// Attr is a structured key/value context attached to an error.
type Attr struct {
	Key   string
	Value any
}

// Field creates a structured error field.
func Field(key string, value any) Attr {
	return Attr{Key: key, Value: value}
}

// FieldStage records the pipeline stage at which an error occurred
// (guard, orchestrator, dispatcher).
func FieldStage(value string) Attr {
	return Field("stage", value)
}

func FieldProvider(value string) Attr {
	return Field("provider", value)
}

func FieldTool(value string) Attr {
	return Field("tool", value)
}

func FieldCallID(value string) Attr {
	return Field("call_id", value)
}

func FieldTurn(value int) Attr {
	return Field("turn", value)
}

func FieldExample(value string) Attr {
	return Field("example", value)
}

func New(code Code, msg string, fields ...Attr) error {
	return oops.Code(code).With(flatten(fields)...).New(msg)
}

func Errorf(code Code, format string, args ...any) error {
	return oops.Code(code).Errorf(format, args...)
}

func Wrap(err error, code Code, msg string, fields ...Attr) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).With(flatten(fields)...).Wrapf(err, "%s", msg)
}

func Wrapf(err error, code Code, format string, args ...any) error {
	if err == nil {
		return nil
	}

	return oops.Code(code).Wrapf(err, format, args...)
}

// With adds structured fields to an existing error chain, preserving its code.
func With(err error, fields ...Attr) error {
	if err == nil {
		return nil
	}

	code := CodeOf(err)
	if code == "" {
		code = CodeOrchestratorRunFailure
	}

	return oops.Code(code).With(flatten(fields)...).Wrap(err)
}

func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}

	if code, ok := oopsErr.Code().(Code); ok {
		return code
	}

	if code, ok := oopsErr.Code().(string); ok {
		return Code(code)
	}

	return Code(fmt.Sprintf("%v", oopsErr.Code()))
}

func FieldsOf(err error) map[string]any {
	if err == nil {
		return nil
	}

	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return nil
	}

	return oopsErr.Context()
}

// StageOf returns the pipeline stage recorded on the error, or "".
func StageOf(err error) string {
	if stage, ok := FieldsOf(err)["stage"].(string); ok {
		return stage
	}
	return ""
}

func HasCode(err error, code Code) bool {
	if err == nil {
		return false
	}
	return CodeOf(err) == code
}

func IsNotFound(err error) bool {
	return reason(CodeOf(err)) == "not_found"
}

func IsInvalidInput(err error) bool {
	r := reason(CodeOf(err))
	return r == "invalid" || r == "invalid_input" || r == "invalid_value" || r == "invalid_config"
}

func IsTimeout(err error) bool {
	return reason(CodeOf(err)) == "timeout"
}

func IsTransportFailure(err error) bool {
	code := CodeOf(err)
	return strings.Contains(string(code), "transport")
}

func Join(errs ...error) error {
	return oops.Code(CodeOrchestratorRunFailure).Wrap(stderrors.Join(errs...))
}

func flatten(fields []Attr) []any {
	pairs := make([]any, 0, len(fields)*2)
	for _, field := range fields {
		if field.Key == "" {
			continue
		}
		pairs = append(pairs, field.Key, field.Value)
	}
	return pairs
}

func reason(code Code) string {
	if code == "" {
		return ""
	}

	raw := string(code)
	idx := strings.LastIndex(raw, ".")
	if idx == -1 || idx == len(raw)-1 {
		return raw
	}
	return raw[idx+1:]
}
