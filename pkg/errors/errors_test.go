// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package errors_test

import (
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

func TestNewCarriesCodeAndFields(t *testing.T) {
	err := pgerr.New(
		pgerr.CodeToolNotFound,
		"unknown tool: ghost",
		pgerr.FieldTool("ghost"),
		pgerr.FieldCallID("call-1"),
		pgerr.FieldStage("dispatcher"),
	)
	require.Error(t, err)

	assert.Equal(t, pgerr.CodeToolNotFound, pgerr.CodeOf(err))
	assert.True(t, pgerr.HasCode(err, pgerr.CodeToolNotFound))
	assert.Contains(t, err.Error(), "unknown tool: ghost")

	fields := pgerr.FieldsOf(err)
	assert.Equal(t, "ghost", fields["tool"])
	assert.Equal(t, "call-1", fields["call_id"])
	assert.Equal(t, "dispatcher", pgerr.StageOf(err))
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := pgerr.Wrap(cause, pgerr.CodeProviderTransportFailure, "calling endpoint")

	assert.True(t, pgerr.HasCode(err, pgerr.CodeProviderTransportFailure))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "calling endpoint")
}

func TestWrapNilIsNil(t *testing.T) {
	assert.NoError(t, pgerr.Wrap(nil, pgerr.CodeProviderTransportFailure, "whatever"))
	assert.NoError(t, pgerr.Wrapf(nil, pgerr.CodeProviderTransportFailure, "whatever"))
	assert.NoError(t, pgerr.With(nil, pgerr.FieldStage("guard")))
}

func TestWithKeepsCodeAndAddsFields(t *testing.T) {
	err := pgerr.New(pgerr.CodeToolTimeout, "tool timed out", pgerr.FieldTool("slow"))
	err = pgerr.With(err, pgerr.FieldTurn(4), pgerr.FieldStage("orchestrator"))

	assert.True(t, pgerr.HasCode(err, pgerr.CodeToolTimeout))

	fields := pgerr.FieldsOf(err)
	assert.Equal(t, 4, fields["turn"])
	assert.Equal(t, "orchestrator", fields["stage"])
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Empty(t, pgerr.CodeOf(stderrors.New("plain")))
	assert.Empty(t, pgerr.CodeOf(nil))
	assert.False(t, pgerr.HasCode(nil, pgerr.CodeToolTimeout))
}

func TestReasonPredicates(t *testing.T) {
	assert.True(t, pgerr.IsNotFound(pgerr.New(pgerr.CodeProviderNotFound, "x")))
	assert.True(t, pgerr.IsNotFound(pgerr.New(pgerr.CodeSecretNotFound, "x")))
	assert.False(t, pgerr.IsNotFound(pgerr.New(pgerr.CodeToolTimeout, "x")))

	assert.True(t, pgerr.IsTimeout(pgerr.New(pgerr.CodeToolTimeout, "x")))
	assert.True(t, pgerr.IsInvalidInput(pgerr.New(pgerr.CodeConfigValidateInvalidValue, "x")))
	assert.True(t, pgerr.IsTransportFailure(pgerr.New(pgerr.CodeProviderRateLimited, "x")))
	assert.False(t, pgerr.IsTransportFailure(pgerr.New(pgerr.CodeGuardClassifyFailure, "x")))
}

func TestJoin(t *testing.T) {
	e1 := stderrors.New("first")
	e2 := stderrors.New("second")
	err := pgerr.Join(e1, e2)

	assert.ErrorIs(t, err, e1)
	assert.ErrorIs(t, err, e2)
}
