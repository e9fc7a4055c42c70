// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package main

import (
	"bytes"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/promptgate-dev/promptgate/internal/secrets"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// mockSecretStore is an in-memory secrets.Store for testing.
type mockSecretStore struct {
	data map[string]string
}

func newMockSecretStore(keys ...string) *mockSecretStore {
	m := &mockSecretStore{data: make(map[string]string)}
	for _, k := range keys {
		m.data[k] = "redacted"
	}
	return m
}

func (m *mockSecretStore) Store(_, key, value string) error {
	m.data[key] = value
	return nil
}

func (m *mockSecretStore) Retrieve(_, key string) (string, error) {
	v, ok := m.data[key]
	if !ok {
		return "", pgerr.Errorf(pgerr.CodeSecretNotFound, "not found")
	}
	return v, nil
}

func (m *mockSecretStore) Delete(_, key string) error {
	if _, ok := m.data[key]; !ok {
		return pgerr.Errorf(pgerr.CodeSecretNotFound, "not found")
	}
	delete(m.data, key)
	return nil
}

func (m *mockSecretStore) List(_ string) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

// withMockStore swaps the secret store factory for the test's lifetime.
func withMockStore(t *testing.T, mock *mockSecretStore) {
	t.Helper()
	orig := secretStoreFactory
	secretStoreFactory = func() secrets.Store { return mock }
	t.Cleanup(func() { secretStoreFactory = orig })
}

// execute runs the root command with the given args and returns stdout.
func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	buf := new(bytes.Buffer)
	cmd.SetOut(buf)
	cmd.SetErr(buf)
	if stdin != "" {
		cmd.SetIn(strings.NewReader(stdin))
	}
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestSecretList(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		wantKeys []string
		wantMsg  string
	}{
		{
			name:    "empty store",
			keys:    nil,
			wantMsg: "no secrets stored\n",
		},
		{
			name:     "multiple keys",
			keys:     []string{"provider.anthropic.api_key", "provider.openai.api_key"},
			wantKeys: []string{"provider.anthropic.api_key", "provider.openai.api_key"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withMockStore(t, newMockSecretStore(tt.keys...))

			out, err := execute(t, "", "secret", "list")
			require.NoError(t, err)

			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, out)
				return
			}
			got := strings.Split(strings.TrimSpace(out), "\n")
			sort.Strings(got)
			assert.Equal(t, tt.wantKeys, got)
		})
	}
}

func TestSecretSet_FromStdin(t *testing.T) {
	mock := newMockSecretStore()
	withMockStore(t, mock)

	out, err := execute(t, "sk-ant-test\n", "secret", "set", "provider.anthropic.api_key")
	require.NoError(t, err)

	assert.Contains(t, out, "Stored provider.anthropic.api_key")
	assert.Equal(t, "sk-ant-test", mock.data["provider.anthropic.api_key"])
}

func TestSecretSet_FromFlag(t *testing.T) {
	mock := newMockSecretStore()
	withMockStore(t, mock)

	_, err := execute(t, "", "secret", "set", "token", "--value", "abc123")
	require.NoError(t, err)
	assert.Equal(t, "abc123", mock.data["token"])
}

func TestSecretSet_EmptyValue(t *testing.T) {
	withMockStore(t, newMockSecretStore())

	_, err := execute(t, "\n", "secret", "set", "token")
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeCLIInputInvalid))
}

func TestSecretDelete(t *testing.T) {
	mock := newMockSecretStore("provider.anthropic.api_key")
	withMockStore(t, mock)

	out, err := execute(t, "", "secret", "delete", "provider.anthropic.api_key")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted provider.anthropic.api_key")
	assert.Empty(t, mock.data)
}

func TestSecretDelete_Missing(t *testing.T) {
	withMockStore(t, newMockSecretStore())

	_, err := execute(t, "", "secret", "delete", "ghost")
	require.Error(t, err)
	assert.True(t, pgerr.HasCode(err, pgerr.CodeSecretNotFound))
}
