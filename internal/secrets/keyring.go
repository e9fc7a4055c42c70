// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package secrets

import (
	"encoding/json"
	"errors"
	"log/slog"
	"sort"

	"github.com/zalando/go-keyring"

	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// indexRecord is the per-service keyring entry holding the sorted JSON
// array of stored key names. go-keyring cannot enumerate keys, so List
// works off this record; the dotted name keeps it clear of the
// provider.<name>.api_key namespace users store under.
const indexRecord = "promptgate.keys.index"

// KeyringStore implements Store on the OS keyring via zalando/go-keyring:
// Keychain on macOS, secret-service (D-Bus) on Linux, Credential Manager
// on Windows.
type KeyringStore struct{}

// NewKeyringStore returns a KeyringStore.
func NewKeyringStore() *KeyringStore {
	return &KeyringStore{}
}

func checkArgs(op, service, key string) error {
	if service == "" {
		return pgerr.New(pgerr.CodeSecretInvalidInput, "secret "+op+": service must not be empty")
	}
	if key == "" {
		return pgerr.New(pgerr.CodeSecretInvalidInput, "secret "+op+": key must not be empty")
	}
	return nil
}

func (s *KeyringStore) Store(service, key, value string) error {
	if err := checkArgs("store", service, key); err != nil {
		return err
	}
	if err := keyring.Set(service, key, value); err != nil {
		return pgerr.Wrapf(err, pgerr.CodeSecretStoreFailure, "storing secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		i := sort.SearchStrings(keys, key)
		if i < len(keys) && keys[i] == key {
			return keys
		}
		keys = append(keys, "")
		copy(keys[i+1:], keys[i:])
		keys[i] = key
		return keys
	})
}

func (s *KeyringStore) Retrieve(service, key string) (string, error) {
	if err := checkArgs("retrieve", service, key); err != nil {
		return "", err
	}
	val, err := keyring.Get(service, key)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", pgerr.Errorf(pgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
	}
	if err != nil {
		return "", pgerr.Wrapf(err, pgerr.CodeSecretStoreFailure, "retrieving secret %s/%s", service, key)
	}
	return val, nil
}

func (s *KeyringStore) Delete(service, key string) error {
	if err := checkArgs("delete", service, key); err != nil {
		return err
	}
	if err := keyring.Delete(service, key); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return pgerr.Errorf(pgerr.CodeSecretNotFound, "secret %s/%s not found", service, key)
		}
		return pgerr.Wrapf(err, pgerr.CodeSecretDeleteFailure, "deleting secret %s/%s", service, key)
	}
	return s.updateIndex(service, func(keys []string) []string {
		filtered := keys[:0]
		for _, k := range keys {
			if k != key {
				filtered = append(filtered, k)
			}
		}
		return filtered
	})
}

// List returns the stored key names for a service in sorted order. A
// service with no index record lists as empty.
func (s *KeyringStore) List(service string) ([]string, error) {
	return s.readIndex(service)
}

func (s *KeyringStore) readIndex(service string) ([]string, error) {
	raw, err := keyring.Get(service, indexRecord)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeSecretListFailure, "loading key index for service %s", service)
	}

	var keys []string
	if err := json.Unmarshal([]byte(raw), &keys); err != nil {
		return nil, pgerr.Wrapf(err, pgerr.CodeSecretListFailure, "decoding key index for service %s", service)
	}
	return keys, nil
}

// updateIndex applies fn to the service's key index and writes the
// result back, removing the record entirely when it empties.
func (s *KeyringStore) updateIndex(service string, fn func([]string) []string) error {
	keys, err := s.readIndex(service)
	if err != nil {
		return err
	}
	keys = fn(keys)

	if len(keys) == 0 {
		if delErr := keyring.Delete(service, indexRecord); delErr != nil && !errors.Is(delErr, keyring.ErrNotFound) {
			slog.Debug("failed to clean up empty key index", "service", service, "error", delErr)
		}
		return nil
	}

	data, err := json.Marshal(keys)
	if err != nil {
		return pgerr.Wrapf(err, pgerr.CodeSecretListFailure, "encoding key index for service %s", service)
	}
	if err := keyring.Set(service, indexRecord, string(data)); err != nil {
		return pgerr.Wrapf(err, pgerr.CodeSecretListFailure, "saving key index for service %s", service)
	}
	return nil
}
