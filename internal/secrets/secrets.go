// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package secrets resolves provider credentials without ever writing them
// into config files: values may reference the OS keyring via the
// keyring:// URI scheme, and empty api_key entries fall back to the
// promptgate keyring service.
package secrets

import (
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"

	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// ServiceName is the keyring service under which Promptgate stores secrets.
const ServiceName = "promptgate"

// Store provides secure secret storage operations.
type Store interface {
	// Store saves a secret value under the given service and key.
	Store(service, key, value string) error

	// Retrieve fetches the secret value for the given service and key.
	// Returns a secret.not_found error (via pgerr.HasCode) if the key
	// does not exist.
	Retrieve(service, key string) (string, error)

	// Delete removes the secret for the given service and key.
	Delete(service, key string) error

	// List returns all key names stored under the given service.
	List(service string) ([]string, error)
}

const keyringScheme = "keyring://"

// IsKeyringURI reports whether value uses the keyring:// URI scheme.
func IsKeyringURI(value string) bool {
	return strings.HasPrefix(value, keyringScheme)
}

// ParseKeyringURI extracts service and key from a keyring://service/key URI.
func ParseKeyringURI(uri string) (service, key string, err error) {
	if !IsKeyringURI(uri) {
		return "", "", pgerr.Errorf(pgerr.CodeSecretInvalidInput, "not a keyring URI: %q", uri)
	}

	path := strings.TrimPrefix(uri, keyringScheme)
	parts := strings.SplitN(path, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", pgerr.Errorf(pgerr.CodeSecretInvalidInput,
			"invalid keyring URI %q: expected keyring://service/key", uri)
	}

	return parts[0], parts[1], nil
}

// ResolveKeyringURI resolves a single keyring:// URI to its secret value.
// Returns the original value unchanged if it is not a keyring URI.
func ResolveKeyringURI(store Store, value string) (string, error) {
	if !IsKeyringURI(value) {
		return value, nil
	}

	service, key, err := ParseKeyringURI(value)
	if err != nil {
		return "", err
	}

	secret, err := store.Retrieve(service, key)
	if err != nil {
		return "", pgerr.Wrapf(err, pgerr.CodeSecretStoreFailure, "resolving keyring URI %q", value)
	}

	return secret, nil
}

// ResolveViperSecrets walks all keys in a Viper instance and resolves any
// string values that use the keyring:// URI scheme. This is a post-load
// resolution step, not a Viper decoder hook.
//
// Resolution failures are logged as warnings and the original URI value
// is kept in place, so the error surfaces later when the value is used.
func ResolveViperSecrets(v *viper.Viper, store Store) {
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if !IsKeyringURI(val) {
			continue
		}

		resolved, err := ResolveKeyringURI(store, val)
		if err != nil {
			slog.Warn("failed to resolve keyring URI, keeping original value",
				"config_key", key,
				"error", err,
			)
			continue
		}

		v.Set(key, resolved)
	}
}

// ProviderAPIKeyName is the keyring key name for a provider's API key.
func ProviderAPIKeyName(providerName string) string {
	return "provider." + providerName + ".api_key"
}

// ProviderAPIKey resolves a provider's API key: the configured value wins
// (after ${ENV_VAR} expansion and keyring:// resolution), and an empty
// value falls back to the promptgate keyring service. A key missing
// everywhere returns secret.not_found.
func ProviderAPIKey(store Store, providerName, configured string) (string, error) {
	configured = os.ExpandEnv(configured)
	if configured != "" {
		return ResolveKeyringURI(store, configured)
	}

	key, err := store.Retrieve(ServiceName, ProviderAPIKeyName(providerName))
	if err != nil {
		if pgerr.HasCode(err, pgerr.CodeSecretNotFound) {
			return "", pgerr.New(
				pgerr.CodeSecretNotFound,
				"no API key configured for provider "+providerName,
				pgerr.FieldProvider(providerName),
			)
		}
		return "", err
	}
	return key, nil
}
