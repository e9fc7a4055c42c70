// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package provider

import (
	"context"
	"strings"
	"sync"

	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// Registry manages provider registration and resolves "provider/model"
// references to a concrete Provider and model ID.
type Registry struct {
	mu         sync.RWMutex
	providers  map[string]Provider
	defaultRef string // "provider/model" format
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider to the registry under the given name.
func (r *Registry) Register(name string, p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[name] = p
}

// Get retrieves a provider by name.
func (r *Registry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, pgerr.New(
			pgerr.CodeProviderNotFound,
			"provider not found: "+name,
			pgerr.FieldProvider(name),
		)
	}
	return p, nil
}

// SetDefault sets the default "provider/model" reference used when a caller
// passes an empty model ref. Returns an error if the provider portion of
// the ref is not registered.
func (r *Registry) SetDefault(ref string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	provName, _ := parseRef(ref)
	if _, ok := r.providers[provName]; !ok {
		return pgerr.New(
			pgerr.CodeProviderNotFound,
			"SetDefault: provider not registered: "+provName,
			pgerr.FieldProvider(provName),
		)
	}
	r.defaultRef = ref
	return nil
}

// Resolve maps a "provider/model" ref (or "" / "default" for the default)
// to a registered provider and the bare model ID.
func (r *Registry) Resolve(ctx context.Context, ref string) (Provider, string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ref == "" || ref == "default" {
		ref = r.defaultRef
	}
	if ref == "" {
		return nil, "", pgerr.New(
			pgerr.CodeProviderNoDefault,
			"no default provider configured",
		)
	}
	if !strings.Contains(ref, "/") {
		return nil, "", pgerr.Errorf(
			pgerr.CodeProviderInvalidModelRef,
			"model ref %q must use provider/model format", ref,
		)
	}

	providerName, model := parseRef(ref)
	p, ok := r.providers[providerName]
	if !ok {
		return nil, "", pgerr.New(
			pgerr.CodeProviderNotFound,
			"provider not found: "+providerName,
			pgerr.FieldProvider(providerName),
		)
	}

	if !p.Available(ctx) {
		return nil, "", pgerr.New(
			pgerr.CodeProviderTransportFailure,
			"provider unavailable: "+providerName,
			pgerr.FieldProvider(providerName),
		)
	}

	return p, model, nil
}

// Close shuts down all registered providers.
func (r *Registry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var errs []error
	for _, p := range r.providers {
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return pgerr.Join(errs...)
	}
	return nil
}

// parseRef splits a "provider/model" reference on the first "/".
func parseRef(ref string) (providerName, model string) {
	idx := strings.Index(ref, "/")
	if idx < 0 {
		return ref, ""
	}
	return ref[:idx], ref[idx+1:]
}
