// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package main

import (
	"log/slog"

	"github.com/promptgate-dev/promptgate/internal/agent"
	"github.com/promptgate-dev/promptgate/internal/config"
	"github.com/promptgate-dev/promptgate/internal/example"
	"github.com/promptgate-dev/promptgate/internal/guard"
	"github.com/promptgate-dev/promptgate/internal/pipeline"
	"github.com/promptgate-dev/promptgate/internal/provider"
	anthropicprov "github.com/promptgate-dev/promptgate/internal/provider/anthropic"
	googleprov "github.com/promptgate-dev/promptgate/internal/provider/google"
	openaiprov "github.com/promptgate-dev/promptgate/internal/provider/openai"
	"github.com/promptgate-dev/promptgate/internal/secrets"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// App bundles the wired pipeline subsystems for one CLI invocation.
type App struct {
	Providers  *provider.Registry
	Controller *pipeline.Controller
}

// Close shuts down all provider clients.
func (a *App) Close() error {
	return a.Providers.Close()
}

// WireApp constructs the full gate-then-converse pipeline from the
// validated config and a loaded example set:
//
//  1. Vendor provider adapters for every configured provider with a
//     resolvable API key, each bounded by the request timeout
//  2. The tool registry, narrowed to the example's tool list
//  3. The injection guard and the conversation orchestrator
//  4. The pipeline controller tying them together
func WireApp(cfg *config.Config, set *example.Set) (*App, error) {
	provReg := provider.NewRegistry()
	if err := registerProviders(cfg, provReg); err != nil {
		return nil, err
	}
	if err := provReg.SetDefault(cfg.Models.Default); err != nil {
		_ = provReg.Close()
		return nil, err
	}

	toolReg := agent.NewToolRegistry()
	toolReg.Register(agent.NewLookupTool(set.LookupTable))
	if set.Config.Tools != nil {
		sub, err := toolReg.Subset(set.Config.Tools)
		if err != nil {
			_ = provReg.Close()
			return nil, err
		}
		toolReg = sub
	}

	dispatcher, err := agent.NewDispatcher(toolReg, cfg.Pipeline.ToolTimeout)
	if err != nil {
		_ = provReg.Close()
		return nil, err
	}

	g, err := guard.New(guard.Config{
		Providers: provReg,
		ModelRef:  cfg.Guard.Model,
		MaxTokens: cfg.Guard.MaxTokens,
	})
	if err != nil {
		_ = provReg.Close()
		return nil, err
	}

	orch, err := agent.New(agent.Config{
		Providers:  provReg,
		Registry:   toolReg,
		Dispatcher: dispatcher,
	})
	if err != nil {
		_ = provReg.Close()
		return nil, err
	}

	ctrl, err := pipeline.New(pipeline.Config{
		Guard:        g,
		Orchestrator: orch,
	})
	if err != nil {
		_ = provReg.Close()
		return nil, err
	}

	return &App{
		Providers:  provReg,
		Controller: ctrl,
	}, nil
}

// registerProviders constructs a vendor adapter for each configured
// provider whose API key resolves (config value, keyring:// URI, or the
// promptgate keyring service). Providers without a key are skipped so a
// single credential is enough to run.
func registerProviders(cfg *config.Config, reg *provider.Registry) error {
	store := secretStoreFactory()

	registered := 0
	for name, pc := range cfg.Providers {
		apiKey, err := secrets.ProviderAPIKey(store, name, pc.APIKey)
		if err != nil {
			if pgerr.HasCode(err, pgerr.CodeSecretNotFound) {
				slog.Debug("skipping provider: no API key", "provider", name)
				continue
			}
			return err
		}

		var p provider.Provider
		switch name {
		case "anthropic":
			p, err = anthropicprov.New(anthropicprov.Config{APIKey: apiKey, BaseURL: pc.Endpoint})
		case "openai":
			p, err = openaiprov.New(openaiprov.Config{APIKey: apiKey, BaseURL: pc.Endpoint})
		case "google":
			p, err = googleprov.New(googleprov.Config{APIKey: apiKey})
		default:
			slog.Warn("unknown provider in config, skipping", "provider", name)
			continue
		}
		if err != nil {
			return err
		}

		reg.Register(name, provider.WithTimeout(p, cfg.Pipeline.RequestTimeout))
		registered++
	}

	if registered == 0 {
		return pgerr.New(
			pgerr.CodeProviderNotFound,
			"no usable provider: configure an API key for at least one provider (see `promptgate secret set`)",
		)
	}
	return nil
}
