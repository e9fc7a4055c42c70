// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

// Package config loads and validates Promptgate's configuration with the
// standard precedence flag > env > file > defaults.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"

	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// Config is the top-level Promptgate configuration.
type Config struct {
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Models    ModelsConfig              `mapstructure:"models" yaml:"models"`
	Guard     GuardConfig               `mapstructure:"guard" yaml:"guard"`
	Pipeline  PipelineConfig            `mapstructure:"pipeline" yaml:"pipeline"`
	Examples  ExamplesConfig            `mapstructure:"examples" yaml:"examples"`
}

// ProviderConfig holds credentials and endpoint for an LLM provider.
type ProviderConfig struct {
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// ModelsConfig controls assistant model selection.
type ModelsConfig struct {
	Default string `mapstructure:"default" yaml:"default"`
}

// GuardConfig controls the injection-gate classification call.
type GuardConfig struct {
	// Model is the "provider/model" ref for classification. Empty means
	// the assistant default: one endpoint, two fully separate calls.
	Model string `mapstructure:"model" yaml:"model"`

	// MaxTokens bounds the classifier response. The expected verdict is
	// one short line.
	MaxTokens int `mapstructure:"max_tokens" yaml:"max_tokens"`
}

// PipelineConfig bounds a pipeline run.
type PipelineConfig struct {
	MaxTurns       int           `mapstructure:"max_turns" yaml:"max_turns"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" yaml:"request_timeout"`
	ToolTimeout    time.Duration `mapstructure:"tool_timeout" yaml:"tool_timeout"`
}

// ExamplesConfig locates the example sets.
type ExamplesConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// SetDefaults installs the default configuration values on a viper.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("models.default", "anthropic/claude-sonnet-4-5")
	v.SetDefault("guard.model", "")
	v.SetDefault("guard.max_tokens", 256)
	v.SetDefault("pipeline.max_turns", 8)
	v.SetDefault("pipeline.request_timeout", "60s")
	v.SetDefault("pipeline.tool_timeout", "10s")
	v.SetDefault("examples.dir", "./examples")
}

// SetupEnv binds environment variable overrides (prefix PROMPTGATE_,
// dots replaced by underscores).
func SetupEnv(v *viper.Viper) {
	v.SetEnvPrefix("PROMPTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

// FromViper unmarshals and validates a Config from the given viper.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue, "unmarshalling config: %w", err)
	}

	if errs := cfg.Validate(); len(errs) > 0 {
		return nil, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue, "validating config: %w", errors.Join(errs...))
	}

	return &cfg, nil
}

// Validate checks the configuration for logical errors. It returns a
// slice of all validation errors found, collecting all issues rather
// than stopping at the first one.
func (c *Config) Validate() []error {
	var errs []error

	errs = append(errs, c.validateModels()...)
	errs = append(errs, c.validatePipeline()...)
	errs = append(errs, c.validateExamples()...)

	return errs
}

func (c *Config) validateModels() []error {
	var errs []error

	if c.Models.Default == "" {
		errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue, "config: models.default must not be empty"))
	} else if !strings.Contains(c.Models.Default, "/") {
		errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
			"config: models.default must be in \"provider/model\" format, got %q",
			c.Models.Default,
		))
	} else if c.Providers != nil {
		// Only cross-reference providers when the providers section
		// exists in config. A nil map means defaults only, which is valid
		// until a run actually needs credentials.
		providerName := providerFromRef(c.Models.Default)
		if _, ok := c.Providers[providerName]; !ok {
			errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
				"config: models.default %q references provider %q which is not configured",
				c.Models.Default, providerName,
			))
		}
	}

	if c.Guard.MaxTokens <= 0 {
		errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
			"config: guard.max_tokens must be greater than 0, got %d",
			c.Guard.MaxTokens,
		))
	}

	if c.Guard.Model != "" {
		if !strings.Contains(c.Guard.Model, "/") {
			errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
				"config: guard.model must be in \"provider/model\" format, got %q",
				c.Guard.Model,
			))
		} else if c.Providers != nil {
			providerName := providerFromRef(c.Guard.Model)
			if _, ok := c.Providers[providerName]; !ok {
				errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
					"config: guard.model %q references provider %q which is not configured",
					c.Guard.Model, providerName,
				))
			}
		}
	}

	return errs
}

func (c *Config) validatePipeline() []error {
	var errs []error

	if c.Pipeline.MaxTurns <= 0 {
		errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
			"config: pipeline.max_turns must be greater than 0, got %d",
			c.Pipeline.MaxTurns,
		))
	}

	if c.Pipeline.RequestTimeout <= 0 {
		errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
			"config: pipeline.request_timeout must be greater than 0, got %s",
			c.Pipeline.RequestTimeout,
		))
	}

	if c.Pipeline.ToolTimeout < 0 {
		errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue,
			"config: pipeline.tool_timeout must be non-negative, got %s",
			c.Pipeline.ToolTimeout,
		))
	}

	return errs
}

func (c *Config) validateExamples() []error {
	var errs []error

	if c.Examples.Dir == "" {
		errs = append(errs, pgerr.Errorf(pgerr.CodeConfigValidateInvalidValue, "config: examples.dir must not be empty"))
	}

	return errs
}

// providerFromRef extracts the provider prefix from a "provider/model" ref.
func providerFromRef(ref string) string {
	if idx := strings.Index(ref, "/"); idx > 0 {
		return ref[:idx]
	}
	return ref
}
