// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package main

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/promptgate-dev/promptgate/internal/config"
	"github.com/promptgate-dev/promptgate/internal/secrets"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// NewRootCmd creates the root promptgate command with all subcommands registered.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "promptgate",
		Short:         "Promptgate — injection-gated LLM assistant pipeline",
		Long:          "Promptgate screens untrusted input with an independent classification call before it may reach a tool-enabled assistant loop.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := initViper(cmd); err != nil {
				return err
			}
			setupLogging()
			return nil
		},
	}

	// Global flags — these map to viper keys via initViper.
	root.PersistentFlags().StringP("config", "c", "", "path to config file")
	root.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	// Register subcommands
	root.AddCommand(
		newRunCmd(),
		newListCmd(),
		newConfigCmd(),
		newSecretCmd(),
		newVersionCmd(),
	)

	return root
}

// initViper sets up the global Viper with defaults, env bindings, flag
// bindings, and optional config file so the standard precedence
// (flag > env > file > defaults) is handled uniformly.
func initViper(cmd *cobra.Command) error {
	v := viper.GetViper()

	config.SetDefaults(v)
	config.SetupEnv(v)

	if cfgFile, _ := cmd.Flags().GetString("config"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "reading config file: %w", err)
		}
	} else {
		// Auto-discover promptgate.yaml from standard locations.
		// Note: SetConfigType is intentionally omitted. When set, Viper
		// falls back to trying the bare config name without extension,
		// which collides with the ./promptgate binary in the project root.
		v.SetConfigName("promptgate")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/promptgate")
		v.AddConfigPath("/etc/promptgate")
		// No config file is fine — defaults and env vars still apply.
		// Parse or permission errors must surface.
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "reading config: %w", err)
			}
			// No config found anywhere — bootstrap a default to ~/.config/promptgate/.
			if path := config.BootstrapConfig(); path != "" {
				v.SetConfigFile(path)
				if err := v.ReadInConfig(); err != nil {
					return pgerr.Errorf(pgerr.CodeConfigLoadReadFailure, "reading bootstrapped config: %w", err)
				}
			}
		}
	}

	// Bind persistent flags to viper keys.
	if err := v.BindPFlag("verbose", cmd.Root().PersistentFlags().Lookup("verbose")); err != nil {
		return pgerr.Errorf(pgerr.CodeCLISetupFailure, "binding verbose flag: %w", err)
	}

	// Resolve keyring:// references in config values before anything
	// reads them.
	secrets.ResolveViperSecrets(v, secretStoreFactory())

	return nil
}

// setupLogging installs the process-wide slog handler: text to stderr,
// debug level when --verbose is set.
func setupLogging() {
	level := slog.LevelInfo
	if viper.GetBool("verbose") {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
