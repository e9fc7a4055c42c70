// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/promptgate-dev/promptgate/internal/config"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets redacted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromViper(viper.GetViper())
			if err != nil {
				return err
			}

			// Never print resolved credentials.
			for name, pc := range cfg.Providers {
				if pc.APIKey != "" {
					pc.APIKey = "[redacted]"
					cfg.Providers[name] = pc
				}
			}

			data, err := yaml.Marshal(cfg)
			if err != nil {
				return pgerr.Wrap(err, pgerr.CodeCLISetupFailure, "rendering config")
			}

			if file := viper.ConfigFileUsed(); file != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "# %s\n", file)
			}
			fmt.Fprint(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}
