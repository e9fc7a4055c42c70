// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/promptgate-dev/promptgate/internal/config"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available example sets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.FromViper(viper.GetViper())
			if err != nil {
				return err
			}
			return printExamples(cmd.OutOrStdout(), cfg.Examples.Dir)
		},
	}
}
