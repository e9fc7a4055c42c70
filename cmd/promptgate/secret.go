// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/promptgate-dev/promptgate/internal/secrets"
	pgerr "github.com/promptgate-dev/promptgate/pkg/errors"
)

// secretStoreFactory creates the secret store; tests substitute a fake.
var secretStoreFactory = func() secrets.Store {
	return secrets.NewKeyringStore()
}

func newSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage secrets in the OS keyring",
		Long: `Manage secrets stored in the OS keyring under the promptgate service.

Provider API keys use the name provider.<name>.api_key, for example:

  promptgate secret set provider.anthropic.api_key`,
	}

	cmd.AddCommand(
		newSecretSetCmd(),
		newSecretListCmd(),
		newSecretDeleteCmd(),
	)

	return cmd
}

func newSecretSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <name>",
		Short: "Store a secret (value read from stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]

			value, _ := cmd.Flags().GetString("value")
			if value == "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Value for %s: ", name)
				scanner := bufio.NewScanner(cmd.InOrStdin())
				if !scanner.Scan() {
					if err := scanner.Err(); err != nil {
						return pgerr.Wrap(err, pgerr.CodeCLIInputInvalid, "reading secret value")
					}
					return pgerr.New(pgerr.CodeCLIInputInvalid, "no secret value provided")
				}
				value = strings.TrimSpace(scanner.Text())
			}
			if value == "" {
				return pgerr.New(pgerr.CodeCLIInputInvalid, "secret value must not be empty")
			}

			if err := secretStoreFactory().Store(secrets.ServiceName, name, value); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s\n", name)
			return nil
		},
	}

	cmd.Flags().String("value", "", "secret value (prefer stdin; argv is visible to other processes)")
	return cmd
}

func newSecretListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored secret names",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			names, err := secretStoreFactory().List(secrets.ServiceName)
			if err != nil {
				return err
			}
			if len(names) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no secrets stored")
				return nil
			}
			for _, name := range names {
				fmt.Fprintln(cmd.OutOrStdout(), name)
			}
			return nil
		},
	}
}

func newSecretDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a stored secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := secretStoreFactory().Delete(secrets.ServiceName, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		},
	}
}
