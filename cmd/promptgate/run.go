// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Promptgate Contributors

package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/promptgate-dev/promptgate/internal/config"
	"github.com/promptgate-dev/promptgate/internal/example"
	"github.com/promptgate-dev/promptgate/internal/pipeline"
	"github.com/promptgate-dev/promptgate/internal/provider"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [example]",
		Short: "Run the gated pipeline against an example set",
		Long: `Run screens the example's user input through the injection guard and,
if it passes, hands it to the tool-enabled assistant conversation.

The example argument is either a number (resolved against example_<N>_*)
or a directory name under the examples directory. With no argument, the
available examples are listed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}

	cmd.Flags().String("example", "", "example number or directory name (alternative to the positional argument)")
	cmd.Flags().String("model", "", "override the assistant model (provider/model)")
	cmd.Flags().Int("max-turns", 0, "override the model round-trip limit")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	arg, _ := cmd.Flags().GetString("example")
	if len(args) > 0 {
		arg = args[0]
	}
	if arg == "" {
		return printExamples(out, cfg.Examples.Dir)
	}

	dir, err := example.Find(cfg.Examples.Dir, arg)
	if err != nil {
		return err
	}
	set, err := example.Load(dir)
	if err != nil {
		return err
	}

	app, err := WireApp(cfg, set)
	if err != nil {
		return err
	}
	defer app.Close()

	modelRef := resolveModelRef(set.Config.ModelID, cfg.Models.Default)
	if flagModel, _ := cmd.Flags().GetString("model"); flagModel != "" {
		modelRef = flagModel
	}

	maxTurns := cfg.Pipeline.MaxTurns
	if flagTurns, _ := cmd.Flags().GetInt("max-turns"); flagTurns > 0 {
		maxTurns = flagTurns
	}

	outcome, err := app.Controller.Handle(cmd.Context(), pipeline.Request{
		SystemInstructions: set.SystemInstructions,
		UserInput:          set.UserInput,
		ModelRef:           modelRef,
		Options: provider.Options{
			Temperature: set.Config.Temperature,
			MaxTokens:   set.Config.MaxTokens,
		},
		MaxTurns: maxTurns,
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Example: %s\n", set.Name)
	fmt.Fprintf(out, "Status:  %s\n", outcome.Status)
	if outcome.Status == pipeline.StatusBlocked {
		fmt.Fprintf(out, "Reason:  %s\n", outcome.Rationale)
		return nil
	}

	fmt.Fprintf(out, "Turns:   %d\n", outcome.Turns)
	fmt.Fprintf(out, "Tokens:  %d in / %d out\n", outcome.Usage.InputTokens, outcome.Usage.OutputTokens)
	fmt.Fprintf(out, "\n%s\n", outcome.Answer)
	return nil
}

// resolveModelRef turns the example's model_id into a registry ref. A
// bare model ID (no provider prefix) inherits the default's provider so
// examples can name just the model.
func resolveModelRef(modelID, defaultRef string) string {
	if modelID == "" {
		return ""
	}
	if strings.Contains(modelID, "/") {
		return modelID
	}
	if idx := strings.Index(defaultRef, "/"); idx > 0 {
		return defaultRef[:idx] + "/" + modelID
	}
	return modelID
}

// printExamples writes the available example sets, one per line.
func printExamples(out io.Writer, dir string) error {
	entries, err := example.List(dir)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Fprintf(out, "no examples found in %s\n", dir)
		return nil
	}

	fmt.Fprintln(out, "Available examples:")
	for _, e := range entries {
		fmt.Fprintf(out, "  %d\t%s\n", e.Number, e.Name)
	}
	return nil
}
