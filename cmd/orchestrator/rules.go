package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/upb/case-orchestrator/internal/rules"
)

func newRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect orchestration rule documents",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <file>",
		Short: "Parse and validate a rules file, printing the effective thresholds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("reading rules: %w", err)
			}
			r, err := rules.Parse(data)
			if err != nil {
				return err
			}
			return printRules(cmd, r)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "defaults",
		Short: "Print the built-in thresholds",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return printRules(cmd, rules.Default())
		},
	})

	return cmd
}

func printRules(cmd *cobra.Command, r rules.Rules) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
