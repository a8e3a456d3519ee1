package main

import (
	"github.com/spf13/cobra"
)

// Version is set via ldflags at build time
var Version = "dev"

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "orchestrator",
		Short: "Fraud case event orchestrator",
		Long: `orchestrator ingests risk events from the detection core, applies the
escalation and multisig rules, tracks webhook callbacks from downstream
systems and keeps an append-only monitoring log for replay and audit.`,
		SilenceUsage: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version of orchestrator",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Printf("orchestrator %s\n", Version)
		},
	}
}
