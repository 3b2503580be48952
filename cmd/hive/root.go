package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "hive",
	Short: "Agent orchestration core",
	Long: `Hive runs a hierarchy of cooperating agents: a communication hub
routes prioritized messages between them, a delegator turns task
descriptions into spawned specialists or teams, and a lifecycle manager
tracks every agent from spawn to archive.

Core capabilities:
- Channel-based messaging with priority mailboxes and broadcast
- Task delegation with keyword-driven specialist selection
- Recursive agent hierarchies with automatic reporting links
- Lifecycle state machine with health scoring and retirement policies`,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}
