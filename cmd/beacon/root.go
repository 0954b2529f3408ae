package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "beacon",
	Short: "Beacon - escalation decision service for support conversations",
	Long: `Beacon is a deterministic, auditable escalation decision engine for
customer support conversations.

Each conversation event flows through a fixed pipeline:
  - Pattern rules (explicit human requests, risk terms)
  - Turn-count guard before the model is consulted
  - Logistic model scoring over rolling conversation features

Every decision carries the branch that produced it, the score, the fired
rules, and redacted message text, and is persisted for audit.`,
	Version: Version,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "config.yaml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
