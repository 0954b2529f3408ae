package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"helpdesk-hq/beacon/pkg/config"
	"helpdesk-hq/beacon/pkg/engine"
	"helpdesk-hq/beacon/pkg/policy"
	"helpdesk-hq/beacon/pkg/scorer"
)

var validateFlags struct {
	policyOnly bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration, policy, and model artifacts",
	Long: `Validate the service configuration, the escalation policy file, and
the model artifacts without starting the server.

The same checks run at startup; this command surfaces them ahead of a
deploy. It verifies:
  - Configuration file syntax, defaults, and value ranges
  - Policy YAML syntax, regex patterns, and thresholds
  - Model artifact consistency (feature order matches model weights)

Examples:
  # Validate everything referenced by the config
  beacon validate --config /etc/beacon/config.yaml

  # Validate only the policy file
  beacon validate --policy-only`,
	RunE: validateAll,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.policyOnly, "policy-only", false, "validate only the policy file")
}

func validateAll(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	fmt.Println("✓ Configuration valid")

	pol, err := policy.Load(cfg.Policy.FilePath)
	if err != nil {
		return fmt.Errorf("policy validation failed: %w", err)
	}
	fmt.Printf("✓ Policy valid (version %s, tau %.3f)\n", pol.Version, pol.Thresholds.Tau)

	if validateFlags.policyOnly {
		return nil
	}

	artifacts, err := scorer.LoadArtifacts(cfg.Artifacts.Dir)
	if err != nil {
		return fmt.Errorf("artifact validation failed: %w", err)
	}
	if err := engine.ValidateFeatureOrder(artifacts.FeatureOrder); err != nil {
		return fmt.Errorf("artifact validation failed: %w", err)
	}
	fmt.Printf("✓ Model artifacts valid (version %s, %d features)\n",
		artifacts.Model.Version(), len(artifacts.FeatureOrder))

	return nil
}
