package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"mercator-hq/greenlight/pkg/config"
	"mercator-hq/greenlight/pkg/engine"
	"mercator-hq/greenlight/pkg/subject"
)

var decideFlags struct {
	subjectType       string
	subjectIdentifier string
	productVersion    string
	decisionContext   string
}

var decideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Evaluate one gating decision and print it as JSON",
	Long: `Evaluate a gating decision for one subject and print the full decision
as JSON. The command exits with status 1 when the decision is a fail, so it
can gate pipeline steps directly.

Example:
  greenlight decide --subject-type koji_build \
      --subject-identifier glibc-2.26-27.fc27 \
      --product-version fedora-27 \
      --decision-context bodhi_update_push_stable`,
	RunE: runDecide,
}

func init() {
	rootCmd.AddCommand(decideCmd)

	decideCmd.Flags().StringVar(&decideFlags.subjectType, "subject-type", "", "subject item type (e.g. koji_build)")
	decideCmd.Flags().StringVar(&decideFlags.subjectIdentifier, "subject-identifier", "", "subject identifier (e.g. an NVR)")
	decideCmd.Flags().StringVar(&decideFlags.productVersion, "product-version", "", "product version (e.g. fedora-27)")
	decideCmd.Flags().StringVar(&decideFlags.decisionContext, "decision-context", "", "decision context (e.g. bodhi_update_push_stable)")
	decideCmd.MarkFlagRequired("subject-type")
	decideCmd.MarkFlagRequired("subject-identifier")
	decideCmd.MarkFlagRequired("product-version")
	decideCmd.MarkFlagRequired("decision-context")
}

func runDecide(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return err
	}
	// Decisions print to stdout; keep logs on stderr.
	cfg.Telemetry.Logging.Format = "text"
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	sub, err := subject.New(decideFlags.subjectType, decideFlags.subjectIdentifier)
	if err != nil {
		return err
	}

	c, err := buildComponents(cmd.Context(), cfg, logger, false)
	if err != nil {
		return err
	}

	decision, err := c.engine.Evaluate(cmd.Context(), engine.Request{
		Subject:         sub,
		ProductVersion:  decideFlags.productVersion,
		DecisionContext: decideFlags.decisionContext,
	})
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(decision, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))

	if !decision.Passed {
		os.Exit(1)
	}
	return nil
}
