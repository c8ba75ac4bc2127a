package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/platinummonkey/fieldscan/internal/preflight"
)

var pullModels bool

// preflightCmd represents the preflight command
var preflightCmd = &cobra.Command{
	Use:   "preflight",
	Short: "Check that layouts, models, template, output directory and printed provider are in place",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, log, err := setup()
		if err != nil {
			return err
		}

		report := preflight.Run(cmd.Context(), cfg, preflight.Options{
			PullModels: pullModels,
			Logger:     log.WithOperation("preflight"),
		})
		out := cmd.OutOrStdout()
		for _, c := range report.Checks {
			mark := "OK  "
			if !c.OK {
				mark = "FAIL"
			}
			fmt.Fprintf(out, "[%s] %-22s %s\n", mark, c.Name, c.Detail)
		}

		if !report.Passed() {
			return fmt.Errorf("preflight failed: %d checks did not pass", len(report.Failures()))
		}
		return nil
	},
}

func init() {
	preflightCmd.Flags().BoolVar(&pullModels, "pull-models", false, "let the Ollama check pull a missing printed model")
	rootCmd.AddCommand(preflightCmd)
}
