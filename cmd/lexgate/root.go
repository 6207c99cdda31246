package main

import (
	"github.com/spf13/cobra"

	"github.com/lexgate/lexgate/internal/api"
	"github.com/lexgate/lexgate/version"
)

var (
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "lexgate",
	Short: "HTTP gateway for LLM-powered structured extraction",
	Long: `Lexgate is an HTTP gateway that turns free text and PDF documents into
structured extractions using few-shot prompted language models.

Callers describe what to pull out of the text and show a handful of
worked examples; the gateway prompts the configured model, validates the
response, and returns the extractions as plain JSON.

Endpoints:
  - /healthz         - Process liveness
  - /readyz          - Readiness (secret configuration)
  - /v1/extract      - Structured extraction over raw text
  - /v1/extract-pdf  - Structured extraction over an uploaded PDF`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.lexgate/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
