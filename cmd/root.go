package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// rootCmd represents the base command for the telepipe application
var rootCmd = &cobra.Command{
	Use:   "telepipe",
	Short: "Client-side logging, metrics and tracing with OTLP export",
	Long: `telepipe records structured logs, metrics and spans for outgoing HTTP
calls and exports them in batches to an OpenTelemetry collector.

It can run as:
  - A long-running pipeline with an admin server (serve)
  - A one-shot probe of a backend's endpoints (probe)`,
	SilenceUsage: true,
}

// version will be set by main
var version = "dev"

// SetVersion sets the version for the root command
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// Execute is the main entry point for the CLI application
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "telepipe version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newProbeCmd())
	rootCmd.AddCommand(newVersionCmd())
}
