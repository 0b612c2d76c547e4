// Package cmd implements the command-line interface for telepipe.
//
// This package provides the following commands:
//   - serve: Run the telemetry pipeline with the admin server (metrics, health, logs)
//   - probe: Issue instrumented requests against a backend and export the telemetry
//   - version: Display version information
//
// Configuration is resolved as defaults, then the --config YAML file, then
// environment variables, then command-line flags.
package cmd
