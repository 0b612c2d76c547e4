package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/telepipe/internal/instrumentation"
)

// unknownServiceVersion is what the configuration reports when neither the
// file nor OTEL_SERVICE_VERSION names a version.
const unknownServiceVersion = "unknown"

// configFlags are the configuration flags shared by serve and probe.
// A flag only overrides the file and environment when it is set explicitly.
type configFlags struct {
	configPath  string
	serviceName string
	logLevel    string
	logSink     string
	exporter    string
	protocol    string
	debug       bool
}

func (f *configFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.configPath, "config", "", "Path to a YAML configuration file")
	cmd.Flags().StringVar(&f.serviceName, "service-name", "", "Service name reported in the telemetry resource. Can also use OTEL_SERVICE_NAME env var.")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "Minimum log level (debug, info, warn, error, none). Can also use TELEPIPE_LOG_LEVEL env var.")
	cmd.Flags().StringVar(&f.logSink, "log-sink", "", "Log output (console, json, zap). Can also use TELEPIPE_LOG_SINK env var.")
	cmd.Flags().StringVar(&f.exporter, "exporter", "", "Telemetry exporter (otlp, stdout, none). Can also use TELEPIPE_EXPORTER env var.")
	cmd.Flags().StringVar(&f.protocol, "otlp-protocol", "", "OTLP protocol (http/protobuf, grpc). Can also use OTEL_EXPORTER_OTLP_PROTOCOL env var.")
	cmd.Flags().BoolVar(&f.debug, "debug", false, "Enable developer warnings. Can also use TELEPIPE_DEBUG env var.")
}

// resolve loads the configuration and applies the flags that were set.
func (f *configFlags) resolve(cmd *cobra.Command) (instrumentation.Config, error) {
	config, err := instrumentation.LoadConfig(f.configPath)
	if err != nil {
		return instrumentation.Config{}, err
	}

	if config.ServiceVersion == unknownServiceVersion {
		config.ServiceVersion = version
	}

	flags := cmd.Flags()
	if flags.Changed("service-name") {
		config.ServiceName = f.serviceName
	}
	if flags.Changed("log-level") {
		config.Logging.Level = f.logLevel
	}
	if flags.Changed("log-sink") {
		config.Logging.Sink = f.logSink
	}
	if flags.Changed("exporter") {
		config.Export.Exporter = f.exporter
	}
	if flags.Changed("otlp-protocol") {
		config.Export.Protocol = f.protocol
	}
	if flags.Changed("debug") {
		config.Debug = f.debug
	}

	if err := config.Validate(); err != nil {
		return instrumentation.Config{}, fmt.Errorf("configuration: %w", err)
	}
	return config, nil
}
