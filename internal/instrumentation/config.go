package instrumentation

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/teemow/telepipe/internal/export"
	"github.com/teemow/telepipe/internal/logging"
)

// Sentinel configuration errors.
var (
	ErrInvalidConfig   = errors.New("invalid configuration")
	ErrUnknownExporter = errors.New("unknown exporter")
)

// Exporter types.
const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
	ExporterNone   = "none"
)

// Log sink types.
const (
	SinkConsole = "console"
	SinkJSON    = "json"
	SinkZap     = "zap"
)

// Config holds the configuration for the telemetry pipeline.
type Config struct {
	// ServiceName is the name of the service (default: telepipe)
	ServiceName string `yaml:"service_name" validate:"required"`

	// ServiceVersion is the version of the service
	ServiceVersion string `yaml:"service_version"`

	// Environment is recorded as deployment.environment (default: development)
	Environment string `yaml:"environment"`

	// Debug enables developer warnings such as ending a span twice
	Debug bool `yaml:"debug"`

	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Export  ExportConfig  `yaml:"export"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Enabled determines if log entries are recorded (default: true)
	Enabled bool `yaml:"enabled"`

	// Level is the minimum level: debug, info, warn, error or none (default: info)
	Level string `yaml:"level" validate:"loglevel"`

	// Sink selects where entries are written: console, json or zap (default: console)
	Sink string `yaml:"sink" validate:"oneof=console json zap"`

	// HistorySize is the number of entries kept in memory (default: 100)
	HistorySize int `yaml:"history_size" validate:"gte=1,lte=100000"`
}

// TracingConfig configures the span tracer.
type TracingConfig struct {
	// Enabled determines if spans are recorded (default: true)
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP traces URL, e.g. http://localhost:4318/v1/traces
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// SampleRate is validated and reported but not applied; every span is
	// exported (default: 0.1)
	SampleRate float64 `yaml:"sample_rate" validate:"gte=0,lte=1"`
}

// MetricsConfig configures the metrics aggregator.
type MetricsConfig struct {
	// Enabled determines if metrics are recorded (default: true)
	Enabled bool `yaml:"enabled"`

	// Endpoint is the OTLP metrics URL, e.g. http://localhost:4318/v1/metrics
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// Interval between metric snapshots (default: 60s)
	Interval time.Duration `yaml:"interval" validate:"gt=0"`
}

// ExportConfig configures the export pipeline.
type ExportConfig struct {
	// Enabled determines if telemetry is exported at all (default: true)
	Enabled bool `yaml:"enabled"`

	// Exporter specifies the exporter type
	// Options: "otlp", "stdout", "none" (default: "otlp")
	Exporter string `yaml:"exporter" validate:"oneof=otlp stdout none"`

	// Protocol is the OTLP transport: "http/protobuf" (default) or "grpc"
	Protocol string `yaml:"protocol" validate:"oneof=http/protobuf grpc"`

	// Insecure controls whether to use plaintext transport for OTLP export
	// WARNING: Never use insecure transport in production - spans carry URLs
	// and error messages
	Insecure bool `yaml:"insecure"`

	// Headers are sent with every OTLP request
	Headers map[string]string `yaml:"headers"`

	// MaxQueueSpans queued spans trigger an early export (default: 512)
	MaxQueueSpans int `yaml:"max_queue_spans" validate:"gte=0"`

	// Timeout bounds a single export call (default: 30s)
	Timeout time.Duration `yaml:"timeout" validate:"gte=0"`
}

var configValidate *validator.Validate

func init() {
	configValidate = validator.New()
	_ = configValidate.RegisterValidation("loglevel", validateLogLevel)
}

// validateLogLevel accepts the level names understood by logging.ParseLevel.
func validateLogLevel(fl validator.FieldLevel) bool {
	switch strings.ToLower(fl.Field().String()) {
	case "debug", "info", "warn", "error", "none":
		return true
	}
	return false
}

// baseConfig returns the built-in defaults without consulting the environment.
func baseConfig() Config {
	return Config{
		ServiceName:    "telepipe",
		ServiceVersion: "unknown",
		Environment:    "development",
		Logging: LoggingConfig{
			Enabled:     true,
			Level:       "info",
			Sink:        SinkConsole,
			HistorySize: logging.DefaultHistorySize,
		},
		Tracing: TracingConfig{
			Enabled:    true,
			Endpoint:   "http://localhost:4318/v1/traces",
			SampleRate: 0.1,
		},
		Metrics: MetricsConfig{
			Enabled:  true,
			Endpoint: "http://localhost:4318/v1/metrics",
			Interval: export.DefaultInterval,
		},
		Export: ExportConfig{
			Enabled:       true,
			Exporter:      ExporterOTLP,
			Protocol:      export.ProtocolHTTPProtobuf,
			MaxQueueSpans: export.DefaultMaxQueueSpans,
			Timeout:       export.DefaultExportTimeout,
		},
	}
}

// DefaultConfig returns a Config with sensible defaults based on environment variables.
func DefaultConfig() Config {
	config := baseConfig()
	config.applyEnv()
	return config
}

// LoadConfig reads defaults, then the YAML file at path (if path is not
// empty), then environment variables. The result is not validated.
func LoadConfig(path string) (Config, error) {
	config := baseConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, fmt.Errorf("%w: failed to parse %s: %v", ErrInvalidConfig, path, err)
		}
	}
	config.applyEnv()
	return config, nil
}

// applyEnv overrides fields with the environment variables that are set.
func (c *Config) applyEnv() {
	c.ServiceName = getEnvOrDefault("OTEL_SERVICE_NAME", c.ServiceName)
	c.ServiceVersion = getEnvOrDefault("OTEL_SERVICE_VERSION", c.ServiceVersion)
	c.Environment = getEnvOrDefault("TELEPIPE_ENV", c.Environment)
	c.Debug = getEnvBoolOrDefault("TELEPIPE_DEBUG", c.Debug)

	c.Logging.Enabled = getEnvBoolOrDefault("TELEPIPE_LOGGING_ENABLED", c.Logging.Enabled)
	c.Logging.Level = getEnvOrDefault("TELEPIPE_LOG_LEVEL", c.Logging.Level)
	c.Logging.Sink = getEnvOrDefault("TELEPIPE_LOG_SINK", c.Logging.Sink)
	c.Logging.HistorySize = getEnvIntOrDefault("TELEPIPE_LOG_HISTORY_SIZE", c.Logging.HistorySize)

	c.Tracing.Enabled = getEnvBoolOrDefault("TELEPIPE_TRACING_ENABLED", c.Tracing.Enabled)
	c.Tracing.Endpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", c.Tracing.Endpoint)
	c.Tracing.SampleRate = getEnvFloatOrDefault("OTEL_TRACES_SAMPLER_ARG", c.Tracing.SampleRate)

	c.Metrics.Enabled = getEnvBoolOrDefault("TELEPIPE_METRICS_ENABLED", c.Metrics.Enabled)
	c.Metrics.Endpoint = getEnvOrDefault("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", c.Metrics.Endpoint)
	c.Metrics.Interval = getEnvMillisOrDefault("OTEL_METRIC_EXPORT_INTERVAL", c.Metrics.Interval)

	c.Export.Enabled = getEnvBoolOrDefault("OTEL_ENABLED", c.Export.Enabled)
	c.Export.Exporter = getEnvOrDefault("TELEPIPE_EXPORTER", c.Export.Exporter)
	c.Export.Protocol = getEnvOrDefault("OTEL_EXPORTER_OTLP_PROTOCOL", c.Export.Protocol)
	c.Export.Insecure = getEnvBoolOrDefault("OTEL_EXPORTER_OTLP_INSECURE", c.Export.Insecure)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if err := configValidate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			if fe.Namespace() == "Config.Export.Exporter" {
				return fmt.Errorf("%w %q, must be one of: otlp, stdout, none", ErrUnknownExporter, c.Export.Exporter)
			}
			return fmt.Errorf("%w: %s failed %q validation (value %v)", ErrInvalidConfig, fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	// OTLP endpoint required for every kind that is exported
	if c.Export.Enabled && c.Export.Exporter == ExporterOTLP {
		if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
			return fmt.Errorf("%w: OTLP traces endpoint is required when tracing is exported", ErrInvalidConfig)
		}
		if c.Metrics.Enabled && c.Metrics.Endpoint == "" {
			return fmt.Errorf("%w: OTLP metrics endpoint is required when metrics are exported", ErrInvalidConfig)
		}
	}

	return nil
}

// LogLevel returns the parsed minimum log level.
func (c *Config) LogLevel() logging.Level {
	return logging.ParseLevel(c.Logging.Level)
}

// getEnvOrDefault returns the value of an environment variable or a default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBoolOrDefault returns the boolean value of an environment variable or a default value.
func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvFloatOrDefault returns the float64 value of an environment variable or a default value.
func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvIntOrDefault returns the int value of an environment variable or a default value.
func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return parsed
	}
	return defaultValue
}

// getEnvMillisOrDefault reads a duration given in milliseconds.
func getEnvMillisOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseInt(value, 10, 64)
		if err != nil || parsed <= 0 {
			return defaultValue
		}
		return time.Duration(parsed) * time.Millisecond
	}
	return defaultValue
}
