package instrumentation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/teemow/telepipe/internal/logging"
)

var configEnvKeys = []string{
	"OTEL_SERVICE_NAME", "OTEL_SERVICE_VERSION", "TELEPIPE_ENV", "TELEPIPE_DEBUG",
	"TELEPIPE_LOGGING_ENABLED", "TELEPIPE_LOG_LEVEL", "TELEPIPE_LOG_SINK", "TELEPIPE_LOG_HISTORY_SIZE",
	"TELEPIPE_TRACING_ENABLED", "OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "OTEL_TRACES_SAMPLER_ARG",
	"TELEPIPE_METRICS_ENABLED", "OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "OTEL_METRIC_EXPORT_INTERVAL",
	"OTEL_ENABLED", "TELEPIPE_EXPORTER", "OTEL_EXPORTER_OTLP_PROTOCOL", "OTEL_EXPORTER_OTLP_INSECURE",
}

// clearConfigEnv blanks every variable the config reads; empty values are
// treated as unset.
func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvKeys {
		t.Setenv(key, "")
	}
}

func TestDefaultConfig(t *testing.T) {
	clearConfigEnv(t)

	config := DefaultConfig()

	if config.ServiceName != "telepipe" {
		t.Errorf("expected ServiceName 'telepipe', got %q", config.ServiceName)
	}
	if !config.Logging.Enabled || !config.Tracing.Enabled || !config.Metrics.Enabled || !config.Export.Enabled {
		t.Error("expected logging, tracing, metrics and export to be enabled by default")
	}
	if config.LogLevel() != logging.LevelInfo {
		t.Errorf("expected log level INFO, got %v", config.LogLevel())
	}
	if config.Logging.HistorySize != 100 {
		t.Errorf("expected HistorySize 100, got %d", config.Logging.HistorySize)
	}
	if config.Export.Exporter != ExporterOTLP {
		t.Errorf("expected Exporter 'otlp', got %q", config.Export.Exporter)
	}
	if config.Tracing.SampleRate != 0.1 {
		t.Errorf("expected SampleRate 0.1, got %f", config.Tracing.SampleRate)
	}
	if config.Metrics.Interval != 60*time.Second {
		t.Errorf("expected Interval 60s, got %v", config.Metrics.Interval)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestDefaultConfig_FromEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("OTEL_SERVICE_NAME", "test-service")
	t.Setenv("TELEPIPE_LOG_LEVEL", "debug")
	t.Setenv("TELEPIPE_LOG_HISTORY_SIZE", "25")
	t.Setenv("OTEL_ENABLED", "false")
	t.Setenv("TELEPIPE_EXPORTER", "stdout")
	t.Setenv("OTEL_TRACES_SAMPLER_ARG", "0.5")
	t.Setenv("OTEL_METRIC_EXPORT_INTERVAL", "1500")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "http://collector:4318/v1/traces")

	config := DefaultConfig()

	if config.ServiceName != "test-service" {
		t.Errorf("expected ServiceName 'test-service', got %q", config.ServiceName)
	}
	if config.LogLevel() != logging.LevelDebug {
		t.Errorf("expected DEBUG, got %v", config.LogLevel())
	}
	if config.Logging.HistorySize != 25 {
		t.Errorf("expected HistorySize 25, got %d", config.Logging.HistorySize)
	}
	if config.Export.Enabled {
		t.Error("expected export to be disabled")
	}
	if config.Export.Exporter != ExporterStdout {
		t.Errorf("expected Exporter 'stdout', got %q", config.Export.Exporter)
	}
	if config.Tracing.SampleRate != 0.5 {
		t.Errorf("expected SampleRate 0.5, got %f", config.Tracing.SampleRate)
	}
	if config.Metrics.Interval != 1500*time.Millisecond {
		t.Errorf("expected Interval 1.5s, got %v", config.Metrics.Interval)
	}
	if config.Tracing.Endpoint != "http://collector:4318/v1/traces" {
		t.Errorf("unexpected traces endpoint %q", config.Tracing.Endpoint)
	}
}

func TestLoadConfig_YAMLThenEnv(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("TELEPIPE_LOG_LEVEL", "error")

	path := filepath.Join(t.TempDir(), "telepipe.yaml")
	data := `
service_name: checkout
environment: staging
logging:
  level: warn
  sink: json
  history_size: 10
metrics:
  interval: 15s
export:
  exporter: stdout
  headers:
    x-tenant: acme
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if config.ServiceName != "checkout" || config.Environment != "staging" {
		t.Errorf("unexpected service %q env %q", config.ServiceName, config.Environment)
	}
	if config.Logging.Level != "error" {
		t.Errorf("environment should override the file: level = %q", config.Logging.Level)
	}
	if config.Logging.Sink != SinkJSON || config.Logging.HistorySize != 10 {
		t.Errorf("unexpected logging config %+v", config.Logging)
	}
	if config.Metrics.Interval != 15*time.Second {
		t.Errorf("expected Interval 15s, got %v", config.Metrics.Interval)
	}
	if !config.Tracing.Enabled {
		t.Error("fields missing from the file should keep their defaults")
	}
	if config.Export.Headers["x-tenant"] != "acme" {
		t.Errorf("unexpected headers %v", config.Export.Headers)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	clearConfigEnv(t)

	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("logging: [unclosed"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, err := LoadConfig(path)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		expectError error
		errContains string
	}{
		{
			name:   "defaults",
			mutate: func(*Config) {},
		},
		{
			name: "export disabled without endpoints",
			mutate: func(c *Config) {
				c.Export.Enabled = false
				c.Tracing.Endpoint = ""
				c.Metrics.Endpoint = ""
			},
		},
		{
			name:        "missing service name",
			mutate:      func(c *Config) { c.ServiceName = "" },
			expectError: ErrInvalidConfig,
			errContains: "ServiceName",
		},
		{
			name:        "sample rate negative",
			mutate:      func(c *Config) { c.Tracing.SampleRate = -0.5 },
			expectError: ErrInvalidConfig,
			errContains: "SampleRate",
		},
		{
			name:        "sample rate above 1",
			mutate:      func(c *Config) { c.Tracing.SampleRate = 1.5 },
			expectError: ErrInvalidConfig,
			errContains: "SampleRate",
		},
		{
			name:        "unknown log level",
			mutate:      func(c *Config) { c.Logging.Level = "verbose" },
			expectError: ErrInvalidConfig,
			errContains: "Level",
		},
		{
			name:        "unknown sink",
			mutate:      func(c *Config) { c.Logging.Sink = "syslog" },
			expectError: ErrInvalidConfig,
			errContains: "Sink",
		},
		{
			name:        "zero history",
			mutate:      func(c *Config) { c.Logging.HistorySize = 0 },
			expectError: ErrInvalidConfig,
			errContains: "HistorySize",
		},
		{
			name:        "unknown exporter",
			mutate:      func(c *Config) { c.Export.Exporter = "jaeger" },
			expectError: ErrUnknownExporter,
			errContains: "jaeger",
		},
		{
			name:        "unknown protocol",
			mutate:      func(c *Config) { c.Export.Protocol = "thrift" },
			expectError: ErrInvalidConfig,
			errContains: "Protocol",
		},
		{
			name:        "invalid endpoint",
			mutate:      func(c *Config) { c.Tracing.Endpoint = "not a url" },
			expectError: ErrInvalidConfig,
			errContains: "Endpoint",
		},
		{
			name:        "otlp tracing without endpoint",
			mutate:      func(c *Config) { c.Tracing.Endpoint = "" },
			expectError: ErrInvalidConfig,
			errContains: "traces endpoint is required",
		},
		{
			name:        "otlp metrics without endpoint",
			mutate:      func(c *Config) { c.Metrics.Endpoint = "" },
			expectError: ErrInvalidConfig,
			errContains: "metrics endpoint is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := baseConfig()
			tt.mutate(&config)
			err := config.Validate()
			if tt.expectError == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.expectError) {
				t.Fatalf("expected %v, got %v", tt.expectError, err)
			}
			if !strings.Contains(err.Error(), tt.errContains) {
				t.Errorf("expected error containing %q, got %q", tt.errContains, err.Error())
			}
		})
	}
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("TEST_VAR", "test_value")

	if v := getEnvOrDefault("TEST_VAR", "default"); v != "test_value" {
		t.Errorf("expected 'test_value', got %q", v)
	}
	if v := getEnvOrDefault("NONEXISTENT_VAR", "default"); v != "default" {
		t.Errorf("expected 'default', got %q", v)
	}
}

func TestGetEnvBoolOrDefault(t *testing.T) {
	t.Setenv("TEST_BOOL_TRUE", "true")
	t.Setenv("TEST_BOOL_FALSE", "false")
	t.Setenv("TEST_BOOL_INVALID", "not_a_bool")

	if v := getEnvBoolOrDefault("TEST_BOOL_TRUE", false); !v {
		t.Error("expected true")
	}
	if v := getEnvBoolOrDefault("TEST_BOOL_FALSE", true); v {
		t.Error("expected false")
	}
	if v := getEnvBoolOrDefault("TEST_BOOL_INVALID", true); !v {
		t.Error("expected default value true for invalid bool")
	}
	if v := getEnvBoolOrDefault("NONEXISTENT", true); !v {
		t.Error("expected default value true")
	}
}

func TestGetEnvNumbersOrDefault(t *testing.T) {
	t.Setenv("TEST_FLOAT", "0.75")
	t.Setenv("TEST_INT", "42")
	t.Setenv("TEST_MILLIS", "250")
	t.Setenv("TEST_INVALID", "nope")

	if v := getEnvFloatOrDefault("TEST_FLOAT", 0.5); v != 0.75 {
		t.Errorf("expected 0.75, got %f", v)
	}
	if v := getEnvFloatOrDefault("TEST_INVALID", 0.5); v != 0.5 {
		t.Errorf("expected default 0.5 for invalid float, got %f", v)
	}
	if v := getEnvIntOrDefault("TEST_INT", 1); v != 42 {
		t.Errorf("expected 42, got %d", v)
	}
	if v := getEnvIntOrDefault("TEST_INVALID", 1); v != 1 {
		t.Errorf("expected default 1 for invalid int, got %d", v)
	}
	if v := getEnvMillisOrDefault("TEST_MILLIS", time.Second); v != 250*time.Millisecond {
		t.Errorf("expected 250ms, got %v", v)
	}
	if v := getEnvMillisOrDefault("TEST_INVALID", time.Second); v != time.Second {
		t.Errorf("expected default 1s for invalid millis, got %v", v)
	}
}
