package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"

	"github.com/teemow/telepipe/internal/attr"
	"github.com/teemow/telepipe/internal/instrumentation"
	"github.com/teemow/telepipe/internal/server"
)

const (
	// DefaultBackendURL is the backend probed when neither --backend-url
	// nor TELEPIPE_BACKEND_URL is set.
	DefaultBackendURL = "http://localhost:5067"

	// probeSource is the source of the log entries the probe writes.
	probeSource = "BackendApiService"
)

// defaultProbePaths are the backend endpoints probed by default.
var defaultProbePaths = []string{"/api/health", "/api/users", "/api/orders"}

// probeResult is the outcome of one probed endpoint.
type probeResult struct {
	Path     string
	Status   int
	Duration time.Duration
	Err      error
}

func (r probeResult) failed() bool {
	return r.Err != nil || r.Status >= http.StatusBadRequest
}

func newProbeCmd() *cobra.Command {
	var (
		config      configFlags
		backendURL  string
		paths       string
		rounds      int
		interval    time.Duration
		concurrency int
	)

	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Call a backend's endpoints with full instrumentation",
		Long: `Issue concurrent GET requests against a backend, one span per endpoint,
and export the resulting logs, metrics and spans before exiting.

The request and response of every call are logged, the traceparent header
is propagated to the backend and the request counter and duration
histogram are recorded.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.resolve(cmd)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("backend-url") {
				backendURL = getEnvOrDefault("TELEPIPE_BACKEND_URL", backendURL)
			}
			probePaths := parseCommaSeparatedList(paths)
			if len(probePaths) == 0 {
				return fmt.Errorf("at least one path is required")
			}
			if rounds < 1 {
				return fmt.Errorf("--rounds must be at least 1")
			}
			return runProbe(cmd.OutOrStdout(), cfg, backendURL, probePaths, rounds, interval, concurrency)
		},
	}

	config.register(cmd)
	cmd.Flags().StringVar(&backendURL, "backend-url", DefaultBackendURL, "Backend base URL. Can also use TELEPIPE_BACKEND_URL env var.")
	cmd.Flags().StringVar(&paths, "paths", strings.Join(defaultProbePaths, ","), "Comma-separated endpoint paths to probe")
	cmd.Flags().IntVar(&rounds, "rounds", 1, "Number of probe rounds")
	cmd.Flags().DurationVar(&interval, "interval", time.Second, "Pause between probe rounds")
	cmd.Flags().IntVar(&concurrency, "concurrency", 0, "Maximum concurrent requests per round (0 probes every path at once)")

	return cmd
}

func runProbe(out io.Writer, config instrumentation.Config, backendURL string, paths []string, rounds int, interval time.Duration, concurrency int) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	provider, err := instrumentation.NewProvider(ctx, config)
	if err != nil {
		return fmt.Errorf("failed to create instrumentation provider: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			fmt.Fprintf(out, "Error during instrumentation shutdown: %v\n", err)
		}
	}()
	if err := provider.Start(ctx); err != nil {
		return fmt.Errorf("failed to start export pipeline: %w", err)
	}

	client := provider.HTTPClient()
	failures := 0
	for round := 1; round <= rounds; round++ {
		results := probeEndpoints(ctx, provider, client, backendURL, paths, concurrency)
		for _, r := range results {
			printProbeResult(out, round, r)
			if r.failed() {
				failures++
			}
		}

		if round == rounds {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(interval):
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d of %d probes failed", failures, rounds*len(paths))
	}
	return nil
}

// probeEndpoints probes every path concurrently. Results are in path order.
func probeEndpoints(ctx context.Context, provider *instrumentation.Provider, client *http.Client, backendURL string, paths []string, concurrency int) []probeResult {
	results := make([]probeResult, len(paths))
	base := strings.TrimRight(backendURL, "/")

	var g errgroup.Group
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, path := range paths {
		g.Go(func() error {
			defer provider.RecoverAndReport(ctx)
			results[i] = probeEndpoint(ctx, provider, client, base, path)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func probeEndpoint(ctx context.Context, provider *instrumentation.Provider, client *http.Client, base, path string) (result probeResult) {
	ctx, span := provider.Tracer().Start(ctx, "GET "+path, attr.Map{
		"probe.path": attr.StringValue(path),
	})
	defer span.End()

	result.Path = path
	start := time.Now()
	defer func() { result.Duration = time.Since(start) }()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		result.Err = err
		span.RecordException(err)
		span.SetStatus(codes.Error, err.Error())
		return result
	}

	resp, err := client.Do(req)
	if err != nil {
		result.Err = err
		span.SetStatus(codes.Error, err.Error())
		provider.Logger().Warn(ctx, "Backend call failed", attr.Map{
			"path":  attr.StringValue(path),
			"error": attr.StringValue(err.Error()),
		}, probeSource)
		return result
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	result.Status = resp.StatusCode
	span.SetAttribute("probe.status_code", attr.IntValue(resp.StatusCode))
	if result.failed() {
		span.SetStatus(codes.Error, resp.Status)
		provider.Logger().Warn(ctx, "Backend returned an error status", attr.Map{
			"path":   attr.StringValue(path),
			"status": attr.IntValue(resp.StatusCode),
		}, probeSource)
		return result
	}
	span.SetStatus(codes.Ok, "")
	return result
}

func printProbeResult(out io.Writer, round int, r probeResult) {
	switch {
	case r.Err != nil:
		fmt.Fprintf(out, "[%d] %-20s error  %v\n", round, r.Path, r.Err)
	default:
		fmt.Fprintf(out, "[%d] %-20s %d    %s\n", round, r.Path, r.Status, r.Duration.Round(time.Millisecond))
	}
}

// parseCommaSeparatedList splits a comma-separated string into a slice,
// trimming whitespace and filtering out empty values.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
