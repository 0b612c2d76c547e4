package instrumentation

import (
	"context"
	"fmt"
	"runtime/debug"

	"go.opentelemetry.io/otel/codes"

	"github.com/teemow/telepipe/internal/attr"
	"github.com/teemow/telepipe/internal/logging"
	"github.com/teemow/telepipe/internal/tracing"
)

// ErrorHandlerSource is the source recorded on unhandled error entries.
const ErrorHandlerSource = "GlobalErrorHandler"

// PanicError wraps a recovered panic value.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Unwrap returns the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// ReportError logs an error nobody else handled at ERROR with its type,
// message and the current stack. When ctx carries an active span the error
// is also recorded on it.
func ReportError(ctx context.Context, logger *logging.Logger, err error) {
	if err == nil {
		return
	}
	if span := tracing.SpanFromContext(ctx); span != nil {
		span.RecordException(err)
		span.SetStatus(codes.Error, err.Error())
	}
	if logger == nil {
		return
	}
	logger.Error(ctx, "Unhandled error caught by GlobalErrorHandler", attr.Map{
		"name":    attr.StringValue(tracing.ErrorType(err)),
		"message": attr.StringValue(err.Error()),
		"stack":   attr.StringValue(string(debug.Stack())),
	}, ErrorHandlerSource)
}

// ReportError reports err through the provider's logger.
func (p *Provider) ReportError(ctx context.Context, err error) {
	ReportError(ctx, p.logger, err)
}

// RecoverAndReport reports a panic and re-panics with the same value. It
// must be deferred directly:
//
//	go func() {
//		defer provider.RecoverAndReport(ctx)
//		work(ctx)
//	}()
func (p *Provider) RecoverAndReport(ctx context.Context) {
	if r := recover(); r != nil {
		ReportError(ctx, p.logger, &PanicError{Value: r})
		panic(r)
	}
}
