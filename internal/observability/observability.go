// Package observability wires the process-wide slog logger, optionally
// bridged to an OpenTelemetry log exporter.
//
// The console handler (text or JSON on stderr) is always installed. When
// OTEL_LOGS_EXPORTER selects an exporter, records are additionally fed
// through a minimum-severity processor into the OTLP pipeline, following
// the standard OTEL_* environment variables.
package observability

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/contrib/processors/minsev"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploggrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

const instrumentationName = "notify-console"

// provider is retained for flushing at shutdown.
var provider *sdklog.LoggerProvider

// Instrument installs the default slog logger at the given level and
// format ("text" or "json"). Call Shutdown before process exit to flush
// any buffered export batches.
func Instrument(level slog.Level, format string) error {
	handler, err := consoleHandler(level, format)
	if err != nil {
		return err
	}

	exporter, err := exporterFromEnv(context.Background())
	if err != nil {
		return fmt.Errorf("creating log exporter: %w", err)
	}
	if exporter != nil {
		provider = sdklog.NewLoggerProvider(
			sdklog.WithProcessor(
				minsev.NewLogProcessor(sdklog.NewBatchProcessor(exporter), severity(level)),
			),
		)
		handler = newTeeHandler(handler,
			otelslog.NewHandler(instrumentationName, otelslog.WithLoggerProvider(provider)))
	}

	slog.SetDefault(slog.New(handler))
	return nil
}

// Shutdown flushes and stops the export pipeline, if one was set up.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

func consoleHandler(level slog.Level, format string) (slog.Handler, error) {
	opts := &slog.HandlerOptions{Level: level}
	switch format {
	case "json":
		return slog.NewJSONHandler(os.Stderr, opts), nil
	case "text", "":
		return slog.NewTextHandler(os.Stderr, opts), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
}

// exporterFromEnv builds the exporter selected by OTEL_LOGS_EXPORTER:
// "otlp" (protocol per OTEL_EXPORTER_OTLP_PROTOCOL), "console" for the
// stdout exporter, empty or "none" for no export.
func exporterFromEnv(ctx context.Context) (sdklog.Exporter, error) {
	switch os.Getenv("OTEL_LOGS_EXPORTER") {
	case "otlp":
		if os.Getenv("OTEL_EXPORTER_OTLP_PROTOCOL") == "grpc" {
			return otlploggrpc.New(ctx)
		}
		return otlploghttp.New(ctx)
	case "console":
		return stdoutlog.New()
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unsupported OTEL_LOGS_EXPORTER %q", os.Getenv("OTEL_LOGS_EXPORTER"))
	}
}

// severity maps the slog level to the minimum exported severity.
func severity(level slog.Level) minsev.Severity {
	switch {
	case level <= slog.LevelDebug:
		return minsev.SeverityDebug
	case level <= slog.LevelInfo:
		return minsev.SeverityInfo
	case level <= slog.LevelWarn:
		return minsev.SeverityWarn
	default:
		return minsev.SeverityError
	}
}

// teeHandler fans records out to every underlying handler.
type teeHandler struct {
	handlers []slog.Handler
}

func newTeeHandler(handlers ...slog.Handler) slog.Handler {
	return &teeHandler{handlers: handlers}
}

func (t *teeHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range t.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (t *teeHandler) Handle(ctx context.Context, record slog.Record) error {
	var firstErr error
	for _, h := range t.handlers {
		if !h.Enabled(ctx, record.Level) {
			continue
		}
		if err := h.Handle(ctx, record.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *teeHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &teeHandler{handlers: next}
}

func (t *teeHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(t.handlers))
	for i, h := range t.handlers {
		next[i] = h.WithGroup(name)
	}
	return &teeHandler{handlers: next}
}
