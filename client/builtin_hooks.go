package client

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dan-strohschein/syndrdb-aggregates/transport"
)

// LoggingHook logs statements with configurable detail.
type LoggingHook struct {
	logger       Logger
	logCommands  bool
	logResults   bool
	logDurations bool
}

// NewLoggingHook creates a new logging hook with the given logger.
func NewLoggingHook(logger Logger, logCommands, logResults, logDurations bool) *LoggingHook {
	return &LoggingHook{
		logger:       logger,
		logCommands:  logCommands,
		logResults:   logResults,
		logDurations: logDurations,
	}
}

func (h *LoggingHook) Name() string {
	return "logging"
}

func (h *LoggingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	if h.logCommands {
		h.logger.Debug("executing statement",
			String("statement", hookCtx.Statement),
			String("type", hookCtx.StatementType),
			String("operation", hookCtx.Operation),
			Int("param_sets", len(hookCtx.Params)),
			String("trace_id", hookCtx.TraceID))
	}
	return nil
}

func (h *LoggingHook) After(ctx context.Context, hookCtx *HookContext) error {
	fields := []Field{
		String("type", hookCtx.StatementType),
		String("operation", hookCtx.Operation),
		String("trace_id", hookCtx.TraceID),
	}

	if h.logDurations {
		fields = append(fields, Duration("duration", hookCtx.Duration))
	}

	if hookCtx.Error != nil {
		fields = append(fields, Error("error", hookCtx.Error))
		h.logger.Error("statement failed", fields...)
		return nil
	}

	if h.logResults && hookCtx.Result != nil {
		fields = append(fields, String("result", describeResult(hookCtx.Result)))
	}
	h.logger.Debug("statement completed", fields...)
	return nil
}

func describeResult(result any) string {
	switch r := result.(type) {
	case transport.Result:
		return fmt.Sprintf("%d row(s)", r.RowsAffected)
	case []transport.Outcome:
		total, complete := transport.TotalAffected(r)
		if !complete {
			return fmt.Sprintf("at least %d row(s)", total)
		}
		return fmt.Sprintf("%d row(s)", total)
	default:
		return fmt.Sprintf("%v", r)
	}
}

// MetricsHook counts statements with atomic counters.
type MetricsHook struct {
	TotalStatements atomic.Uint64
	TotalQueries    atomic.Uint64
	TotalMutations  atomic.Uint64
	TotalBatchRows  atomic.Uint64
	TotalErrors     atomic.Uint64
	TotalDurationNs atomic.Uint64
}

// NewMetricsHook creates a new metrics collection hook.
func NewMetricsHook() *MetricsHook {
	return &MetricsHook{}
}

func (h *MetricsHook) Name() string {
	return "metrics"
}

func (h *MetricsHook) Before(ctx context.Context, hookCtx *HookContext) error {
	return nil
}

func (h *MetricsHook) After(ctx context.Context, hookCtx *HookContext) error {
	h.TotalStatements.Add(1)
	h.TotalDurationNs.Add(uint64(hookCtx.Duration.Nanoseconds()))

	switch hookCtx.StatementType {
	case StatementQuery:
		h.TotalQueries.Add(1)
	case StatementMutation:
		h.TotalMutations.Add(1)
	}

	if _, ok := hookCtx.Result.([]transport.Outcome); ok {
		h.TotalBatchRows.Add(uint64(len(hookCtx.Params)))
	}

	if hookCtx.Error != nil {
		h.TotalErrors.Add(1)
	}

	return nil
}

// GetStats returns current metrics as a map.
func (h *MetricsHook) GetStats() map[string]any {
	total := h.TotalStatements.Load()
	duration := h.TotalDurationNs.Load()

	avg := int64(0)
	if total > 0 {
		avg = int64(duration / total)
	}

	return map[string]any{
		"total_statements":  total,
		"total_queries":     h.TotalQueries.Load(),
		"total_mutations":   h.TotalMutations.Load(),
		"total_batch_rows":  h.TotalBatchRows.Load(),
		"total_errors":      h.TotalErrors.Load(),
		"total_duration_ns": duration,
		"avg_duration_ns":   avg,
		"avg_duration_ms":   float64(avg) / 1_000_000,
	}
}

// Reset clears all metrics.
func (h *MetricsHook) Reset() {
	h.TotalStatements.Store(0)
	h.TotalQueries.Store(0)
	h.TotalMutations.Store(0)
	h.TotalBatchRows.Store(0)
	h.TotalErrors.Store(0)
	h.TotalDurationNs.Store(0)
}

const spanKey = "trace_span"

// TracingHook records one OpenTelemetry span per statement.
type TracingHook struct {
	system string
	tracer trace.Tracer
}

// NewTracingHook creates a tracing hook. system is reported as db.system.
// With a nil provider the global tracer provider is used.
func NewTracingHook(system string, provider trace.TracerProvider) *TracingHook {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return &TracingHook{
		system: system,
		tracer: provider.Tracer("github.com/dan-strohschein/syndrdb-aggregates/client"),
	}
}

func (h *TracingHook) Name() string {
	return "tracing"
}

func (h *TracingHook) Before(ctx context.Context, hookCtx *HookContext) error {
	name := hookCtx.StatementType
	if hookCtx.Operation != "" {
		name = hookCtx.Operation + " " + name
	}

	_, span := h.tracer.Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithTimestamp(hookCtx.StartTime),
		trace.WithAttributes(
			attribute.String("db.system", h.system),
			attribute.String("db.statement", hookCtx.Statement),
			attribute.String("db.operation", hookCtx.StatementType),
			attribute.String("trace_id", hookCtx.TraceID),
		))
	hookCtx.Metadata[spanKey] = span
	return nil
}

func (h *TracingHook) After(ctx context.Context, hookCtx *HookContext) error {
	span, ok := hookCtx.Metadata[spanKey].(trace.Span)
	if !ok {
		return nil
	}

	if len(hookCtx.Params) > 1 {
		span.SetAttributes(attribute.Int("db.batch.size", len(hookCtx.Params)))
	}
	if hookCtx.Error != nil {
		span.RecordError(hookCtx.Error)
		span.SetStatus(codes.Error, hookCtx.Error.Error())
	}
	span.End()
	return nil
}
