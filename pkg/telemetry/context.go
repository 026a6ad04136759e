package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry provides a unified telemetry interface combining logging,
// tracing, metrics, and events.
type Telemetry struct {
	Logger  *Logger
	Tracer  *Tracer
	Metrics *Metrics
	Events  *EventPublisher
	Config  *Config
}

// telemetryContextKey is the context key for telemetry instances.
type telemetryContextKey struct{}

// NewTelemetry creates a new telemetry instance from configuration.
func NewTelemetry(cfg *Config) (*Telemetry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger, err := NewLogger(cfg.Logging)
	if err != nil {
		return nil, err
	}

	tracer, err := NewTracer(cfg.Tracing, cfg.ServiceName, cfg.ServiceVersion)
	if err != nil {
		return nil, err
	}

	metrics, err := NewMetrics(cfg.Metrics)
	if err != nil {
		return nil, err
	}

	events, err := NewEventPublisher(cfg.Events)
	if err != nil {
		return nil, err
	}

	return &Telemetry{
		Logger:  logger,
		Tracer:  tracer,
		Metrics: metrics,
		Events:  events,
		Config:  cfg,
	}, nil
}

// WithContext adds the telemetry instance to the context.
func (t *Telemetry) WithContext(ctx context.Context) context.Context {
	ctx = context.WithValue(ctx, telemetryContextKey{}, t)
	ctx = t.Logger.WithContext(ctx)
	return ctx
}

// FromTelemetryContext retrieves the telemetry instance from the context.
// If no telemetry is found, it returns nil.
func FromTelemetryContext(ctx context.Context) *Telemetry {
	if t, ok := ctx.Value(telemetryContextKey{}).(*Telemetry); ok {
		return t
	}
	return nil
}

// Shutdown gracefully shuts down all telemetry components.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if err := t.Events.Shutdown(ctx); err != nil {
		return err
	}
	return t.Tracer.Shutdown(ctx)
}

// Flush forces all pending telemetry data to be exported.
func (t *Telemetry) Flush(ctx context.Context) error {
	return t.Tracer.ForceFlush(ctx)
}

// StartMetricsServer starts the metrics HTTP server if metrics are enabled.
func (t *Telemetry) StartMetricsServer() error {
	return t.Metrics.StartMetricsServer()
}

// InstrumentedContext bundles the context, span, logger, and timer of
// one instrumented operation.
type InstrumentedContext struct {
	Ctx    context.Context
	Span   trace.Span
	Logger *Logger
	Timer  *Timer
}

// StartOperation begins an instrumented operation with logging, tracing, and timing.
func StartOperation(ctx context.Context, operation string, attrs ...attribute.KeyValue) *InstrumentedContext {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return &InstrumentedContext{
			Ctx:    ctx,
			Logger: FromContext(ctx),
			Timer:  NewTimer(),
		}
	}

	spanCtx, span := tel.Tracer.StartSpan(ctx, operation, attrs...)

	logger := tel.Logger.WithField("operation", operation)
	if span.SpanContext().IsValid() {
		logger = logger.WithFields(map[string]interface{}{
			"trace_id": span.SpanContext().TraceID().String(),
			"span_id":  span.SpanContext().SpanID().String(),
		})
	}

	return &InstrumentedContext{
		Ctx:    spanCtx,
		Span:   span,
		Logger: logger,
		Timer:  NewTimer(),
	}
}

// End finishes the instrumented operation, recording success or failure.
func (ic *InstrumentedContext) End(err error) {
	if ic.Span != nil {
		if err != nil {
			RecordError(ic.Span, err)
		} else {
			RecordSuccess(ic.Span)
		}
		ic.Span.End()
	}
}

// WithCommandContext creates a context enriched with command-specific telemetry.
func WithCommandContext(ctx context.Context, command, environment string) context.Context {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return ctx
	}

	spanCtx, span := tel.Tracer.StartCommandSpan(ctx, command, environment)

	logger := tel.Logger.WithCommand(command).WithEnvironment(environment)
	spanCtx = logger.WithContext(spanCtx)

	_ = tel.Events.PublishCommandStarted(environment, command)

	spanCtx = context.WithValue(spanCtx, commandSpanKey{}, span)
	spanCtx = context.WithValue(spanCtx, commandTimerKey{}, NewTimer())

	return spanCtx
}

// commandSpanKey is the context key for command spans.
type commandSpanKey struct{}

// commandTimerKey is the context key for command timers.
type commandTimerKey struct{}

// EndCommandContext completes the command context, recording metrics and events.
func EndCommandContext(ctx context.Context, command, environment, traceID string, err error) {
	tel := FromTelemetryContext(ctx)
	if tel == nil {
		return
	}

	if span, ok := ctx.Value(commandSpanKey{}).(trace.Span); ok {
		if err != nil {
			RecordError(span, err)
		} else {
			RecordSuccess(span)
		}
		span.End()
	}

	var duration time.Duration
	if timer, ok := ctx.Value(commandTimerKey{}).(*Timer); ok {
		duration = timer.Duration()
	}

	if err != nil {
		tel.Metrics.RecordCommand(command, "failed", duration)
		_ = tel.Events.PublishCommandFailed(environment, command, traceID, err.Error())
	} else {
		tel.Metrics.RecordCommand(command, "completed", duration)
		_ = tel.Events.PublishCommandCompleted(environment, command, duration)
	}
}

// The default telemetry instance backs package-level recording helpers
// so domain code can emit events without carrying a handle around.
var (
	defaultMu  sync.RWMutex
	defaultTel *Telemetry
)

// SetDefault installs tel as the process-wide default telemetry
// instance used by the package-level recording helpers.
func SetDefault(tel *Telemetry) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultTel = tel
}

// Default returns the process-wide default telemetry instance, or nil
// if none has been installed.
func Default() *Telemetry {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultTel
}

// RecordTransition records one lifecycle phase transition against the
// default telemetry instance: a log line, a counter increment, and a
// transition event. It is a no-op when no default is installed.
func RecordTransition(environment, instance, fromPhase, toPhase string) {
	tel := Default()
	if tel == nil {
		return
	}

	tel.Logger.
		WithEnvironment(environment).
		WithField("instance", instance).
		WithFields(map[string]interface{}{
			"from_phase": fromPhase,
			"to_phase":   toPhase,
		}).
		Debug("environment phase transition")
	tel.Metrics.RecordTransition(fromPhase, toPhase)
	_ = tel.Events.PublishTransition(environment, fromPhase, toPhase)
}
