package application

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/example/session-scheduler/internal/application"

// Instruments records scheduler metrics and spans. The zero value is not usable; build
// one with NewInstruments. A nil *Instruments records nothing.
type Instruments struct {
	tracer          trace.Tracer
	created         metric.Int64Counter
	seeded          metric.Int64Counter
	generateErrors  metric.Int64Counter
	syncUpdated     metric.Int64Counter
	syncFailed      metric.Int64Counter
	accessDecisions metric.Int64Counter
}

// NewInstruments creates the instruments from the given providers. Nil providers fall
// back to the global ones.
func NewInstruments(tp trace.TracerProvider, mp metric.MeterProvider) (*Instruments, error) {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter(instrumentationName)

	in := &Instruments{tracer: tp.Tracer(instrumentationName)}
	var err error
	if in.created, err = meter.Int64Counter("scheduler.occurrences.created",
		metric.WithDescription("Occurrences inserted by the generator")); err != nil {
		return nil, err
	}
	if in.seeded, err = meter.Int64Counter("scheduler.occurrences.seeded",
		metric.WithDescription("Occurrences whose assignments were copied from the template")); err != nil {
		return nil, err
	}
	if in.generateErrors, err = meter.Int64Counter("scheduler.generate.errors",
		metric.WithDescription("Per-occurrence seeding failures")); err != nil {
		return nil, err
	}
	if in.syncUpdated, err = meter.Int64Counter("scheduler.sync.updated",
		metric.WithDescription("Sync targets whose assignments were replaced")); err != nil {
		return nil, err
	}
	if in.syncFailed, err = meter.Int64Counter("scheduler.sync.failed",
		metric.WithDescription("Sync targets that failed to update")); err != nil {
		return nil, err
	}
	if in.accessDecisions, err = meter.Int64Counter("scheduler.access.decisions",
		metric.WithDescription("Write access classifications by reason")); err != nil {
		return nil, err
	}
	return in, nil
}

func (in *Instruments) start(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	if in == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return in.tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (in *Instruments) recordGenerate(ctx context.Context, templateID string, result GenerateResult) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("template_id", templateID))
	in.created.Add(ctx, int64(result.Created), attrs)
	in.seeded.Add(ctx, int64(result.Seeded), attrs)
	if len(result.Errors) > 0 {
		in.generateErrors.Add(ctx, int64(len(result.Errors)), attrs)
	}
}

func (in *Instruments) recordSync(ctx context.Context, workflow string, result SyncResult) {
	if in == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("workflow", workflow))
	in.syncUpdated.Add(ctx, int64(result.Updated), attrs)
	if failed := result.Targets - result.Updated; failed > 0 {
		in.syncFailed.Add(ctx, int64(failed), attrs)
	}
}

func (in *Instruments) recordAccess(ctx context.Context, reason string) {
	if in == nil {
		return
	}
	if reason == "" {
		reason = "allowed"
	}
	in.accessDecisions.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, ErrorKind(err))
	}
	span.End()
}
