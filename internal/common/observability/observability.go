// internal/common/observability/observability.go
package observability

import (
	"context"
	"errors"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Config controls the meter and tracer providers.
type Config struct {
	ServiceName string
	SampleRatio float64
	// Registerer receives the otel collector; nil means the default registry.
	Registerer promclient.Registerer
	// SpanProcessors are attached to the tracer provider, e.g. an exporter.
	SpanProcessors []sdktrace.SpanProcessor
}

const instrumentationName = "dealflow-workers"

type Observability struct {
	meterProvider  *metric.MeterProvider
	tracerProvider *sdktrace.TracerProvider
}

// New installs global meter and tracer providers for the service.
func New(cfg Config) (*Observability, error) {
	var exporterOpts []prometheus.Option
	if cfg.Registerer != nil {
		exporterOpts = append(exporterOpts, prometheus.WithRegisterer(cfg.Registerer))
	}
	exporter, err := prometheus.New(exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	res := resource.NewSchemaless(attribute.String("service.name", cfg.ServiceName))

	meterProvider := metric.NewMeterProvider(metric.WithReader(exporter), metric.WithResource(res))
	otel.SetMeterProvider(meterProvider)

	tpOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SampleRatio))),
	}
	for _, sp := range cfg.SpanProcessors {
		tpOpts = append(tpOpts, sdktrace.WithSpanProcessor(sp))
	}
	tracerProvider := sdktrace.NewTracerProvider(tpOpts...)
	otel.SetTracerProvider(tracerProvider)

	return &Observability{
		meterProvider:  meterProvider,
		tracerProvider: tracerProvider,
	}, nil
}

func (o *Observability) Shutdown(ctx context.Context) error {
	return errors.Join(
		o.tracerProvider.Shutdown(ctx),
		o.meterProvider.Shutdown(ctx),
	)
}

// JobSpan covers the processing of one job.
type JobSpan struct {
	span     trace.Span
	taskType string
	started  time.Time
}

// StartJobSpan opens a span for one job and returns the derived context.
func StartJobSpan(ctx context.Context, taskType string, jobKey int64) (context.Context, *JobSpan) {
	ctx, span := otel.Tracer(instrumentationName).Start(ctx, taskType,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("zeebe.task_type", taskType),
			attribute.Int64("zeebe.job_key", jobKey),
		),
	)
	return ctx, &JobSpan{span: span, taskType: taskType, started: time.Now()}
}

// End records the outcome on the span and the job instruments.
func (s *JobSpan) End(ctx context.Context, err error) {
	status := "completed"
	if err != nil {
		status = "failed"
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}

	attrs := otelmetric.WithAttributes(
		attribute.String("task_type", s.taskType),
		attribute.String("status", status),
	)
	// Instruments are resolved per call so a provider installed later is honoured.
	meter := otel.Meter(instrumentationName)
	if counter, err := meter.Int64Counter("jobs.processed",
		otelmetric.WithDescription("Number of jobs processed")); err == nil {
		counter.Add(ctx, 1, attrs)
	}
	if hist, err := meter.Float64Histogram("jobs.duration",
		otelmetric.WithDescription("Job processing duration"),
		otelmetric.WithUnit("ms")); err == nil {
		hist.Record(ctx, float64(time.Since(s.started).Milliseconds()), attrs)
	}

	s.span.End()
}
