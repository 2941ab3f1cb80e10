// Package telemetry sets up OpenTelemetry metrics (exported for Prometheus)
// and optional OTLP trace export, and records the domain counters.
package telemetry

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"budgetwatch/internal/budget"
	applog "budgetwatch/internal/log"
)

const meterName = "budgetwatch"

type Config struct {
	ServiceName  string
	Environment  string
	OTLPEndpoint string // empty disables trace export
}

// Provider owns the meter and tracer providers and the domain instruments.
type Provider struct {
	registry      *promclient.Registry
	shutdownFuncs []func(context.Context) error
	logger        *applog.Logger

	created   metric.Int64Counter
	filtered  metric.Int64Counter
	matched   metric.Int64Histogram
	evaluated metric.Int64Counter
	published metric.Int64Counter
}

// Init sets up OpenTelemetry with a Prometheus reader on a private registry
// and, when an endpoint is configured, OTLP gRPC trace export. The global
// providers and propagator are replaced. Call Shutdown on exit.
func Init(ctx context.Context, cfg Config, logger *applog.Logger) (*Provider, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	p := &Provider{
		registry: promclient.NewRegistry(),
		logger:   logger.WithComponent(applog.ComponentTelemetry),
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	promExporter, err := prometheus.New(prometheus.WithRegisterer(p.registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(promExporter),
	)
	otel.SetMeterProvider(meterProvider)
	p.shutdownFuncs = append(p.shutdownFuncs, meterProvider.Shutdown)

	if cfg.OTLPEndpoint != "" {
		traceExporter, err := otlptracegrpc.New(ctx,
			otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
			otlptracegrpc.WithInsecure(),
		)
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to create trace exporter: %w", err), p.Shutdown(ctx))
		}
		tracerProvider := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithBatcher(traceExporter, sdktrace.WithBatchTimeout(5*time.Second)),
			sdktrace.WithSampler(sdktrace.AlwaysSample()),
		)
		otel.SetTracerProvider(tracerProvider)
		p.shutdownFuncs = append(p.shutdownFuncs, tracerProvider.Shutdown)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	if err := p.instruments(meterProvider.Meter(meterName)); err != nil {
		return nil, errors.Join(err, p.Shutdown(ctx))
	}

	p.logger.InfoContext(ctx, "OpenTelemetry initialized",
		"service", cfg.ServiceName,
		"traces", cfg.OTLPEndpoint != "")
	return p, nil
}

func (p *Provider) instruments(meter metric.Meter) error {
	var errs []error
	var err error

	p.created, err = meter.Int64Counter("budgetwatch.transactions.created",
		metric.WithDescription("Transactions recorded"))
	errs = append(errs, err)
	p.filtered, err = meter.Int64Counter("budgetwatch.transactions.filtered",
		metric.WithDescription("Filter queries served"))
	errs = append(errs, err)
	p.matched, err = meter.Int64Histogram("budgetwatch.transactions.matched",
		metric.WithDescription("Transactions matched per filter query"))
	errs = append(errs, err)
	p.evaluated, err = meter.Int64Counter("budgetwatch.budget.evaluations",
		metric.WithDescription("Budget evaluations by resulting status"))
	errs = append(errs, err)
	p.published, err = meter.Int64Counter("budgetwatch.alerts.published",
		metric.WithDescription("Budget alert publish attempts"))
	errs = append(errs, err)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to create instruments: %w", err)
	}
	return nil
}

// Handler serves the Prometheus exposition of the registry.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// MetricsServer returns an HTTP server exposing /metrics on port.
func (p *Provider) MetricsServer(port string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", p.Handler())
	return &http.Server{
		Addr:         ":" + port,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Shutdown flushes and stops every provider, returning all errors joined.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	p.shutdownFuncs = nil
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("telemetry shutdown: %w", err)
	}
	return nil
}

func (p *Provider) TransactionCreated(ctx context.Context, category string) {
	p.created.Add(ctx, 1, metric.WithAttributes(attribute.String("category", category)))
}

func (p *Provider) TransactionsFiltered(ctx context.Context, matched, total int) {
	p.filtered.Add(ctx, 1, metric.WithAttributes(attribute.Bool("narrowed", matched < total)))
	p.matched.Record(ctx, int64(matched))
}

func (p *Provider) BudgetsEvaluated(ctx context.Context, counts map[budget.Status]int) {
	for status, n := range counts {
		if n == 0 {
			continue
		}
		p.evaluated.Add(ctx, int64(n), metric.WithAttributes(attribute.String("status", string(status))))
	}
}

func (p *Provider) AlertPublished(ctx context.Context, status budget.Status, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	p.published.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status", string(status)),
		attribute.String("outcome", outcome),
	))
}
