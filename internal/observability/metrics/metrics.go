package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	eventsRecorded       metric.Int64Counter
	eventsSkipped        metric.Int64Counter
	feesBilled           metric.Int64Counter
	safeguardApplied     metric.Int64Counter
	lifecycleTransitions metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "dealbill"
	}
	meter := provider.Meter(name)

	eventsRecorded, err := meter.Int64Counter("dealbill_outcome_events_recorded_total")
	if err != nil {
		return nil, err
	}
	eventsSkipped, err := meter.Int64Counter("dealbill_outcome_events_skipped_total")
	if err != nil {
		return nil, err
	}
	feesBilled, err := meter.Int64Counter("dealbill_fees_billed_cents_total")
	if err != nil {
		return nil, err
	}
	safeguardApplied, err := meter.Int64Counter("dealbill_safeguard_applied_total")
	if err != nil {
		return nil, err
	}
	lifecycleTransitions, err := meter.Int64Counter("dealbill_event_transitions_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		eventsRecorded:       eventsRecorded,
		eventsSkipped:        eventsSkipped,
		feesBilled:           feesBilled,
		safeguardApplied:     safeguardApplied,
		lifecycleTransitions: lifecycleTransitions,
	}, nil
}

// RecordEvent counts a recorded outcome event and its fee.
func (m *Metrics) RecordEvent(ctx context.Context, pricingModel string, feeCents int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("pricing_model", strings.TrimSpace(pricingModel)))
	m.eventsRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.feesBilled.Add(ctx, feeCents, metric.WithAttributes(attrs...))
}

// RecordSkip counts a deal-close signal that produced no event.
func (m *Metrics) RecordSkip(ctx context.Context, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("reason", strings.TrimSpace(reason)))
	m.eventsSkipped.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordSafeguard counts a safeguard adjustment applied by the calculator.
func (m *Metrics) RecordSafeguard(ctx context.Context, safeguard string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("safeguard", strings.TrimSpace(safeguard)))
	m.safeguardApplied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordTransition counts an event lifecycle transition.
func (m *Metrics) RecordTransition(ctx context.Context, from, to string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("from_status", strings.TrimSpace(from)),
		attribute.String("to_status", strings.TrimSpace(to)),
	)
	m.lifecycleTransitions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"pricing_model": {},
	"reason":        {},
	"safeguard":     {},
	"from_status":   {},
	"to_status":     {},
	"endpoint":      {},
	"status_code":   {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
