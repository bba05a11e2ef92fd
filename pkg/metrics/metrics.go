// Package metrics records per-operation counters and latencies through the
// OpenTelemetry metric API and exposes them via a private Prometheus registry,
// so they can be inspected in-process without any network listener.
package metrics

import (
	"context"
	"messenger/pkg/serrors"
	"sort"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// DefaultBuckets provides a common set of histogram buckets in seconds that can
// be reused across the application for latency metrics.
var DefaultBuckets = []float64{.00001, .0001, .001, .005, .01, .025, .05, .1, .25, .5, 1} //nolint: gochecknoglobals

// namePrefix is the Prometheus name prefix shared by every instrument below.
const namePrefix = "messenger_"

// Recorder records operation outcomes. A nil *Recorder is valid and records
// nothing.
type Recorder struct {
	registry *prometheus.Registry
	provider *sdkmetric.MeterProvider

	operations metric.Int64Counter
	failures   metric.Int64Counter
	duration   metric.Float64Histogram
}

// New builds a Recorder backed by a fresh Prometheus registry.
func New() (*Recorder, error) {
	registry := prometheus.NewRegistry()
	exp, err := otelprom.New(otelprom.WithRegisterer(registry), otelprom.WithoutTargetInfo())
	if err != nil {
		return nil, errors.Wrap(err, "create otel prometheus exporter")
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	meter := provider.Meter("messenger")

	operations, err := meter.Int64Counter("messenger.operations",
		metric.WithDescription("Number of messenger operations invoked."))
	if err != nil {
		return nil, errors.Wrap(err, "create operations counter")
	}
	failures, err := meter.Int64Counter("messenger.operation.failures",
		metric.WithDescription("Number of messenger operations that returned an error, by error kind."))
	if err != nil {
		return nil, errors.Wrap(err, "create failures counter")
	}
	duration, err := meter.Float64Histogram("messenger.operation.duration",
		metric.WithDescription("Latency of messenger operations."),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(DefaultBuckets...))
	if err != nil {
		return nil, errors.Wrap(err, "create duration histogram")
	}

	return &Recorder{
		registry:   registry,
		provider:   provider,
		operations: operations,
		failures:   failures,
		duration:   duration,
	}, nil
}

// Observe records one invocation of op that started at started and finished
// with err.
func (r *Recorder) Observe(ctx context.Context, op string, started time.Time, err error) {
	if r == nil {
		return
	}

	opAttr := attribute.String("operation", op)
	r.operations.Add(ctx, 1, metric.WithAttributes(opAttr))
	r.duration.Record(ctx, time.Since(started).Seconds(), metric.WithAttributes(opAttr))
	if err != nil {
		r.failures.Add(ctx, 1, metric.WithAttributes(opAttr, attribute.String("kind", serrors.KindOf(err).Error())))
	}
}

// Sample is a single flattened metric value.
type Sample struct {
	// Name is the Prometheus metric name, e.g. messenger_operations_total.
	Name string
	// Labels holds the metric's labels, excluding exporter bookkeeping labels.
	Labels map[string]string
	// Value is the counter value, or the observation count for histograms.
	Value float64
}

// LabelString renders labels as k=v pairs sorted by key.
func (s Sample) LabelString() string {
	keys := make([]string, 0, len(s.Labels))
	for k := range s.Labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+s.Labels[k])
	}

	return strings.Join(parts, ",")
}

// Snapshot gathers the current values of all messenger metrics, sorted by
// name and labels. Histograms are reported by their observation count.
func (r *Recorder) Snapshot() ([]Sample, error) {
	if r == nil {
		return nil, nil
	}

	families, err := r.registry.Gather()
	if err != nil {
		return nil, errors.Wrap(err, "gather metrics")
	}

	var samples []Sample
	for _, family := range families {
		name := family.GetName()
		if !strings.HasPrefix(name, namePrefix) {
			continue
		}
		for _, m := range family.GetMetric() {
			s := Sample{Name: name, Labels: labels(m)}
			switch family.GetType() {
			case dto.MetricType_COUNTER:
				s.Value = m.GetCounter().GetValue()
			case dto.MetricType_HISTOGRAM:
				s.Name = name + "_count"
				s.Value = float64(m.GetHistogram().GetSampleCount())
			default:
				continue
			}
			samples = append(samples, s)
		}
	}

	sort.Slice(samples, func(i, j int) bool {
		if samples[i].Name != samples[j].Name {
			return samples[i].Name < samples[j].Name
		}

		return samples[i].LabelString() < samples[j].LabelString()
	})

	return samples, nil
}

// Shutdown flushes and stops the meter provider.
func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	if err := r.provider.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown meter provider")
	}

	return nil
}

func labels(m *dto.Metric) map[string]string {
	out := make(map[string]string, len(m.GetLabel()))
	for _, lp := range m.GetLabel() {
		if strings.HasPrefix(lp.GetName(), "otel_") {
			continue
		}
		out[lp.GetName()] = lp.GetValue()
	}

	return out
}
