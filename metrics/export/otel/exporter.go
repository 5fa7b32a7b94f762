package otel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/MrEthical07/credstore"
	"github.com/MrEthical07/credstore/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Instrument names. Engine counters share one instrument and are told apart
// by the operation and outcome attributes.
const (
	OperationsName = "credstore.operations"
	OperationKey   = attribute.Key("operation")
	OutcomeKey     = attribute.Key("outcome")
	BoundKey       = attribute.Key("le")
)

type metricsSource interface {
	MetricsSnapshot() credstore.MetricsSnapshot
	AuditDropped() uint64
}

type labelledCounter struct {
	id    credstore.MetricID
	attrs metric.ObserveOption
}

type latencyGauges struct {
	id      credstore.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
}

// OTelExporter publishes engine metrics through an OpenTelemetry meter.
// Values are read from the source on each collection.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	operations   metric.Int64ObservableCounter
	counters     []labelledCounter
	latencies    []latencyGauges
	bounds       [8]metric.ObserveOption
	auditDropped metric.Int64ObservableCounter
}

// NewOTelExporter registers instruments on meter that observe engine.
func NewOTelExporter(meter metric.Meter, engine *credstore.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:    source,
		counters:  make([]labelledCounter, 0, len(internaldefs.CounterDefs)),
		latencies: make([]latencyGauges, 0, len(internaldefs.HistogramDefs)),
	}

	var err error
	e.operations, err = meter.Int64ObservableCounter(OperationsName,
		metric.WithDescription("Engine operation outcomes."))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", OperationsName, err)
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters = append(e.counters, labelledCounter{
			id: def.ID,
			attrs: metric.WithAttributeSet(attribute.NewSet(
				OperationKey.String(def.Operation),
				OutcomeKey.String(def.Outcome),
			)),
		})
	}
	for i, bound := range internaldefs.HistogramBounds {
		e.bounds[i] = metric.WithAttributeSet(attribute.NewSet(BoundKey.String(bound)))
	}

	observables := []metric.Observable{e.operations}
	for _, def := range internaldefs.HistogramDefs {
		base := instrumentName(def.Name)
		g := latencyGauges{id: def.ID}
		g.buckets, err = meter.Int64ObservableGauge(base+".bucket",
			metric.WithDescription(def.Help+" Cumulative count per upper bound."))
		if err != nil {
			return nil, fmt.Errorf("create %s.bucket: %w", base, err)
		}
		g.count, err = meter.Int64ObservableGauge(base+".count",
			metric.WithDescription(def.Help+" Total samples."))
		if err != nil {
			return nil, fmt.Errorf("create %s.count: %w", base, err)
		}
		e.latencies = append(e.latencies, g)
		observables = append(observables, g.buckets, g.count)
	}

	droppedName := instrumentName(internaldefs.AuditDroppedName)
	e.auditDropped, err = meter.Int64ObservableCounter(droppedName,
		metric.WithDescription(internaldefs.AuditDroppedHelp))
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", droppedName, err)
	}
	observables = append(observables, e.auditDropped)

	e.registration, err = meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	return e, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()
	for _, c := range e.counters {
		o.ObserveInt64(e.operations, int64(snapshot.Counters[c.id]), c.attrs)
	}
	for _, g := range e.latencies {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[g.id]))
		for i, v := range cumulative {
			o.ObserveInt64(g.buckets, int64(v), e.bounds[i])
		}
		o.ObserveInt64(g.count, int64(cumulative[len(cumulative)-1]))
	}
	o.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))
	return nil
}

// instrumentName turns a Prometheus-style name into the dotted OTel form:
// credstore_audit_dropped_total becomes credstore.audit.dropped.
func instrumentName(name string) string {
	name = strings.TrimSuffix(name, "_total")
	return strings.ReplaceAll(name, "_", ".")
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}
