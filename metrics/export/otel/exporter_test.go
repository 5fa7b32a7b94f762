package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/credstore"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot credstore.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() credstore.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := credstore.MetricsSnapshot{
		Counters:   make(map[credstore.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[credstore.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		next := make([]uint64, len(buckets))
		copy(next, buckets)
		out.Histograms[k] = next
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("credstore-test")

	src := &fakeSource{
		snapshot: credstore.MetricsSnapshot{
			Counters: map[credstore.MetricID]uint64{
				credstore.MetricLoginSuccess: 3,
			},
			Histograms: map[credstore.MetricID][]uint64{
				credstore.MetricStoreLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	values := collect(t, reader)
	if got := values["credstore.operations|login/success"]; got != 3 {
		t.Fatalf("expected login success 3, got %d", got)
	}
	if got, ok := values["credstore.operations|refresh/expired"]; !ok || got != 0 {
		t.Fatalf("expected unset counters to report 0, got %d (present %v)", got, ok)
	}
	if got := values["credstore.store.latency.seconds.bucket|+Inf"]; got != 8 {
		t.Fatalf("expected cumulative +Inf bucket 8, got %d", got)
	}
	if got := values["credstore.store.latency.seconds.bucket|0.01"]; got != 2 {
		t.Fatalf("expected cumulative 0.01 bucket 2, got %d", got)
	}
	if got := values["credstore.store.latency.seconds.count|"]; got != 8 {
		t.Fatalf("expected sample count 8, got %d", got)
	}
	if got := values["credstore.audit.dropped|"]; got != 1 {
		t.Fatalf("expected audit dropped 1, got %d", got)
	}
}

// collect flattens int64 data points into "instrument|labels" keys, where
// labels is operation/outcome for engine counters and le for buckets.
func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}

	values := make(map[string]int64)
	add := func(name string, dp metricdata.DataPoint[int64]) {
		label := ""
		if op, ok := dp.Attributes.Value(OperationKey); ok {
			outcome, _ := dp.Attributes.Value(OutcomeKey)
			label = op.AsString() + "/" + outcome.AsString()
		} else if le, ok := dp.Attributes.Value(BoundKey); ok {
			label = le.AsString()
		}
		values[name+"|"+label] = dp.Value
	}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					add(m.Name, dp)
				}
			case metricdata.Gauge[int64]:
				for _, dp := range data.DataPoints {
					add(m.Name, dp)
				}
			}
		}
	}
	return values
}

func TestInstrumentName(t *testing.T) {
	if got := instrumentName("credstore_audit_dropped_total"); got != "credstore.audit.dropped" {
		t.Fatalf("unexpected name %q", got)
	}
	if got := instrumentName("credstore_store_latency_seconds"); got != "credstore.store.latency.seconds" {
		t.Fatalf("unexpected name %q", got)
	}
}

func TestExporterRejectsNilMeter(t *testing.T) {
	if _, err := NewOTelExporterFromSource(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterRejectsNilSource(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("credstore-test")

	if _, err := NewOTelExporterFromSource(meter, nil); err == nil {
		t.Fatal("expected error for nil source")
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("credstore-test")

	src := &fakeSource{
		snapshot: credstore.MetricsSnapshot{
			Counters: map[credstore.MetricID]uint64{
				credstore.MetricLoginSuccess: 1,
			},
			Histograms: map[credstore.MetricID][]uint64{
				credstore.MetricStoreLatency: {1, 0, 0, 0, 0, 0, 0, 0},
			},
		},
	}

	exp, err := NewOTelExporterFromSource(meter, src)
	if err != nil {
		t.Fatalf("NewOTelExporterFromSource failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[credstore.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
