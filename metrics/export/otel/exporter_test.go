package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/taskauth"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot taskauth.MetricsSnapshot
	dropped  uint64
}

func (f *fakeSource) MetricsSnapshot() taskauth.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := taskauth.MetricsSnapshot{
		Counters:   make(map[taskauth.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[taskauth.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func (f *fakeSource) AuditDropped() uint64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.dropped
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findSum(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok || len(sum.DataPoints) == 0 {
				t.Fatalf("metric %s has unexpected data %T", name, m.Data)
			}
			return sum.DataPoints[0].Value
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("taskauth-test")

	src := &fakeSource{
		snapshot: taskauth.MetricsSnapshot{
			Counters: map[taskauth.MetricID]uint64{
				taskauth.MetricLoginSuccess: 3,
				taskauth.MetricRateLimitHit: 5,
			},
			Histograms: map[taskauth.MetricID][]uint64{
				taskauth.MetricValidateLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
		dropped: 1,
	}

	exp, err := New(meter, src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer func() {
		if err := exp.Close(); err != nil {
			t.Fatalf("Close failed: %v", err)
		}
	}()

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect failed: %v", err)
	}
	if got := findSum(t, rm, "taskauth_login_success_total"); got != 3 {
		t.Fatalf("login success = %d, want 3", got)
	}
	if got := findSum(t, rm, "taskauth_rate_limit_hit_total"); got != 5 {
		t.Fatalf("rate limit hits = %d, want 5", got)
	}
	if got := findSum(t, rm, "taskauth_audit_dropped_total"); got != 1 {
		t.Fatalf("audit dropped = %d, want 1", got)
	}
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newReader()
	if _, err := New(provider.Meter("taskauth-test"), nil); err != ErrNilSource {
		t.Fatalf("expected ErrNilSource, got %v", err)
	}
	if _, err := New(nil, &fakeSource{}); err != ErrNilMeter {
		t.Fatalf("expected ErrNilMeter, got %v", err)
	}
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newReader()
	src := &fakeSource{
		snapshot: taskauth.MetricsSnapshot{
			Counters:   map[taskauth.MetricID]uint64{taskauth.MetricLoginSuccess: 1},
			Histograms: map[taskauth.MetricID][]uint64{taskauth.MetricValidateLatency: {1}},
		},
	}

	exp, err := New(provider.Meter("taskauth-test"), src)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer exp.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[taskauth.MetricLoginSuccess] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
