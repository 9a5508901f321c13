package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"resumerank/internal/config"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	out := make(map[string]metricdata.Aggregation)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sumOf(t *testing.T, data metricdata.Aggregation) int64 {
	t.Helper()
	sum, ok := data.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("expected Sum[int64], got %T", data)
	}
	var total int64
	for _, dp := range sum.DataPoints {
		total += dp.Value
	}
	return total
}

func TestMetricsRecording(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer func() { _ = provider.Shutdown(context.Background()) }()

	m, err := NewMetrics(provider.Meter("test"))
	if err != nil {
		t.Fatalf("NewMetrics() error = %v", err)
	}

	ctx := context.Background()
	m.RecordRanking(ctx, 3, 1, 250*time.Millisecond)
	m.RecordResumeScored(ctx, true, 0.72)
	m.RecordResumeScored(ctx, true, 0.41)
	m.RecordResumeScored(ctx, false, 0)
	m.RecordSimilarity(ctx, "local", 3*time.Millisecond, nil)
	m.RecordSimilarity(ctx, "local", 5*time.Millisecond, errors.New("boom"))
	m.RecordEmbeddingCache(ctx, true)
	m.RecordEmbeddingCache(ctx, false)
	m.RecordRateLimitHit(ctx, "ip")
	m.RecordProfileReload(ctx, true)

	got := collect(t, reader)

	counters := map[string]int64{
		"resumerank_rankings_total":                 1,
		"resumerank_resumes_scored_total":           3,
		"resumerank_similarity_errors_total":        1,
		"resumerank_embedding_cache_requests_total": 2,
		"resumerank_rate_limit_hits_total":          1,
		"resumerank_profile_reloads_total":          1,
	}
	for name, want := range counters {
		data, ok := got[name]
		if !ok {
			t.Errorf("metric %s was not exported", name)
			continue
		}
		if total := sumOf(t, data); total != want {
			t.Errorf("%s = %d, want %d", name, total, want)
		}
	}

	hist, ok := got["resumerank_final_score"].(metricdata.Histogram[float64])
	if !ok {
		t.Fatalf("resumerank_final_score is %T", got["resumerank_final_score"])
	}
	var count uint64
	for _, dp := range hist.DataPoints {
		count += dp.Count
	}
	if count != 2 {
		t.Errorf("final score observations = %d, want 2 (failures are not scored)", count)
	}

	if _, ok := got["resumerank_similarity_duration_seconds"]; !ok {
		t.Error("similarity duration was not exported")
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()

	m.RecordRanking(ctx, 1, 0, time.Second)
	m.RecordResumeScored(ctx, true, 0.5)
	m.RecordSimilarity(ctx, "local", time.Millisecond, nil)
	m.RecordEmbeddingCache(ctx, true)
	m.RecordRateLimitHit(ctx, "api_key")
	m.RecordProfileReload(ctx, false)

	empty := &Metrics{}
	empty.RecordRanking(ctx, 1, 0, time.Second)
	empty.RecordSimilarity(ctx, "local", time.Millisecond, errors.New("x"))
}

func TestDisabledManager(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{ServiceName: "resumerank"}, nil)
	if err != nil {
		t.Fatalf("NewObservabilityManager() error = %v", err)
	}

	if om.GetMetrics() != nil {
		t.Error("disabled manager should not create metrics")
	}
	_, span := om.Tracer("test").Start(context.Background(), "op")
	if span.SpanContext().IsValid() {
		t.Error("disabled manager should hand out no-op spans")
	}
	span.End()

	if err := om.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}

	var nilManager *ObservabilityManager
	if nilManager.GetMetrics() != nil {
		t.Error("nil manager should return nil metrics")
	}
	if err := nilManager.Shutdown(context.Background()); err != nil {
		t.Error(err)
	}
}

func TestEnabledManagerWithPrometheus(t *testing.T) {
	om, err := NewObservabilityManager(ObservabilityConfig{
		ServiceName:    "resumerank",
		ServiceVersion: "test",
		Enabled:        true,
		SampleRate:     1,
		Prometheus:     PrometheusConfig{Enabled: true, Endpoint: "/metrics", Port: "0"},
	}, nil)
	if err != nil {
		t.Fatalf("NewObservabilityManager() error = %v", err)
	}
	defer func() {
		if err := om.Shutdown(context.Background()); err != nil {
			t.Errorf("Shutdown() error = %v", err)
		}
	}()

	if om.GetMetrics() == nil {
		t.Fatal("enabled manager should create metrics")
	}
	if om.prometheusServer == nil {
		t.Error("Prometheus server was not started")
	}

	_, span := om.Tracer("test").Start(context.Background(), "op")
	if !span.SpanContext().IsValid() {
		t.Error("enabled manager should record spans")
	}
	span.End()
}

func TestGetObservabilityConfig(t *testing.T) {
	cfg := &config.Config{}
	cfg.Observability.Enabled = true
	cfg.Observability.ServiceName = "resumerank"
	cfg.Observability.ServiceInstance = "resumerank-host"
	cfg.Observability.Console.PrettyPrint = true
	cfg.Observability.Metrics.CollectionInterval = 5 * time.Second
	cfg.Observability.Prometheus.Enabled = true
	cfg.Observability.Prometheus.Port = "9191"
	cfg.Observability.OTLP.Endpoint = "http://collector:4318"

	got := GetObservabilityConfig(cfg, "1.2.3")
	if got.ServiceVersion != "1.2.3" {
		t.Errorf("ServiceVersion = %q, want fallback to app version", got.ServiceVersion)
	}
	if got.ServiceInstance != "resumerank-host" || !got.PrettyPrint || got.CollectionInterval != 5*time.Second {
		t.Errorf("unexpected config %+v", got)
	}
	if got.Prometheus.Port != "9191" || got.OTLP.Endpoint != "http://collector:4318" {
		t.Errorf("exporter settings not copied: %+v", got)
	}

	cfg.Observability.ServiceVersion = "explicit"
	if v := GetObservabilityConfig(cfg, "1.2.3").ServiceVersion; v != "explicit" {
		t.Errorf("ServiceVersion = %q, want explicit", v)
	}

	fallback := GetObservabilityConfig(nil, "dev")
	if fallback.Enabled || fallback.ServiceName != "resumerank" {
		t.Errorf("unexpected fallback %+v", fallback)
	}
}
