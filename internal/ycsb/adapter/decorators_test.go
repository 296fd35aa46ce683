package adapter

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"cbycsb/internal/ycsb"
	"cbycsb/internal/ycsb/metrics"
	"cbycsb/internal/ycsb/tracing"
)

// counterValue sums the samples of a counter family whose labels include want.
func counterValue(t *testing.T, registry *metrics.Registry, name string, want map[string]string) float64 {
	t.Helper()

	families, err := registry.Gatherer().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	metric:
		for _, m := range mf.GetMetric() {
			labels := map[string]string{}
			for _, lp := range m.GetLabel() {
				labels[lp.GetName()] = lp.GetValue()
			}
			for k, v := range want {
				if labels[k] != v {
					continue metric
				}
			}
			switch {
			case m.GetCounter() != nil:
				total += m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				total += m.GetGauge().GetValue()
			}
		}
	}
	return total
}

func newDecoratedStack(t *testing.T, store *fakeStore) (ycsb.DB, *metrics.Registry, *tracetest.SpanRecorder) {
	t.Helper()

	a, err := New(store, nil, zap.NewNop(), UpdateModeCAS, 0)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	registry := metrics.NewRegistry()
	recorder := tracetest.NewSpanRecorder()
	tracer := tracing.NewTracerFromProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)), "test")

	return NewTracedDB(NewMetricsDB(a, registry), tracer), registry, recorder
}

func TestMetricsDBRecordsOperations(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	db, registry, _ := newDecoratedStack(t, store)

	if got := counterValue(t, registry, "ycsb_connections_open", nil); got != 1 {
		t.Errorf("connections open = %v, want 1", got)
	}

	db.Insert(ctx, table, "user1", ycsb.Fields{"f": "v"})
	db.Read(ctx, table, "user1", nil, nil)
	db.Read(ctx, table, "missing", nil, nil)

	store.beforeReplace = func(key string) {
		store.put(key, map[string]string{"f": "other"})
	}
	if _, err := db.Update(ctx, table, "user1", ycsb.Fields{"f": "w"}); !errors.Is(err, ycsb.ErrCasMismatch) {
		t.Fatalf("Update() error = %v, want ErrCasMismatch", err)
	}

	tests := []struct {
		labels map[string]string
		want   float64
	}{
		{map[string]string{"operation": "insert", "status": "ok"}, 1},
		{map[string]string{"operation": "read", "status": "ok"}, 1},
		{map[string]string{"operation": "read", "status": "error"}, 1},
		{map[string]string{"operation": "update", "status": "cas_mismatch"}, 1},
	}
	for _, tt := range tests {
		if got := counterValue(t, registry, "ycsb_db_operation_total", tt.labels); got != tt.want {
			t.Errorf("ycsb_db_operation_total%v = %v, want %v", tt.labels, got, tt.want)
		}
	}
	if got := counterValue(t, registry, "ycsb_db_update_cas_conflicts_total", nil); got != 1 {
		t.Errorf("cas conflicts = %v, want 1", got)
	}

	if err := db.Cleanup(); err != nil {
		t.Fatalf("Cleanup() error = %v", err)
	}
	if got := counterValue(t, registry, "ycsb_connections_open", nil); got != 0 {
		t.Errorf("connections open after Cleanup() = %v, want 0", got)
	}
}

func TestTracedDBSpans(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	db, _, recorder := newDecoratedStack(t, store)

	db.Insert(ctx, table, "user1", ycsb.Fields{"f": "v"})
	db.Read(ctx, table, "missing", nil, nil)
	db.Scan(ctx, table, "user1", 10, nil)

	spans := recorder.Ended()
	if len(spans) != 3 {
		t.Fatalf("ended spans = %d, want 3", len(spans))
	}

	want := []struct {
		name string
		code codes.Code
	}{
		{"db.insert", codes.Ok},
		{"db.read", codes.Error},
		{"db.scan", codes.Ok},
	}
	for i, w := range want {
		if spans[i].Name() != w.name {
			t.Errorf("span %d name = %q, want %q", i, spans[i].Name(), w.name)
		}
		if spans[i].Status().Code != w.code {
			t.Errorf("span %s status = %v, want %v", w.name, spans[i].Status().Code, w.code)
		}
	}
}
